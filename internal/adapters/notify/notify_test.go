package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/headhunt/internal/adapters/notify"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
)

type memorySink struct {
	mu   sync.Mutex
	seen []model.Notification
}

func (s *memorySink) Send(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return nil
}

func (s *memorySink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.seen))
	for _, n := range s.seen {
		out = append(out, n.Key())
	}
	return out
}

type failingSink struct{}

func (failingSink) Send(context.Context, model.Notification) error { return errors.New("unreachable") }

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func note(id string, st proposal.Status) model.Notification {
	return model.Notification{
		ProposalID:     id,
		RecruiterEmail: "r@x.io",
		CompanyEmail:   "hr@co.io",
		NewStatus:      st,
		CandidateName:  "Ada",
		OccurredAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher(t *testing.T) {
	Convey("Given a dispatcher with a single slot queue", t, func() {
		ctx := context.Background()
		sink := &memorySink{}
		d := notify.NewDispatcher(sink, notify.WithQueueSize(1), notify.WithWorkerCount(1))

		Convey("When more notifications arrive than fit before workers start", func() {
			first := d.Notify(ctx, note("p1", proposal.StatusApproved))
			second := d.Notify(ctx, note("p2", proposal.StatusApproved))

			Convey("Then the overflow is dropped without blocking", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(d.Pending(), ShouldEqual, 1)
			})

			Convey("Then a repeat of the queued notification is suppressed", func() {
				So(d.Notify(ctx, note("p1", proposal.StatusApproved)), ShouldBeTrue)
				So(d.Pending(), ShouldEqual, 1)
			})

			Convey("Then shutdown delivers what was queued", func() {
				d.Start(ctx)
				So(d.Shutdown(ctx), ShouldBeNil)
				So(sink.keys(), ShouldResemble, []string{"p1:approved"})
				So(d.Delivered(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a running dispatcher", t, func() {
		ctx := context.Background()
		sink := &memorySink{}
		d := notify.NewDispatcher(sink, notify.WithWorkerCount(2))
		d.Start(ctx)

		for _, st := range []proposal.Status{proposal.StatusPending, proposal.StatusApproved, proposal.StatusApproved, proposal.StatusHired} {
			So(d.Notify(ctx, note("p1", st)), ShouldBeTrue)
		}
		So(d.Shutdown(ctx), ShouldBeNil)

		Convey("Then each proposal and status pair is delivered once", func() {
			So(sink.keys(), ShouldHaveLength, 3)
			So(sink.keys(), ShouldContain, "p1:pending")
			So(sink.keys(), ShouldContain, "p1:approved")
			So(sink.keys(), ShouldContain, "p1:hired")
		})
	})
}

func TestRedisSink(t *testing.T) {
	Convey("Given a redis sink", t, func() {
		ctx := context.Background()
		pub := &fakePublisher{}
		s := notify.NewRedisSink(pub, "")

		Convey("When a notification is sent", func() {
			So(s.Send(ctx, note("p1", proposal.StatusHired)), ShouldBeNil)

			Convey("Then it is published as JSON on the default channel", func() {
				So(pub.channel, ShouldEqual, notify.DefaultChannel)
				var got model.Notification
				So(json.Unmarshal(pub.payload, &got), ShouldBeNil)
				So(got.ProposalID, ShouldEqual, "p1")
				So(got.NewStatus, ShouldEqual, proposal.StatusHired)
				So(got.CompanyEmail, ShouldEqual, "hr@co.io")
			})
		})

		Convey("When redis refuses the publish", func() {
			pub.err = errors.New("connection refused")
			err := s.Send(ctx, note("p1", proposal.StatusHired))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "headhunt:notifications")
		})
	})
}

func TestMultiSink(t *testing.T) {
	Convey("Given a fan out over a healthy and a failing sink", t, func() {
		ok := &memorySink{}
		m := notify.MultiSink{notify.NewLogSink(nil), ok, failingSink{}}

		err := m.Send(context.Background(), note("p3", proposal.StatusRejected))

		Convey("Then the healthy sinks still receive it and the failure is reported", func() {
			So(err, ShouldNotBeNil)
			So(ok.keys(), ShouldResemble, []string{"p3:rejected"})
		})
	})
}
