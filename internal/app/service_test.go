package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/headhunt/internal/app"
	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/badges"
	"github.com/okian/headhunt/internal/domain/leaderboard"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/internal/domain/reputation"
	"github.com/okian/headhunt/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingSink) Send(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, n.Key())
	return nil
}

func (r *recordingSink) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func draft(recruiter string) proposal.Proposal {
	return proposal.Proposal{
		RecruiterEmail: recruiter,
		CompanyEmail:   "hr@acme.io",
		JobOfferID:     "job-1",
		CandidateName:  "Margaret",
		Description:    "Backend developer",
	}
}

func started(opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithClock(func() time.Time { return t0 })}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then operations fail with ErrNotStarted", func() {
			_, err := svc.SubmitProposal(context.Background(), draft("r@x.io"), "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldBeFalse)
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		svc := started()
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then it reports itself started", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["badgeFamilies"], ShouldEqual, 12)
		})

		Convey("When it is stopped twice", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})
}

func TestService_ProposalFlow(t *testing.T) {
	Convey("Given a started service with a recording sink", t, func() {
		ctx := context.Background()
		sink := &recordingSink{}
		svc := started(service.WithNotifySink(sink), service.WithLeaderboardCacheTTL(time.Minute))

		res, err := svc.SubmitProposal(ctx, draft("Ada@X.io"), "")
		So(err, ShouldBeNil)
		id := res.Proposal.ID

		Convey("Then the submission is credited", func() {
			So(res.Proposal.Status, ShouldEqual, proposal.StatusPending)
			So(res.Stats.TotalPoints, ShouldEqual, 10)
			So(res.Stats.TotalProposals, ShouldEqual, 1)
		})

		Convey("When the proposal is approved within the hour", func() {
			tr, err := svc.Transition(ctx, id, proposal.StatusApproved, "hr@acme.io")
			So(err, ShouldBeNil)

			Convey("Then the approval and the speed badge are credited together", func() {
				So(tr.Event.OldStatus, ShouldEqual, proposal.StatusPending)
				So(tr.Granted, ShouldHaveLength, 1)
				So(tr.Granted[0].BadgeID, ShouldEqual, "speedrunner.bronze")
				So(tr.Stats.TotalPoints, ShouldEqual, 85)
			})

			Convey("And the candidate is hired", func() {
				tr, err := svc.Transition(ctx, id, proposal.StatusHired, "hr@acme.io")
				So(err, ShouldBeNil)

				Convey("Then the stats, level and leaderboard reflect it", func() {
					So(tr.Granted[0].BadgeID, ShouldEqual, "hires_made.bronze")
					view, err := svc.Stats(ctx, "ada@x.io")
					So(err, ShouldBeNil)
					So(view.TotalPoints, ShouldEqual, 260)
					So(view.HiredProposals, ShouldEqual, 1)
					So(view.Level, ShouldEqual, 2)
					So(view.Progress.PointsForNext, ShouldEqual, 400)
					So(view.AcceptanceRate, ShouldEqual, 1.0)

					top, err := svc.Leaderboard(ctx, 10)
					So(err, ShouldBeNil)
					So(top, ShouldHaveLength, 1)
					So(top[0].TotalPoints, ShouldEqual, 260)
				})

				Convey("Then a refresh reproduces the same aggregate", func() {
					before, _ := svc.Stats(ctx, "ada@x.io")
					after, err := svc.RefreshStats(ctx, "ada@x.io")
					So(err, ShouldBeNil)
					So(after.TotalPoints, ShouldEqual, before.TotalPoints)
					So(after.BestStreak, ShouldEqual, before.BestStreak)
				})

				Convey("Then the company was notified once per status", func() {
					So(svc.Stop(ctx), ShouldBeNil)
					So(sink.snapshot(), ShouldResemble, []string{id + ":pending", id + ":approved", id + ":hired"})
				})
			})
		})

		Convey("When an invalid transition is requested", func() {
			_, err := svc.Transition(ctx, id, proposal.StatusHired, "hr@acme.io")

			Convey("Then it fails and the stats are untouched", func() {
				So(errors.Is(err, proposal.ErrInvalidTransition), ShouldBeTrue)
				view, _ := svc.Stats(ctx, "ada@x.io")
				So(view.TotalPoints, ShouldEqual, 10)
			})
		})

		Convey("When the proposal is deleted", func() {
			So(svc.DeleteProposal(ctx, id, "admin"), ShouldBeNil)

			Convey("Then it is gone and the recruiter drops off the board", func() {
				_, err := svc.GetProposal(ctx, id)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				view, _ := svc.Stats(ctx, "ada@x.io")
				So(view.TotalPoints, ShouldEqual, 0)
				_, err = svc.Position(ctx, "ada@x.io")
				So(errors.Is(err, leaderboard.ErrNotRanked), ShouldBeTrue)
			})
		})
	})
}

func TestService_Admin(t *testing.T) {
	Convey("Given a recruiter with one submission", t, func() {
		ctx := context.Background()
		svc := started()
		_, err := svc.SubmitProposal(ctx, draft("bo@x.io"), "")
		So(err, ShouldBeNil)

		Convey("When points are adjusted", func() {
			view, err := svc.AdjustPoints(ctx, "bo@x.io", 90, "bonus", "admin@x.io")
			So(err, ShouldBeNil)
			So(view.TotalPoints, ShouldEqual, 100)
			So(view.Level, ShouldEqual, 2)

			Convey("Then a deduction below zero is refused", func() {
				_, err := svc.AdjustPoints(ctx, "bo@x.io", -500, "typo", "admin@x.io")
				So(errors.Is(err, reputation.ErrNegativePoints), ShouldBeTrue)
			})
		})

		Convey("When a badge is force granted", func() {
			a, err := svc.GrantBadge(ctx, "bo@x.io", "client_love.silver", "admin@x.io")
			So(err, ShouldBeNil)
			So(a.Points, ShouldEqual, 50)

			Convey("Then it is listed and cannot be granted again", func() {
				list, _ := svc.Achievements(ctx, "bo@x.io")
				So(list, ShouldHaveLength, 1)
				_, err := svc.GrantBadge(ctx, "bo@x.io", "client_love.silver", "admin@x.io")
				So(errors.Is(err, badges.ErrAlreadyGranted), ShouldBeTrue)
			})
		})

		Convey("When the leaderboard is exported", func() {
			var buf bytes.Buffer
			So(svc.ExportLeaderboard(ctx, &buf), ShouldBeNil)
			So(buf.Len(), ShouldBeGreaterThan, 0)
			So(buf.Bytes()[:2], ShouldResemble, []byte("PK"))
		})

		Convey("Then the catalog and the monitoring stats are available", func() {
			So(svc.Badges(), ShouldHaveLength, 36)
			stats := svc.GetStats()
			So(stats["proposals"], ShouldEqual, 1)
			So(stats["recruiters"], ShouldEqual, 1)
		})
	})
}

// flakyStatsStore loses every stats write while failing is set.
type flakyStatsStore struct {
	*repository.MemoryStore
	failing atomic.Bool
}

func (f *flakyStatsStore) SaveStats(ctx context.Context, st model.RecruiterStats, grants ...model.Achievement) (model.RecruiterStats, error) {
	if f.failing.Load() {
		return model.RecruiterStats{}, repository.ErrConcurrentModification
	}
	return f.MemoryStore.SaveStats(ctx, st, grants...)
}

func TestService_StatsWriteFailures(t *testing.T) {
	Convey("Given a recruiter whose stats writes start failing after one submission", t, func() {
		ctx := context.Background()
		store := &flakyStatsStore{MemoryStore: repository.NewMemoryStore()}
		svc := started(service.WithStore(store), service.WithStatsMaxRetries(2))
		res, err := svc.SubmitProposal(ctx, draft("cy@x.io"), "")
		So(err, ShouldBeNil)
		id := res.Proposal.ID
		store.failing.Store(true)

		Convey("When the proposal is approved", func() {
			tr, err := svc.Transition(ctx, id, proposal.StatusApproved, "hr@acme.io")

			Convey("Then the committed approval is reported as a success", func() {
				So(err, ShouldBeNil)
				So(tr.Event.NewStatus, ShouldEqual, proposal.StatusApproved)
				p, err := svc.GetProposal(ctx, id)
				So(err, ShouldBeNil)
				So(p.Status, ShouldEqual, proposal.StatusApproved)

				_, err = svc.Transition(ctx, id, proposal.StatusApproved, "hr@acme.io")
				So(err, ShouldNotBeNil)
			})

			Convey("Then the next write once the store recovers credits it", func() {
				store.failing.Store(false)
				next, err := svc.SubmitProposal(ctx, draft("cy@x.io"), "")
				So(err, ShouldBeNil)
				So(next.Stats.TotalProposals, ShouldEqual, 2)
				So(next.Stats.AcceptedProposals, ShouldEqual, 1)
				So(next.Stats.TransitionPoints, ShouldEqual, 70)

				view, err := svc.Stats(ctx, "cy@x.io")
				So(err, ShouldBeNil)
				refreshed, err := svc.RefreshStats(ctx, "cy@x.io")
				So(err, ShouldBeNil)
				So(refreshed.TotalProposals, ShouldEqual, view.TotalProposals)
				So(refreshed.AcceptedProposals, ShouldEqual, view.AcceptedProposals)
				So(refreshed.TotalPoints, ShouldEqual, view.TotalPoints)
			})
		})

		Convey("When the proposal is deleted", func() {
			err := svc.DeleteProposal(ctx, id, "admin@x.io")

			Convey("Then the delete still succeeds", func() {
				So(err, ShouldBeNil)
				_, err := svc.GetProposal(ctx, id)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a deduction that cancels a recruiter's only submission", t, func() {
		ctx := context.Background()
		svc := started()
		res, err := svc.SubmitProposal(ctx, draft("di@x.io"), "")
		So(err, ShouldBeNil)
		_, err = svc.AdjustPoints(ctx, "di@x.io", -10, "dispute", "admin@x.io")
		So(err, ShouldBeNil)

		Convey("When the proposal is deleted", func() {
			So(svc.DeleteProposal(ctx, res.Proposal.ID, "admin@x.io"), ShouldBeNil)

			Convey("Then the recruiter drops out at zero and refreshes keep working", func() {
				view, err := svc.Stats(ctx, "di@x.io")
				So(err, ShouldBeNil)
				So(view.TotalProposals, ShouldEqual, 0)
				So(view.TotalPoints, ShouldEqual, 0)

				_, err = svc.RefreshStats(ctx, "di@x.io")
				So(err, ShouldBeNil)

				entries, err := svc.Leaderboard(ctx, 0)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 0)
			})
		})
	})
}
