package leaderboard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/leaderboard"
	"github.com/okian/headhunt/internal/domain/model"
)

func stats(email string, points int64, accepted, total int) model.RecruiterStats {
	return model.RecruiterStats{
		Email: email, TotalPoints: points, TransitionPoints: points,
		AcceptedProposals: accepted, TotalProposals: total,
	}
}

func emails(entries []leaderboard.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Email)
	}
	return out
}

func TestRank(t *testing.T) {
	Convey("Given recruiters with tied points", t, func() {
		all := []model.RecruiterStats{
			stats("d@x.io", 100, 1, 4),
			stats("c@x.io", 100, 1, 2),
			stats("b@x.io", 100, 2, 4),
			stats("a@x.io", 100, 1, 4),
			stats("e@x.io", 300, 0, 1),
			stats("idle@x.io", 0, 0, 0),
		}

		Convey("When they are ranked", func() {
			ranked := leaderboard.Rank(all)

			Convey("Then ties break on rate, volume and email", func() {
				So(emails(ranked), ShouldResemble, []string{"e@x.io", "b@x.io", "c@x.io", "a@x.io", "d@x.io"})
			})

			Convey("Then ranks are consecutive from one", func() {
				for i, e := range ranked {
					So(e.Rank, ShouldEqual, i+1)
				}
			})

			Convey("Then recruiters without proposals are left out", func() {
				So(emails(ranked), ShouldNotContain, "idle@x.io")
			})

			Convey("Then the acceptance rate is exposed", func() {
				So(ranked[1].AcceptanceRate, ShouldEqual, 0.5)
			})
		})
	})
}

// racingLister calls after once, right after its first read, as a stats write
// committed mid-build would.
type racingLister struct {
	*repository.MemoryStore
	after func()
	calls int
}

func (r *racingLister) ListStats(ctx context.Context) ([]model.RecruiterStats, error) {
	r.calls++
	all, err := r.MemoryStore.ListStats(ctx)
	if r.calls == 1 && r.after != nil {
		r.after()
	}
	return all, err
}

func TestBuilder(t *testing.T) {
	Convey("Given a builder over a memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		for _, s := range []model.RecruiterStats{stats("a@x.io", 50, 1, 1), stats("b@x.io", 80, 0, 2), stats("c@x.io", 10, 0, 1)} {
			_, err := store.SaveStats(ctx, s)
			So(err, ShouldBeNil)
		}

		Convey("When the limit is positive", func() {
			b := leaderboard.NewBuilder(store, leaderboard.WithCacheTTL(0))
			top, err := b.Build(ctx, 2)
			So(err, ShouldBeNil)
			So(emails(top), ShouldResemble, []string{"b@x.io", "a@x.io"})
		})

		Convey("When the limit is zero or negative", func() {
			b := leaderboard.NewBuilder(store, leaderboard.WithCacheTTL(0))
			all, err := b.Build(ctx, 0)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)
			all, _ = b.Build(ctx, -5)
			So(all, ShouldHaveLength, 3)
		})

		Convey("When a position is requested", func() {
			b := leaderboard.NewBuilder(store, leaderboard.WithCacheTTL(0))
			e, err := b.Position(ctx, "c@x.io")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 3)

			_, err = b.Position(ctx, "ghost@x.io")
			So(errors.Is(err, leaderboard.ErrNotRanked), ShouldBeTrue)
		})

		Convey("When reads are cached", func() {
			b := leaderboard.NewBuilder(store, leaderboard.WithCacheTTL(time.Minute))
			first, _ := b.Build(ctx, 0)
			So(first, ShouldHaveLength, 3)

			_, err := store.SaveStats(ctx, stats("d@x.io", 500, 1, 1))
			So(err, ShouldBeNil)

			Convey("Then the cached ranking is served until invalidated", func() {
				cached, _ := b.Build(ctx, 0)
				So(cached, ShouldHaveLength, 3)

				b.Invalidate()
				fresh, _ := b.Build(ctx, 0)
				So(fresh, ShouldHaveLength, 4)
				So(fresh[0].Email, ShouldEqual, "d@x.io")
			})

			Convey("Then callers cannot corrupt the cached slice", func() {
				first[0].Email = "mutated"
				again, _ := b.Build(ctx, 0)
				So(again[0].Email, ShouldEqual, "b@x.io")
			})
		})

		Convey("When a write is invalidated while a build is reading", func() {
			lister := &racingLister{MemoryStore: store}
			b := leaderboard.NewBuilder(lister, leaderboard.WithCacheTTL(time.Minute))
			lister.after = func() {
				_, err := store.SaveStats(ctx, stats("d@x.io", 500, 1, 1))
				So(err, ShouldBeNil)
				b.Invalidate()
			}
			stale, err := b.Build(ctx, 0)
			So(err, ShouldBeNil)
			So(stale, ShouldHaveLength, 3)

			Convey("Then the stale ranking is not cached", func() {
				fresh, err := b.Build(ctx, 0)
				So(err, ShouldBeNil)
				So(lister.calls, ShouldEqual, 2)
				So(fresh, ShouldHaveLength, 4)
				So(fresh[0].Email, ShouldEqual, "d@x.io")
			})
		})
	})
}
