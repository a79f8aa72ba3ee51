package reputation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/internal/domain/reputation"
)

const recruiter = "r@x.io"

var day0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func ev(id string, old, next proposal.Status, at time.Time) proposal.TransitionEvent {
	return proposal.TransitionEvent{ProposalID: id, RecruiterEmail: recruiter, OldStatus: old, NewStatus: next, OccurredAt: at}
}

func submitted(id string, at time.Time) proposal.TransitionEvent {
	return ev(id, "", proposal.StatusPending, at)
}

func TestLevel(t *testing.T) {
	Convey("Given the level curve", t, func() {
		Convey("Then the boundaries hold", func() {
			cases := map[int64]int{0: 1, 99: 1, 100: 2, 399: 2, 400: 3, 899: 3, 900: 4, 10000: 11}
			for points, want := range cases {
				So(reputation.Level(points), ShouldEqual, want)
			}
		})

		Convey("Then the level never decreases as points grow", func() {
			prev := reputation.Level(0)
			for p := int64(0); p <= 20000; p += 7 {
				l := reputation.Level(p)
				So(l, ShouldBeGreaterThanOrEqualTo, prev)
				prev = l
			}
		})

		Convey("Then PointsForLevel is the inverse at level starts", func() {
			for l := 1; l < 30; l++ {
				So(reputation.Level(reputation.PointsForLevel(l)), ShouldEqual, l)
				So(reputation.Level(reputation.PointsForLevel(l+1)-1), ShouldEqual, l)
			}
		})

		Convey("Then progress is clamped and relative to the level span", func() {
			p := reputation.Progress(250)
			So(p.Level, ShouldEqual, 2)
			So(p.PointsForCurrent, ShouldEqual, 100)
			So(p.PointsForNext, ShouldEqual, 400)
			So(p.Progress, ShouldEqual, 0.5)
			So(reputation.Progress(0).Progress, ShouldEqual, 0)
			So(reputation.Progress(-50).Progress, ShouldEqual, 0)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given an empty aggregate and the default table", t, func() {
		table := reputation.DefaultTable()
		w := reputation.DefaultStreakWindow
		s := model.RecruiterStats{Email: recruiter}

		Convey("When a proposal is submitted, approved and hired", func() {
			s = reputation.Apply(s, submitted("p1", day0), table, w)
			s = reputation.Apply(s, ev("p1", proposal.StatusPending, proposal.StatusApproved, day0.Add(time.Hour)), table, w)
			s = reputation.Apply(s, ev("p1", proposal.StatusApproved, proposal.StatusHired, day0.Add(2*time.Hour)), table, w)

			Convey("Then counters and points follow the table", func() {
				So(s.TotalProposals, ShouldEqual, 1)
				So(s.AcceptedProposals, ShouldEqual, 1)
				So(s.HiredProposals, ShouldEqual, 1)
				So(s.TotalPoints, ShouldEqual, 210)
				So(s.Level, ShouldEqual, 2)
				So(s.CurrentStreak, ShouldEqual, 1)
				So(s.Check(), ShouldBeNil)
			})
		})

		Convey("When events are folded", func() {
			a := submitted("p1", day0)
			b := submitted("p2", day0.Add(time.Hour))
			ab := reputation.Apply(reputation.Apply(s, a, table, w), b, table, w)
			ba := reputation.Apply(reputation.Apply(s, b, table, w), a, table, w)

			Convey("Then the fold counts them and the digest ignores order", func() {
				So(ab.AppliedEvents, ShouldEqual, 2)
				So(ab.AppliedDigest, ShouldNotEqual, 0)
				So(ab.AppliedDigest, ShouldEqual, ba.AppliedDigest)
				So(ab.AppliedDigest, ShouldEqual, a.Key().Hash()^b.Key().Hash())
			})
		})

		Convey("When submission awards nothing", func() {
			custom := reputation.Table{proposal.KindSubmitted: 0, proposal.KindApproved: 50, proposal.KindHired: 150}
			s = reputation.Apply(s, submitted("p1", day0), custom, w)
			s = reputation.Apply(s, ev("p1", proposal.StatusPending, proposal.StatusApproved, day0), custom, w)
			s = reputation.Apply(s, ev("p1", proposal.StatusApproved, proposal.StatusHired, day0), custom, w)

			Convey("Then the total is 200 at level 2", func() {
				So(s.TotalPoints, ShouldEqual, 200)
				So(s.Level, ShouldEqual, 2)
			})
		})

		Convey("When a proposal goes under review and is rejected", func() {
			s = reputation.Apply(s, submitted("p1", day0), table, w)
			s = reputation.Apply(s, ev("p1", proposal.StatusPending, proposal.StatusUnderReview, day0.Add(24*time.Hour)), table, w)
			s = reputation.Apply(s, ev("p1", proposal.StatusUnderReview, proposal.StatusRejected, day0.Add(48*time.Hour)), table, w)

			Convey("Then only activity moves", func() {
				So(s.TotalProposals, ShouldEqual, 1)
				So(s.AcceptedProposals, ShouldEqual, 0)
				So(s.TotalPoints, ShouldEqual, 10)
				So(s.CurrentStreak, ShouldEqual, 1)
				So(s.LastProposalDate, ShouldEqual, day0)
				So(s.LastActivityAt, ShouldEqual, day0.Add(48*time.Hour))
			})
		})
	})
}

func TestReplay(t *testing.T) {
	Convey("Given a deduction larger than the history now earns", t, func() {
		events := []proposal.TransitionEvent{submitted("p1", day0)}
		s := reputation.Replay(recruiter, events, nil, -50, reputation.DefaultTable(), reputation.DefaultStreakWindow)

		Convey("Then the adjustment is clamped so the total is zero", func() {
			So(s.AdjustmentPoints, ShouldEqual, -10)
			So(s.TotalPoints, ShouldEqual, 0)
			So(s.Check(), ShouldBeNil)
		})
	})

	Convey("Given a deduction the history still covers", t, func() {
		events := []proposal.TransitionEvent{submitted("p1", day0), submitted("p2", day0)}
		s := reputation.Replay(recruiter, events, nil, -5, reputation.DefaultTable(), reputation.DefaultStreakWindow)
		So(s.AdjustmentPoints, ShouldEqual, -5)
		So(s.TotalPoints, ShouldEqual, 15)
	})
}

func TestStreak(t *testing.T) {
	Convey("Given counted events on various days", t, func() {
		table := reputation.DefaultTable()
		w := reputation.DefaultStreakWindow
		s := model.RecruiterStats{Email: recruiter}

		Convey("When two events fall on the same UTC day", func() {
			s = reputation.Apply(s, submitted("p1", day0), table, w)
			s = reputation.Apply(s, submitted("p2", day0.Add(10*time.Hour)), table, w)
			So(s.CurrentStreak, ShouldEqual, 1)
		})

		Convey("When events are within the window", func() {
			s = reputation.Apply(s, submitted("p1", day0), table, w)
			s = reputation.Apply(s, submitted("p2", day0.Add(3*24*time.Hour)), table, w)
			s = reputation.Apply(s, submitted("p3", day0.Add(10*24*time.Hour)), table, w)
			So(s.CurrentStreak, ShouldEqual, 3)
			So(s.BestStreak, ShouldEqual, 3)
		})

		Convey("When the gap exceeds the window", func() {
			s = reputation.Apply(s, submitted("p1", day0), table, w)
			s = reputation.Apply(s, submitted("p2", day0.Add(24*time.Hour)), table, w)
			s = reputation.Apply(s, submitted("p3", day0.Add(9*24*time.Hour)), table, w)

			Convey("Then the streak resets and the best is kept", func() {
				So(s.CurrentStreak, ShouldEqual, 1)
				So(s.BestStreak, ShouldEqual, 2)
			})
		})

		Convey("When an older event arrives late", func() {
			s = reputation.Apply(s, submitted("p1", day0.Add(5*24*time.Hour)), table, w)
			s = reputation.Apply(s, submitted("p0", day0), table, w)

			Convey("Then the streak and date are unchanged but counters move", func() {
				So(s.CurrentStreak, ShouldEqual, 1)
				So(s.LastProposalDate, ShouldEqual, day0.Add(5*24*time.Hour))
				So(s.TotalProposals, ShouldEqual, 2)
			})
		})

		Convey("Then the current streak never exceeds the best streak", func() {
			at := day0
			for i := 0; i < 40; i++ {
				at = at.Add(time.Duration(i%11) * 24 * time.Hour)
				s = reputation.Apply(s, submitted(fmt.Sprintf("p%d", i), at), table, w)
				So(s.CurrentStreak, ShouldBeLessThanOrEqualTo, s.BestStreak)
			}
		})
	})
}

func TestEngine(t *testing.T) {
	Convey("Given an engine over a memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		var writes int
		engine := reputation.NewEngine(store, store, reputation.WithOnWrite(func(context.Context, model.RecruiterStats) { writes++ }))

		create := func(id string, at time.Time) proposal.TransitionEvent {
			e := submitted(id, at)
			p := proposal.Proposal{ID: id, RecruiterEmail: recruiter, JobOfferID: "j", CandidateName: "c", Status: proposal.StatusPending, CreatedAt: at}
			So(store.CreateProposal(ctx, p, e), ShouldBeNil)
			return e
		}
		move := func(id string, from, to proposal.Status, at time.Time) proposal.TransitionEvent {
			So(store.UpdateStatus(ctx, id, from, to, at, "company"), ShouldBeNil)
			return ev(id, from, to, at)
		}

		Convey("When transitions are recorded one by one", func() {
			var events []proposal.TransitionEvent
			events = append(events, create("p1", day0))
			events = append(events, create("p2", day0.Add(48*time.Hour)))
			events = append(events, move("p1", proposal.StatusPending, proposal.StatusApproved, day0.Add(50*time.Hour)))
			events = append(events, move("p2", proposal.StatusPending, proposal.StatusRejected, day0.Add(51*time.Hour)))
			events = append(events, move("p1", proposal.StatusApproved, proposal.StatusHired, day0.Add(20*24*time.Hour)))
			var incremental model.RecruiterStats
			for _, e := range events {
				s, err := engine.RecordTransition(ctx, e)
				So(err, ShouldBeNil)
				incremental = s
			}

			Convey("Then every write notified the callbacks", func() {
				So(writes, ShouldEqual, len(events))
			})

			Convey("Then a refresh reproduces the same aggregate", func() {
				refreshed, err := engine.RefreshStats(ctx, recruiter)
				So(err, ShouldBeNil)
				refreshed.Version, refreshed.UpdatedAt = 0, time.Time{}
				incremental.Version, incremental.UpdatedAt = 0, time.Time{}
				So(refreshed, ShouldResemble, incremental)

				Convey("And refreshing again changes nothing", func() {
					again, err := engine.RefreshStats(ctx, recruiter)
					So(err, ShouldBeNil)
					again.Version, again.UpdatedAt = 0, time.Time{}
					So(again, ShouldResemble, refreshed)
				})
			})

			Convey("Then an adjustment keeps the breakdown consistent", func() {
				s, err := engine.AdjustPoints(ctx, recruiter, -20, "dispute", "admin")
				So(err, ShouldBeNil)
				So(s.TotalPoints, ShouldEqual, incremental.TotalPoints-20)
				So(s.AdjustmentPoints, ShouldEqual, -20)
				So(s.TotalProposals, ShouldEqual, incremental.TotalProposals)

				Convey("And a refresh keeps the adjustment", func() {
					r, err := engine.RefreshStats(ctx, recruiter)
					So(err, ShouldBeNil)
					So(r.TotalPoints, ShouldEqual, s.TotalPoints)
				})
			})

			Convey("Then an adjustment below zero is refused", func() {
				_, err := engine.AdjustPoints(ctx, recruiter, -100000, "", "admin")
				So(errors.Is(err, reputation.ErrNegativePoints), ShouldBeTrue)
			})
		})

		Convey("When many submissions are recorded concurrently", func() {
			contended := reputation.NewEngine(store, store, reputation.WithMaxRetries(1000))
			var wg sync.WaitGroup
			for i := 0; i < 25; i++ {
				e := create(fmt.Sprintf("c%d", i), day0)
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = contended.RecordTransition(ctx, e)
				}()
			}
			wg.Wait()

			Convey("Then no update is lost", func() {
				s, err := contended.Stats(ctx, recruiter)
				So(err, ShouldBeNil)
				So(s.TotalProposals, ShouldEqual, 25)
				So(s.TotalPoints, ShouldEqual, 250)
			})
		})

		Convey("When a refresh runs between a commit and its record", func() {
			e := create("p1", day0)
			_, err := engine.RefreshStats(ctx, recruiter)
			So(err, ShouldBeNil)
			s, err := engine.RecordTransition(ctx, e)
			So(err, ShouldBeNil)

			Convey("Then the submission is counted once", func() {
				So(s.TotalProposals, ShouldEqual, 1)
				So(s.TotalPoints, ShouldEqual, 10)
				So(s.AppliedEvents, ShouldEqual, 1)
			})

			Convey("And the same holds for an approval", func() {
				a := move("p1", proposal.StatusPending, proposal.StatusApproved, day0.Add(time.Hour))
				_, err := engine.RefreshStats(ctx, recruiter)
				So(err, ShouldBeNil)
				s, err := engine.RecordTransition(ctx, a)
				So(err, ShouldBeNil)
				So(s.AcceptedProposals, ShouldEqual, 1)
				So(s.TotalPoints, ShouldEqual, 60)

				r, err := engine.RefreshStats(ctx, recruiter)
				So(err, ShouldBeNil)
				r.Version, r.UpdatedAt = 0, time.Time{}
				s.Version, s.UpdatedAt = 0, time.Time{}
				So(r, ShouldResemble, s)
			})
		})

		Convey("When a transition was committed but never recorded", func() {
			create("p1", day0)
			move("p1", proposal.StatusPending, proposal.StatusApproved, day0.Add(time.Hour))
			s, err := engine.RecordTransition(ctx, create("p2", day0.Add(2*time.Hour)))
			So(err, ShouldBeNil)

			Convey("Then the next record picks it up", func() {
				So(s.TotalProposals, ShouldEqual, 2)
				So(s.AcceptedProposals, ShouldEqual, 1)
				So(s.TotalPoints, ShouldEqual, 70)
				So(s.AppliedEvents, ShouldEqual, 3)
			})
		})

		Convey("When the history under an aggregate is swapped for one of the same size", func() {
			_, err := engine.RecordTransition(ctx, create("p1", day0))
			So(err, ShouldBeNil)
			So(store.DeleteProposal(ctx, "p1"), ShouldBeNil)
			c := create("p2", day0.Add(72*time.Hour))
			a := move("p2", proposal.StatusPending, proposal.StatusApproved, day0.Add(73*time.Hour))
			s, err := engine.RecordTransition(ctx, a)
			So(err, ShouldBeNil)

			Convey("Then the aggregate is rebuilt rather than extended", func() {
				So(s.TotalProposals, ShouldEqual, 1)
				So(s.AcceptedProposals, ShouldEqual, 1)
				So(s.TotalPoints, ShouldEqual, 60)
				So(s.CurrentStreak, ShouldEqual, 1)
				So(s.AppliedDigest, ShouldEqual, c.Key().Hash()^a.Key().Hash())
			})
		})

		Convey("When a deduction outlives the proposal it was made against", func() {
			_, err := engine.RecordTransition(ctx, create("p1", day0))
			So(err, ShouldBeNil)
			_, err = engine.AdjustPoints(ctx, recruiter, -10, "dispute", "admin")
			So(err, ShouldBeNil)
			So(store.DeleteProposal(ctx, "p1"), ShouldBeNil)
			s, err := engine.RefreshStats(ctx, recruiter)

			Convey("Then the refresh succeeds at zero", func() {
				So(err, ShouldBeNil)
				So(s.TotalProposals, ShouldEqual, 0)
				So(s.TotalPoints, ShouldEqual, 0)
				So(s.Check(), ShouldBeNil)
			})
		})

		Convey("When stats are read for an unknown recruiter", func() {
			s, err := engine.Stats(ctx, "nobody@x.io")
			So(err, ShouldBeNil)
			So(s.Level, ShouldEqual, 1)
			So(s.Version, ShouldEqual, 0)
		})
	})
}

// conflictingStore loses every write.
type conflictingStore struct {
	*repository.MemoryStore
	attempts int
}

func (c *conflictingStore) SaveStats(ctx context.Context, s model.RecruiterStats, grants ...model.Achievement) (model.RecruiterStats, error) {
	c.attempts++
	return model.RecruiterStats{}, repository.ErrConcurrentModification
}

func TestEngineRetries(t *testing.T) {
	Convey("Given a store where every write loses", t, func() {
		store := &conflictingStore{MemoryStore: repository.NewMemoryStore()}
		engine := reputation.NewEngine(store, store, reputation.WithMaxRetries(3))

		Convey("When a transition is recorded", func() {
			_, err := engine.RecordTransition(context.Background(), submitted("p1", day0))

			Convey("Then it gives up after the retry budget", func() {
				So(errors.Is(err, repository.ErrConcurrentModification), ShouldBeTrue)
				So(errors.Is(err, reputation.ErrRetriesExhausted), ShouldBeTrue)
				So(store.attempts, ShouldEqual, 4)
			})
		})
	})
}

func TestTableFromConfig(t *testing.T) {
	Convey("Given point values from configuration", t, func() {
		Convey("When they are valid", func() {
			table, err := reputation.TableFromConfig(map[string]int64{"submitted": 0, "hired": 200})
			So(err, ShouldBeNil)
			So(table.Points(proposal.KindHired), ShouldEqual, 200)
			So(table.Points(proposal.KindApproved), ShouldEqual, 0)
		})

		Convey("When a kind is unknown or negative", func() {
			_, err := reputation.TableFromConfig(map[string]int64{"promoted": 5})
			So(err, ShouldNotBeNil)
			_, err = reputation.TableFromConfig(map[string]int64{"hired": -1})
			So(err, ShouldNotBeNil)
		})
	})
}
