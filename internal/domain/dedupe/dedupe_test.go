package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/headhunt/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "p1:approved")
			second := d.SeenAndRecord(ctx, "p1:approved")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "p1:hired")
			d.Unrecord(ctx, "p1:hired")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "p1:hired"), ShouldBeFalse)
			})
		})

		Convey("When an unknown key is unrecorded", func() {
			d.Unrecord(ctx, "ghost")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, k := range []string{"a", "b", "c", "d"} {
			d.SeenAndRecord(ctx, k)
		}

		Convey("Then the oldest key was evicted", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})

		Convey("Then the newer keys are remembered", func() {
			So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 500; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}
		So(d.Size(), ShouldEqual, 500)
		So(d.SeenAndRecord(ctx, "k0"), ShouldBeTrue)
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines recording the same key", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		var (
			wg    sync.WaitGroup
			fresh atomic.Int32
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "p9:rejected") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one records it", func() {
			So(fresh.Load(), ShouldEqual, 1)
		})
	})
}
