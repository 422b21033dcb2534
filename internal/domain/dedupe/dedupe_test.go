package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	for _, mode := range []struct {
		name string
		opts []dedupe.Option
	}{
		{"bounded", []dedupe.Option{dedupe.WithMaxSize(100)}},
		{"unbounded", []dedupe.Option{dedupe.WithMaxSize(0)}},
	} {
		Convey("Given a "+mode.name+" deduper", t, func() {
			d := dedupe.NewInMemoryDeduper(mode.opts...)
			So(d.Size(), ShouldEqual, 0)

			Convey("When a profile is recorded twice", func() {
				first := d.SeenAndRecord(ctx, "profile-1")
				second := d.SeenAndRecord(ctx, "profile-1")

				Convey("Then only the second is reported as pending", func() {
					So(first, ShouldBeFalse)
					So(second, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("When a recorded profile is released", func() {
				d.SeenAndRecord(ctx, "profile-1")
				d.Unrecord(ctx, "profile-1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "profile-1"), ShouldBeFalse)
				})
			})

			Convey("When releasing an unknown profile", func() {
				d.Unrecord(ctx, "nobody")

				Convey("Then nothing changes", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})

			Convey("When many goroutines race on the same id", func() {
				var wg sync.WaitGroup
				var fresh atomic.Int32
				for i := 0; i < 50; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if !d.SeenAndRecord(ctx, "contended") {
							fresh.Add(1)
						}
					}()
				}
				wg.Wait()

				Convey("Then exactly one wins", func() {
					So(fresh.Load(), ShouldEqual, 1)
				})
			})
		})
	}

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When a fourth id arrives", func() {
			for i := 1; i <= 4; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("p%d", i)), ShouldBeFalse)
			}

			Convey("Then the oldest is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "p4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "p1"), ShouldBeFalse)
			})
		})
	})
}
