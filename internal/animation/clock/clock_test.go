package clock_test

import (
	"testing"
	"time"

	"github.com/okian/attackmap/internal/animation/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFake(t *testing.T) {
	Convey("Given a fake clock", t, func() {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c := clock.NewFake(start)
		var fired []string

		Convey("When calls are scheduled out of order", func() {
			c.AfterFunc(700*time.Millisecond, func() { fired = append(fired, "bullet") })
			c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "beam") })
			c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "beam2") })

			Convey("Then nothing runs before its deadline", func() {
				c.Advance(299 * time.Millisecond)
				So(fired, ShouldBeEmpty)
				So(c.Pending(), ShouldEqual, 3)
			})

			Convey("Then they run in deadline order, ties in scheduling order", func() {
				c.Advance(time.Second)
				So(fired, ShouldResemble, []string{"beam", "beam2", "bullet"})
				So(c.Now(), ShouldEqual, start.Add(time.Second))
				So(c.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When a call schedules another", func() {
			var at time.Time
			c.AfterFunc(100*time.Millisecond, func() {
				c.AfterFunc(150*time.Millisecond, func() { at = c.Now() })
			})
			c.Advance(time.Second)

			Convey("Then the chained call runs at its own deadline", func() {
				So(at, ShouldEqual, start.Add(250*time.Millisecond))
			})
		})

		Convey("When a call is stopped", func() {
			tm := c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "x") })

			Convey("Then it never runs and Stop reports it once", func() {
				So(tm.Stop(), ShouldBeTrue)
				So(tm.Stop(), ShouldBeFalse)
				c.Advance(time.Second)
				So(fired, ShouldBeEmpty)
			})
		})
	})
}

func TestReal(t *testing.T) {
	Convey("Given the real clock", t, func() {
		c := clock.Real()
		done := make(chan struct{})

		Convey("When a call is scheduled", func() {
			c.AfterFunc(time.Millisecond, func() { close(done) })

			Convey("Then it runs", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					So("timer did not fire", ShouldBeEmpty)
				}
			})
		})

		Convey("When a call is stopped before it is due", func() {
			tm := c.AfterFunc(time.Hour, func() { close(done) })

			Convey("Then Stop reports it was pending", func() {
				So(tm.Stop(), ShouldBeTrue)
			})
		})
	})
}
