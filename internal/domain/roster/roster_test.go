package roster_test

import (
	"sync"
	"testing"

	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRoster(t *testing.T) {
	Convey("Given a roster of three teams", t, func() {
		r := roster.New([]model.Team{{ID: 1, Name: "alpha"}, {ID: 2, Name: "bravo"}, {ID: 3, Name: "charlie"}})

		Convey("Then each id maps to its index", func() {
			So(r.Slot(1), ShouldEqual, 0)
			So(r.Slot(2), ShouldEqual, 1)
			So(r.Slot(3), ShouldEqual, 2)
			So(r.Len(), ShouldEqual, 3)
			So(r.Names(), ShouldResemble, []string{"alpha", "bravo", "charlie"})
		})

		Convey("Then an unknown id maps to the unknown slot", func() {
			So(r.Slot(42), ShouldEqual, model.UnknownSlot)
		})

		Convey("When the roster is replaced", func() {
			r.Replace([]model.Team{{ID: 3, Name: "charlie"}})

			Convey("Then slots follow the new order", func() {
				So(r.Slot(3), ShouldEqual, 0)
				So(r.Slot(1), ShouldEqual, model.UnknownSlot)
				So(r.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the returned teams are modified", func() {
			teams := r.Teams()
			teams[0].Name = "mallory"

			Convey("Then the roster is unaffected", func() {
				So(r.Teams()[0].Name, ShouldEqual, "alpha")
			})
		})

		Convey("When read and replaced concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_ = r.Slot(2)
					_ = r.Len()
				}()
				go func() {
					defer wg.Done()
					r.Replace([]model.Team{{ID: 1}, {ID: 2}})
				}()
			}
			wg.Wait()

			Convey("Then the last roster is intact", func() {
				So(r.Slot(2), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an empty roster", t, func() {
		r := roster.New(nil)

		Convey("Then the layout capacity is one", func() {
			So(r.Len(), ShouldEqual, 1)
			So(r.Slot(1), ShouldEqual, model.UnknownSlot)
			So(r.Teams(), ShouldBeEmpty)
		})
	})

	Convey("Given a roster repeating an id", t, func() {
		r := roster.New([]model.Team{{ID: 7, Name: "a"}, {ID: 7, Name: "b"}})

		Convey("Then the first occurrence wins", func() {
			So(r.Slot(7), ShouldEqual, 0)
		})
	})
}
