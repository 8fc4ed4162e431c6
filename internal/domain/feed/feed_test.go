package feed_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/attackmap/internal/animation/clock"
	"github.com/okian/attackmap/internal/domain/feed"
	"github.com/okian/attackmap/internal/domain/model"
)

func attack(from, to int) model.AttackEvent {
	return model.AttackEvent{Attacker: model.Entity{ID: from}, Defender: model.Entity{ID: to}}
}

func TestDebouncer(t *testing.T) {
	Convey("Given a one second debouncer on a fake clock", t, func() {
		fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		var arrivals [][]model.AttackEvent
		d := feed.NewDebouncer(time.Second, func(evs []model.AttackEvent) {
			arrivals = append(arrivals, evs)
		}, feed.WithDebounceClock(fc))

		Convey("When events keep coming within the window", func() {
			d.Add(attack(1, 2))
			fc.Advance(900 * time.Millisecond)
			d.Add(attack(2, 3))
			fc.Advance(900 * time.Millisecond)
			d.Add(attack(3, 1))

			Convey("Then nothing is delivered yet", func() {
				So(arrivals, ShouldBeEmpty)
				So(d.Buffered(), ShouldEqual, 3)
			})

			Convey("Then one quiet second delivers them as one arrival", func() {
				fc.Advance(time.Second)
				So(arrivals, ShouldHaveLength, 1)
				So(arrivals[0], ShouldResemble, []model.AttackEvent{attack(1, 2), attack(2, 3), attack(3, 1)})
				So(fc.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When two bursts are separated by a quiet window", func() {
			d.Add(attack(1, 2))
			fc.Advance(time.Second)
			d.Add(attack(2, 1))
			d.Add(attack(2, 3))
			fc.Advance(time.Second)

			Convey("Then each burst is one arrival", func() {
				So(arrivals, ShouldHaveLength, 2)
				So(arrivals[1], ShouldHaveLength, 2)
			})
		})

		Convey("When flushed early", func() {
			d.Add(attack(1, 2))
			d.Flush()

			Convey("Then the buffer is delivered and the window cancelled", func() {
				So(arrivals, ShouldHaveLength, 1)
				fc.Advance(time.Second)
				So(arrivals, ShouldHaveLength, 1)
			})
		})

		Convey("When closed with a buffered event", func() {
			d.Add(attack(1, 2))
			d.Close()
			fc.Advance(time.Second)
			d.Add(attack(2, 1))

			Convey("Then nothing is ever delivered", func() {
				So(arrivals, ShouldBeEmpty)
				So(d.Buffered(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a debouncer without a window", t, func() {
		var arrivals [][]model.AttackEvent
		d := feed.NewDebouncer(0, func(evs []model.AttackEvent) { arrivals = append(arrivals, evs) })

		Convey("Then every event is its own arrival", func() {
			d.Add(attack(1, 2))
			d.Add(attack(2, 1))
			So(arrivals, ShouldHaveLength, 2)
		})
	})
}

func TestState(t *testing.T) {
	Convey("Given a state with one observer", t, func() {
		s := feed.NewState()
		var seen []int
		s.Subscribe(func(evs []model.AttackEvent) { seen = append(seen, len(evs)) })

		Convey("When arrivals are appended and batches dropped", func() {
			s.Append(attack(1, 2), attack(2, 3), attack(3, 1))
			s.Append(attack(1, 3))
			s.Drop(3)
			s.Drop(5)

			Convey("Then every mutation is published in order", func() {
				So(seen, ShouldResemble, []int{3, 4, 1, 0})
				So(s.Len(), ShouldEqual, 0)
			})
		})

		Convey("When empty mutations are requested", func() {
			s.Append()
			s.Drop(0)

			Convey("Then nothing is published", func() {
				So(seen, ShouldBeEmpty)
			})
		})

		Convey("When a snapshot is modified", func() {
			s.Append(attack(1, 2))
			snap := s.Snapshot()
			snap[0].Attacker.ID = 9

			Convey("Then the state is unaffected", func() {
				So(s.Snapshot()[0].Attacker.ID, ShouldEqual, 1)
			})
		})

		Convey("When a published collection is kept across a drop", func() {
			var kept []model.AttackEvent
			s.Subscribe(func(evs []model.AttackEvent) {
				if kept == nil {
					kept = evs
				}
			})
			s.Append(attack(1, 2), attack(2, 3))
			s.Drop(1)

			Convey("Then it still holds what was published", func() {
				So(kept, ShouldResemble, []model.AttackEvent{attack(1, 2), attack(2, 3)})
			})
		})
	})
}

func TestLog(t *testing.T) {
	Convey("Given a log holding three entries", t, func() {
		l := feed.NewLog(3)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 1; i <= 5; i++ {
			l.Add(attack(i, i+1), now.Add(time.Duration(i)*time.Second))
		}

		Convey("Then only the newest three are kept, newest first", func() {
			entries := l.Entries(0)
			So(entries, ShouldHaveLength, 3)
			So(entries[0].Attacker.ID, ShouldEqual, 5)
			So(entries[1].Attacker.ID, ShouldEqual, 4)
			So(entries[2].Attacker.ID, ShouldEqual, 3)
			So(entries[0].ReceivedAt, ShouldEqual, now.Add(5*time.Second))
			So(l.Len(), ShouldEqual, 3)
			So(l.Capacity(), ShouldEqual, 3)
		})

		Convey("Then a limit truncates from the newest", func() {
			entries := l.Entries(2)
			So(entries, ShouldHaveLength, 2)
			So(entries[1].Attacker.ID, ShouldEqual, 4)
		})
	})

	Convey("Given a log before it fills", t, func() {
		l := feed.NewLog(10)
		l.Add(attack(1, 2), time.Time{})
		l.Add(attack(2, 1), time.Time{})

		Convey("Then entries are newest first", func() {
			entries := l.Entries(10)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].Attacker.ID, ShouldEqual, 2)
		})
	})

	Convey("Given a log with no capacity", t, func() {
		Convey("Then the default capacity applies", func() {
			So(feed.NewLog(0).Capacity(), ShouldEqual, feed.DefaultLogCapacity)
		})
	})
}
