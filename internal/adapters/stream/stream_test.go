package stream_test

import (
	"errors"
	"testing"

	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDecode(t *testing.T) {
	Convey("Given attack payloads", t, func() {
		Convey("When a single object is decoded", func() {
			events, err := stream.Decode([]byte(` {"attacker":{"id":3,"name":"red"},"defender":{"id":7,"name":"blue"}} `))

			Convey("Then one event comes back", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].Attacker, ShouldResemble, model.Entity{ID: 3, Name: "red"})
				So(events[0].Defender.ID, ShouldEqual, 7)
			})
		})

		Convey("When an array is decoded", func() {
			events, err := stream.Decode([]byte(`[
				{"event_id":"a","attacker":{"id":1},"defender":{"id":2}},
				{"event_id":"b","attacker":{"id":2},"defender":{"id":1}}
			]`))

			Convey("Then order is kept", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].EventID, ShouldEqual, "a")
				So(events[1].EventID, ShouldEqual, "b")
			})
		})

		Convey("When the payload is malformed", func() {
			for _, raw := range []string{"", "   ", "{", `{"attacker":{"id":1}}`, `[{"attacker":{"id":1},"defender":{"id":2}},{}]`} {
				_, err := stream.Decode([]byte(raw))
				So(errors.Is(err, stream.ErrDecode), ShouldBeTrue)
			}
		})

		Convey("When a side is missing", func() {
			_, err := stream.Decode([]byte(`{"defender":{"id":2}}`))

			Convey("Then the validation error is kept in the chain", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})
	})
}
