package wssource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
)

func TestDecodePacket(t *testing.T) {
	Convey("Given socket.io frames", t, func() {
		Convey("Then the open handshake is split off", func() {
			p, err := decodePacket(`0{"sid":"x","pingInterval":25000,"pingTimeout":20000}`)
			So(err, ShouldBeNil)
			So(p.engine, ShouldEqual, engineOpen)
			So(p.data, ShouldStartWith, `{"sid"`)
		})

		Convey("Then ping and connect packets carry only their types", func() {
			p, err := decodePacket("2")
			So(err, ShouldBeNil)
			So(p.engine, ShouldEqual, enginePing)

			p, err = decodePacket(`40{"sid":"y"}`)
			So(err, ShouldBeNil)
			So(p.engine, ShouldEqual, engineMessage)
			So(p.socket, ShouldEqual, socketConnect)
		})

		Convey("Then events yield a name and arguments", func() {
			p, err := decodePacket(`42["attack-event",{"attacker":{"id":1},"defender":{"id":2}}]`)
			So(err, ShouldBeNil)
			So(p.event, ShouldEqual, "attack-event")
			So(p.args, ShouldHaveLength, 1)

			p, err = decodePacket(`4217["scoreboard"]`)
			So(err, ShouldBeNil)
			So(p.event, ShouldEqual, "scoreboard")
			So(p.args, ShouldBeEmpty)
		})

		Convey("Then malformed frames are protocol errors", func() {
			for _, frame := range []string{"", "4", `42[]`, `42{`, `42/admin,["x"]`, `42[7]`} {
				_, err := decodePacket(frame)
				So(errors.Is(err, ErrProtocol), ShouldBeTrue)
			}
		})
	})
}

func TestSocketURL(t *testing.T) {
	Convey("Given feed base URLs", t, func() {
		cases := map[string]string{
			"http://ctf.local":           "ws://ctf.local/socket.io/?EIO=4&transport=websocket",
			"https://ctf.local/":         "wss://ctf.local/socket.io/?EIO=4&transport=websocket",
			"ws://ctf.local:3000/custom": "ws://ctf.local:3000/custom/?EIO=4&transport=websocket",
			"wss://ctf.local/socket.io/": "wss://ctf.local/socket.io/?EIO=4&transport=websocket",
		}
		for in, want := range cases {
			got, err := socketURL(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := socketURL("ftp://ctf.local")
		So(err, ShouldNotBeNil)
	})
}

// fakeFeed is a minimal socket.io server: it handshakes, pings once and
// pushes the given frames.
func fakeFeed(t *testing.T, frames []string, replies chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("EIO") != "4" {
			http.Error(w, "bad EIO", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		send := func(s string) bool {
			return conn.WriteMessage(websocket.TextMessage, []byte(s)) == nil
		}
		read := func() {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, msg, err := conn.ReadMessage(); err == nil {
				replies <- string(msg)
			}
		}

		send(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`)
		read() // namespace connect
		send(`40{"sid":"def"}`)
		send("2")
		read() // pong
		for _, f := range frames {
			if !send(f) {
				return
			}
		}
		// Hold the connection open until the client leaves.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, _ = conn.ReadMessage()
	}))
}

func TestSourceSession(t *testing.T) {
	Convey("Given a socket.io feed", t, func() {
		replies := make(chan string, 8)
		srv := fakeFeed(t, []string{
			`42["scoreboard",{"x":1}]`,
			`42["attack-event",{"attacker":{"id":1,"name":"red"},"defender":{"id":2,"name":"blue"}}]`,
			`42["attack-event",{"garbage":true}]`,
			`42["attack-event",{"attacker":{"id":2},"defender":{"id":3}}]`,
		}, replies)
		defer srv.Close()

		var mu sync.Mutex
		var got []model.AttackEvent
		delivered := make(chan struct{}, 4)
		h := func(_ context.Context, ev model.AttackEvent) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
			delivered <- struct{}{}
		}

		src := New(strings.Replace(srv.URL, "http://", "ws://", 1), WithLogger(logger.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() { errc <- src.Run(ctx, h) }()

		for i := 0; i < 2; i++ {
			select {
			case <-delivered:
			case <-time.After(3 * time.Second):
				t.Fatal("attack not delivered")
			}
		}
		cancel()

		Convey("Then the client answers the handshake and the ping", func() {
			So(<-replies, ShouldEqual, "40")
			So(<-replies, ShouldEqual, "3")
		})

		Convey("Then only valid attack events are delivered, in order", func() {
			mu.Lock()
			defer mu.Unlock()
			So(got, ShouldHaveLength, 2)
			So(got[0].Attacker.Name, ShouldEqual, "red")
			So(got[1].Defender.ID, ShouldEqual, 3)
		})

		Convey("Then Run returns the cancellation", func() {
			select {
			case err := <-errc:
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			case <-time.After(3 * time.Second):
				t.Fatal("Run did not return")
			}
		})
	})
}

func TestSourceDialFailure(t *testing.T) {
	Convey("Given an unreachable feed", t, func() {
		src := New("ws://127.0.0.1:1", WithLogger(logger.Nop()), WithRetry(2, time.Millisecond, time.Millisecond))

		Convey("Then Run gives up after the retries", func() {
			err := src.Run(context.Background(), func(context.Context, model.AttackEvent) {})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "dial ws://127.0.0.1:1")
		})

		Convey("Then an empty URL is refused", func() {
			So(New("").Run(context.Background(), nil), ShouldEqual, ErrNoURL)
		})
	})
}

// droppingFeed accepts every connection, announces an Engine.IO close and
// hangs up.
func droppingFeed(t *testing.T, sessions *atomic.Int32) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		sessions.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("1"))
		_ = conn.Close()
	}))
}

func TestSourceDroppedSessions(t *testing.T) {
	Convey("Given a feed that hangs up right after every upgrade", t, func() {
		var sessions atomic.Int32
		srv := droppingFeed(t, &sessions)
		defer srv.Close()
		feed := strings.Replace(srv.URL, "http://", "ws://", 1)

		Convey("When the client runs for a while", func() {
			src := New(feed, WithLogger(logger.Nop()), WithRetry(0, 20*time.Millisecond, time.Second))
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			err := src.Run(ctx, func(context.Context, model.AttackEvent) {})

			Convey("Then it backs off between sessions instead of spinning", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(sessions.Load(), ShouldBeGreaterThanOrEqualTo, 1)
				So(sessions.Load(), ShouldBeLessThanOrEqualTo, 8)
			})
		})

		Convey("When retries are bounded", func() {
			src := New(feed, WithLogger(logger.Nop()), WithRetry(3, time.Millisecond, time.Millisecond))
			err := src.Run(context.Background(), func(context.Context, model.AttackEvent) {})

			Convey("Then early drops count as failed attempts", func() {
				So(errors.Is(err, ErrDisconnected), ShouldBeTrue)
				So(sessions.Load(), ShouldEqual, 3)
			})
		})
	})
}
