package audio

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/attackmap/pkg/logger"
)

type recordingOutput struct {
	mu      sync.Mutex
	samples []int
}

func (o *recordingOutput) Play(s beep.Streamer) error {
	n := 0
	buf := make([][2]float64, 512)
	for {
		k, ok := s.Stream(buf)
		n += k
		if !ok {
			break
		}
	}
	o.mu.Lock()
	o.samples = append(o.samples, n)
	o.mu.Unlock()
	return nil
}

// tone is a finite sine wave.
func tone(rate beep.SampleRate, n int) beep.Streamer {
	i := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= n {
			return 0, false
		}
		k := 0
		for ; k < len(samples) && i < n; k++ {
			v := math.Sin(2 * math.Pi * 440 * float64(i) / float64(rate))
			samples[k] = [2]float64{v, v}
			i++
		}
		return k, true
	})
}

func writeCue(t *testing.T, rate beep.SampleRate, n int) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "laser-gun.wav")
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, tone(rate, n), format); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestPlayer(t *testing.T) {
	Convey("Given a player with a recording output", t, func() {
		out := &recordingOutput{}
		p := NewPlayer(WithOutput(out), WithLogger(logger.Nop()))
		ctx := context.Background()

		Convey("When a local cue at the output rate is played twice", func() {
			cue := writeCue(t, SampleRate, 4410)
			So(p.Play(ctx, cue), ShouldBeNil)
			So(p.Play(ctx, "file://"+cue), ShouldBeNil)
			So(p.Play(ctx, cue), ShouldBeNil)

			Convey("Then it is decoded once per source and played in full", func() {
				So(p.Cached(), ShouldEqual, 2)
				So(out.samples, ShouldResemble, []int{4410, 4410, 4410})
			})
		})

		Convey("When a cue at half the rate is played", func() {
			cue := writeCue(t, SampleRate/2, 2205)
			So(p.Play(ctx, cue), ShouldBeNil)

			Convey("Then it is resampled to the output rate", func() {
				So(out.samples, ShouldHaveLength, 1)
				So(out.samples[0], ShouldAlmostEqual, 4410, 20)
			})
		})

		Convey("When the cue is served over http", func() {
			cue := writeCue(t, SampleRate, 441)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/sounds/impact.wav" {
					http.NotFound(w, r)
					return
				}
				http.ServeFile(w, r, cue)
			}))
			defer srv.Close()

			Convey("Then it is fetched and played", func() {
				So(p.Play(ctx, srv.URL+"/sounds/impact.wav"), ShouldBeNil)
				So(out.samples, ShouldResemble, []int{441})
			})

			Convey("Then a missing cue is a fetch error", func() {
				err := p.Play(ctx, srv.URL+"/sounds/missing.wav")
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				So(p.Cached(), ShouldEqual, 0)
			})
		})

		Convey("When the cue cannot be played", func() {
			So(errors.Is(p.Play(ctx, "/sounds/laser.ogg"), ErrUnsupported), ShouldBeTrue)
			So(errors.Is(p.Play(ctx, "ftp://host/laser.mp3"), ErrUnsupported), ShouldBeTrue)
			So(errors.Is(p.Play(ctx, filepath.Join(t.TempDir(), "absent.mp3")), ErrFetch), ShouldBeTrue)

			bogus := filepath.Join(t.TempDir(), "bogus.wav")
			So(os.WriteFile(bogus, []byte("not a wave file"), 0o600), ShouldBeNil)
			So(p.Play(ctx, bogus), ShouldNotBeNil)

			Convey("Then nothing is cached or played", func() {
				So(p.Cached(), ShouldEqual, 0)
				So(out.samples, ShouldBeEmpty)
			})
		})
	})
}

func TestPreload(t *testing.T) {
	Convey("Given a player and an http cue that has not been played yet", t, func() {
		out := &recordingOutput{}
		p := NewPlayer(WithOutput(out), WithLogger(logger.Nop()))
		ctx := context.Background()

		cue := writeCue(t, SampleRate, 441)
		var mu sync.Mutex
		fetches := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			fetches++
			mu.Unlock()
			http.ServeFile(w, r, cue)
		}))
		defer srv.Close()
		shot := srv.URL + "/sounds/shot.wav"

		Convey("When it is preloaded along with a local cue", func() {
			So(p.Preload(ctx, shot, "", cue, shot), ShouldBeNil)

			Convey("Then both are decoded and nothing is played", func() {
				So(p.Cached(), ShouldEqual, 2)
				So(out.samples, ShouldBeEmpty)
			})

			Convey("Then playing it later does not fetch again", func() {
				srv.Close()
				So(p.Play(ctx, shot), ShouldBeNil)
				So(out.samples, ShouldResemble, []int{441})
				mu.Lock()
				defer mu.Unlock()
				So(fetches, ShouldEqual, 1)
			})
		})

		Convey("When one of the cues is broken", func() {
			err := p.Preload(ctx, shot, "/sounds/laser.ogg")

			Convey("Then the failure is reported and the good cue stays cached", func() {
				So(errors.Is(err, ErrUnsupported), ShouldBeTrue)
				So(p.Cached(), ShouldEqual, 1)
			})
		})
	})
}
