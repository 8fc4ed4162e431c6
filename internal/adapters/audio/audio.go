// Package audio plays the shot and impact cues through beep.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/okian/attackmap/pkg/logger"
)

// SampleRate is the rate every cue is resampled to before playback.
const SampleRate = beep.SampleRate(44100)

const (
	resampleQuality = 4
	fetchTimeout    = 10 * time.Second
)

// Errors returned by Play.
var (
	ErrUnsupported = errors.New("unsupported cue format")
	ErrFetch       = errors.New("fetch cue")
)

// Output is where decoded cues are played. The default is the system speaker.
type Output interface {
	Play(s beep.Streamer) error
}

// speakerOutput initialises the speaker on first use.
type speakerOutput struct {
	once sync.Once
	err  error
}

func (o *speakerOutput) Play(s beep.Streamer) error {
	o.once.Do(func() {
		o.err = speaker.Init(SampleRate, SampleRate.N(100*time.Millisecond))
	})
	if o.err != nil {
		return fmt.Errorf("init speaker: %w", o.err)
	}
	speaker.Play(s)
	return nil
}

// Player decodes cue files once and plays them without blocking.
type Player struct {
	mu     sync.Mutex
	cache  map[string]*beep.Buffer
	out    Output
	client *http.Client
	logger logger.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithOutput replaces the speaker.
func WithOutput(out Output) Option {
	return func(p *Player) {
		if out != nil {
			p.out = out
		}
	}
}

// WithHTTPClient sets the client used for http(s) cue URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Player) {
		if c != nil {
			p.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPlayer creates a cue player.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		cache:  make(map[string]*beep.Buffer),
		out:    &speakerOutput{},
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play starts the cue at src, a local path, file:// or http(s) URL ending in
// .mp3 or .wav. It returns once playback is scheduled.
func (p *Player) Play(ctx context.Context, src string) error {
	buf, err := p.load(ctx, src)
	if err != nil {
		return err
	}
	return p.out.Play(buf.Streamer(0, buf.Len()))
}

// Preload decodes the given cues ahead of their first Play so that no
// caller waits on a fetch later. Empty sources are skipped. It returns every
// failure joined; cues that did load stay cached.
func (p *Player) Preload(ctx context.Context, srcs ...string) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, src := range lo.Uniq(lo.Compact(srcs)) {
		g.Go(func() error {
			if _, err := p.load(ctx, src); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Cached reports how many cues are decoded.
func (p *Player) Cached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func (p *Player) load(ctx context.Context, src string) (*beep.Buffer, error) {
	p.mu.Lock()
	buf, ok := p.cache[src]
	p.mu.Unlock()
	if ok {
		return buf, nil
	}

	buf, err := p.decode(ctx, src)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache[src]; ok {
		return cached, nil
	}
	p.cache[src] = buf
	p.logger.Debug(ctx, "cue decoded", logger.String("src", src), logger.Duration("length", SampleRate.D(buf.Len())))
	return buf, nil
}

func (p *Player) decode(ctx context.Context, src string) (*beep.Buffer, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	ext := strings.ToLower(path.Ext(u.Path))
	if ext != ".mp3" && ext != ".wav" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, src)
	}
	rc, err := p.open(ctx, u)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if ext == ".mp3" {
		stream, format, err = mp3.Decode(rc)
	} else {
		stream, format, err = wav.Decode(rc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if format.SampleRate != SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, SampleRate, stream)
		format.SampleRate = SampleRate
	}
	buf := beep.NewBuffer(format)
	buf.Append(s)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	return buf, nil
}

func (p *Player) open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, u, resp.Status)
		}
		return resp.Body, nil
	case "", "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
	}
}
