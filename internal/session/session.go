package session

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/Numenorean/ShazamAPI/internal/dsp"
	"github.com/Numenorean/ShazamAPI/internal/pcm"
	"github.com/Numenorean/ShazamAPI/internal/shazam"
	"github.com/Numenorean/ShazamAPI/internal/signature"
	"github.com/Numenorean/ShazamAPI/pkg/logger"
)

// DefaultWindowDuration is how much audio one recognition request covers.
const DefaultWindowDuration = 12 * time.Second

// State tracks where a session is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateWindowing
	StateEmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWindowing:
		return "windowing"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Recognizer submits one signature to the recognition service.
type Recognizer interface {
	Recognize(ctx context.Context, sig *signature.Signature) (*shazam.Response, error)
}

// Config controls how the input is sliced into analysis windows.
type Config struct {
	// WindowDuration is the length of each analysis window.
	// Zero means DefaultWindowDuration.
	WindowDuration time.Duration

	// InitialWindowDuration optionally shortens the first window so an
	// early result arrives sooner. Zero means same as WindowDuration.
	InitialWindowDuration time.Duration

	// Overlap is how much consecutive windows share. Must be shorter
	// than the window.
	Overlap time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowDuration <= 0 {
		c.WindowDuration = DefaultWindowDuration
	}
	return c
}

// Result is one window's outcome. Err carries the per-window transport
// or service failure; the sequence keeps yielding later windows either way.
type Result struct {
	// Offset is the window's start position in seconds of input audio.
	Offset float64

	Response *shazam.Response
	Err      error
}

// Matched reports whether this window produced an identification.
func (r Result) Matched() bool {
	return r.Err == nil && r.Response != nil && r.Response.Matched()
}

// Session slices a PCM buffer into sequential analysis windows and runs
// the full fingerprint-and-recognize pipeline on one window per Next
// call. Results come out strictly in window order; a session processes
// at most one window at a time and cannot be restarted once exhausted.
//
// A Session is not safe for concurrent use, but independent sessions
// share nothing and may run in parallel.
type Session struct {
	buf *pcm.Buffer
	rec Recognizer
	cfg Config

	state   State
	cursor  int // sample index of the next window start
	windows int // windows emitted so far
	err     error
}

// New creates a session over an already-decoded buffer.
func New(buf *pcm.Buffer, rec Recognizer, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	if cfg.Overlap < 0 || cfg.Overlap >= cfg.WindowDuration {
		return nil, errors.New("session: overlap must be shorter than the window")
	}
	if cfg.InitialWindowDuration < 0 ||
		(cfg.InitialWindowDuration > 0 && cfg.InitialWindowDuration <= cfg.Overlap) {
		return nil, errors.New("session: initial window must be longer than the overlap")
	}
	if buf.SampleRate != signature.TargetSampleRate {
		return nil, errors.New("session: buffer must be sampled at 16 kHz")
	}

	// The duration checks above are not enough: progress is made in
	// samples, so a window that rounds to the same sample count as the
	// overlap would leave the cursor in place forever.
	samples := func(d time.Duration) int {
		return int(d.Seconds() * float64(buf.SampleRate))
	}
	if samples(cfg.WindowDuration)-samples(cfg.Overlap) < 1 {
		return nil, errors.New("session: window must exceed the overlap by at least one sample")
	}
	if cfg.InitialWindowDuration > 0 && samples(cfg.InitialWindowDuration)-samples(cfg.Overlap) < 1 {
		return nil, errors.New("session: initial window must exceed the overlap by at least one sample")
	}

	return &Session{
		buf:   buf,
		rec:   rec,
		cfg:   cfg,
		state: StateIdle,
	}, nil
}

// NewFromBytes decodes raw audio bytes and creates a session over the
// result. Decode failures abort construction before any result exists.
func NewFromBytes(ctx context.Context, data []byte, rec Recognizer, cfg Config) (*Session, error) {
	buf, err := pcm.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	return New(buf, rec, cfg)
}

// NewFromFile decodes an audio file and creates a session over it.
func NewFromFile(ctx context.Context, path string, rec Recognizer, cfg Config) (*Session, error) {
	buf, err := pcm.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(buf, rec, cfg)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Err returns the terminal error after the session entered StateFailed.
func (s *Session) Err() error {
	return s.err
}

// Next processes one window end to end: fingerprint, recognize, package.
// It returns false once the input is exhausted or the session failed;
// every earlier call yields exactly one Result per window, including
// windows whose recognition failed.
func (s *Session) Next(ctx context.Context) (Result, bool) {
	if s.state == StateDone || s.state == StateFailed {
		return Result{}, false
	}

	s.state = StateWindowing
	if s.cursor >= len(s.buf.Samples) {
		s.state = StateDone
		logger.Debug("session exhausted", zap.Int("windows", s.windows))
		return Result{}, false
	}

	start, end := s.nextWindow()
	offset := float64(start) / float64(s.buf.SampleRate)

	s.state = StateEmitting

	gen := dsp.NewGenerator()
	gen.Feed(s.buf.Samples[start:end])

	sig, err := gen.Flush()
	if err != nil {
		// Landmark extraction failing means a pipeline bug, not a bad
		// window. The session is unusable past this point.
		s.state = StateFailed
		s.err = err
		return Result{Offset: offset, Err: err}, true
	}

	result := Result{Offset: offset}
	result.Response, result.Err = s.rec.Recognize(ctx, sig)

	logger.Debug("window processed",
		zap.Float64("offset", offset),
		zap.Int("samples", end-start),
		zap.Int("peaks", sig.PeakCount()),
		zap.Bool("matched", result.Matched()),
		zap.Error(result.Err))

	s.advance(end)
	return result, true
}

// All adapts the session to a range-over-func sequence. The sequence is
// lazy, finite and single-use, like the session itself.
func (s *Session) All(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for {
			result, ok := s.Next(ctx)
			if !ok {
				return
			}
			if !yield(result) {
				return
			}
		}
	}
}

// nextWindow returns the sample range of the window at the cursor. The
// final window is clamped to the end of the buffer.
func (s *Session) nextWindow() (start, end int) {
	duration := s.cfg.WindowDuration
	if s.windows == 0 && s.cfg.InitialWindowDuration > 0 {
		duration = s.cfg.InitialWindowDuration
	}

	start = s.cursor
	end = start + s.windowSamples(duration)
	if end > len(s.buf.Samples) {
		end = len(s.buf.Samples)
	}
	return start, end
}

func (s *Session) windowSamples(d time.Duration) int {
	return int(d.Seconds() * float64(s.buf.SampleRate))
}

// advance moves the cursor past the just-processed window, minus the
// configured overlap. A window that reached the end of the buffer
// finishes the sequence regardless of overlap.
func (s *Session) advance(end int) {
	s.windows++
	s.state = StateWindowing

	if end >= len(s.buf.Samples) {
		s.cursor = len(s.buf.Samples)
		return
	}
	s.cursor = end - s.windowSamples(s.cfg.Overlap)
}
