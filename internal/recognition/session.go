// Package recognition governs a single listening session: it turns a noisy
// stream of interim and final transcriptions into at most one utterance to
// adjudicate.
//
// A Session moves Idle → Listening → Finalized | Aborted. While listening,
// each interim hypothesis replaces the buffered one and restarts a silence
// timer; when the timer fires the buffered hypothesis is promoted exactly as
// if the recognizer had sent a final result. Only the first finalization of a
// session reaches the Sink. Errors and explicit stops abort the session and
// release its capture handle without adjudicating anything.
package recognition

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
)

// DefaultSilenceTimeout is how long an interim hypothesis may stand before it
// is promoted to a final one
const DefaultSilenceTimeout = 700 * time.Millisecond

// State of a listening session
type State int

const (
	StateIdle State = iota
	StateListening
	StateFinalized
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Source tells how an utterance was finalized
type Source string

const (
	SourceFinal   Source = "final"
	SourceSilence Source = "silence"
)

// Utterance is the single hypothesis handed over for adjudication
type Utterance struct {
	Transcript   string
	Alternatives []entities.RecognitionAlternative
	Source       Source
}

func (u Utterance) empty() bool {
	if strings.TrimSpace(u.Transcript) != "" {
		return false
	}
	for _, a := range u.Alternatives {
		if strings.TrimSpace(a.Transcript) != "" {
			return false
		}
	}
	return true
}

// Sink consumes the outcome of a listening session. Calls are made without
// the session lock held, at most once per session.
type Sink interface {
	OnUtterance(u Utterance)
	OnAborted(kind ErrorKind)
}

// Capture is the live recognizer handle owned by a session, e.g. a cloud
// recognition stream. It is closed when the session ends.
type Capture interface {
	Close() error
}

// Option configures a Session
type Option func(*Session)

// WithClock sets the clock used for the silence timer
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithSilenceTimeout sets how long an interim result waits before promotion
func WithSilenceTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.silence = d
		}
	}
}

// Session is the listening state machine. Only one listening session is live
// at a time; all methods are safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	clock   clock.Clock
	silence time.Duration
	sink    Sink
	logger  *zap.Logger

	state       State
	generation  uint64
	adjudicated bool
	capture     Capture
	buffered    *Utterance
	timer       *clock.Timer
	timerSeq    uint64
}

// NewSession creates an idle session reporting to sink
func NewSession(sink Sink, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		clock:   clock.New(),
		silence: DefaultSilenceTimeout,
		sink:    sink,
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle binds recognizer events to the listening session that was live when
// it was issued. Events sent through a handle of an ended session are dropped.
type Handle struct {
	s   *Session
	gen uint64
}

// Interim buffers an interim hypothesis for the handle's session
func (h Handle) Interim(transcript string, alternatives []entities.RecognitionAlternative) bool {
	if h.s == nil {
		return false
	}
	return h.s.interim(h.gen, transcript, alternatives)
}

// Final finalizes the handle's session with the given hypothesis
func (h Handle) Final(transcript string, alternatives []entities.RecognitionAlternative) bool {
	if h.s == nil {
		return false
	}
	return h.s.final(h.gen, transcript, alternatives)
}

// Fail aborts the handle's session
func (h Handle) Fail(kind ErrorKind) bool {
	if h.s == nil {
		return false
	}
	return h.s.fail(h.gen, kind)
}

// Start begins listening. It is a no-op returning false when a session is
// already live.
func (s *Session) Start(capture Capture) (Handle, bool) {
	s.mu.Lock()
	if s.state == StateListening {
		s.mu.Unlock()
		s.logger.Warn("Listening session already active, start ignored")
		return Handle{}, false
	}
	h := s.begin(capture)
	s.mu.Unlock()

	s.logger.Debug("Listening session started", zap.Uint64("generation", h.gen))
	return h, true
}

// Restart tears down any live session, discarding its buffered hypothesis,
// and starts a new one
func (s *Session) Restart(capture Capture) Handle {
	s.mu.Lock()
	old := s.teardown()
	h := s.begin(capture)
	s.mu.Unlock()

	closeCapture(old, s.logger)
	s.logger.Debug("Listening session restarted", zap.Uint64("generation", h.gen))
	return h
}

// Interim buffers an interim hypothesis for the live session
func (s *Session) Interim(transcript string, alternatives []entities.RecognitionAlternative) bool {
	return s.interim(0, transcript, alternatives)
}

// Final finalizes the live session
func (s *Session) Final(transcript string, alternatives []entities.RecognitionAlternative) bool {
	return s.final(0, transcript, alternatives)
}

// Fail aborts the live session because the recognizer reported an error
func (s *Session) Fail(kind ErrorKind) bool {
	return s.fail(0, kind)
}

// Stop aborts the live session on request and returns it to idle. The
// buffered interim is discarded, nothing is adjudicated and the sink is not
// notified.
func (s *Session) Stop() bool {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return false
	}
	c := s.teardown()
	s.state = StateIdle
	s.mu.Unlock()

	closeCapture(c, s.logger)
	s.logger.Debug("Listening session stopped")
	return true
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether a session is listening
func (s *Session) Active() bool {
	return s.State() == StateListening
}

func (s *Session) begin(capture Capture) Handle {
	s.generation++
	s.state = StateListening
	s.adjudicated = false
	s.buffered = nil
	s.capture = capture
	return Handle{s: s, gen: s.generation}
}

// teardown ends the live session, if any, and returns the capture to close.
// Caller holds s.mu.
func (s *Session) teardown() Capture {
	s.stopTimer()
	c := s.capture
	s.capture = nil
	s.buffered = nil
	if s.state == StateListening {
		s.state = StateAborted
	}
	return c
}

// live reports whether events for generation gen may still change the
// session. gen 0 addresses whatever session is current. Caller holds s.mu.
func (s *Session) live(gen uint64) bool {
	if s.state != StateListening || s.adjudicated {
		return false
	}
	return gen == 0 || gen == s.generation
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

func (s *Session) interim(gen uint64, transcript string, alternatives []entities.RecognitionAlternative) bool {
	u := Utterance{Transcript: transcript, Alternatives: alternatives}
	if u.empty() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live(gen) {
		s.logger.Debug("Interim result dropped, no live session",
			zap.Uint64("generation", gen),
			zap.String("state", s.state.String()))
		return false
	}

	s.buffered = &u
	s.stopTimer()
	g, seq := s.generation, s.timerSeq
	s.timer = s.clock.AfterFunc(s.silence, func() {
		s.onSilence(g, seq)
	})
	return true
}

func (s *Session) final(gen uint64, transcript string, alternatives []entities.RecognitionAlternative) bool {
	s.mu.Lock()
	if !s.live(gen) {
		s.mu.Unlock()
		s.logger.Debug("Final result dropped, session already settled",
			zap.Uint64("generation", gen),
			zap.String("state", s.state.String()))
		return false
	}

	u := Utterance{Transcript: transcript, Alternatives: alternatives, Source: SourceFinal}
	if u.empty() && s.buffered != nil {
		u = *s.buffered
		u.Source = SourceFinal
	}

	g := s.generation
	if u.empty() {
		c := s.teardown()
		s.mu.Unlock()
		closeCapture(c, s.logger)
		s.sink.OnAborted(ErrorNoSpeechDetected)
		s.rest(g)
		return true
	}

	c := s.finalize()
	s.mu.Unlock()

	closeCapture(c, s.logger)
	s.sink.OnUtterance(u)
	s.rest(g)
	return true
}

func (s *Session) onSilence(gen, seq uint64) {
	s.mu.Lock()
	if !s.live(gen) || seq != s.timerSeq || s.buffered == nil {
		s.mu.Unlock()
		return
	}

	u := *s.buffered
	u.Source = SourceSilence
	c := s.finalize()
	s.mu.Unlock()

	s.logger.Debug("Interim result promoted after silence", zap.String("transcript", u.Transcript))
	closeCapture(c, s.logger)
	s.sink.OnUtterance(u)
	s.rest(gen)
}

func (s *Session) fail(gen uint64, kind ErrorKind) bool {
	s.mu.Lock()
	if !s.live(gen) {
		s.mu.Unlock()
		return false
	}
	g := s.generation
	c := s.teardown()
	s.mu.Unlock()

	s.logger.Info("Listening session aborted", zap.String("kind", string(kind)))
	closeCapture(c, s.logger)
	s.sink.OnAborted(kind)
	s.rest(g)
	return true
}

// rest returns a settled session to idle once its sink has been notified. A
// session started from inside the sink callback is left alone.
func (s *Session) rest(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation && (s.state == StateFinalized || s.state == StateAborted) {
		s.state = StateIdle
	}
}

// finalize marks the session adjudicated. Caller holds s.mu.
func (s *Session) finalize() Capture {
	s.adjudicated = true
	s.stopTimer()
	c := s.capture
	s.capture = nil
	s.buffered = nil
	s.state = StateFinalized
	return c
}

func closeCapture(c Capture, logger *zap.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close recognizer capture", zap.Error(err))
	}
}
