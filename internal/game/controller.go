// Package game drives a single player's progression through a shuffled word
// list: it adjudicates spoken attempts, counts attempts per word, handles
// skips and reports everything through an Emitter.
package game

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/internal/match"
	"github.com/satriahrh/sayword/internal/recognition"
	"github.com/satriahrh/sayword/internal/transcript"
)

// DefaultSettleDelay is how long the in-flight guard stays up after an
// adjudication completes
const DefaultSettleDelay = 300 * time.Millisecond

var (
	ErrNoWords       = errors.New("word list is empty")
	ErrNotStarted    = errors.New("game not started")
	ErrGameOver      = errors.New("game is over")
	ErrAdjudicating  = errors.New("adjudication in progress")
	ErrNoCurrentWord = errors.New("no current word")
)

// Emitter receives everything the controller decides. Methods are called
// with the controller lock held and must not call back into the Controller.
type Emitter interface {
	EmitAdjudication(entry entities.GameLogEntry)
	// EmitAdvance announces the next word, or nil when none remain
	EmitAdvance(next *entities.Word)
	EmitGameOver(log []entities.GameLogEntry)
	// EmitStatus is a diagnostic trace, not authoritative
	EmitStatus(message string)
	EmitError(code, message string)
}

// Shuffler permutes words in place
type Shuffler func(words []entities.Word)

// UniformShuffle is a Fisher-Yates shuffle over the process-wide random source
func UniformShuffle(words []entities.Word) {
	rand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
}

// FinishFunc is called once per finished game, after the lock is released
type FinishFunc func(result *entities.GameResult)

// Option configures a Controller
type Option func(*Controller)

// WithClock sets the clock used for the settle delay
func WithClock(c clock.Clock) Option {
	return func(g *Controller) {
		g.clock = c
	}
}

// WithSettleDelay sets the settle delay. Zero releases the guard immediately.
func WithSettleDelay(d time.Duration) Option {
	return func(g *Controller) {
		if d >= 0 {
			g.settle = d
		}
	}
}

// WithShuffler replaces the word shuffler
func WithShuffler(s Shuffler) Option {
	return func(g *Controller) {
		g.shuffle = s
	}
}

// WithPlayer records the player the games belong to
func WithPlayer(playerID string) Option {
	return func(g *Controller) {
		g.playerID = playerID
	}
}

// OnFinish registers a callback for finished games
func OnFinish(fn FinishFunc) Option {
	return func(g *Controller) {
		g.onFinish = fn
	}
}

// Snapshot is a read-only view of the controller state
type Snapshot struct {
	GameID            string
	Started           bool
	Over              bool
	Index             int
	Total             int
	Current           *entities.Word
	IncorrectAttempts int
	Listening         bool
	Processing        bool
	Correct           int
}

// Controller owns the progression state of one game at a time
type Controller struct {
	mu sync.Mutex

	words     []entities.Word
	evaluator *match.Evaluator
	emitter   Emitter
	logger    *zap.Logger
	clock     clock.Clock
	settle    time.Duration
	shuffle   Shuffler
	playerID  string
	onFinish  FinishFunc

	gameID     string
	startedAt  time.Time
	order      []entities.Word
	index      int
	used       map[string]struct{}
	incorrect  int
	log        []entities.GameLogEntry
	started    bool
	over       bool
	listening  bool
	processing bool
	settleGen  uint64
}

// NewController creates a controller over a fixed word list
func NewController(words []entities.Word, evaluator *match.Evaluator, emitter Emitter, logger *zap.Logger, opts ...Option) *Controller {
	g := &Controller{
		words:     append([]entities.Word(nil), words...),
		evaluator: evaluator,
		emitter:   emitter,
		logger:    logger,
		clock:     clock.New(),
		settle:    DefaultSettleDelay,
		shuffle:   UniformShuffle,
		used:      make(map[string]struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Start begins a new game: the log is cleared and the word list is shuffled
// once. Any game in progress is discarded.
func (g *Controller) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.words) == 0 {
		return ErrNoWords
	}

	g.releaseGuard()
	g.gameID = uuid.NewString()
	g.startedAt = g.clock.Now()
	g.order = append(g.order[:0], g.words...)
	g.shuffle(g.order)
	g.index = 0
	g.used = make(map[string]struct{})
	g.incorrect = 0
	g.log = nil
	g.started = true
	g.over = false
	g.listening = false

	g.logger.Info("Game started",
		zap.String("gameID", g.gameID),
		zap.String("playerID", g.playerID),
		zap.Int("words", len(g.order)))

	first := g.order[0]
	g.emitter.EmitAdvance(&first)
	return nil
}

// OnUtterance adjudicates a finalized listening session
func (g *Controller) OnUtterance(u recognition.Utterance) {
	g.Adjudicate(u)
}

// OnAborted surfaces a recognition failure. No attempt is consumed.
func (g *Controller) OnAborted(kind recognition.ErrorKind) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.listening = false
	g.emitter.EmitError(string(kind), kind.Message())
}

// SetListening records whether a listening session is live
func (g *Controller) SetListening(listening bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listening = listening
	if listening {
		g.emitter.EmitStatus("listening")
	}
}

// Adjudicate decides one spoken attempt for the current word. It returns
// false when the event was dropped: another adjudication is in flight, or
// there is no current word.
func (g *Controller) Adjudicate(u recognition.Utterance) bool {
	g.mu.Lock()

	g.listening = false

	if g.processing {
		g.mu.Unlock()
		g.logger.Debug("Duplicate result dropped while adjudicating",
			zap.String("gameID", g.gameID),
			zap.String("transcript", u.Transcript))
		return false
	}

	word, err := g.current()
	if err != nil {
		g.mu.Unlock()
		g.logger.Warn("Result dropped", zap.Error(err), zap.String("transcript", u.Transcript))
		return false
	}

	g.processing = true

	candidates := transcript.Candidates(u.Transcript, u.Alternatives)
	res := g.evaluator.Evaluate(candidates, word.Text)

	entry := entities.GameLogEntry{
		ID:            uuid.NewString(),
		Word:          word.Text,
		UserAnswer:    userAnswer(u, res),
		IsCorrect:     res.Correct,
		Timestamp:     g.clock.Now(),
		Difficulty:    word.Difficulty,
		AttemptNumber: g.incorrect + 1,
		Possibilities: possibilities(u),
	}
	g.log = append(g.log, entry)
	g.emitter.EmitAdjudication(entry)

	switch {
	case res.Correct:
		g.emitter.EmitStatus("matched " + string(res.Verdict) + ": " + res.Matched)
	case res.Closest != "":
		g.emitter.EmitStatus("no match, closest was " + res.Closest)
	default:
		g.emitter.EmitStatus("no match")
	}

	g.logger.Debug("Attempt adjudicated",
		zap.String("gameID", g.gameID),
		zap.String("word", word.Text),
		zap.String("verdict", string(res.Verdict)),
		zap.Int("attemptNumber", entry.AttemptNumber),
		zap.Strings("candidates", candidates.Sorted()))

	var finished *entities.GameResult
	if res.Correct {
		finished = g.advance()
	} else {
		g.incorrect++
		if g.incorrect >= entities.MaxAttempts {
			finished = g.advance()
		}
	}

	g.scheduleRelease()
	g.mu.Unlock()

	g.finish(finished)
	return true
}

// Skip logs the current word as skipped and advances regardless of the
// attempt counter
func (g *Controller) Skip() error {
	g.mu.Lock()

	word, err := g.current()
	if err != nil {
		g.mu.Unlock()
		g.logger.Warn("Skip dropped", zap.Error(err))
		return err
	}

	entry := entities.GameLogEntry{
		ID:            uuid.NewString(),
		Word:          word.Text,
		UserAnswer:    entities.SkippedAnswer,
		IsCorrect:     false,
		Timestamp:     g.clock.Now(),
		Difficulty:    word.Difficulty,
		AttemptNumber: g.incorrect + 1,
	}
	g.log = append(g.log, entry)
	g.emitter.EmitAdjudication(entry)

	finished := g.advance()
	g.mu.Unlock()

	g.finish(finished)
	return nil
}

// Cancel clears the in-flight guard. Used when listening stops, a new game
// starts, or the client goes away.
func (g *Controller) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseGuard()
	g.listening = false
}

// Abandon ends an unfinished game and returns its partial result, or nil
// when there is nothing to keep
func (g *Controller) Abandon() *entities.GameResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started || g.over || len(g.log) == 0 {
		return nil
	}

	g.releaseGuard()
	g.over = true
	r := entities.NewGameResult(g.gameID, g.playerID, g.startedAt, len(g.order), g.log)
	r.FinishedAt = g.clock.Now()
	r.Status = entities.ResultStatusAbandoned
	return r
}

// Current returns the word being asked
func (g *Controller) Current() (entities.Word, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current()
}

// Log returns a copy of the attempt log
func (g *Controller) Log() []entities.GameLogEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entities.GameLogEntry(nil), g.log...)
}

// Snapshot returns the current state
func (g *Controller) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		GameID:            g.gameID,
		Started:           g.started,
		Over:              g.over,
		Index:             g.index,
		Total:             len(g.order),
		IncorrectAttempts: g.incorrect,
		Listening:         g.listening,
		Processing:        g.processing,
		Correct:           len(g.used),
	}
	if w, err := g.current(); err == nil {
		s.Current = &w
	}
	return s
}

func (g *Controller) current() (entities.Word, error) {
	switch {
	case !g.started:
		return entities.Word{}, ErrNotStarted
	case g.over:
		return entities.Word{}, ErrGameOver
	case g.index >= len(g.order):
		return entities.Word{}, ErrNoCurrentWord
	}
	return g.order[g.index], nil
}

// advance moves to the next word or ends the game, returning the result of a
// game that just ended. Caller holds g.mu.
func (g *Controller) advance() *entities.GameResult {
	if last := g.log[len(g.log)-1]; last.IsCorrect {
		g.used[strings.ToLower(last.Word)] = struct{}{}
	}
	g.incorrect = 0
	g.index++

	if g.index < len(g.order) {
		next := g.order[g.index]
		g.emitter.EmitAdvance(&next)
		return nil
	}

	g.over = true
	g.emitter.EmitAdvance(nil)
	frozen := append([]entities.GameLogEntry(nil), g.log...)
	g.emitter.EmitGameOver(frozen)

	r := entities.NewGameResult(g.gameID, g.playerID, g.startedAt, len(g.order), frozen)
	r.FinishedAt = g.clock.Now()

	g.logger.Info("Game finished",
		zap.String("gameID", g.gameID),
		zap.String("playerID", g.playerID),
		zap.Int("correct", r.Correct),
		zap.Int("total", r.TotalWords))
	return r
}

// scheduleRelease drops the in-flight guard after the settle delay. Caller
// holds g.mu.
func (g *Controller) scheduleRelease() {
	g.settleGen++
	if g.settle == 0 {
		g.processing = false
		return
	}

	gen := g.settleGen
	g.clock.AfterFunc(g.settle, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if gen == g.settleGen {
			g.processing = false
		}
	})
}

// releaseGuard clears the in-flight guard and invalidates pending releases.
// Caller holds g.mu.
func (g *Controller) releaseGuard() {
	g.settleGen++
	g.processing = false
}

func (g *Controller) finish(r *entities.GameResult) {
	if r != nil && g.onFinish != nil {
		g.onFinish(r)
	}
}

func userAnswer(u recognition.Utterance, res match.Result) string {
	if res.Correct {
		return res.Matched
	}
	if t := strings.TrimSpace(u.Transcript); t != "" {
		return t
	}
	for _, a := range u.Alternatives {
		if t := strings.TrimSpace(a.Transcript); t != "" {
			return t
		}
	}
	return ""
}

func possibilities(u recognition.Utterance) []entities.Possibility {
	if len(u.Alternatives) == 0 {
		if t := strings.TrimSpace(u.Transcript); t != "" {
			return []entities.Possibility{{Word: t, Confidence: 1}}
		}
		return nil
	}
	out := make([]entities.Possibility, 0, len(u.Alternatives))
	for _, a := range u.Alternatives {
		out = append(out, entities.Possibility{Word: a.Transcript, Confidence: a.Confidence})
	}
	return out
}
