// Package session implements the typing session state machine.
//
// An Engine owns one attempt at a time. Hosts feed it the full typed buffer on
// every change and one Tick per second while it is running; the engine keeps
// correct/error counts as snapshots recomputed from the whole buffer and emits
// exactly one Result per finished attempt.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/speedtype/internal/metrics"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/stats"
)

// Phase is the lifecycle stage of an attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DefaultTimeLimit is used by hosts when no duration is configured.
const DefaultTimeLimit = 60

const defaultSinkTimeout = 5 * time.Second

// ErrInvalidStart wraps every rejected Start.
var ErrInvalidStart = errors.New("invalid start condition")

var (
	ErrEmptyName        = fmt.Errorf("%w: participant name is empty", ErrInvalidStart)
	ErrEmptyPassage     = fmt.Errorf("%w: passage is empty", ErrInvalidStart)
	ErrInvalidTimeLimit = fmt.Errorf("%w: time limit must be greater than 0", ErrInvalidStart)
)

// Submission is the outcome of handing one finished attempt to the sink.
type Submission struct {
	Attempt int
	Result  model.Result
	Err     error
}

// Snapshot is a consistent copy of the engine state plus live metrics.
type Snapshot struct {
	Phase                Phase
	Attempt              int
	Name                 string
	TimeLimitSeconds     int
	TimeRemainingSeconds int
	StartedAt            time.Time
	TotalKeystrokes      int
	CorrectChars         int
	Errors               int
	TypedLength          int
	PassageLength        int
	WPM                  int
	Accuracy             int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for elapsed time.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.now = c.Now
	}
}

// WithSink sets where finished results are submitted.
func WithSink(s ResultSink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithLogger sets the logger for sink failures and transitions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSubmitted registers fn to run after each result submission completes,
// successfully or not. It runs on the submitting goroutine.
func WithSubmitted(fn func(Submission)) Option {
	return func(e *Engine) {
		e.onSubmitted = fn
	}
}

// WithSinkTimeout bounds a single sink submission. Non-positive values keep
// the default.
func WithSinkTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sinkTimeout = d
		}
	}
}

// Engine is the typing session state machine. All methods are safe for
// concurrent use, but events are expected to arrive from one dispatcher.
type Engine struct {
	mu          sync.Mutex
	now         func() time.Time
	sink        ResultSink
	logger      *slog.Logger
	sinkTimeout time.Duration
	onSubmitted func(Submission)
	inflight    sync.WaitGroup

	passage   passage.Passage
	name      string
	phase     Phase
	attempt   int
	timeLimit int
	remaining int
	startedAt time.Time
	typed     []rune

	totalKeystrokes int
	correct         int
	errors          int
	wpm             int
	accuracy        int

	result  *model.Result
	sinkErr error
}

// NewEngine returns an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:         time.Now,
		sink:        Discard,
		logger:      slog.Default(),
		sinkTimeout: defaultSinkTimeout,
		accuracy:    100,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = Discard
	}
	return e
}

// SetPassage replaces the target passage. It only applies while idle and
// reports whether the passage was replaced.
func (e *Engine) SetPassage(p passage.Passage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseIdle {
		return false
	}
	e.passage = p
	return true
}

// Passage returns the current target passage.
func (e *Engine) Passage() passage.Passage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.passage
}

// Start begins a new attempt. Calling Start outside the idle phase is
// ignored. Invalid input is rejected with an error wrapping ErrInvalidStart
// and leaves the engine untouched.
func (e *Engine) Start(name string, p passage.Passage, timeLimitSeconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseIdle {
		return nil
	}

	name = strings.TrimSpace(name)
	var err error
	switch {
	case name == "":
		err = ErrEmptyName
	case p.IsEmpty():
		err = ErrEmptyPassage
	case timeLimitSeconds <= 0:
		err = ErrInvalidTimeLimit
	}
	if err != nil {
		metrics.SessionsRejected.WithLabelValues(rejectCause(err)).Inc()
		return err
	}

	e.clearLocked()
	e.passage = p
	e.name = name
	e.timeLimit = timeLimitSeconds
	e.remaining = timeLimitSeconds
	e.startedAt = e.now()
	e.attempt++
	e.phase = PhaseRunning
	metrics.SessionsStarted.Inc()
	e.logger.Debug("session started", "name", name, "attempt", e.attempt, "passage_len", p.Len(), "time_limit", timeLimitSeconds)
	return nil
}

// ApplyKeystrokeDelta ingests the full typed buffer. Growth counts as new
// keystrokes, shrinkage does not. Correct and error counts are recomputed
// from the whole buffer. Reaching the passage length finishes the attempt.
func (e *Engine) ApplyKeystrokeDelta(typed string) Snapshot {
	e.mu.Lock()
	if e.phase != PhaseRunning {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}
	runes := []rune(typed)
	if delta := len(runes) - len(e.typed); delta > 0 {
		e.totalKeystrokes += delta
	}
	e.typed = runes
	e.recountLocked()
	e.updateLiveLocked()
	var pending *model.Result
	if len(e.typed) >= e.passage.Len() {
		pending = e.finishLocked(model.ReasonCompleted)
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap.Attempt, pending)
	return snap
}

// Tick advances the countdown by one second and finishes the attempt when
// time runs out.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	if e.phase != PhaseRunning {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}
	e.remaining--
	e.updateLiveLocked()
	var pending *model.Result
	if e.remaining <= 0 {
		e.remaining = 0
		pending = e.finishLocked(model.ReasonTimeout)
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap.Attempt, pending)
	return snap
}

// Reset returns the engine to idle, clearing counters but keeping the passage.
// Resetting a running attempt discards it without a result.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
	e.remaining = e.timeLimit
	e.phase = PhaseIdle
	return e.snapshotLocked()
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Typed returns the buffer last seen by the engine.
func (e *Engine) Typed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.typed)
}

// Result returns the terminal result of the current attempt, if finished.
func (e *Engine) Result() (model.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return model.Result{}, false
	}
	return *e.result, true
}

// SinkErr returns the error of the current attempt's result submission, if
// it has completed and failed.
func (e *Engine) SinkErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sinkErr
}

func (e *Engine) clearLocked() {
	e.typed = nil
	e.totalKeystrokes = 0
	e.correct = 0
	e.errors = 0
	e.wpm = 0
	e.accuracy = 100
	e.startedAt = time.Time{}
	e.result = nil
	e.sinkErr = nil
}

// recountLocked compares the typed buffer with the passage position by
// position. Characters past the end of the passage are all errors.
func (e *Engine) recountLocked() {
	target := e.passage.Len()
	overlap := min(len(e.typed), target)
	correct := 0
	for i := 0; i < overlap; i++ {
		if e.typed[i] == e.passage.At(i) {
			correct++
		}
	}
	e.correct = correct
	e.errors = overlap - correct + max(0, len(e.typed)-target)
}

func (e *Engine) updateLiveLocked() {
	elapsedMs := max(1, e.now().Sub(e.startedAt).Milliseconds())
	e.wpm = stats.ComputeWPM(e.correct, elapsedMs)
	e.accuracy = stats.ComputeAccuracy(e.correct, e.totalKeystrokes)
}

// finishLocked moves a running attempt to finished and builds its result.
// It returns nil when the attempt has already finished.
func (e *Engine) finishLocked(reason string) *model.Result {
	if e.phase != PhaseRunning {
		return nil
	}
	e.phase = PhaseFinished
	e.updateLiveLocked()
	r := model.Result{
		Name:            e.name,
		WPM:             e.wpm,
		Accuracy:        e.accuracy,
		Errors:          e.errors,
		DurationSec:     e.timeLimit,
		CorrectChars:    e.correct,
		TotalKeystrokes: e.totalKeystrokes,
		PassageLength:   e.passage.Len(),
		Reason:          reason,
		StartedAt:       e.startedAt,
		CreatedAt:       e.now(),
	}
	e.result = &r
	metrics.SessionsFinished.WithLabelValues(reason).Inc()
	metrics.FinalWPM.Observe(float64(r.WPM))
	e.logger.Info("session finished", "name", r.Name, "wpm", r.WPM, "accuracy", r.Accuracy, "errors", r.Errors, "reason", reason)
	out := r
	return &out
}

// emit submits r on its own goroutine. A failing sink is logged and
// recorded but never changes the finished state.
func (e *Engine) emit(attempt int, r *model.Result) {
	if r == nil {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.sinkTimeout)
		defer cancel()
		err := e.sink.Submit(ctx, *r)
		if err != nil {
			metrics.SinkFailures.Inc()
			e.logger.Error("failed to submit result", "name", r.Name, "wpm", r.WPM, "error", err)
		}

		e.mu.Lock()
		if e.attempt == attempt {
			e.sinkErr = err
		}
		e.mu.Unlock()

		if e.onSubmitted != nil {
			e.onSubmitted(Submission{Attempt: attempt, Result: *r, Err: err})
		}
	}()
}

// Wait blocks until every pending result submission has completed.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:                e.phase,
		Attempt:              e.attempt,
		Name:                 e.name,
		TimeLimitSeconds:     e.timeLimit,
		TimeRemainingSeconds: e.remaining,
		StartedAt:            e.startedAt,
		TotalKeystrokes:      e.totalKeystrokes,
		CorrectChars:         e.correct,
		Errors:               e.errors,
		TypedLength:          len(e.typed),
		PassageLength:        e.passage.Len(),
		WPM:                  e.wpm,
		Accuracy:             e.accuracy,
	}
}

func rejectCause(err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrEmptyPassage):
		return "empty_passage"
	case errors.Is(err, ErrInvalidTimeLimit):
		return "time_limit"
	default:
		return "other"
	}
}
