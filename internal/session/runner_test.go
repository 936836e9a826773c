package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/speedtype/internal/passage"
)

type runnerHarness struct {
	runner *Runner
	clock  *fakeClock
	sink   *recordingSink
	snaps  chan Snapshot
	cancel context.CancelFunc
	errc   chan error
}

func startRunner(t *testing.T) *runnerHarness {
	t.Helper()
	clock := newFakeClock()
	sink := &recordingSink{}
	snaps := make(chan Snapshot, 256)
	engine := NewEngine(WithClock(clock), WithSink(sink))
	runner := NewRunner(engine, clock, func(s Snapshot) { snaps <- s })
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- runner.Run(ctx) }()
	h := &runnerHarness{runner: runner, clock: clock, sink: sink, snaps: snaps, cancel: cancel, errc: errc}
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return h
}

func (h *runnerHarness) tick(t *testing.T, tk *fakeTicker) Snapshot {
	t.Helper()
	select {
	case tk.ch <- h.clock.Now():
	case <-time.After(time.Second):
		t.Fatalf("tick was not consumed")
	}
	return h.next(t)
}

func (h *runnerHarness) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-h.snaps:
		return s
	case <-time.After(time.Second):
		t.Fatalf("no snapshot published")
	}
	return Snapshot{}
}

func TestRunnerTimesOutAndStopsTicker(t *testing.T) {
	h := startRunner(t)
	ctx := context.Background()
	if err := h.runner.Start(ctx, "ada", passage.Normalize("some text"), 3); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s := h.next(t); s.Phase != PhaseRunning {
		t.Fatalf("expected running, got %s", s.Phase)
	}
	tickers := h.clock.Tickers()
	if len(tickers) != 1 {
		t.Fatalf("expected one ticker, got %d", len(tickers))
	}
	tk := tickers[0]
	h.tick(t, tk)
	h.tick(t, tk)
	if s := h.tick(t, tk); s.Phase != PhaseFinished {
		t.Fatalf("expected finished after 3 ticks, got %s", s.Phase)
	}
	if !tk.Stopped() {
		t.Fatalf("expected ticker stopped after finish")
	}
	select {
	case tk.ch <- h.clock.Now():
		t.Fatalf("stale ticker still consumed")
	case <-time.After(50 * time.Millisecond):
	}
	h.runner.Engine().Wait()
	if len(h.sink.Results()) != 1 {
		t.Fatalf("expected one result, got %d", len(h.sink.Results()))
	}
}

func TestRunnerInputCompletesAndStopsTicker(t *testing.T) {
	h := startRunner(t)
	ctx := context.Background()
	if err := h.runner.Start(ctx, "ada", passage.Normalize("go"), 60); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.next(t)
	if err := h.runner.Input(ctx, "g"); err != nil {
		t.Fatalf("input: %v", err)
	}
	if s := h.next(t); s.TypedLength != 1 || s.Phase != PhaseRunning {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if err := h.runner.Input(ctx, "go"); err != nil {
		t.Fatalf("input: %v", err)
	}
	if s := h.next(t); s.Phase != PhaseFinished {
		t.Fatalf("expected finished, got %s", s.Phase)
	}
	if !h.clock.Tickers()[0].Stopped() {
		t.Fatalf("expected ticker stopped on completion")
	}
}

func TestRunnerResetReplacesTicker(t *testing.T) {
	h := startRunner(t)
	ctx := context.Background()
	p := passage.Normalize("reset me")
	if err := h.runner.Start(ctx, "ada", p, 60); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.next(t)
	if err := h.runner.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s := h.next(t); s.Phase != PhaseIdle {
		t.Fatalf("expected idle, got %s", s.Phase)
	}
	first := h.clock.Tickers()[0]
	if !first.Stopped() {
		t.Fatalf("expected ticker stopped on reset")
	}

	if err := h.runner.Start(ctx, "ada", p, 60); err != nil {
		t.Fatalf("restart: %v", err)
	}
	h.next(t)
	tickers := h.clock.Tickers()
	if len(tickers) != 2 {
		t.Fatalf("expected a fresh ticker, got %d", len(tickers))
	}
	if s := h.tick(t, tickers[1]); s.TimeRemainingSeconds != 59 {
		t.Fatalf("expected 59 seconds left, got %d", s.TimeRemainingSeconds)
	}
}

func TestRunnerRejectsInvalidStart(t *testing.T) {
	h := startRunner(t)
	err := h.runner.Start(context.Background(), "", passage.Normalize("text"), 60)
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if len(h.clock.Tickers()) != 0 {
		t.Fatalf("expected no ticker for rejected start")
	}
}

func TestRunnerStopped(t *testing.T) {
	h := startRunner(t)
	h.cancel()
	if err := <-h.errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	h.errc <- nil
	if err := h.runner.Input(context.Background(), "x"); !errors.Is(err, ErrRunnerStopped) {
		t.Fatalf("expected ErrRunnerStopped, got %v", err)
	}
}
