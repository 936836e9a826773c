package session

import (
	"context"
	"errors"
	"time"

	"github.com/verte-zerg/speedtype/internal/passage"
)

// ErrRunnerStopped is returned by commands sent after Run has returned.
var ErrRunnerStopped = errors.New("session runner stopped")

type commandKind int

const (
	cmdStart commandKind = iota
	cmdInput
	cmdReset
)

type command struct {
	kind    commandKind
	name    string
	passage passage.Passage
	limit   int
	typed   string
	reply   chan error
}

// Runner drives one Engine from a single goroutine. Commands and clock ticks
// are serialized through Run, and at most one ticker is active at a time: it
// starts with an attempt and stops when the attempt finishes or is reset.
type Runner struct {
	engine  *Engine
	clock   Clock
	observe func(Snapshot)

	cmds chan command
	done chan struct{}

	ticker Ticker
	tickC  <-chan time.Time
}

// NewRunner returns a runner for engine. observe, if set, is called from the
// Run goroutine after every state change.
func NewRunner(engine *Engine, clock Clock, observe func(Snapshot)) *Runner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runner{
		engine:  engine,
		clock:   clock,
		observe: observe,
		cmds:    make(chan command),
		done:    make(chan struct{}),
	}
}

// Engine returns the driven engine.
func (r *Runner) Engine() *Engine {
	return r.engine
}

// Run processes commands and ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.stopTicker()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.cmds:
			cmd.reply <- r.handle(cmd)
		case <-r.tickC:
			r.after(r.engine.Tick())
		}
	}
}

// Start begins an attempt and its ticker.
func (r *Runner) Start(ctx context.Context, name string, p passage.Passage, timeLimitSeconds int) error {
	return r.send(ctx, command{kind: cmdStart, name: name, passage: p, limit: timeLimitSeconds})
}

// Input forwards the full typed buffer.
func (r *Runner) Input(ctx context.Context, typed string) error {
	return r.send(ctx, command{kind: cmdInput, typed: typed})
}

// Reset stops the ticker and returns the engine to idle.
func (r *Runner) Reset(ctx context.Context) error {
	return r.send(ctx, command{kind: cmdReset})
}

func (r *Runner) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) handle(cmd command) error {
	switch cmd.kind {
	case cmdStart:
		before := r.engine.Snapshot().Attempt
		if err := r.engine.Start(cmd.name, cmd.passage, cmd.limit); err != nil {
			return err
		}
		snap := r.engine.Snapshot()
		if snap.Phase == PhaseRunning && snap.Attempt != before {
			r.stopTicker()
			r.ticker = r.clock.NewTicker(time.Second)
			r.tickC = r.ticker.C()
		}
		r.after(snap)
	case cmdInput:
		r.after(r.engine.ApplyKeystrokeDelta(cmd.typed))
	case cmdReset:
		r.stopTicker()
		r.after(r.engine.Reset())
	}
	return nil
}

func (r *Runner) after(snap Snapshot) {
	if snap.Phase != PhaseRunning {
		r.stopTicker()
	}
	if r.observe != nil {
		r.observe(snap)
	}
}

func (r *Runner) stopTicker() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
	r.tickC = nil
}
