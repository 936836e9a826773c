package tui

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/session"
)

type memoryBoard struct {
	mu      sync.Mutex
	results []model.Result
}

func (b *memoryBoard) Submit(_ context.Context, r model.Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, r)
	return nil
}

func (b *memoryBoard) Top(_ context.Context, n int) ([]model.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.results) {
		n = len(b.results)
	}
	return append([]model.Result(nil), b.results[:n]...), nil
}

func newTestModel(t *testing.T, name, text string) (*Model, *memoryBoard) {
	t.Helper()
	board := &memoryBoard{}
	engine := session.NewEngine(session.WithSink(board))
	engine.SetPassage(passage.Normalize(text))
	next := func() (passage.Passage, error) {
		return passage.Normalize("next passage"), nil
	}
	return NewModel(model.Config{Name: name, DurationSec: 30, BoardSize: 5}, engine, next, board), board
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func TestFirstKeyStartsAttemptAndSchedulesTick(t *testing.T) {
	m, _ := newTestModel(t, "ada", "hi there")
	_, cmd := m.Update(runes("h"))
	if m.snap.Phase != session.PhaseRunning {
		t.Fatalf("expected running, got %s", m.snap.Phase)
	}
	if cmd == nil {
		t.Fatalf("expected tick command on start")
	}
	if m.snap.TypedLength != 1 || m.snap.TotalKeystrokes != 1 {
		t.Fatalf("unexpected snapshot: %+v", m.snap)
	}
	if _, cmd := m.Update(runes("x")); cmd != nil {
		t.Fatalf("expected no extra tick while running")
	}
	if m.snap.Errors != 1 {
		t.Fatalf("expected one error, got %d", m.snap.Errors)
	}
}

func TestCompletingPassageSubmitsResult(t *testing.T) {
	m, board := newTestModel(t, "ada", "go")
	m.Update(runes("g"))
	m.Update(runes("o"))
	if m.snap.Phase != session.PhaseFinished {
		t.Fatalf("expected finished, got %s", m.snap.Phase)
	}
	if !m.saving || len(m.top) != 0 {
		t.Fatalf("expected leaderboard to wait for the submission")
	}
	if view := m.View(); !strings.Contains(view, "Saving result") {
		t.Fatalf("expected saving notice in view")
	}
	m.engine.Wait()
	if len(board.results) != 1 || board.results[0].Reason != model.ReasonCompleted {
		t.Fatalf("unexpected results: %+v", board.results)
	}
	r, _ := m.engine.Result()
	m.Update(session.Submission{Attempt: m.snap.Attempt, Result: r})
	if m.saving || len(m.top) != 1 || m.status != "" {
		t.Fatalf("expected leaderboard loaded after submission, got %d entries (%q)", len(m.top), m.status)
	}
	if view := m.View(); !strings.Contains(view, "Passage complete") {
		t.Fatalf("expected result panel in view")
	}

	m.Update(runes("x"))
	if m.snap.TypedLength != 2 {
		t.Fatalf("typing after finish should be ignored")
	}

	m.Update(key(tea.KeyEnter))
	if m.snap.Phase != session.PhaseIdle || string(m.target) != "next passage" {
		t.Fatalf("expected fresh idle attempt, got %s %q", m.snap.Phase, string(m.target))
	}
}

func TestTicksCountDownAndDropStale(t *testing.T) {
	m, board := newTestModel(t, "ada", "long enough text")
	m.Update(runes("l"))
	attempt := m.snap.Attempt

	if _, cmd := m.Update(tickMsg{attempt: attempt + 7}); cmd != nil {
		t.Fatalf("stale tick should not reschedule")
	}
	if m.snap.TimeRemainingSeconds != 30 {
		t.Fatalf("stale tick changed the countdown: %d", m.snap.TimeRemainingSeconds)
	}
	for i := 0; i < 29; i++ {
		if _, cmd := m.Update(tickMsg{attempt: attempt}); cmd == nil {
			t.Fatalf("expected next tick at %d", i)
		}
	}
	if _, cmd := m.Update(tickMsg{attempt: attempt}); cmd != nil {
		t.Fatalf("expected no tick after timeout")
	}
	if m.snap.Phase != session.PhaseFinished || m.snap.TimeRemainingSeconds != 0 {
		t.Fatalf("expected timeout, got %+v", m.snap)
	}
	m.engine.Wait()
	if len(board.results) != 1 || board.results[0].Reason != model.ReasonTimeout {
		t.Fatalf("unexpected results: %+v", board.results)
	}
}

func TestRestartDiscardsAttempt(t *testing.T) {
	m, board := newTestModel(t, "ada", "abc")
	m.Update(runes("ab"))
	attempt := m.snap.Attempt
	m.Update(key(tea.KeyCtrlR))
	if m.snap.Phase != session.PhaseIdle || len(m.typed) != 0 {
		t.Fatalf("expected idle after restart")
	}
	if string(m.target) != "abc" {
		t.Fatalf("restart should keep the passage, got %q", string(m.target))
	}
	if _, cmd := m.Update(tickMsg{attempt: attempt}); cmd != nil {
		t.Fatalf("tick from discarded attempt should be dropped")
	}
	if len(board.results) != 0 {
		t.Fatalf("discarded attempt produced a result")
	}
}

func TestBackspaceRecountsErrors(t *testing.T) {
	m, _ := newTestModel(t, "ada", "abc")
	m.Update(runes("ax"))
	if m.snap.Errors != 1 {
		t.Fatalf("expected one error, got %d", m.snap.Errors)
	}
	m.Update(key(tea.KeyBackspace))
	if m.snap.Errors != 0 || m.snap.TotalKeystrokes != 2 {
		t.Fatalf("unexpected snapshot after backspace: %+v", m.snap)
	}
}

func TestNamePromptRequiresName(t *testing.T) {
	m, _ := newTestModel(t, "  ", "abc")
	if !m.naming {
		t.Fatalf("expected name prompt")
	}
	m.Update(key(tea.KeyEnter))
	if !m.naming || m.status == "" {
		t.Fatalf("expected validation message for empty name")
	}
	m.Update(runes("bob"))
	m.Update(key(tea.KeyEnter))
	if m.naming || m.config.Name != "bob" {
		t.Fatalf("expected name accepted, got naming=%v name=%q", m.naming, m.config.Name)
	}
	m.Update(runes("a"))
	if m.snap.Name != "bob" {
		t.Fatalf("expected attempt started as bob, got %q", m.snap.Name)
	}
}

func TestRenderFooterFormats(t *testing.T) {
	snap := session.Snapshot{
		Phase:                session.PhaseRunning,
		TimeRemainingSeconds: 75,
		WPM:                  72,
		Accuracy:             97,
		Errors:               2,
	}
	out := renderFooter(snap, 90)
	if !containsAll(out, []string{"Time 1:15", "WPM 72", "Acc 97%", "Errors 2"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
	idle := renderFooter(session.Snapshot{Phase: session.PhaseIdle, Accuracy: 100}, 60)
	if !containsAll(idle, []string{"Time 1:00", "start typing"}) {
		t.Fatalf("unexpected idle footer: %s", idle)
	}
}

func TestSubmissionOutcomes(t *testing.T) {
	m, _ := newTestModel(t, "ada", "go")
	m.Update(runes("go"))
	attempt := m.snap.Attempt

	m.Update(session.Submission{Attempt: attempt + 1, Err: errors.New("stale")})
	if !m.saving || m.status != "" {
		t.Fatalf("submission for another attempt should be ignored")
	}
	m.Update(session.Submission{Attempt: attempt, Err: errors.New("disk full")})
	if m.saving || !strings.Contains(m.status, "Result not saved: disk full") {
		t.Fatalf("expected unsaved status, got saving=%v %q", m.saving, m.status)
	}

	m.Update(key(tea.KeyCtrlR))
	m.Update(session.Submission{Attempt: attempt})
	if len(m.top) != 0 || m.status != "" {
		t.Fatalf("late submission after restart changed the view")
	}
	m.engine.Wait()
}

type failingTop struct{ memoryBoard }

func (*failingTop) Top(context.Context, int) ([]model.Result, error) {
	return nil, errors.New("db locked")
}

func TestLeaderboardErrorGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	board := &failingTop{}
	engine := session.NewEngine(session.WithSink(board))
	engine.SetPassage(passage.Normalize("go"))
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewModel(model.Config{Name: "ada", DurationSec: 30, BoardSize: 5}, engine, nil, board, WithLogger(logger))

	m.Update(runes("go"))
	engine.Wait()
	m.Update(session.Submission{Attempt: m.snap.Attempt})
	if !strings.Contains(buf.String(), "failed to load leaderboard") || !strings.Contains(buf.String(), "db locked") {
		t.Fatalf("expected leaderboard error in log, got %q", buf.String())
	}
	if m.status != "" || len(m.top) != 0 {
		t.Fatalf("leaderboard error should not reach the screen: %q", m.status)
	}
}
