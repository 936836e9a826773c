// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/session"
)

// PassageFunc returns the passage for the next attempt.
type PassageFunc func() (passage.Passage, error)

// TopLister returns the current leaderboard.
type TopLister interface {
	Top(ctx context.Context, n int) ([]model.Result, error)
}

type tickMsg struct {
	attempt int
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The terminal belongs to the UI while it runs,
// so the logger should write elsewhere.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Model implements the Bubble Tea typing UI.
type Model struct {
	config model.Config
	engine *session.Engine
	next   PassageFunc
	board  TopLister
	logger *slog.Logger

	width  int
	height int

	naming    bool
	nameInput textinput.Model

	target []rune
	typed  []rune
	snap   session.Snapshot
	top    []model.Result
	status string
	saving bool
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	resultStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#C89A3A")).Padding(0, 2)
	rankStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// NewModel constructs a typing TUI model. The engine must already hold the
// first passage. board may be nil. Submission outcomes reported by the engine
// must be delivered to the program as session.Submission messages.
func NewModel(cfg model.Config, engine *session.Engine, next PassageFunc, board TopLister, opts ...Option) *Model {
	if cfg.DurationSec <= 0 {
		cfg.DurationSec = session.DefaultTimeLimit
	}
	m := &Model{
		config: cfg,
		engine: engine,
		next:   next,
		board:  board,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.nameInput = textinput.New()
	m.nameInput.Prompt = "Name: "
	m.nameInput.Placeholder = "your name"
	m.nameInput.CharLimit = 40
	m.nameInput.Cursor.SetMode(cursor.CursorBlink)
	if strings.TrimSpace(cfg.Name) == "" {
		m.naming = true
		m.nameInput.Focus()
	}
	m.target = engine.Passage().Runes()
	m.snap = engine.Snapshot()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.naming {
		return textinput.Blink
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		return m, m.handleTick(msg)
	case session.Submission:
		m.handleSubmission(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if m.naming {
			return m.updateName(msg)
		}
		return m, m.handleKey(msg)
	default:
		if m.naming {
			var cmd tea.Cmd
			m.nameInput, cmd = m.nameInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m *Model) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			m.status = "Please enter your name."
			return m, nil
		}
		m.config.Name = name
		m.naming = false
		m.status = ""
		m.nameInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlR:
		m.restart(false)
		return nil
	case tea.KeyCtrlN:
		m.restart(true)
		return nil
	case tea.KeyEnter:
		if m.snap.Phase == session.PhaseFinished {
			m.restart(true)
		}
		return nil
	case tea.KeyBackspace, tea.KeyDelete:
		if m.snap.Phase != session.PhaseRunning || len(m.typed) == 0 {
			return nil
		}
		m.typed = m.typed[:len(m.typed)-1]
		m.apply()
		return nil
	case tea.KeySpace:
		return m.handleRunes([]rune{' '})
	case tea.KeyRunes:
		return m.handleRunes(msg.Runes)
	default:
		return nil
	}
}

func (m *Model) handleRunes(runes []rune) tea.Cmd {
	var cmd tea.Cmd
	if m.snap.Phase == session.PhaseIdle {
		cmd = m.start()
		if m.snap.Phase != session.PhaseRunning {
			return nil
		}
	}
	if m.snap.Phase != session.PhaseRunning {
		return nil
	}
	m.typed = append(m.typed, runes...)
	m.apply()
	return cmd
}

func (m *Model) start() tea.Cmd {
	err := m.engine.Start(m.config.Name, m.engine.Passage(), m.config.DurationSec)
	if err != nil {
		m.status = err.Error()
		return nil
	}
	m.status = ""
	m.typed = nil
	m.snap = m.engine.Snapshot()
	return tickAfter(m.snap.Attempt)
}

func (m *Model) apply() {
	m.snap = m.engine.ApplyKeystrokeDelta(string(m.typed))
	if m.snap.Phase == session.PhaseFinished {
		m.finish()
	}
}

func (m *Model) handleTick(msg tickMsg) tea.Cmd {
	if m.snap.Phase != session.PhaseRunning || msg.attempt != m.snap.Attempt {
		return nil
	}
	m.snap = m.engine.Tick()
	if m.snap.Phase == session.PhaseFinished {
		m.finish()
		return nil
	}
	return tickAfter(m.snap.Attempt)
}

// finish waits for the engine to report the submission before loading the
// leaderboard.
func (m *Model) finish() {
	m.saving = true
}

func (m *Model) handleSubmission(msg session.Submission) {
	if !m.saving || msg.Attempt != m.snap.Attempt {
		return
	}
	m.saving = false
	if msg.Err != nil {
		m.status = fmt.Sprintf("Result not saved: %v", msg.Err)
	}
	if m.board == nil {
		return
	}
	top, err := m.board.Top(context.Background(), m.config.BoardSize)
	if err != nil {
		m.logger.Error("failed to load leaderboard", "error", err)
		return
	}
	m.top = top
}

// restart discards the current attempt. With fresh set, a new passage is
// loaded before the next attempt.
func (m *Model) restart(fresh bool) {
	m.snap = m.engine.Reset()
	m.typed = nil
	m.top = nil
	m.status = ""
	m.saving = false
	if !fresh || m.next == nil {
		return
	}
	p, err := m.next()
	if err != nil {
		m.status = err.Error()
		return
	}
	m.engine.SetPassage(p)
	m.target = p.Runes()
}

func tickAfter(attempt int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{attempt: attempt}
	})
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.naming {
		return m.place(m.renderNamePrompt(), "")
	}
	if len(m.target) == 0 {
		return ""
	}
	cursorIndex := -1
	if m.snap.Phase != session.PhaseFinished && len(m.typed) < len(m.target) {
		cursorIndex = len(m.typed)
	}
	styled := buildStyledRunes(m.target, m.typed, cursorIndex)
	contentWidth := max(1, int(float64(m.width)*0.70))
	body := wrapStyledRunes(styled, contentWidth)
	if m.width == 0 {
		body = renderStyledRunes(styled)
	}
	if m.snap.Phase == session.PhaseFinished {
		body += "\n\n" + renderResult(m.engine, m.top)
		if m.saving {
			body += "\n" + footerStyle.Render("Saving result...")
		}
	}
	if m.status != "" {
		body += "\n\n" + statusStyle.Render(m.status)
	}
	footer := renderFooter(m.snap, m.config.DurationSec)
	if m.width == 0 {
		return m.place(body, footer)
	}
	return m.place(lipgloss.NewStyle().Width(contentWidth).Render(body), footer)
}

func (m *Model) place(content, footer string) string {
	if m.width == 0 || m.height == 0 {
		if footer == "" {
			return content
		}
		return content + "\n" + footer
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderNamePrompt() string {
	lines := []string{"Who is typing?", "", m.nameInput.View()}
	if m.status != "" {
		lines = append(lines, "", statusStyle.Render(m.status))
	}
	lines = append(lines, "", footerStyle.Render("enter confirm · esc quit"))
	return strings.Join(lines, "\n")
}

func renderFooter(s session.Snapshot, limit int) string {
	remaining := s.TimeRemainingSeconds
	if s.Phase == session.PhaseIdle {
		remaining = limit
	}
	segments := []string{
		fmt.Sprintf("Time %d:%02d", remaining/60, remaining%60),
		fmt.Sprintf("WPM %d", s.WPM),
		fmt.Sprintf("Acc %d%%", s.Accuracy),
		fmt.Sprintf("Errors %d", s.Errors),
	}
	switch s.Phase {
	case session.PhaseIdle:
		segments = append(segments, "start typing to begin")
	case session.PhaseRunning:
		segments = append(segments, "ctrl+r restart")
	case session.PhaseFinished:
		segments = append(segments, "enter next · ctrl+r retry · esc quit")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func renderResult(engine *session.Engine, top []model.Result) string {
	r, ok := engine.Result()
	if !ok {
		return ""
	}
	reason := "Passage complete"
	if r.Reason == model.ReasonTimeout {
		reason = "Time's up"
	}
	lines := []string{
		reason,
		fmt.Sprintf("%d WPM · %d%% accuracy · %d errors · %ds", r.WPM, r.Accuracy, r.Errors, r.DurationSec),
	}
	if len(top) > 0 {
		lines = append(lines, "", "Leaderboard")
		for i, entry := range top {
			line := fmt.Sprintf("%d. %-16s %4d WPM  %3d%%", i+1, entry.Name, entry.WPM, entry.Accuracy)
			if entry.Name == r.Name && entry.CreatedAt.Equal(r.CreatedAt) {
				line = rankStyle.Render(line)
			}
			lines = append(lines, line)
		}
	}
	return resultStyle.Render(strings.Join(lines, "\n"))
}
