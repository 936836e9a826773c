// Package boardui provides the Bubble Tea live leaderboard interface.
package boardui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/stats"
)

const (
	tabTop = iota
	tabHistory
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// HistorySource lists past results for one typist.
type HistorySource interface {
	ListResults(ctx context.Context, filter model.ResultFilter) ([]model.Result, error)
}

type boardMsg struct {
	top []model.Result
	at  time.Time
}

type closedMsg struct{}

// Model implements the Bubble Tea leaderboard UI. It renders every list
// received on updates until the channel closes.
type Model struct {
	updates <-chan []model.Result
	history HistorySource
	size    int

	top       []model.Result
	updatedAt time.Time
	closed    bool

	historyName    string
	historyResults []model.Result

	tabs      []string
	activeTab int
	table     table.Model
	errMsg    string

	filterMode bool
	nameInput  textinput.Model

	width  int
	height int
}

// NewModel constructs a leaderboard UI fed by updates. history may be nil,
// which disables the history tab.
func NewModel(updates <-chan []model.Result, history HistorySource, size int, name string) *Model {
	m := &Model{
		updates:     updates,
		history:     history,
		size:        size,
		tabs:        []string{"Leaderboard"},
		historyName: strings.TrimSpace(name),
		nameInput:   newFilterInput("Name: "),
	}
	if history != nil {
		m.tabs = append(m.tabs, "History")
	}
	m.table = table.New(
		table.WithColumns(topColumns(0)),
		table.WithHeight(1),
	)
	m.table.SetStyles(tableStyles())
	if m.historyName != "" && history != nil {
		m.loadHistory()
		m.activeTab = tabHistory
	}
	m.refreshTable()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForBoard(m.updates)
}

func waitForBoard(updates <-chan []model.Result) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		top, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return boardMsg{top: top, at: time.Now()}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refreshTable()
		return m, nil
	case boardMsg:
		m.top = msg.top
		m.updatedAt = msg.at
		if m.historyName != "" && lo.ContainsBy(msg.top, func(r model.Result) bool { return r.Name == m.historyName }) {
			m.loadHistory()
		}
		m.refreshTable()
		return m, waitForBoard(m.updates)
	case closedMsg:
		m.closed = true
		return m, nil
	case tea.KeyMsg:
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "left", "shift+tab":
			m.moveTab(-1)
		case "right", "tab":
			m.moveTab(1)
		case "/":
			if m.history == nil {
				return m, nil
			}
			m.filterMode = true
			m.nameInput.SetValue(m.historyName)
			return m, m.nameInput.Focus()
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.filterMode = false
		m.nameInput.Blur()
		return m, nil
	case tea.KeyEnter:
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			m.errMsg = "name is required"
			return m, nil
		}
		m.filterMode = false
		m.nameInput.Blur()
		m.historyName = name
		m.activeTab = tabHistory
		m.loadHistory()
		m.refreshTable()
		return m, nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m *Model) moveTab(delta int) {
	next := m.activeTab + delta
	if next < 0 || next >= len(m.tabs) {
		return
	}
	m.activeTab = next
	m.refreshTable()
}

func (m *Model) loadHistory() {
	results, err := m.history.ListResults(context.Background(), model.ResultFilter{Name: m.historyName})
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load history: %v", err)
		return
	}
	m.errMsg = ""
	m.historyResults = results
}

func (m *Model) refreshTable() {
	_, bodyHeight, _ := m.layoutHeights()
	tableHeight := max(1, bodyHeight-lipgloss.Height(m.renderCards())-2)
	if m.activeTab == tabHistory {
		m.table.SetRows(nil)
		m.table.SetColumns(historyColumns())
		m.table.SetRows(historyRows(m.historyResults))
	} else {
		m.table.SetRows(nil)
		m.table.SetColumns(topColumns(m.width))
		m.table.SetRows(lo.Map(stats.LeaderboardRows(m.top), func(row []string, _ int) table.Row {
			return table.Row(row)
		}))
	}
	if m.width > 0 {
		m.table.SetWidth(m.width)
	}
	m.table.SetHeight(tableHeight)
}

func topColumns(width int) []table.Column {
	nameWidth := 16
	if width > 80 {
		nameWidth = min(32, width-56)
	}
	widths := []int{3, nameWidth, 5, 5, 6, 5, 16}
	return lo.Map(stats.LeaderboardHeaders, func(title string, i int) table.Column {
		return table.Column{Title: title, Width: widths[i]}
	})
}

func historyColumns() []table.Column {
	return []table.Column{
		{Title: "Date", Width: 16},
		{Title: "WPM", Width: 5},
		{Title: "Acc", Width: 5},
		{Title: "Errors", Width: 6},
		{Title: "Reason", Width: 10},
	}
}

func historyRows(results []model.Result) []table.Row {
	// Newest first so the latest attempt is visible without scrolling.
	rows := make([]table.Row, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		rows = append(rows, table.Row{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", r.WPM),
			fmt.Sprintf("%d%%", r.Accuracy),
			fmt.Sprintf("%d", r.Errors),
			r.Reason,
		})
	}
	return rows
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	tabs := padLines(lipgloss.JoinHorizontal(lipgloss.Top, parts...), m.width)
	return tabs + "\n" + headerStyle.Render(truncateLine(m.statusLine(), m.width))
}

func (m *Model) statusLine() string {
	state := "live"
	if m.closed {
		state = "disconnected"
	}
	line := fmt.Sprintf("Top %d  %s", m.size, state)
	if !m.updatedAt.IsZero() {
		line += "  updated " + m.updatedAt.Format("15:04:05")
	}
	if m.activeTab == tabHistory && m.historyName != "" {
		line += "  typist=" + m.historyName
	}
	return line
}

func (m *Model) renderBody() string {
	if m.filterMode {
		return "Show history for\n" + m.nameInput.View()
	}
	if m.activeTab == tabHistory && m.historyName == "" {
		return "Press / to choose a typist."
	}
	if m.activeTab == tabTop && len(m.top) == 0 {
		return "No results yet."
	}
	body := m.renderCards()
	if m.activeTab == tabHistory && len(m.historyResults) > 1 {
		values := lo.Map(m.historyResults, func(r model.Result, _ int) float64 { return float64(r.WPM) })
		body += "\n" + headerStyle.Render("Trend "+stats.Sparkline(stats.MovingAverage(values, 3)))
	}
	return body + "\n" + m.table.View()
}

func (m *Model) renderCards() string {
	results := m.top
	if m.activeTab == tabHistory {
		results = m.historyResults
	}
	sum := stats.Summarize(results)
	cards := []string{
		metricCard("Results", fmt.Sprintf("%d", sum.Count)),
		metricCard("Best WPM", fmt.Sprintf("%d", sum.BestWPM)),
		metricCard("Avg WPM", fmt.Sprintf("%.1f", sum.AvgWPM)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", sum.AvgAccuracy)),
	}
	if m.width > 0 && m.width < 60 {
		return lipgloss.JoinHorizontal(lipgloss.Top, cards[1], cards[2])
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down  History: /  Quit: q"
	if m.filterMode {
		help = "enter: apply  esc: cancel"
	}
	if m.errMsg != "" {
		return headerStyle.Render(help) + "\n" + errorStyle.Render(m.errMsg)
	}
	return headerStyle.Render(help)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 40
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
