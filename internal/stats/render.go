package stats

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
	"golang.org/x/term"

	"github.com/verte-zerg/speedtype/internal/model"
)

const (
	terminalWidthBackup = 80
	minSparkWidth       = 10
	dateLayout          = "2006-01-02 15:04"
)

// Summary aggregates a set of results.
type Summary struct {
	Count       int
	BestWPM     int
	AvgWPM      float64
	AvgAccuracy float64
	TotalErrors int
}

// Summarize computes aggregate figures for results.
func Summarize(results []model.Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	n := float64(len(results))
	best := lo.MaxBy(results, func(a, b model.Result) bool { return a.WPM > b.WPM })
	return Summary{
		Count:       len(results),
		BestWPM:     best.WPM,
		AvgWPM:      float64(lo.SumBy(results, func(r model.Result) int { return r.WPM })) / n,
		AvgAccuracy: float64(lo.SumBy(results, func(r model.Result) int { return r.Accuracy })) / n,
		TotalErrors: lo.SumBy(results, func(r model.Result) int { return r.Errors }),
	}
}

// LeaderboardRows formats ranked results as table cells.
func LeaderboardRows(results []model.Result) [][]string {
	return lo.Map(results, func(r model.Result, i int) []string {
		return []string{
			strconv.Itoa(i + 1),
			r.Name,
			strconv.Itoa(r.WPM),
			strconv.Itoa(r.Accuracy) + "%",
			strconv.Itoa(r.Errors),
			strconv.Itoa(r.DurationSec) + "s",
			r.CreatedAt.Local().Format(dateLayout),
		}
	})
}

// LeaderboardHeaders are the column titles matching LeaderboardRows.
var LeaderboardHeaders = []string{"#", "Name", "WPM", "Acc", "Errors", "Time", "Date"}

// RenderLeaderboard writes a ranked plain-text table.
func RenderLeaderboard(w io.Writer, results []model.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results yet.")
		return err
	}
	lines := formatTable(LeaderboardHeaders, LeaderboardRows(results), map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true})
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistory writes a chronological table for one typist followed by a
// WPM trend line fitted to width.
func RenderHistory(w io.Writer, name string, results []model.Result, width int) error {
	if len(results) == 0 {
		_, err := fmt.Fprintf(w, "No results for %s.\n", name)
		return err
	}
	rows := lo.Map(results, func(r model.Result, _ int) []string {
		return []string{
			r.CreatedAt.Local().Format(dateLayout),
			strconv.Itoa(r.WPM),
			strconv.Itoa(r.Accuracy) + "%",
			strconv.Itoa(r.Errors),
			r.Reason,
		}
	})
	lines := formatTable([]string{"Date", "WPM", "Acc", "Errors", "Reason"}, rows, map[int]bool{1: true, 2: true, 3: true})
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	sum := Summarize(results)
	if _, err := fmt.Fprintf(w, "\n%s: %d results, best %d WPM, avg %.1f WPM, avg accuracy %.1f%%\n",
		name, sum.Count, sum.BestWPM, sum.AvgWPM, sum.AvgAccuracy); err != nil {
		return err
	}
	if len(results) < 2 {
		return nil
	}
	label := "Trend "
	values := lo.Map(results, func(r model.Result, _ int) float64 { return float64(r.WPM) })
	values = resample(values, max(minSparkWidth, width-runewidth.StringWidth(label)))
	_, err := fmt.Fprintln(w, label+Sparkline(MovingAverage(values, 3)))
	return err
}

// TerminalWidth reports the width of stdout, falling back to 80 columns.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// resample shrinks values to at most width points by averaging buckets.
func resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		end = max(end, start+1)
		out[i] = lo.Sum(values[start:end]) / float64(end-start)
	}
	return out
}
