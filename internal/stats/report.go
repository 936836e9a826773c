package stats

import (
	"context"

	"github.com/verte-zerg/speedtype/internal/model"
)

// ResultSource is the read side of the result store.
type ResultSource interface {
	TopResults(ctx context.Context, n int) ([]model.Result, error)
	ListResults(ctx context.Context, filter model.ResultFilter) ([]model.Result, error)
}

// Report contains precomputed data for leaderboard and history rendering.
type Report struct {
	Top     []model.Result
	History []model.Result
	Summary Summary
}

// BuildReport loads the top n results and, when filter names a typist, that
// typist's history.
func BuildReport(ctx context.Context, src ResultSource, filter model.ResultFilter, n int) (Report, error) {
	top, err := src.TopResults(ctx, n)
	if err != nil {
		return Report{}, err
	}
	report := Report{Top: top}
	if filter.Name == "" {
		report.Summary = Summarize(top)
		return report, nil
	}
	history, err := src.ListResults(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	report.History = history
	report.Summary = Summarize(history)
	return report, nil
}
