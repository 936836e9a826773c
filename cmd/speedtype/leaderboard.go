package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/speedtype/internal/boardui"
	"github.com/verte-zerg/speedtype/internal/leaderboard"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/stats"
)

const boardPollInterval = 2 * time.Second

var (
	boardPlain  bool
	boardName   string
	boardLimit  int
	boardServer string
	boardSince  string
)

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Aliases: []string{"board"},
		Short:   "Show the leaderboard and typing history",
		Args:    cobra.NoArgs,
		RunE:    runLeaderboardCmd,
	}
	cmd.Flags().BoolVar(&boardPlain, "plain", false, "print plain text instead of the live view")
	cmd.Flags().StringVar(&boardName, "name", "", "show the history of one typist")
	cmd.Flags().IntVar(&boardLimit, "limit", 0, "number of history results (0 = all)")
	cmd.Flags().StringVar(&boardSince, "since", "", "only history since duration (e.g. 24h)")
	cmd.Flags().StringVar(&boardServer, "server", "", "follow a running server (ws://host:port/ws/leaderboard)")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyIntConfig(cmd, "board-size", &boardSize, fileCfg.Leaderboard.Size)
	if boardSize <= 0 {
		return fmt.Errorf("--board-size must be > 0")
	}
	if boardLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	filter := model.ResultFilter{Name: strings.TrimSpace(boardName), Last: boardLimit}
	if boardSince != "" {
		d, err := time.ParseDuration(boardSince)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid --since %q", boardSince)
		}
		since := time.Now().Add(-d)
		filter.Since = &since
	}

	logger, err := newLogger(logLevel, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if boardServer != "" {
		return runRemoteBoard(ctx, cmd.OutOrStdout(), boardServer)
	}

	st, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	if boardPlain {
		report, err := stats.BuildReport(ctx, st, filter, boardSize)
		if err != nil {
			return fmt.Errorf("failed to load results: %w", err)
		}
		return renderReport(cmd.OutOrStdout(), report, filter.Name, stats.TerminalWidth())
	}

	updates := leaderboard.Watch(ctx, st, boardSize, boardPollInterval, logger)
	m := boardui.NewModel(updates, st, boardSize, filter.Name)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run leaderboard UI: %w", err)
	}
	return nil
}

func renderReport(w io.Writer, report stats.Report, name string, width int) error {
	if name != "" {
		return stats.RenderHistory(w, name, report.History, width)
	}
	return stats.RenderLeaderboard(w, report.Top)
}

// runRemoteBoard follows the leaderboard of a running server. History is
// only available from the local database.
func runRemoteBoard(ctx context.Context, w io.Writer, url string) error {
	updates, err := leaderboard.Stream(ctx, url)
	if err != nil {
		return err
	}
	if boardPlain {
		select {
		case top, ok := <-updates:
			if !ok {
				return fmt.Errorf("leaderboard stream closed")
			}
			return stats.RenderLeaderboard(w, top)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m := boardui.NewModel(updates, nil, boardSize, "")
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run leaderboard UI: %w", err)
	}
	return nil
}
