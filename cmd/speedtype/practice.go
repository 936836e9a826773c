package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/speedtype/internal/config"
	"github.com/verte-zerg/speedtype/internal/generator"
	"github.com/verte-zerg/speedtype/internal/leaderboard"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/session"
	"github.com/verte-zerg/speedtype/internal/tui"
	"github.com/verte-zerg/speedtype/internal/wordlist"
)

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyPracticeConfig(cmd, fileCfg)

	cfg := model.Config{
		Name:        strings.TrimSpace(practiceName),
		DurationSec: practiceDuration,
		Source:      strings.ToLower(strings.TrimSpace(practiceSource)),
		TextFile:    practiceTextFile,
		LibraryPath: practiceLibrary,
		PassageName: practicePassage,
		Lang:        practiceLang,
		Words:       practiceWords,
		CapsPct:     practiceCaps,
		PunctPct:    practicePunct,
		PunctSet:    practicePunctSet,
		BoardSize:   boardSize,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	next, err := newPassageFunc(cfg)
	if err != nil {
		return err
	}
	first, err := next()
	if err != nil {
		return err
	}

	// The TUI owns the terminal while it runs.
	logDir := filepath.Join(config.XDGDataHome(), "speedtype")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "speedtype.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = logFile.Close()
	}()
	logger, err := newLogger(logLevel, logFile)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	board := leaderboard.New(st, cfg.BoardSize, logger)
	var program *tea.Program
	engine := session.NewEngine(
		session.WithSink(board),
		session.WithLogger(logger),
		session.WithSubmitted(func(s session.Submission) {
			program.Send(s)
		}),
	)
	// The last result must reach the store before it closes.
	defer engine.Wait()
	engine.SetPassage(first)

	m := tui.NewModel(cfg, engine, next, board, tui.WithLogger(logger))
	program = tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func applyPracticeConfig(cmd *cobra.Command, fileCfg config.FileConfig) {
	sc := fileCfg.Session
	applyStringConfig(cmd, "name", &practiceName, sc.Name)
	applyIntConfig(cmd, "duration", &practiceDuration, sc.Duration)
	applyStringConfig(cmd, "source", &practiceSource, sc.Source)
	applyStringConfig(cmd, "text-file", &practiceTextFile, sc.TextFile)
	applyStringConfig(cmd, "library", &practiceLibrary, sc.Library)
	applyStringConfig(cmd, "passage", &practicePassage, sc.Passage)
	applyStringConfig(cmd, "lang", &practiceLang, sc.Lang)
	applyIntConfig(cmd, "words", &practiceWords, sc.Words)
	applyFloatConfig(cmd, "caps", &practiceCaps, sc.CapsPct)
	applyFloatConfig(cmd, "punct", &practicePunct, sc.PunctPct)
	applyStringConfig(cmd, "punct-set", &practicePunctSet, sc.PunctSet)
	applyIntConfig(cmd, "board-size", &boardSize, fileCfg.Leaderboard.Size)
}

// newPassageFunc returns the passage provider for a practice run. Library
// runs without a passage name cycle through every entry, and word runs
// generate a fresh passage each time.
func newPassageFunc(cfg model.Config) (tui.PassageFunc, error) {
	opts := passage.Options{
		Source:      cfg.Source,
		TextFile:    cfg.TextFile,
		LibraryPath: cfg.LibraryPath,
		PassageName: cfg.PassageName,
		Lang:        cfg.Lang,
		Words:       cfg.Words,
		CapsPct:     cfg.CapsPct,
		PunctPct:    cfg.PunctPct,
		PunctSet:    cfg.PunctSet,
	}

	switch cfg.Source {
	case passage.SourceLibrary:
		if opts.LibraryPath == "" {
			opts.LibraryPath = config.DefaultLibraryPath()
		}
		lib, err := passage.LoadLibrary(opts.LibraryPath)
		if err != nil {
			return nil, err
		}
		if opts.PassageName != "" {
			if _, err := lib.Get(opts.PassageName); err != nil {
				return nil, err
			}
			return func() (passage.Passage, error) {
				return lib.Get(opts.PassageName)
			}, nil
		}
		names := lib.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("passage library %s: %w", opts.LibraryPath, passage.ErrNoUsableText)
		}
		i := 0
		return func() (passage.Passage, error) {
			name := names[i%len(names)]
			i++
			return lib.Get(name)
		}, nil
	case passage.SourceWords:
		path := config.DefaultWordListPath(opts.Lang)
		words, err := wordlist.LoadWords(path, opts.Lang)
		if err != nil {
			return nil, wordListLoadError(opts.Lang, path, err)
		}
		gen := generator.New()
		return func() (passage.Passage, error) {
			return passage.Generate(gen, words, opts)
		}, nil
	default:
		p, err := passage.Resolve(opts, nil)
		if err != nil {
			return nil, err
		}
		return func() (passage.Passage, error) {
			return p, nil
		}, nil
	}
}
