package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/speedtype/internal/config"
	"github.com/verte-zerg/speedtype/internal/leaderboard"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/server"
)

var (
	serveAddr        string
	serveRateRPS     float64
	serveRateBurst   int
	serveMaxSessions int
	serveLibrary     string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve typing sessions and the leaderboard over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().Float64Var(&serveRateRPS, "rate-rps", defaultRateRPS, "result submissions per second per client")
	cmd.Flags().IntVar(&serveRateBurst, "rate-burst", defaultRateBurst, "result submission burst per client")
	cmd.Flags().IntVar(&serveMaxSessions, "max-sessions", defaultMaxSessions, "concurrent WebSocket typing sessions")
	cmd.Flags().StringVar(&serveLibrary, "library", "", "YAML passage library (default: XDG config dir, if present)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logErrf("failed to load .env: %v\n", err)
	}

	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	sc := fileCfg.Server
	applyStringConfig(cmd, "addr", &serveAddr, sc.Addr)
	applyFloatConfig(cmd, "rate-rps", &serveRateRPS, sc.RateRPS)
	applyIntConfig(cmd, "rate-burst", &serveRateBurst, sc.RateBurst)
	applyIntConfig(cmd, "max-sessions", &serveMaxSessions, sc.MaxSessions)
	applyStringConfig(cmd, "library", &serveLibrary, fileCfg.Session.Library)
	applyIntConfig(cmd, "board-size", &boardSize, fileCfg.Leaderboard.Size)
	applyServeEnv(cmd)

	cfg := model.ServeConfig{
		Addr:        serveAddr,
		RateRPS:     serveRateRPS,
		RateBurst:   serveRateBurst,
		MaxSessions: serveMaxSessions,
		BoardSize:   boardSize,
		LibraryPath: serveLibrary,
	}
	if err := validateServeConfig(cfg); err != nil {
		return err
	}

	logger, err := newLogger(logLevel, os.Stderr)
	if err != nil {
		return err
	}

	lib, err := loadServeLibrary(cfg.LibraryPath)
	if err != nil {
		return err
	}
	if lib != nil {
		logger.Info("loaded passage library", "passages", len(lib.Names()))
	}

	st, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(server.Config{
		Board:       leaderboard.New(st, cfg.BoardSize, logger),
		History:     st,
		Library:     lib,
		Logger:      logger,
		RateRPS:     cfg.RateRPS,
		RateBurst:   cfg.RateBurst,
		MaxSessions: cfg.MaxSessions,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.Addr)
}

// applyServeEnv lets deployment environments override the database path
// and port. Explicit flags still win.
func applyServeEnv(cmd *cobra.Command) {
	if v := strings.TrimSpace(os.Getenv("SPEEDTYPE_DB")); v != "" && !cmd.Flags().Changed("db") {
		dbPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" && !cmd.Flags().Changed("addr") {
		serveAddr = ":" + v
	}
}

// loadServeLibrary loads the passage library. The default path is optional;
// an explicitly requested library must exist.
func loadServeLibrary(path string) (*passage.Library, error) {
	explicit := path != ""
	if !explicit {
		path = config.DefaultLibraryPath()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read passage library: %w", err)
	}
	return passage.LoadLibrary(path)
}
