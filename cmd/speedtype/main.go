// Package main provides the CLI entrypoint for speedtype.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/speedtype/internal/config"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/session"
	"github.com/verte-zerg/speedtype/internal/store"
	"github.com/verte-zerg/speedtype/internal/wordlist"
)

const (
	defaultSource      = "sample"
	defaultLang        = "en"
	defaultWords       = 25
	defaultCaps        = 0.0
	defaultPunct       = 0.0
	defaultBoardSize   = 5
	defaultAddr        = ":8080"
	defaultRateRPS     = 2.0
	defaultRateBurst   = 5
	defaultMaxSessions = 100
)

const defaultPunctSet = ".,!?;:"

var (
	practiceName     string
	practiceDuration int
	practiceSource   string
	practiceTextFile string
	practiceLibrary  string
	practicePassage  string
	practiceLang     string
	practiceWords    int
	practiceCaps     float64
	practicePunct    float64
	practicePunctSet string

	boardSize int
	dbPath    string
	logLevel  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "speedtype",
		Short:        "Timed typing speed test",
		SilenceUsage: true,
		RunE:         runPracticeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&boardSize, "board-size", defaultBoardSize, "number of leaderboard entries")

	flags := rootCmd.Flags()
	flags.StringVar(&practiceName, "name", "", "participant name (prompted when empty)")
	flags.IntVar(&practiceDuration, "duration", session.DefaultTimeLimit, "time limit in seconds")
	flags.StringVar(&practiceSource, "source", defaultSource, "text source: sample, file, library, words")
	flags.StringVar(&practiceTextFile, "text-file", "", "plain-text passage file (source=file)")
	flags.StringVar(&practiceLibrary, "library", "", "YAML passage library (default: XDG config dir)")
	flags.StringVar(&practicePassage, "passage", "", "passage name in the library (default: cycle all)")
	flags.StringVar(&practiceLang, "lang", defaultLang, "word list language (source=words)")
	flags.IntVar(&practiceWords, "words", defaultWords, "words per generated passage")
	flags.Float64Var(&practiceCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	flags.Float64Var(&practicePunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	flags.StringVar(&practicePunctSet, "punct-set", defaultPunctSet, "punctuation set")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newLangsCmd())
	rootCmd.AddCommand(newWordlistCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}

func openStore(path string) (*store.Store, func(), error) {
	if path == "" {
		path = config.DefaultDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	closeFn := func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}
	return st, closeFn, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List installed word list languages",
		Args:  cobra.NoArgs,
		RunE:  runLangsCmd,
	}
}

func runLangsCmd(cmd *cobra.Command, _ []string) error {
	langs, err := installedLangs(config.DefaultWordListDir())
	if err != nil {
		return err
	}
	if len(langs) == 0 {
		logErrf("No word lists found. Import one with: speedtype wordlist --lang <code> <file>\n")
		return fmt.Errorf("no word lists found")
	}
	for _, lang := range langs {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), lang); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func installedLangs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read word list directory: %w", err)
	}
	langs := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		langs = append(langs, strings.TrimSuffix(name, ".txt"))
	}
	sort.Strings(langs)
	return langs, nil
}

var (
	wordlistLang  string
	wordlistForce bool
)

func newWordlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordlist <file>",
		Short: "Import a word list for generated passages",
		Args:  cobra.ExactArgs(1),
		RunE:  runWordlistCmd,
	}
	cmd.Flags().StringVar(&wordlistLang, "lang", defaultLang, "language code")
	cmd.Flags().BoolVar(&wordlistForce, "force", false, "overwrite an existing list")
	return cmd
}

func runWordlistCmd(cmd *cobra.Command, args []string) error {
	lang := strings.TrimSpace(wordlistLang)
	if lang == "" || strings.ContainsAny(lang, `/\.`) {
		return fmt.Errorf("invalid --lang %q", wordlistLang)
	}
	words, err := wordlist.LoadWords(args[0], lang)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	dest := config.DefaultWordListPath(lang)
	if _, err := os.Stat(dest); err == nil && !wordlistForce {
		return fmt.Errorf("word list %s already exists (use --force to overwrite)", dest)
	}
	if err := writeWordList(dest, words); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d words to %s\n", len(words), dest)
	return err
}

func writeWordList(path string, words []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create word list dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "wordlist-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create temp word list: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	for _, word := range words {
		if _, err := fmt.Fprintln(writer, word); err != nil {
			return fmt.Errorf("failed to write word list: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush word list: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close word list: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write word list: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# speedtype configuration
# Uncomment a value to enable it. CLI flags override config values.

[session]
# name = "ada"            # Participant name (prompted when empty)
# duration = %d           # Time limit in seconds
# source = %q         # sample, file, library or words
# text-file = ""          # Plain-text passage (source = "file")
# library = ""            # YAML passage library (source = "library")
# passage = ""            # Library entry; empty cycles through all
# lang = %q             # Word list language (source = "words")
# words = %d              # Words per generated passage
# caps = %.2f             # Probability of capitalized first letter (0-1)
# punct = %.2f            # Punctuation probability per word (0-1)
# punct-set = %q      # Punctuation set

[server]
# addr = %q          # Listen address for speedtype serve
# rate-rps = %.1f          # Result submissions per second per client
# rate-burst = %d          # Submission burst per client
# max-sessions = %d      # Concurrent WebSocket typing sessions

[leaderboard]
# size = %d               # Number of leaderboard entries
`,
		session.DefaultTimeLimit,
		defaultSource,
		defaultLang,
		defaultWords,
		defaultCaps,
		defaultPunct,
		defaultPunctSet,
		defaultAddr,
		defaultRateRPS,
		defaultRateBurst,
		defaultMaxSessions,
		defaultBoardSize,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.DurationSec <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if cfg.BoardSize <= 0 {
		return fmt.Errorf("--board-size must be > 0")
	}
	if cfg.Words <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if cfg.CapsPct < 0 || cfg.CapsPct > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if cfg.PunctPct < 0 || cfg.PunctPct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if cfg.PunctPct > 0 && cfg.PunctSet == "" {
		return fmt.Errorf("--punct-set must not be empty")
	}
	return nil
}

func validateServeConfig(cfg model.ServeConfig) error {
	if cfg.Addr == "" {
		return fmt.Errorf("--addr must not be empty")
	}
	if cfg.RateRPS <= 0 {
		return fmt.Errorf("--rate-rps must be > 0")
	}
	if cfg.RateBurst <= 0 {
		return fmt.Errorf("--rate-burst must be > 0")
	}
	if cfg.MaxSessions <= 0 {
		return fmt.Errorf("--max-sessions must be > 0")
	}
	if cfg.BoardSize <= 0 {
		return fmt.Errorf("--board-size must be > 0")
	}
	return nil
}

func wordListLoadError(lang, path string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load word list: %v", err),
		fmt.Sprintf("expected word list at: %s", path),
		"Run: speedtype langs",
		fmt.Sprintf("Import: speedtype wordlist --lang %s <file>", lang),
	}
	return errors.New(strings.Join(lines, "\n"))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
