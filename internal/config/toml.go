// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Session     SessionConfig     `toml:"session"`
	Server      ServerConfig      `toml:"server"`
	Leaderboard LeaderboardConfig `toml:"leaderboard"`
}

// SessionConfig maps typing-session settings.
type SessionConfig struct {
	Name     *string  `toml:"name"`
	Duration *int     `toml:"duration"`
	Source   *string  `toml:"source"`
	TextFile *string  `toml:"text-file"`
	Library  *string  `toml:"library"`
	Passage  *string  `toml:"passage"`
	Lang     *string  `toml:"lang"`
	Words    *int     `toml:"words"`
	CapsPct  *float64 `toml:"caps"`
	PunctPct *float64 `toml:"punct"`
	PunctSet *string  `toml:"punct-set"`
}

// ServerConfig maps settings for the serve command.
type ServerConfig struct {
	Addr        *string  `toml:"addr"`
	RateRPS     *float64 `toml:"rate-rps"`
	RateBurst   *int     `toml:"rate-burst"`
	MaxSessions *int     `toml:"max-sessions"`
}

// LeaderboardConfig maps leaderboard settings.
type LeaderboardConfig struct {
	Size *int `toml:"size"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
