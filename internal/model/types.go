// Package model defines shared data structures.
package model

import "time"

// Finish reasons recorded on a Result.
const (
	ReasonCompleted = "completed"
	ReasonTimeout   = "timeout"
)

// Config defines practice settings.
type Config struct {
	Name        string
	DurationSec int
	Source      string
	TextFile    string
	LibraryPath string
	PassageName string
	Lang        string
	Words       int
	CapsPct     float64
	PunctPct    float64
	PunctSet    string
	BoardSize   int
}

// ServeConfig defines settings for the HTTP server.
type ServeConfig struct {
	Addr        string
	RateRPS     float64
	RateBurst   int
	MaxSessions int
	BoardSize   int
	LibraryPath string
}

// Result is the terminal record of a finished session.
type Result struct {
	ID              int64     `json:"id,omitempty"`
	Name            string    `json:"name"`
	WPM             int       `json:"wpm"`
	Accuracy        int       `json:"accuracy"`
	Errors          int       `json:"errors"`
	DurationSec     int       `json:"durationSec"`
	CorrectChars    int       `json:"correctChars"`
	TotalKeystrokes int       `json:"totalKeystrokes"`
	PassageLength   int       `json:"passageLength"`
	Reason          string    `json:"reason,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	Name  string
	Since *time.Time
	Last  int
}
