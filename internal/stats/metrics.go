// Package stats contains metric calculations and result reporting.
package stats

import (
	"math"
	"strings"
)

// CharsPerWord is the standard word length used for WPM.
const CharsPerWord = 5

const sparkChars = " .:-=+*#%@"

// ComputeWPM returns standard-word WPM for correctly typed characters over
// elapsedMs. Non-positive elapsed time yields 0.
func ComputeWPM(correct int, elapsedMs int64) int {
	if elapsedMs <= 0 {
		return 0
	}
	minutes := float64(elapsedMs) / 60000.0
	return int(math.Round((float64(correct) / CharsPerWord) / minutes))
}

// ComputeAccuracy returns the percentage of correct characters out of all
// typed characters, clamped to [0, 100]. No input counts as 100.
func ComputeAccuracy(correct, total int) int {
	if total == 0 {
		return 100
	}
	acc := int(math.Round(float64(correct) / float64(total) * 100))
	if acc < 0 {
		return 0
	}
	if acc > 100 {
		return 100
	}
	return acc
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}
