package detect

import (
	"log/slog"

	"github.com/kerotrack/kerotrack/internal/models"
)

// Watchman Sonic Advanced sudden-drop parameters. The sensor cannot range
// reliably within 25cm of its face, and the detector needs roughly a day
// of half-hourly readings before rate-of-change is meaningful.
const (
	minSensorClearanceCM  = 25
	suddenDropRateCMHour  = 1.5
	learningPeriodSamples = 48
)

// SuddenDrop reports whether the air gap grew faster than the sudden-drop
// rate over the supplied window of recent samples (oldest first).
// historyCount is the number of readings stored in the last 24 hours; while
// it is below the learning threshold the detector stays quiet.
func SuddenDrop(logger *slog.Logger, window []models.AirGapSample, historyCount int, currentAirGapCM float64) bool {
	if currentAirGapCM < minSensorClearanceCM {
		logger.Info("oil level too close to sensor for sudden drop detection")
		return false
	}
	if historyCount < learningPeriodSamples {
		logger.Info("still in learning period for sudden drop detection",
			"readings_24h", historyCount)
		return false
	}
	if len(window) < 2 {
		return false
	}

	first := window[0]
	last := window[len(window)-1]
	hours := last.Date.Sub(first.Date).Hours()
	if hours <= 0 {
		return false
	}

	rate := (last.AirGapCM - first.AirGapCM) / hours
	if rate >= suddenDropRateCMHour {
		logger.Warn("sudden drop detected", "rate_cm_per_hour", rate)
		return true
	}
	return false
}
