// Package detect classifies the transition between consecutive tank
// readings as a refill, a leak, or normal consumption, and screens out
// physically implausible consumption spikes.
package detect

import (
	"log/slog"
	"time"

	"github.com/kerotrack/kerotrack/internal/models"
)

// Verdict is the classification of a reading transition. A reading is
// never both a refill and a leak; the refill check runs first.
type Verdict int

const (
	None Verdict = iota
	Refill
	Leak
)

func (v Verdict) String() string {
	switch v {
	case Refill:
		return "refill"
	case Leak:
		return "leak"
	default:
		return "none"
	}
}

// Config holds the detection thresholds.
type Config struct {
	RefillThresholdLitres float64
	RefillAirGapDropCM    float64
	LeakThresholdLitres   float64
	LeakRatePerDay        float64
	MaxComparisonWindow   time.Duration
	MaxDailyUsageColdL    float64
	MaxDailyUsageWarmL    float64
	WarmTemperatureC      float64
}

// Result carries the verdict plus the usage figure derived from it.
type Result struct {
	Verdict    Verdict
	LitresUsed float64
	// UsageCapped is set when the raw usage implied a daily consumption
	// rate above the configured ceiling and was substituted.
	UsageCapped bool
}

// Classify compares the current corrected reading against the prior stored
// reading. A nil prior (first reading ever) yields a None verdict with
// zero usage.
func Classify(cfg Config, logger *slog.Logger, prior *models.PriorReading, current models.PriorReading, temperatureC float64) Result {
	if prior == nil {
		logger.Info("no baseline reading, skipping anomaly detection")
		return Result{Verdict: None, LitresUsed: 0}
	}

	volumeIncrease := current.LitresRemaining - prior.LitresRemaining
	airGapDrop := prior.AirGapCM - current.AirGapCM

	// Refill first: a delivery raises the level and shrinks the air gap
	// together. The air-gap condition rejects volume jumps that come from
	// temperature correction alone.
	if volumeIncrease >= cfg.RefillThresholdLitres && airGapDrop > cfg.RefillAirGapDropCM {
		logger.Info("refill detected",
			"litres_added", volumeIncrease,
			"air_gap_drop_cm", airGapDrop)
		return Result{Verdict: Refill, LitresUsed: 0}
	}

	elapsed := current.Date.Sub(prior.Date)
	loss := prior.LitresRemaining - current.LitresRemaining

	if verdict := classifyLeak(cfg, elapsed, loss); verdict == Leak {
		logger.Warn("leak detected",
			"litres_lost", loss,
			"elapsed_hours", elapsed.Hours())
		return Result{Verdict: Leak, LitresUsed: maxf(0, loss)}
	}

	usage := maxf(0, loss)
	capped := false
	if ceiling, ok := usageCeiling(cfg, temperatureC, elapsed); ok && usage > ceiling {
		logger.Warn("implausible consumption, capping usage",
			"litres", usage,
			"ceiling", ceiling,
			"elapsed_hours", elapsed.Hours())
		usage = ceiling
		capped = true
	}

	return Result{Verdict: None, LitresUsed: usage, UsageCapped: capped}
}

// classifyLeak applies the time-normalized leak rule. Comparisons across a
// gap longer than the configured window are stale and never count as a
// leak signal.
func classifyLeak(cfg Config, elapsed time.Duration, loss float64) Verdict {
	if elapsed <= 0 || elapsed > cfg.MaxComparisonWindow {
		return None
	}
	expectedMaxLoss := cfg.LeakRatePerDay * elapsed.Hours() / 24
	if loss > maxf(cfg.LeakThresholdLitres, expectedMaxLoss) {
		return Leak
	}
	return None
}

// usageCeiling returns the maximum plausible consumption for the elapsed
// interval, using the warm or cold daily ceiling depending on the current
// temperature.
func usageCeiling(cfg Config, temperatureC float64, elapsed time.Duration) (float64, bool) {
	if elapsed <= 0 {
		return 0, false
	}
	daily := cfg.MaxDailyUsageColdL
	if temperatureC > cfg.WarmTemperatureC {
		daily = cfg.MaxDailyUsageWarmL
	}
	if daily <= 0 {
		return 0, false
	}
	return daily * elapsed.Hours() / 24, true
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
