package analysis

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/tank"
)

// minConsumptionRate floors the smoothed rate so projections never divide
// by a vanishing denominator.
const minConsumptionRate = 0.01

// monthlyHeatingHours is observed boiler runtime per month, used to weight
// HDD-based projections by season.
var monthlyHeatingHours = [13]float64{0, 78, 43, 43, 21, 3, 0, 0, 0, 0, 5, 29, 37}

// Store is the subset of history queries the analyzer needs.
type Store interface {
	LatestReading() (*models.Reading, error)
	LastRefill() (*models.Reading, error)
	ReadingsSince(t time.Time) ([]models.Reading, error)
	HDDRange(start, end time.Time) ([]models.HDDRecord, error)
}

// Config holds the tunables for consumption analysis.
type Config struct {
	EMAAlpha              float64
	RefillThresholdLitres float64
	SmoothingWindowDays   int
	HDDBaseTempC          float64
	CO2PerLitreKG         float64
	HotWaterDailyLitres   float64
}

// Analyzer computes consumption rates and days-until-empty projections
// from stored reading history.
type Analyzer struct {
	store  Store
	tank   tank.Config
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewAnalyzer(store Store, tankCfg tank.Config, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Analyzer {
	return &Analyzer{store: store, tank: tankCfg, cfg: cfg, clock: clock, logger: logger}
}

// Run produces one analysis result from the stored history. It returns an
// error when there is no reading history or no refill baseline to measure
// consumption from.
func (a *Analyzer) Run() (*models.AnalysisResult, error) {
	latest, err := a.store.LatestReading()
	if err != nil {
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("no readings stored")
	}

	refill, err := a.store.LastRefill()
	if err != nil {
		return nil, fmt.Errorf("last refill: %w", err)
	}
	if refill == nil {
		return nil, fmt.Errorf("no refill recorded, cannot establish consumption baseline")
	}

	now := a.clock.Now()
	daysSinceRefill := int(now.Sub(refill.Date).Hours() / 24)
	consumption := refill.LitresRemaining - latest.LitresRemaining
	if consumption < 0 {
		consumption = 0
	}

	result := &models.AnalysisResult{
		AnalysisDate:           now,
		LatestReadingDate:      latest.Date,
		DaysSinceRefill:        daysSinceRefill,
		ConsumptionSinceRefill: consumption,
		CO2KG:                  consumption * a.cfg.CO2PerLitreKG,
	}

	if daysSinceRefill > 0 && consumption > 0 {
		result.AvgDailyConsumption = consumption / float64(daysSinceRefill)
	}

	window, err := a.store.ReadingsSince(now.AddDate(0, 0, -(a.cfg.SmoothingWindowDays + 1)))
	if err != nil {
		return nil, fmt.Errorf("readings window: %w", err)
	}

	smoothed, ok := SmoothedDailyUsage(window, a.cfg.RefillThresholdLitres)
	if !ok {
		// Fall back to the EMA over temperature-compensated volumes.
		smoothed = a.emaRate(window)
	}
	result.SmoothedDailyConsumption = smoothed

	if smoothed > 0 {
		days := latest.LitresRemaining / smoothed
		result.EstimatedDaysRemaining = sql.NullFloat64{Float64: days, Valid: true}
		result.EstimatedEmptyDate = sql.NullTime{Time: now.Add(time.Duration(days * 24 * float64(time.Hour))), Valid: true}
	} else {
		a.logger.Warn("no usable consumption rate, projection unavailable")
	}

	a.projectFromHDD(result, latest, refill, consumption, now)

	return result, nil
}

// projectFromHDD fills in the heating-degree-day based projection fields.
// Missing HDD data degrades to zeroed projection fields, never an error.
func (a *Analyzer) projectFromHDD(result *models.AnalysisResult, latest, refill *models.Reading, consumption float64, now time.Time) {
	hdd, err := a.store.HDDRange(refill.Date, now)
	if err != nil {
		a.logger.Warn("hdd lookup failed, skipping hdd projection", "error", err)
		return
	}

	var totalHDD float64
	for _, rec := range hdd {
		totalHDD += rec.HDD
	}
	if totalHDD <= 0 {
		return
	}

	perHDD := consumption / totalHDD
	result.ConsumptionPerHDD = perHDD

	nextMonth := now.AddDate(0, 1, 0)
	upcoming := a.upcomingMonthHDD(hdd, nextMonth)
	result.UpcomingMonthHDD = upcoming

	factor := seasonalHeatingFactor(nextMonth.Month())
	result.SeasonalHeatingFactor = factor

	daysInMonth := float64(daysIn(nextMonth))
	heating := perHDD * upcoming * factor / daysInMonth
	daily := heating + a.cfg.HotWaterDailyLitres
	result.EstimatedDailyConsumptionHDD = daily

	if daily > minConsumptionRate {
		days := latest.LitresRemaining / daily
		result.EstimatedDaysRemainingHDD = sql.NullFloat64{Float64: days, Valid: true}
		result.EstimatedEmptyDateHDD = sql.NullTime{Time: now.Add(time.Duration(days * 24 * float64(time.Hour))), Valid: true}
	}
}

// upcomingMonthHDD sums recorded HDD entries that fall in the projection
// month; zero when there is no data for it yet.
func (a *Analyzer) upcomingMonthHDD(records []models.HDDRecord, month time.Time) float64 {
	var total float64
	for _, rec := range records {
		if rec.Date.Year() == month.Year() && rec.Date.Month() == month.Month() {
			total += rec.HDD
		}
	}
	return total
}

// emaRate computes an exponential moving average of daily consumption over
// temperature-compensated volumes. A volume jump above the refill
// threshold resets the average so pre-refill rates do not leak into the
// projection.
func (a *Analyzer) emaRate(readings []models.Reading) float64 {
	if len(readings) < 2 {
		return 0
	}

	var rates []float64
	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		days := curr.Date.Sub(prev.Date).Hours() / 24
		if days <= 0 {
			continue
		}
		diff := tank.TemperatureCompensated(a.tank, prev.LitresRemaining, prev.TemperatureC) -
			tank.TemperatureCompensated(a.tank, curr.LitresRemaining, curr.TemperatureC)
		if diff < -a.cfg.RefillThresholdLitres {
			rates = rates[:0]
			continue
		}
		if diff > 0 {
			rates = append(rates, diff/days)
		}
	}

	if len(rates) == 0 {
		return 0
	}
	ema := rates[0]
	for _, r := range rates[1:] {
		ema = a.cfg.EMAAlpha*r + (1-a.cfg.EMAAlpha)*ema
	}
	if ema < minConsumptionRate {
		return minConsumptionRate
	}
	return ema
}

// SmoothedDailyUsage averages the per-interval usage recorded across the
// window, skipping refill jumps and negative intervals. Returns false when
// the window has no usable intervals.
func SmoothedDailyUsage(readings []models.Reading, refillThreshold float64) (float64, bool) {
	if len(readings) < 2 {
		return 0, false
	}

	var total, days float64
	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		used := prev.LitresRemaining - curr.LitresRemaining
		interval := curr.Date.Sub(prev.Date).Hours() / 24
		if interval <= 0 {
			continue
		}
		if used < -refillThreshold {
			// refill interval
			continue
		}
		if used < 0 {
			continue
		}
		total += used
		days += interval
	}
	if days == 0 {
		return 0, false
	}
	return total / days, true
}

func seasonalHeatingFactor(month time.Month) float64 {
	max := monthlyHeatingHours[1]
	for _, h := range monthlyHeatingHours[1:] {
		if h > max {
			max = h
		}
	}
	if max == 0 {
		return 0
	}
	return monthlyHeatingHours[month] / max
}

func daysIn(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, 1, -1).Day()
}
