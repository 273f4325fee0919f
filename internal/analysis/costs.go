package analysis

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/models"
)

// CostStore is the subset of history queries the cost analyzer needs.
type CostStore interface {
	Deliveries() ([]models.Delivery, error)
	ReadingsBetween(start, end time.Time) ([]models.Reading, error)
	HDDRange(start, end time.Time) ([]models.HDDRecord, error)
}

// CostConfig holds the tunables for cost analysis.
type CostConfig struct {
	KWHPerLitre       float64
	DefaultEfficiency float64
}

// CostAnalyzer computes cost, weather and energy metrics for the spans
// between recorded deliveries. Invoiced delivery data is the source of
// truth: consumption over a period is the closing delivery's volume and
// its cost is the invoice total, so the numbers reflect what was actually
// paid rather than sensor-estimated usage.
type CostAnalyzer struct {
	store  CostStore
	cfg    CostConfig
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewCostAnalyzer(store CostStore, cfg CostConfig, clock clockwork.Clock, logger *slog.Logger) *CostAnalyzer {
	return &CostAnalyzer{store: store, cfg: cfg, clock: clock, logger: logger}
}

// Run analyzes every period between consecutive deliveries and the
// historical averages across them. It returns an error when fewer than
// two deliveries are recorded, since no complete period exists yet.
func (c *CostAnalyzer) Run() (*models.CostAnalysis, error) {
	deliveries, err := c.store.Deliveries()
	if err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}
	if len(deliveries) < 2 {
		return nil, fmt.Errorf("need at least two recorded deliveries, have %d", len(deliveries))
	}

	now := c.clock.Now()
	result := &models.CostAnalysis{AnalysisDate: now}
	for i := 0; i+1 < len(deliveries); i++ {
		result.Periods = append(result.Periods, c.period(deliveries[i], deliveries[i+1], now))
	}

	last := deliveries[len(deliveries)-1]
	result.DaysSinceDelivery = int(now.Sub(last.Date).Hours() / 24)

	c.aggregate(result, now)

	c.logger.Info("cost analysis complete",
		"periods", len(result.Periods),
		"avg_daily_cost", fmt.Sprintf("%.2f", result.AvgDailyCost),
		"avg_annual_cost", fmt.Sprintf("%.2f", result.AvgAnnualCost))
	return result, nil
}

// period builds the cost breakdown for the span between two consecutive
// deliveries. Missing HDD or efficiency history degrades the respective
// metrics, never fails the period.
func (c *CostAnalyzer) period(from, to models.Delivery, now time.Time) models.RefillPeriod {
	days := int(to.Date.Sub(from.Date).Hours() / 24)
	if days <= 0 {
		days = 1
	}

	p := models.RefillPeriod{
		Start:             from.Date,
		End:               to.Date,
		Days:              days,
		ConsumptionLitres: to.VolumeLitres,
		PencePerLitre:     to.PencePerLitre,
		TotalCost:         to.TotalCost,
	}
	p.DailyCost = p.TotalCost / float64(days)
	p.WeeklyCost = p.DailyCost * 7
	p.MonthlyCost = p.DailyCost * daysInYear(now) / 12

	hdd, err := c.store.HDDRange(from.Date, to.Date)
	if err != nil {
		c.logger.Warn("hdd lookup failed, skipping weather metrics",
			"period_start", from.Date, "err", err)
	} else {
		var total float64
		for _, rec := range hdd {
			total += rec.HDD
		}
		if total > 0 {
			p.TotalHDD = total
			p.CostPerHDD = p.TotalCost / total
			p.ConsumptionPerHDD = p.ConsumptionLitres / total
		}
	}

	p.Efficiency = c.periodEfficiency(from.Date, to.Date)
	p.TotalEnergyKWH = p.ConsumptionLitres * c.cfg.KWHPerLitre
	p.DeliveredEnergyKWH = p.TotalEnergyKWH * p.Efficiency
	if p.TotalEnergyKWH > 0 {
		p.CostPerKWH = p.TotalCost / p.TotalEnergyKWH
	}
	if p.DeliveredEnergyKWH > 0 {
		p.CostPerUsefulKWH = p.TotalCost / p.DeliveredEnergyKWH
	}
	p.DailyEnergyKWH = p.DeliveredEnergyKWH / float64(days)

	return p
}

// periodEfficiency averages the seasonal efficiency recorded on readings
// within the period, falling back to the configured default when the
// period predates the reading history.
func (c *CostAnalyzer) periodEfficiency(start, end time.Time) float64 {
	readings, err := c.store.ReadingsBetween(start, end)
	if err != nil {
		c.logger.Warn("readings lookup failed, using default efficiency", "err", err)
		return c.cfg.DefaultEfficiency
	}
	if len(readings) == 0 {
		return c.cfg.DefaultEfficiency
	}
	var sum float64
	for _, r := range readings {
		sum += r.SeasonalEfficiency
	}
	return sum / float64(len(readings))
}

// aggregate fills in the historical averages across all periods.
func (c *CostAnalyzer) aggregate(result *models.CostAnalysis, now time.Time) {
	n := float64(len(result.Periods))

	var costSum, consumptionSum, dailySum float64
	var hddCost, hddConsumption float64
	var hddCount int
	var kwhCost, kwhDaily float64
	var kwhCount int
	for _, p := range result.Periods {
		costSum += p.TotalCost
		consumptionSum += p.ConsumptionLitres
		dailySum += p.DailyCost
		if p.TotalHDD > 0 {
			hddCost += p.CostPerHDD
			hddConsumption += p.ConsumptionPerHDD
			hddCount++
		}
		if p.CostPerKWH > 0 {
			kwhCost += p.CostPerKWH
			kwhDaily += p.DailyEnergyKWH
			kwhCount++
		}
	}

	result.AvgPeriodCost = costSum / n
	result.AvgPeriodConsumption = consumptionSum / n
	result.AvgDailyCost = dailySum / n
	result.AvgWeeklyCost = result.AvgDailyCost * 7
	result.AvgMonthlyCost = result.AvgDailyCost * daysInYear(now) / 12
	result.AvgAnnualCost = result.AvgDailyCost * daysInYear(now)

	if hddCount > 0 {
		result.AvgCostPerHDD = hddCost / float64(hddCount)
		result.AvgConsumptionPerHDD = hddConsumption / float64(hddCount)
	}
	if kwhCount > 0 {
		result.AvgCostPerKWH = kwhCost / float64(kwhCount)
		result.AvgDailyEnergyKWH = kwhDaily / float64(kwhCount)
	}
}

func daysInYear(t time.Time) float64 {
	return float64(time.Date(t.Year(), 12, 31, 0, 0, 0, 0, time.UTC).YearDay())
}
