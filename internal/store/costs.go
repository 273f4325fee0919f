package store

import (
	"time"

	"github.com/kerotrack/kerotrack/internal/models"
)

// UpsertDelivery records an invoiced delivery, replacing any existing
// record for the same date.
func (s *Store) UpsertDelivery(d models.Delivery) error {
	_, err := s.db.Exec(`
		INSERT INTO deliveries (delivery_date, volume_litres, pence_per_litre, total_cost, reference, notes, entered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(delivery_date) DO UPDATE SET
			volume_litres = excluded.volume_litres,
			pence_per_litre = excluded.pence_per_litre,
			total_cost = excluded.total_cost,
			reference = excluded.reference,
			notes = excluded.notes,
			entered_at = excluded.entered_at
	`, d.Date, d.VolumeLitres, d.PencePerLitre, d.TotalCost, d.Reference, d.Notes, d.EnteredAt)
	return err
}

// Deliveries returns all recorded deliveries ordered by date ascending.
func (s *Store) Deliveries() ([]models.Delivery, error) {
	rows, err := s.db.Query(`
		SELECT delivery_date, volume_litres, pence_per_litre, total_cost, reference, notes, entered_at
		FROM deliveries
		ORDER BY delivery_date ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.Date, &d.VolumeLitres, &d.PencePerLitre, &d.TotalCost, &d.Reference, &d.Notes, &d.EnteredAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// ReadingsBetween returns readings within the inclusive date range,
// oldest first.
func (s *Store) ReadingsBetween(start, end time.Time) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT `+readingColumns+`
		FROM readings
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

// InsertCostAnalysis persists one cost analysis run: the latest complete
// delivery period flattened alongside the historical averages.
func (s *Store) InsertCostAnalysis(c models.CostAnalysis) error {
	latest := c.Latest()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO cost_analysis (
			analysis_date,
			latest_period_start, latest_period_end, latest_period_days,
			latest_delivery_litres, latest_delivery_ppl, latest_delivery_cost,
			latest_daily_cost, latest_weekly_cost, latest_monthly_cost,
			days_since_delivery,
			avg_period_cost, avg_period_consumption,
			avg_daily_cost, avg_weekly_cost, avg_monthly_cost, avg_annual_cost,
			avg_cost_per_hdd, avg_consumption_per_hdd,
			avg_cost_per_kwh, avg_daily_energy_kwh,
			total_periods
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.AnalysisDate,
		latest.Start, latest.End, latest.Days,
		latest.ConsumptionLitres, latest.PencePerLitre, latest.TotalCost,
		latest.DailyCost, latest.WeeklyCost, latest.MonthlyCost,
		c.DaysSinceDelivery,
		c.AvgPeriodCost, c.AvgPeriodConsumption,
		c.AvgDailyCost, c.AvgWeeklyCost, c.AvgMonthlyCost, c.AvgAnnualCost,
		c.AvgCostPerHDD, c.AvgConsumptionPerHDD,
		c.AvgCostPerKWH, c.AvgDailyEnergyKWH,
		len(c.Periods))
	return err
}
