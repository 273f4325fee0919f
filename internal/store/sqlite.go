// Package store persists tank readings, heating-degree-day data, the oil
// price table and analysis results in sqlite.
package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/kerotrack/kerotrack/internal/models"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const readingColumns = `date, sensor_id, temperature, litres_remaining, litres_used_since_last,
	percentage_remaining, oil_depth_cm, air_gap_cm, current_ppl, cost_used, cost_to_fill,
	heating_degree_days, seasonal_efficiency, refill_detected, leak_detected, raw_flags,
	litres_to_order, bars_remaining`

// AppendReading stores one canonical reading. A duplicate timestamp is a
// re-delivery of the same sensor transmission and is silently ignored.
func (s *Store) AppendReading(r models.Reading) error {
	_, err := s.db.Exec(`
		INSERT INTO readings (`+readingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO NOTHING
	`, r.Date, r.SensorID, r.TemperatureC, r.LitresRemaining, r.LitresUsedSinceLast,
		r.PercentageRemaining, r.OilDepthCM, r.AirGapCM, r.CurrentPPL, r.CostUsed, r.CostToFill,
		r.HeatingDegreeDays, r.SeasonalEfficiency, yn(r.RefillDetected), yn(r.LeakDetected), r.RawFlags,
		r.LitresToOrder, r.BarsRemaining)
	return err
}

// LatestPrior returns the snapshot of the most recent reading that the
// classifier compares against, or nil when the store is empty.
func (s *Store) LatestPrior() (*models.PriorReading, error) {
	row := s.db.QueryRow(`
		SELECT date, litres_remaining, air_gap_cm
		FROM readings
		ORDER BY date DESC
		LIMIT 1
	`)

	var p models.PriorReading
	err := row.Scan(&p.Date, &p.LitresRemaining, &p.AirGapCM)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) LatestReading() (*models.Reading, error) {
	row := s.db.QueryRow(`SELECT ` + readingColumns + ` FROM readings ORDER BY date DESC LIMIT 1`)
	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LastRefill returns the most recent reading flagged as a refill, or nil
// when no delivery has ever been recorded.
func (s *Store) LastRefill() (*models.Reading, error) {
	row := s.db.QueryRow(`
		SELECT ` + readingColumns + `
		FROM readings
		WHERE refill_detected = 'y'
		ORDER BY date DESC
		LIMIT 1
	`)
	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ReadingsSince(t time.Time) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT `+readingColumns+`
		FROM readings
		WHERE date >= ?
		ORDER BY date ASC
	`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

func (s *Store) AllReadings() ([]models.Reading, error) {
	rows, err := s.db.Query(`SELECT ` + readingColumns + ` FROM readings ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

// UpdateDerived rewrites the computed columns of an existing reading in
// place, keyed by timestamp. Used by recalculation after a config or
// formula change; the raw sensor columns are left untouched.
func (s *Store) UpdateDerived(r models.Reading) error {
	_, err := s.db.Exec(`
		UPDATE readings SET
			litres_remaining = ?,
			litres_used_since_last = ?,
			percentage_remaining = ?,
			oil_depth_cm = ?,
			current_ppl = ?,
			cost_used = ?,
			cost_to_fill = ?,
			heating_degree_days = ?,
			seasonal_efficiency = ?,
			refill_detected = ?,
			leak_detected = ?,
			litres_to_order = ?,
			bars_remaining = ?
		WHERE date = ?
	`, r.LitresRemaining, r.LitresUsedSinceLast, r.PercentageRemaining, r.OilDepthCM,
		r.CurrentPPL, r.CostUsed, r.CostToFill, r.HeatingDegreeDays, r.SeasonalEfficiency,
		yn(r.RefillDetected), yn(r.LeakDetected), r.LitresToOrder, r.BarsRemaining, r.Date)
	return err
}

// RecentAirGaps returns air-gap samples since the given time, oldest
// first, for the sudden-drop detector.
func (s *Store) RecentAirGaps(since time.Time) ([]models.AirGapSample, error) {
	rows, err := s.db.Query(`
		SELECT date, air_gap_cm
		FROM readings
		WHERE date >= ?
		ORDER BY date ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.AirGapSample
	for rows.Next() {
		var sample models.AirGapSample
		if err := rows.Scan(&sample.Date, &sample.AirGapCM); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *Store) ReadingCountSince(t time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM readings WHERE date >= ?`, t).Scan(&count)
	return count, err
}

// PricePoints returns the price table ordered by volume tier ascending.
func (s *Store) PricePoints() ([]models.PricePoint, error) {
	rows, err := s.db.Query(`
		SELECT volume_litres, pence_per_litre, recorded_at
		FROM oil_prices
		ORDER BY volume_litres ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.VolumeLitres, &p.PencePerLitre, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) UpsertPricePoint(p models.PricePoint) error {
	_, err := s.db.Exec(`
		INSERT INTO oil_prices (volume_litres, pence_per_litre, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(volume_litres) DO UPDATE SET
			pence_per_litre = excluded.pence_per_litre,
			recorded_at = excluded.recorded_at
	`, p.VolumeLitres, p.PencePerLitre, p.RecordedAt)
	return err
}

func (s *Store) UpsertHDD(rec models.HDDRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO hdd_data (date, hdd)
		VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET hdd = excluded.hdd
	`, rec.Date, rec.HDD)
	return err
}

func (s *Store) HDDRange(start, end time.Time) ([]models.HDDRecord, error) {
	rows, err := s.db.Query(`
		SELECT date, hdd
		FROM hdd_data
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.HDDRecord
	for rows.Next() {
		var rec models.HDDRecord
		if err := rows.Scan(&rec.Date, &rec.HDD); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) InsertAnalysisResult(a models.AnalysisResult) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO analysis_results (
			analysis_date, latest_reading_date, days_since_refill,
			consumption_since_refill, avg_daily_consumption, smoothed_daily_consumption,
			estimated_days_remaining, estimated_empty_date,
			consumption_per_hdd, upcoming_month_hdd, estimated_daily_consumption_hdd,
			estimated_days_remaining_hdd, estimated_empty_date_hdd,
			seasonal_heating_factor, co2_kg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.AnalysisDate, a.LatestReadingDate, a.DaysSinceRefill,
		a.ConsumptionSinceRefill, a.AvgDailyConsumption, a.SmoothedDailyConsumption,
		a.EstimatedDaysRemaining, a.EstimatedEmptyDate,
		a.ConsumptionPerHDD, a.UpcomingMonthHDD, a.EstimatedDailyConsumptionHDD,
		a.EstimatedDaysRemainingHDD, a.EstimatedEmptyDateHDD,
		a.SeasonalHeatingFactor, a.CO2KG)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var r models.Reading
	var refill, leak string
	err := row.Scan(&r.Date, &r.SensorID, &r.TemperatureC, &r.LitresRemaining, &r.LitresUsedSinceLast,
		&r.PercentageRemaining, &r.OilDepthCM, &r.AirGapCM, &r.CurrentPPL, &r.CostUsed, &r.CostToFill,
		&r.HeatingDegreeDays, &r.SeasonalEfficiency, &refill, &leak, &r.RawFlags,
		&r.LitresToOrder, &r.BarsRemaining)
	if err != nil {
		return nil, err
	}
	r.RefillDetected = refill == "y"
	r.LeakDetected = leak == "y"
	return &r, nil
}

func collectReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

func yn(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
