package store

import (
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS readings (
    date DATETIME NOT NULL,
    sensor_id TEXT,
    temperature REAL,
    litres_remaining REAL,
    litres_used_since_last REAL,
    percentage_remaining REAL,
    oil_depth_cm REAL,
    air_gap_cm REAL,
    current_ppl REAL,
    cost_used TEXT,
    cost_to_fill TEXT,
    heating_degree_days REAL,
    seasonal_efficiency REAL,
    refill_detected TEXT DEFAULT 'n',
    leak_detected TEXT DEFAULT 'n',
    raw_flags INTEGER,
    litres_to_order REAL,
    bars_remaining INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(date)
);

CREATE INDEX IF NOT EXISTS idx_readings_date ON readings(date);

CREATE TABLE IF NOT EXISTS hdd_data (
    date DATE PRIMARY KEY,
    hdd REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS oil_prices (
    volume_litres REAL PRIMARY KEY,
    pence_per_litre REAL NOT NULL,
    recorded_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_results (
    analysis_date DATETIME PRIMARY KEY,
    latest_reading_date DATETIME,
    days_since_refill INTEGER,
    consumption_since_refill REAL,
    avg_daily_consumption REAL,
    smoothed_daily_consumption REAL,
    estimated_days_remaining REAL,
    estimated_empty_date DATETIME,
    consumption_per_hdd REAL,
    upcoming_month_hdd REAL,
    estimated_daily_consumption_hdd REAL,
    estimated_days_remaining_hdd REAL,
    estimated_empty_date_hdd DATETIME,
    seasonal_heating_factor REAL,
    co2_kg REAL
);

CREATE INDEX IF NOT EXISTS idx_analysis_date ON analysis_results(analysis_date);
`,
	},
	{
		Version:     2,
		Description: "Delivery records and cost analysis",
		SQL: `
CREATE TABLE IF NOT EXISTS deliveries (
    delivery_date DATETIME PRIMARY KEY,
    volume_litres REAL NOT NULL,
    pence_per_litre REAL NOT NULL,
    total_cost REAL NOT NULL,
    reference TEXT,
    notes TEXT,
    entered_at DATETIME
);

CREATE TABLE IF NOT EXISTS cost_analysis (
    analysis_date DATETIME PRIMARY KEY,
    latest_period_start DATETIME,
    latest_period_end DATETIME,
    latest_period_days INTEGER,
    latest_delivery_litres REAL,
    latest_delivery_ppl REAL,
    latest_delivery_cost REAL,
    latest_daily_cost REAL,
    latest_weekly_cost REAL,
    latest_monthly_cost REAL,
    days_since_delivery INTEGER,
    avg_period_cost REAL,
    avg_period_consumption REAL,
    avg_daily_cost REAL,
    avg_weekly_cost REAL,
    avg_monthly_cost REAL,
    avg_annual_cost REAL,
    avg_cost_per_hdd REAL,
    avg_consumption_per_hdd REAL,
    avg_cost_per_kwh REAL,
    avg_daily_energy_kwh REAL,
    total_periods INTEGER
);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		s.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
