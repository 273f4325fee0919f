// Package pipeline runs one sensor reading through the full
// validate -> correct -> classify -> derive -> append sequence.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/analysis"
	"github.com/kerotrack/kerotrack/internal/detect"
	"github.com/kerotrack/kerotrack/internal/metrics"
	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/tank"
)

// ErrInvalidReading marks readings rejected before any store access.
// Callers drop the reading and carry on.
var ErrInvalidReading = errors.New("invalid reading")

// Store is the slice of the history store the pipeline touches.
type Store interface {
	LatestPrior() (*models.PriorReading, error)
	AppendReading(models.Reading) error
	RecentAirGaps(since time.Time) ([]models.AirGapSample, error)
	ReadingCountSince(t time.Time) (int, error)
	PricePoints() ([]models.PricePoint, error)
}

// RecalcStore is the wider store surface the recalculation pass needs.
type RecalcStore interface {
	AllReadings() ([]models.Reading, error)
	UpdateDerived(models.Reading) error
	PricePoints() ([]models.PricePoint, error)
}

type Pipeline struct {
	store    Store
	tankCfg  tank.Config
	detCfg   detect.Config
	hddBase  float64
	currency string
	clock    clockwork.Clock
	logger   *slog.Logger

	// Serializes the fetch-prior/append pair so two readings never
	// classify against the same stale baseline.
	mu sync.Mutex
}

func New(store Store, tankCfg tank.Config, detCfg detect.Config, hddBaseTempC float64, currency string, clock clockwork.Clock, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		tankCfg:  tankCfg,
		detCfg:   detCfg,
		hddBase:  hddBaseTempC,
		currency: currency,
		clock:    clock,
		logger:   logger,
	}
}

// Process runs a single raw reading through the pipeline and appends the
// resulting record. Invalid readings return ErrInvalidReading and leave the
// store untouched; every other reading produces exactly one appended row.
func (p *Pipeline) Process(raw models.RawReading) (*models.Reading, error) {
	if err := validate(raw); err != nil {
		metrics.ReadingsDropped.WithLabelValues(raw.SensorID, "invalid").Inc()
		p.logger.Warn("dropping invalid reading",
			"sensor", raw.SensorID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prior, err := p.store.LatestPrior()
	if err != nil {
		return nil, fmt.Errorf("fetch prior reading: %w", err)
	}

	vol := tank.CorrectVolume(p.tankCfg, raw.AirGapCM, raw.TemperatureC)
	current := models.PriorReading{
		Date:            raw.Timestamp,
		LitresRemaining: vol.Litres,
		AirGapCM:        raw.AirGapCM,
	}
	det := detect.Classify(p.detCfg, p.logger, prior, current, raw.TemperatureC)

	p.checkSuddenDrop(raw)

	prices, err := p.store.PricePoints()
	if err != nil {
		// Cost fields degrade to their zero values; the reading still lands.
		p.logger.Warn("price table unavailable", "err", err)
		prices = nil
	}

	rec := analysis.DeriveRecord(analysis.RecordInputs{
		Raw:          raw,
		Volume:       vol,
		Detection:    det,
		Tank:         p.tankCfg,
		HDDBaseTempC: p.hddBase,
		Prices:       prices,
	})

	if err := p.store.AppendReading(rec); err != nil {
		return nil, fmt.Errorf("append reading: %w", err)
	}

	metrics.ReadingsProcessed.WithLabelValues(raw.SensorID, det.Verdict.String()).Inc()
	metrics.LitresRemaining.WithLabelValues(raw.SensorID).Set(rec.LitresRemaining)
	metrics.OilTemperature.WithLabelValues(raw.SensorID).Set(raw.TemperatureC)
	switch det.Verdict {
	case detect.Refill:
		metrics.RefillsDetected.WithLabelValues(raw.SensorID).Inc()
	case detect.Leak:
		metrics.LeaksDetected.WithLabelValues(raw.SensorID).Inc()
	}

	p.logger.Info("reading processed",
		"sensor", raw.SensorID,
		"litres", fmt.Sprintf("%.1f", rec.LitresRemaining),
		"percent", rec.PercentageRemaining,
		"verdict", det.Verdict.String(),
		"used", fmt.Sprintf("%.1f", det.LitresUsed),
		"cost_to_fill", p.currency+rec.CostToFill)

	return &rec, nil
}

func (p *Pipeline) checkSuddenDrop(raw models.RawReading) {
	now := p.clock.Now()
	window, err := p.store.RecentAirGaps(now.Add(-time.Hour))
	if err != nil {
		p.logger.Warn("air gap window unavailable", "err", err)
		return
	}
	count, err := p.store.ReadingCountSince(now.Add(-24 * time.Hour))
	if err != nil {
		p.logger.Warn("reading count unavailable", "err", err)
		return
	}
	if detect.SuddenDrop(p.logger, window, count, raw.AirGapCM) {
		p.logger.Warn("sudden oil level drop",
			"sensor", raw.SensorID, "air_gap_cm", raw.AirGapCM)
	}
}

// Recalc replays every stored reading through the geometry and derivation
// path and rewrites the computed columns in place. Identity fields (date,
// sensor, air gap, temperature, raw flags) are preserved; everything derived
// from them is recomputed with the current configuration.
func (p *Pipeline) Recalc(store RecalcStore) (int, error) {
	readings, err := store.AllReadings()
	if err != nil {
		return 0, fmt.Errorf("load readings: %w", err)
	}
	prices, err := store.PricePoints()
	if err != nil {
		p.logger.Warn("price table unavailable", "err", err)
		prices = nil
	}

	var prior *models.PriorReading
	updated := 0
	for _, old := range readings {
		raw := models.RawReading{
			SensorID:     old.SensorID,
			Timestamp:    old.Date,
			AirGapCM:     old.AirGapCM,
			TemperatureC: old.TemperatureC,
			Status:       old.RawFlags,
		}
		vol := tank.CorrectVolume(p.tankCfg, raw.AirGapCM, raw.TemperatureC)
		current := models.PriorReading{
			Date:            raw.Timestamp,
			LitresRemaining: vol.Litres,
			AirGapCM:        raw.AirGapCM,
		}
		det := detect.Classify(p.detCfg, p.logger, prior, current, raw.TemperatureC)

		rec := analysis.DeriveRecord(analysis.RecordInputs{
			Raw:          raw,
			Volume:       vol,
			Detection:    det,
			Tank:         p.tankCfg,
			HDDBaseTempC: p.hddBase,
			Prices:       prices,
		})
		if err := store.UpdateDerived(rec); err != nil {
			return updated, fmt.Errorf("update reading %s: %w", old.Date.Format(time.RFC3339), err)
		}
		updated++
		pr := current
		prior = &pr
	}

	p.logger.Info("recalculation complete", "readings", updated)
	return updated, nil
}

func validate(raw models.RawReading) error {
	if raw.SensorID == "" {
		return errors.New("missing sensor id")
	}
	if raw.Timestamp.IsZero() {
		return errors.New("missing timestamp")
	}
	if math.IsNaN(raw.AirGapCM) || math.IsInf(raw.AirGapCM, 0) {
		return errors.New("air gap not a finite number")
	}
	if math.IsNaN(raw.TemperatureC) || math.IsInf(raw.TemperatureC, 0) {
		return errors.New("temperature not a finite number")
	}
	return nil
}
