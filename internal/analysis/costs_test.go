package analysis

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/models"
)

type costFakeStore struct {
	deliveries []models.Delivery
	readings   []models.Reading
	hdd        []models.HDDRecord
}

func (f *costFakeStore) Deliveries() ([]models.Delivery, error) { return f.deliveries, nil }
func (f *costFakeStore) ReadingsBetween(_, _ time.Time) ([]models.Reading, error) {
	return f.readings, nil
}
func (f *costFakeStore) HDDRange(_, _ time.Time) ([]models.HDDRecord, error) {
	return f.hdd, nil
}

func costConfig() CostConfig {
	return CostConfig{KWHPerLitre: 10.35, DefaultEfficiency: 0.85}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestCostAnalyzerRun(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

	var hdd []models.HDDRecord
	for i := 0; i < 30; i++ {
		hdd = append(hdd, models.HDDRecord{Date: first.AddDate(0, 0, i), HDD: 11})
	}
	var readings []models.Reading
	for i := 0; i < 5; i++ {
		readings = append(readings, models.Reading{
			Date:               first.AddDate(0, 0, i*6),
			LitresRemaining:    1100 - float64(i)*100,
			SeasonalEfficiency: 0.95,
		})
	}

	store := &costFakeStore{
		deliveries: []models.Delivery{
			{Date: first, VolumeLitres: 500, PencePerLitre: 60, TotalCost: 300},
			{Date: second, VolumeLitres: 600, PencePerLitre: 55, TotalCost: 330},
		},
		readings: readings,
		hdd:      hdd,
	}

	got, err := NewCostAnalyzer(store, costConfig(), clock, logger).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got.Periods) != 1 {
		t.Fatalf("len(Periods) = %d, want 1", len(got.Periods))
	}
	p := got.Latest()
	if p.Days != 30 {
		t.Errorf("Days = %d, want 30", p.Days)
	}
	if p.ConsumptionLitres != 600 {
		t.Errorf("ConsumptionLitres = %v, want closing delivery volume 600", p.ConsumptionLitres)
	}
	if p.TotalCost != 330 {
		t.Errorf("TotalCost = %v, want 330", p.TotalCost)
	}
	if !closeTo(p.DailyCost, 11) {
		t.Errorf("DailyCost = %v, want 11", p.DailyCost)
	}
	if !closeTo(p.WeeklyCost, 77) {
		t.Errorf("WeeklyCost = %v, want 77", p.WeeklyCost)
	}
	if !closeTo(p.MonthlyCost, 11*365.0/12) {
		t.Errorf("MonthlyCost = %v, want %v", p.MonthlyCost, 11*365.0/12)
	}

	if p.TotalHDD != 330 {
		t.Errorf("TotalHDD = %v, want 330", p.TotalHDD)
	}
	if !closeTo(p.CostPerHDD, 1) {
		t.Errorf("CostPerHDD = %v, want 1", p.CostPerHDD)
	}
	if !closeTo(p.ConsumptionPerHDD, 600.0/330) {
		t.Errorf("ConsumptionPerHDD = %v, want %v", p.ConsumptionPerHDD, 600.0/330)
	}

	if !closeTo(p.Efficiency, 0.95) {
		t.Errorf("Efficiency = %v, want 0.95", p.Efficiency)
	}
	if !closeTo(p.TotalEnergyKWH, 600*10.35) {
		t.Errorf("TotalEnergyKWH = %v, want %v", p.TotalEnergyKWH, 600*10.35)
	}
	if !closeTo(p.DeliveredEnergyKWH, 600*10.35*0.95) {
		t.Errorf("DeliveredEnergyKWH = %v, want %v", p.DeliveredEnergyKWH, 600*10.35*0.95)
	}
	if !closeTo(p.CostPerKWH, 330/(600*10.35)) {
		t.Errorf("CostPerKWH = %v, want %v", p.CostPerKWH, 330/(600*10.35))
	}
	if !closeTo(p.CostPerUsefulKWH, 330/(600*10.35*0.95)) {
		t.Errorf("CostPerUsefulKWH = %v, want %v", p.CostPerUsefulKWH, 330/(600*10.35*0.95))
	}
	if !closeTo(p.DailyEnergyKWH, 600*10.35*0.95/30) {
		t.Errorf("DailyEnergyKWH = %v, want %v", p.DailyEnergyKWH, 600*10.35*0.95/30)
	}

	if got.DaysSinceDelivery != 10 {
		t.Errorf("DaysSinceDelivery = %d, want 10", got.DaysSinceDelivery)
	}

	// Single period: averages mirror it.
	if !closeTo(got.AvgPeriodCost, 330) {
		t.Errorf("AvgPeriodCost = %v, want 330", got.AvgPeriodCost)
	}
	if !closeTo(got.AvgDailyCost, 11) {
		t.Errorf("AvgDailyCost = %v, want 11", got.AvgDailyCost)
	}
	if !closeTo(got.AvgAnnualCost, 11*365) {
		t.Errorf("AvgAnnualCost = %v, want %v", got.AvgAnnualCost, 11*365)
	}
	if !closeTo(got.AvgCostPerHDD, 1) {
		t.Errorf("AvgCostPerHDD = %v, want 1", got.AvgCostPerHDD)
	}
	if !closeTo(got.AvgCostPerKWH, 330/(600*10.35)) {
		t.Errorf("AvgCostPerKWH = %v, want %v", got.AvgCostPerKWH, 330/(600*10.35))
	}
}

func TestCostAnalyzerNeedsTwoDeliveries(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := &costFakeStore{deliveries: []models.Delivery{
		{Date: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), VolumeLitres: 500, PencePerLitre: 60, TotalCost: 300},
	}}
	if _, err := NewCostAnalyzer(store, costConfig(), clock, logger).Run(); err == nil {
		t.Fatal("Run with one delivery: want error")
	}
}

func TestCostAnalyzerDefaultEfficiency(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// No reading history for the period: the configured boiler
	// efficiency stands in for the measured seasonal efficiency.
	store := &costFakeStore{deliveries: []models.Delivery{
		{Date: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC), VolumeLitres: 500, PencePerLitre: 60, TotalCost: 300},
		{Date: time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC), VolumeLitres: 500, PencePerLitre: 62, TotalCost: 310},
	}}

	got, err := NewCostAnalyzer(store, costConfig(), clock, logger).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p := got.Latest()
	if !closeTo(p.Efficiency, 0.85) {
		t.Errorf("Efficiency = %v, want default 0.85", p.Efficiency)
	}
	if !closeTo(p.DeliveredEnergyKWH, 500*10.35*0.85) {
		t.Errorf("DeliveredEnergyKWH = %v, want %v", p.DeliveredEnergyKWH, 500*10.35*0.85)
	}
	if p.TotalHDD != 0 || p.CostPerHDD != 0 {
		t.Errorf("weather metrics = %v/%v, want zero without hdd data", p.TotalHDD, p.CostPerHDD)
	}
}

func TestCostAnalyzerSameDayDeliveries(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	at := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	store := &costFakeStore{deliveries: []models.Delivery{
		{Date: at, VolumeLitres: 500, PencePerLitre: 60, TotalCost: 300},
		{Date: at.Add(2 * time.Hour), VolumeLitres: 200, PencePerLitre: 60, TotalCost: 120},
	}}

	got, err := NewCostAnalyzer(store, costConfig(), clock, logger).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A split delivery lands on one day; the period is clamped to a
	// single day rather than dividing by zero.
	if got.Latest().Days != 1 {
		t.Errorf("Days = %d, want 1", got.Latest().Days)
	}
	if !closeTo(got.Latest().DailyCost, 120) {
		t.Errorf("DailyCost = %v, want 120", got.Latest().DailyCost)
	}
}
