package analysis

import (
	"database/sql"
	"testing"
	"time"

	"github.com/kerotrack/kerotrack/internal/detect"
	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/tank"
)

func TestBars(t *testing.T) {
	tests := []struct {
		percentage float64
		want       int
	}{
		{0, 0},
		{4.9, 0},
		{5, 1},
		{14.9, 1},
		{15, 2},
		{50, 5},
		{55, 6},
		{94.9, 9},
		{95, 10},
		{100, 10},
	}
	for _, tt := range tests {
		if got := Bars(tt.percentage); got != tt.want {
			t.Errorf("Bars(%v) = %d, want %d", tt.percentage, got, tt.want)
		}
	}
}

func TestHeatingDegreeDays(t *testing.T) {
	tests := []struct {
		base, avg, want float64
	}{
		{15.5, 5, 10.5},
		{15.5, 15.5, 0},
		{15.5, 22, 0},
	}
	for _, tt := range tests {
		if got := HeatingDegreeDays(tt.base, tt.avg); got != tt.want {
			t.Errorf("HeatingDegreeDays(%v, %v) = %v, want %v", tt.base, tt.avg, got, tt.want)
		}
	}
}

func TestSeasonalEfficiency(t *testing.T) {
	tests := []struct {
		month time.Month
		want  float64
	}{
		{time.January, 0.95},
		{time.December, 0.95},
		{time.March, 0.97},
		{time.October, 0.97},
		{time.July, 0.99},
	}
	for _, tt := range tests {
		if got := SeasonalEfficiency(tt.month); got != tt.want {
			t.Errorf("SeasonalEfficiency(%v) = %v, want %v", tt.month, got, tt.want)
		}
	}
}

func TestPricePerLitre(t *testing.T) {
	points := []models.PricePoint{
		{VolumeLitres: 500, PencePerLitre: 60},
		{VolumeLitres: 900, PencePerLitre: 56},
	}

	tests := []struct {
		name   string
		points []models.PricePoint
		litres float64
		want   float64
		wantOK bool
	}{
		{"below table extrapolates flat", points, 300, 60, true},
		{"lower boundary", points, 500, 60, true},
		{"interpolated midpoint", points, 700, 58, true},
		{"upper boundary", points, 900, 56, true},
		{"above table extrapolates flat", points, 1100, 56, true},
		{"empty table", nil, 700, 0, false},
		{"single tier", points[:1], 9999, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PricePerLitre(tt.points, tt.litres)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("PricePerLitre = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "0.00"},
		{5.9, "5.90"},
		{12.346, "12.35"},
		{12.344, "12.34"},
		{100, "100.00"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.amount); got != tt.want {
			t.Errorf("FormatCost(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func deriveTank() tank.Config {
	return tank.Config{
		CapacityLitres:       1200,
		LengthCM:             160,
		WidthCM:              72,
		HeightCM:             120,
		ReferenceTempC:       15,
		ExpansionCoefficient: 0.0008,
		DensityAtRefKgM3:     845,
	}
}

func TestDeriveRecord(t *testing.T) {
	at := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	in := RecordInputs{
		Raw: models.RawReading{
			SensorID:     "a1b2c3",
			Timestamp:    at,
			AirGapCM:     60,
			TemperatureC: 5,
			Status:       sql.NullInt64{Int64: 0x98, Valid: true},
		},
		Volume:       tank.CorrectedVolume{Litres: 600, OilDepthCM: 60},
		Detection:    detect.Result{Verdict: detect.None, LitresUsed: 10},
		Tank:         deriveTank(),
		HDDBaseTempC: 15.5,
		Prices: []models.PricePoint{
			{VolumeLitres: 500, PencePerLitre: 60},
			{VolumeLitres: 900, PencePerLitre: 56},
		},
	}

	got := DeriveRecord(in)

	if got.PercentageRemaining != 50 {
		t.Errorf("PercentageRemaining = %v, want 50", got.PercentageRemaining)
	}
	if got.BarsRemaining != 5 {
		t.Errorf("BarsRemaining = %d, want 5", got.BarsRemaining)
	}
	if got.HeatingDegreeDays != 10.5 {
		t.Errorf("HeatingDegreeDays = %v, want 10.5", got.HeatingDegreeDays)
	}
	if got.SeasonalEfficiency != 0.95 {
		t.Errorf("SeasonalEfficiency = %v, want 0.95 for January", got.SeasonalEfficiency)
	}
	if !got.CurrentPPL.Valid || got.CurrentPPL.Float64 != 59 {
		t.Errorf("CurrentPPL = %+v, want 59 (interpolated at 600L)", got.CurrentPPL)
	}
	// 10L * 59ppl / 100 = 5.90; (1200-600) * 59 / 100 = 354.00
	if got.CostUsed != "5.90" {
		t.Errorf("CostUsed = %q, want 5.90", got.CostUsed)
	}
	if got.CostToFill != "354.00" {
		t.Errorf("CostToFill = %q, want 354.00", got.CostToFill)
	}
	if got.LitresToOrder != 600 {
		t.Errorf("LitresToOrder = %v, want 600", got.LitresToOrder)
	}
	if got.RefillDetected || got.LeakDetected {
		t.Errorf("detection flags = %v/%v, want both false", got.RefillDetected, got.LeakDetected)
	}
	if !got.RawFlags.Valid || got.RawFlags.Int64 != 0x98 {
		t.Errorf("RawFlags = %+v, want 0x98", got.RawFlags)
	}
}

func TestDeriveRecordMissingPrices(t *testing.T) {
	in := RecordInputs{
		Raw:          models.RawReading{Timestamp: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), AirGapCM: 60, TemperatureC: 18},
		Volume:       tank.CorrectedVolume{Litres: 600, OilDepthCM: 60},
		Detection:    detect.Result{Verdict: detect.None, LitresUsed: 10},
		Tank:         deriveTank(),
		HDDBaseTempC: 15.5,
	}

	got := DeriveRecord(in)

	if got.CurrentPPL.Valid {
		t.Errorf("CurrentPPL = %+v, want invalid with empty price table", got.CurrentPPL)
	}
	if got.CostUsed != "0.00" || got.CostToFill != "0.00" {
		t.Errorf("costs = %q/%q, want 0.00/0.00", got.CostUsed, got.CostToFill)
	}
}

func TestDeriveRecordEmptyTank(t *testing.T) {
	in := RecordInputs{
		Raw:          models.RawReading{Timestamp: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), AirGapCM: 120, TemperatureC: 3},
		Volume:       tank.CorrectedVolume{Litres: 0, OilDepthCM: 0},
		Detection:    detect.Result{Verdict: detect.None},
		Tank:         deriveTank(),
		HDDBaseTempC: 15.5,
	}

	got := DeriveRecord(in)
	if got.PercentageRemaining != 0 {
		t.Errorf("PercentageRemaining = %v, want 0", got.PercentageRemaining)
	}
	if got.BarsRemaining != 0 {
		t.Errorf("BarsRemaining = %d, want 0", got.BarsRemaining)
	}
}

func TestPercentageAlwaysInRange(t *testing.T) {
	cfg := deriveTank()
	for litres := 0.0; litres <= cfg.CapacityLitres; litres += 37.5 {
		in := RecordInputs{
			Raw:    models.RawReading{Timestamp: time.Now()},
			Volume: tank.CorrectedVolume{Litres: litres},
			Tank:   cfg,
		}
		got := DeriveRecord(in)
		if got.PercentageRemaining < 0 || got.PercentageRemaining > 100 {
			t.Fatalf("PercentageRemaining = %v out of range at %vL", got.PercentageRemaining, litres)
		}
	}
}
