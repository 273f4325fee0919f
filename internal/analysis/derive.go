// Package analysis turns corrected volumes into the derived metrics the
// dashboard and forecasting consume: percentages, bars, costs,
// heating-degree-days and consumption projections.
package analysis

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/kerotrack/kerotrack/internal/detect"
	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/tank"
)

// barThresholds maps percentage-remaining onto the 0-10 bar gauge shown by
// the sensor display. The bucket is the index of the highest threshold not
// exceeding the percentage, so below 5% the gauge reads empty and 95% and
// up reads all ten bars.
var barThresholds = []float64{0, 5, 15, 25, 35, 45, 55, 65, 75, 85, 95}

// Bars discretizes a percentage into the 0-10 gauge.
func Bars(percentage float64) int {
	bars := 0
	for i, threshold := range barThresholds {
		if percentage >= threshold {
			bars = i
		}
	}
	return bars
}

// HeatingDegreeDays measures heating demand as how far the average daily
// temperature falls below the base temperature.
func HeatingDegreeDays(baseTempC, avgDailyTempC float64) float64 {
	return math.Max(0, baseTempC-avgDailyTempC)
}

// SeasonalEfficiency is a coarse three-tier proxy for boiler efficiency by
// calendar month, not a measured quantity.
func SeasonalEfficiency(month time.Month) float64 {
	switch month {
	case time.December, time.January, time.February:
		return 0.95
	case time.June, time.July, time.August:
		return 0.99
	default:
		return 0.97
	}
}

// PricePerLitre looks up the pence-per-litre quote for the given volume
// tier from an ordered price table. Between two known tiers the price is
// interpolated linearly; outside the table it extrapolates flat at the
// nearest boundary. Returns false when no price data is available.
func PricePerLitre(points []models.PricePoint, litres float64) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	if litres <= points[0].VolumeLitres {
		return points[0].PencePerLitre, true
	}
	last := points[len(points)-1]
	if litres >= last.VolumeLitres {
		return last.PencePerLitre, true
	}
	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]
		if litres <= hi.VolumeLitres {
			span := hi.VolumeLitres - lo.VolumeLitres
			if span == 0 {
				return lo.PencePerLitre, true
			}
			frac := (litres - lo.VolumeLitres) / span
			return lo.PencePerLitre + frac*(hi.PencePerLitre-lo.PencePerLitre), true
		}
	}
	return last.PencePerLitre, true
}

// FormatCost renders a currency amount as a fixed two-decimal string for
// display stability.
func FormatCost(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// RecordInputs carries everything the derivation needs for one reading.
type RecordInputs struct {
	Raw          models.RawReading
	Volume       tank.CorrectedVolume
	Detection    detect.Result
	Tank         tank.Config
	HDDBaseTempC float64
	Prices       []models.PricePoint
}

// DeriveRecord combines the corrected volume, the anomaly verdict and the
// price table into the canonical output record. Missing price data leaves
// the cost fields at their zero display values rather than failing the
// record.
func DeriveRecord(in RecordInputs) models.Reading {
	litres := in.Volume.Litres
	percentage := round1(100 * litres / in.Tank.CapacityLitres)

	r := models.Reading{
		Date:                in.Raw.Timestamp,
		SensorID:            in.Raw.SensorID,
		TemperatureC:        in.Raw.TemperatureC,
		LitresRemaining:     litres,
		LitresUsedSinceLast: in.Detection.LitresUsed,
		PercentageRemaining: percentage,
		OilDepthCM:          in.Volume.OilDepthCM,
		AirGapCM:            in.Raw.AirGapCM,
		CostUsed:            "0.00",
		CostToFill:          "0.00",
		HeatingDegreeDays:   HeatingDegreeDays(in.HDDBaseTempC, in.Raw.TemperatureC),
		SeasonalEfficiency:  SeasonalEfficiency(in.Raw.Timestamp.Month()),
		RefillDetected:      in.Detection.Verdict == detect.Refill,
		LeakDetected:        in.Detection.Verdict == detect.Leak,
		RawFlags:            in.Raw.Status,
		LitresToOrder:       in.Tank.CapacityLitres - litres,
		BarsRemaining:       Bars(percentage),
	}

	if ppl, ok := PricePerLitre(in.Prices, litres); ok {
		r.CurrentPPL = sql.NullFloat64{Float64: ppl, Valid: true}
		r.CostUsed = FormatCost(in.Detection.LitresUsed * ppl / 100)
		r.CostToFill = FormatCost((in.Tank.CapacityLitres - litres) * ppl / 100)
	}

	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
