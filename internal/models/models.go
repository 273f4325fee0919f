package models

import (
	"database/sql"
	"time"
)

// RawReading is a single decoded transmission from the tank sensor.
// Model carries the canonical sensor model tag; the Advanced variant is
// normalized to the base tag at parse time.
type RawReading struct {
	SensorID     string
	Model        string
	Timestamp    time.Time
	AirGapCM     float64
	TemperatureC float64
	RSSI         sql.NullInt64
	Status       sql.NullInt64
}

// PriorReading is the read-only snapshot of the most recent stored reading
// that the pipeline compares the current reading against.
type PriorReading struct {
	Date            time.Time
	LitresRemaining float64
	AirGapCM        float64
}

// Reading is the canonical persisted row, one per sensor transmission.
type Reading struct {
	Date                time.Time
	SensorID            string
	TemperatureC        float64
	LitresRemaining     float64
	LitresUsedSinceLast float64
	PercentageRemaining float64
	OilDepthCM          float64
	AirGapCM            float64
	CurrentPPL          sql.NullFloat64
	CostUsed            string
	CostToFill          string
	HeatingDegreeDays   float64
	SeasonalEfficiency  float64
	RefillDetected      bool
	LeakDetected        bool
	RawFlags            sql.NullInt64
	LitresToOrder       float64
	BarsRemaining       int
}

// Prior converts a reading into the snapshot shape the classifier consumes.
func (r Reading) Prior() PriorReading {
	return PriorReading{
		Date:            r.Date,
		LitresRemaining: r.LitresRemaining,
		AirGapCM:        r.AirGapCM,
	}
}

// AirGapSample is a timestamped air-gap measurement used by the
// sudden-drop detector.
type AirGapSample struct {
	Date     time.Time
	AirGapCM float64
}

// PricePoint is one row of the heating-oil price table: the quoted
// pence-per-litre for a given order volume tier.
type PricePoint struct {
	VolumeLitres  float64
	PencePerLitre float64
	RecordedAt    time.Time
}

// HDDRecord is one day of heating-degree-day data.
type HDDRecord struct {
	Date time.Time
	HDD  float64
}

// Delivery is one invoiced oil delivery: the actual volume, quoted price
// and invoice total, keyed by delivery date. Pence-per-litre is in pence;
// the total cost is in currency units.
type Delivery struct {
	Date          time.Time
	VolumeLitres  float64
	PencePerLitre float64
	TotalCost     float64
	Reference     string
	Notes         string
	EnteredAt     time.Time
}

// RefillPeriod is the span between two consecutive deliveries with its
// cost, weather and energy breakdown. Consumption over the period is
// taken as the closing delivery's volume.
type RefillPeriod struct {
	Start             time.Time
	End               time.Time
	Days              int
	ConsumptionLitres float64
	PencePerLitre     float64
	TotalCost         float64
	DailyCost         float64
	WeeklyCost        float64
	MonthlyCost       float64

	TotalHDD          float64
	CostPerHDD        float64
	ConsumptionPerHDD float64

	Efficiency         float64
	TotalEnergyKWH     float64
	DeliveredEnergyKWH float64
	CostPerKWH         float64
	CostPerUsefulKWH   float64
	DailyEnergyKWH     float64
}

// CostAnalysis summarizes heating costs across all recorded delivery
// periods.
type CostAnalysis struct {
	AnalysisDate      time.Time
	Periods           []RefillPeriod
	DaysSinceDelivery int

	AvgPeriodCost        float64
	AvgPeriodConsumption float64
	AvgDailyCost         float64
	AvgWeeklyCost        float64
	AvgMonthlyCost       float64
	AvgAnnualCost        float64

	AvgCostPerHDD        float64
	AvgConsumptionPerHDD float64

	AvgCostPerKWH     float64
	AvgDailyEnergyKWH float64
}

// Latest returns the most recent complete delivery period. The cost
// analyzer never produces a result with zero periods.
func (c CostAnalysis) Latest() RefillPeriod {
	return c.Periods[len(c.Periods)-1]
}

// AnalysisResult is the output of a consumption analysis run.
type AnalysisResult struct {
	AnalysisDate                 time.Time
	LatestReadingDate            time.Time
	DaysSinceRefill              int
	ConsumptionSinceRefill       float64
	AvgDailyConsumption          float64
	SmoothedDailyConsumption     float64
	EstimatedDaysRemaining       sql.NullFloat64
	EstimatedEmptyDate           sql.NullTime
	ConsumptionPerHDD            float64
	UpcomingMonthHDD             float64
	EstimatedDailyConsumptionHDD float64
	EstimatedDaysRemainingHDD    sql.NullFloat64
	EstimatedEmptyDateHDD        sql.NullTime
	SeasonalHeatingFactor        float64
	CO2KG                        float64
}
