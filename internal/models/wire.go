package models

import "math"

// ReadingWire is the JSON shape published to MQTT and consumed by the
// dashboard. Detection flags are the legacy "y"/"n" strings and costs are
// fixed-point strings so downstream display never reformats them.
type ReadingWire struct {
	Date                string   `json:"date"`
	SensorID            string   `json:"id,omitempty"`
	Temperature         float64  `json:"temperature"`
	LitresRemaining     float64  `json:"litres_remaining"`
	LitresUsedSinceLast float64  `json:"litres_used_since_last"`
	PercentageRemaining float64  `json:"percentage_remaining"`
	OilDepthCM          float64  `json:"oil_depth_cm"`
	AirGapCM            float64  `json:"air_gap_cm"`
	CurrentPPL          *float64 `json:"current_ppl"`
	CostUsed            string   `json:"cost_used"`
	CostToFill          string   `json:"cost_to_fill"`
	HeatingDegreeDays   float64  `json:"heating_degree_days"`
	SeasonalEfficiency  float64  `json:"seasonal_efficiency"`
	RefillDetected      string   `json:"refill_detected"`
	LeakDetected        string   `json:"leak_detected"`
	RawFlags            *int64   `json:"raw_flags"`
	LitresToOrder       float64  `json:"litres_to_order"`
	BarsRemaining       int      `json:"bars_remaining"`
}

const wireTimeLayout = "2006-01-02 15:04:05"

// Wire converts a reading to its published JSON shape.
func (r Reading) Wire() ReadingWire {
	w := ReadingWire{
		Date:                r.Date.Format(wireTimeLayout),
		SensorID:            r.SensorID,
		Temperature:         r.TemperatureC,
		LitresRemaining:     round1(r.LitresRemaining),
		LitresUsedSinceLast: round1(r.LitresUsedSinceLast),
		PercentageRemaining: r.PercentageRemaining,
		OilDepthCM:          round1(r.OilDepthCM),
		AirGapCM:            round1(r.AirGapCM),
		CostUsed:            r.CostUsed,
		CostToFill:          r.CostToFill,
		HeatingDegreeDays:   r.HeatingDegreeDays,
		SeasonalEfficiency:  r.SeasonalEfficiency,
		RefillDetected:      yesNo(r.RefillDetected),
		LeakDetected:        yesNo(r.LeakDetected),
		LitresToOrder:       round1(r.LitresToOrder),
		BarsRemaining:       r.BarsRemaining,
	}
	if r.CurrentPPL.Valid {
		ppl := r.CurrentPPL.Float64
		w.CurrentPPL = &ppl
	}
	if r.RawFlags.Valid {
		flags := r.RawFlags.Int64
		w.RawFlags = &flags
	}
	return w
}

// AnalysisWire is the JSON shape of a published analysis result.
type AnalysisWire struct {
	AnalysisDate             string   `json:"analysis_date"`
	LatestReadingDate        string   `json:"latest_reading_date"`
	DaysSinceRefill          int      `json:"days_since_refill"`
	ConsumptionSinceRefill   float64  `json:"consumption_since_refill"`
	AvgDailyConsumption      float64  `json:"avg_daily_consumption"`
	SmoothedDailyConsumption float64  `json:"smoothed_daily_consumption"`
	EstimatedDaysRemaining   *float64 `json:"estimated_days_remaining"`
	EstimatedEmptyDate       *string  `json:"estimated_empty_date"`
	ConsumptionPerHDD        float64  `json:"consumption_per_hdd"`
	UpcomingMonthHDD         float64  `json:"upcoming_month_hdd"`
	EstimatedDaysHDD         *float64 `json:"estimated_days_remaining_hdd"`
	EstimatedEmptyDateHDD    *string  `json:"estimated_empty_date_hdd"`
	SeasonalHeatingFactor    float64  `json:"seasonal_heating_factor"`
	CO2KG                    float64  `json:"co2_kg"`
}

// Wire converts an analysis result to its published JSON shape.
func (a AnalysisResult) Wire() AnalysisWire {
	w := AnalysisWire{
		AnalysisDate:             a.AnalysisDate.Format(wireTimeLayout),
		LatestReadingDate:        a.LatestReadingDate.Format(wireTimeLayout),
		DaysSinceRefill:          a.DaysSinceRefill,
		ConsumptionSinceRefill:   round1(a.ConsumptionSinceRefill),
		AvgDailyConsumption:      a.AvgDailyConsumption,
		SmoothedDailyConsumption: a.SmoothedDailyConsumption,
		ConsumptionPerHDD:        a.ConsumptionPerHDD,
		UpcomingMonthHDD:         a.UpcomingMonthHDD,
		SeasonalHeatingFactor:    a.SeasonalHeatingFactor,
		CO2KG:                    round1(a.CO2KG),
	}
	if a.EstimatedDaysRemaining.Valid {
		v := a.EstimatedDaysRemaining.Float64
		w.EstimatedDaysRemaining = &v
	}
	if a.EstimatedEmptyDate.Valid {
		s := a.EstimatedEmptyDate.Time.Format(wireTimeLayout)
		w.EstimatedEmptyDate = &s
	}
	if a.EstimatedDaysRemainingHDD.Valid {
		v := a.EstimatedDaysRemainingHDD.Float64
		w.EstimatedDaysHDD = &v
	}
	if a.EstimatedEmptyDateHDD.Valid {
		s := a.EstimatedEmptyDateHDD.Time.Format(wireTimeLayout)
		w.EstimatedEmptyDateHDD = &s
	}
	return w
}

// CostAnalysisWire is the JSON shape of a published cost analysis. The
// latest complete delivery period is flattened alongside the historical
// averages so dashboard sensors can bind to single keys.
type CostAnalysisWire struct {
	AnalysisDate    string  `json:"analysis_date"`
	PeriodStart     string  `json:"period_start"`
	PeriodEnd       string  `json:"period_end"`
	PeriodDays      int     `json:"period_days"`
	RefillAmount    float64 `json:"refill_amount"`
	RefillCost      float64 `json:"refill_cost"`
	RefillPPL       float64 `json:"refill_ppl"`
	DailyCost       float64 `json:"daily_cost"`
	WeeklyCost      float64 `json:"weekly_cost"`
	MonthlyCost     float64 `json:"monthly_cost"`
	DaysSinceRefill int     `json:"days_since_refill"`

	AvgPeriodCost        float64 `json:"avg_period_cost"`
	AvgPeriodConsumption float64 `json:"avg_period_consumption"`
	AvgDailyCost         float64 `json:"avg_daily_cost"`
	AvgWeeklyCost        float64 `json:"avg_weekly_cost"`
	AvgMonthlyCost       float64 `json:"avg_monthly_cost"`
	AvgAnnualCost        float64 `json:"avg_annual_cost"`

	AvgCostPerHDD        float64 `json:"avg_cost_per_hdd"`
	AvgConsumptionPerHDD float64 `json:"avg_consumption_per_hdd"`

	AvgCostPerKWH     float64 `json:"avg_cost_per_kwh"`
	AvgDailyEnergyKWH float64 `json:"avg_daily_energy_kwh"`

	TotalPeriods int `json:"total_refill_periods"`
}

// Wire converts a cost analysis to its published JSON shape. Monetary
// totals carry two decimals, per-unit rates four.
func (c CostAnalysis) Wire() CostAnalysisWire {
	latest := c.Latest()
	return CostAnalysisWire{
		AnalysisDate:    c.AnalysisDate.Format(wireTimeLayout),
		PeriodStart:     latest.Start.Format(wireTimeLayout),
		PeriodEnd:       latest.End.Format(wireTimeLayout),
		PeriodDays:      latest.Days,
		RefillAmount:    round1(latest.ConsumptionLitres),
		RefillCost:      round2(latest.TotalCost),
		RefillPPL:       round2(latest.PencePerLitre),
		DailyCost:       round2(latest.DailyCost),
		WeeklyCost:      round2(latest.WeeklyCost),
		MonthlyCost:     round2(latest.MonthlyCost),
		DaysSinceRefill: c.DaysSinceDelivery,

		AvgPeriodCost:        round2(c.AvgPeriodCost),
		AvgPeriodConsumption: round1(c.AvgPeriodConsumption),
		AvgDailyCost:         round2(c.AvgDailyCost),
		AvgWeeklyCost:        round2(c.AvgWeeklyCost),
		AvgMonthlyCost:       round2(c.AvgMonthlyCost),
		AvgAnnualCost:        round2(c.AvgAnnualCost),

		AvgCostPerHDD:        round4(c.AvgCostPerHDD),
		AvgConsumptionPerHDD: round4(c.AvgConsumptionPerHDD),

		AvgCostPerKWH:     round4(c.AvgCostPerKWH),
		AvgDailyEnergyKWH: round2(c.AvgDailyEnergyKWH),

		TotalPeriods: len(c.Periods),
	}
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
