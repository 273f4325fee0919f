// Package config holds the strongly-typed runtime configuration,
// populated once at startup from flags, environment and an optional
// .env file, and validated eagerly.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kerotrack/kerotrack/internal/analysis"
	"github.com/kerotrack/kerotrack/internal/detect"
	"github.com/kerotrack/kerotrack/internal/ingest"
	"github.com/kerotrack/kerotrack/internal/tank"
)

type Tank struct {
	CapacityLitres       float64 `name:"capacity" default:"1200" env:"KEROTRACK_TANK_CAPACITY" help:"Usable tank capacity in litres."`
	LengthCM             float64 `name:"length" default:"160" env:"KEROTRACK_TANK_LENGTH" help:"Internal tank length in cm."`
	WidthCM              float64 `name:"width" default:"72" env:"KEROTRACK_TANK_WIDTH" help:"Internal tank width in cm."`
	HeightCM             float64 `name:"height" default:"120" env:"KEROTRACK_TANK_HEIGHT" help:"Internal tank height in cm."`
	ReferenceTempC       float64 `name:"reference-temp" default:"15" help:"Reference temperature for volume correction."`
	ExpansionCoefficient float64 `name:"expansion-coefficient" default:"0.0008" help:"Volumetric expansion coefficient of the oil per degree C."`
	DensityKgM3          float64 `name:"density" default:"845" help:"Oil density at the reference temperature in kg/m3."`
}

type Detect struct {
	RefillThresholdLitres float64       `name:"refill-threshold" default:"100" help:"Minimum volume increase treated as a refill."`
	RefillAirGapDropCM    float64       `name:"refill-airgap-drop" default:"5" help:"Minimum air-gap decrease required alongside a refill."`
	LeakThresholdLitres   float64       `name:"leak-threshold" default:"100" help:"Minimum loss treated as a possible leak."`
	LeakRatePerDay        float64       `name:"leak-rate" default:"50" help:"Loss rate in litres/day above which a leak is flagged."`
	ComparisonWindow      time.Duration `name:"comparison-window" default:"72h" help:"Maximum age of the prior reading for leak comparison."`
	MaxDailyUsageColdL    float64       `name:"max-daily-cold" default:"25" help:"Plausible daily consumption ceiling in cold weather."`
	MaxDailyUsageWarmL    float64       `name:"max-daily-warm" default:"8" help:"Plausible daily consumption ceiling in warm weather."`
	WarmTemperatureC      float64       `name:"warm-temp" default:"15" help:"Temperature above which the warm ceiling applies."`
}

type Analysis struct {
	EMAAlpha            float64 `name:"ema-alpha" default:"0.2" help:"Smoothing factor for the consumption rate EMA."`
	SmoothingWindowDays int     `name:"smoothing-window" default:"7" help:"Days of history for smoothed daily usage."`
	HDDBaseTempC        float64 `name:"hdd-base-temp" default:"15.5" help:"Base temperature for heating degree days."`
	CO2PerLitreKG       float64 `name:"co2-per-litre" default:"2.54" help:"Kilograms of CO2 emitted per litre of kerosene burned."`
	HotWaterDailyLitres float64 `name:"hot-water-daily" default:"2" help:"Litres/day attributed to hot water regardless of heating."`
	KWHPerLitre         float64 `name:"kwh-per-litre" default:"10.35" help:"Energy content of kerosene in kWh per litre."`
	BoilerEfficiency    float64 `name:"boiler-efficiency" default:"0.85" help:"Assumed boiler efficiency when no seasonal efficiency history covers a delivery period."`
	Schedule            string  `name:"schedule" default:"30 6 * * *" help:"Cron schedule for the daily analysis run."`
}

type MQTT struct {
	BrokerURL        string        `name:"broker" default:"mqtt://localhost:1883" env:"KEROTRACK_MQTT_BROKER" help:"MQTT broker URL."`
	ClientID         string        `name:"client-id" default:"kerotrack" help:"MQTT client identifier."`
	SensorTopic      string        `name:"sensor-topic" default:"rtl_433/events" env:"KEROTRACK_SENSOR_TOPIC" help:"Topic carrying raw rtl_433 payloads."`
	ReadingsTopic    string        `name:"readings-topic" default:"kerotrack/readings" help:"Topic for processed readings (retained)."`
	AnalysisTopic    string        `name:"analysis-topic" default:"kerotrack/analysis" help:"Topic for analysis results (retained)."`
	CostsTopic       string        `name:"costs-topic" default:"kerotrack/costs" help:"Topic for cost analysis results (retained)."`
	QoS              byte          `name:"qos" default:"1" help:"QoS level for subscribe and publish."`
	KeepAlive        uint16        `name:"keepalive" default:"30" help:"MQTT keepalive in seconds."`
	WatchdogInterval time.Duration `name:"watchdog" default:"30m" help:"Warn when no sensor message arrives within this interval."`
}

// Config is the full runtime configuration.
type Config struct {
	DBPath      string `name:"db" default:"data/kerotrack.db" env:"KEROTRACK_DB" help:"Path to the SQLite database."`
	LogLevel    string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"KEROTRACK_LOG_LEVEL" help:"Log level."`
	MetricsAddr string `name:"metrics-addr" default:":9090" env:"KEROTRACK_METRICS_ADDR" help:"Prometheus listen address; empty disables the endpoint."`
	Currency    string `name:"currency" default:"£" help:"Currency symbol for displayed costs."`

	Tank     Tank     `embed:"" prefix:"tank-"`
	Detect   Detect   `embed:"" prefix:"detect-"`
	Analysis Analysis `embed:"" prefix:"analysis-"`
	MQTT     MQTT     `embed:"" prefix:"mqtt-"`
}

// Validate fails fast on implausible values so bad config never defaults
// silently deep in the pipeline.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db path required")
	}
	if c.Tank.CapacityLitres <= 0 {
		return errors.New("tank capacity must be positive")
	}
	if c.Tank.LengthCM <= 0 || c.Tank.WidthCM <= 0 || c.Tank.HeightCM <= 0 {
		return errors.New("tank dimensions must be positive")
	}
	if c.Tank.ExpansionCoefficient < 0 || c.Tank.ExpansionCoefficient > 0.01 {
		return fmt.Errorf("implausible expansion coefficient %v", c.Tank.ExpansionCoefficient)
	}
	if c.Tank.DensityKgM3 <= 0 {
		return errors.New("oil density must be positive")
	}
	geometric := c.Tank.LengthCM * c.Tank.WidthCM * c.Tank.HeightCM / 1000
	if c.Tank.CapacityLitres > geometric {
		return fmt.Errorf("capacity %v exceeds geometric volume %.0f", c.Tank.CapacityLitres, geometric)
	}
	if c.Detect.RefillThresholdLitres <= 0 {
		return errors.New("refill threshold must be positive")
	}
	if c.Detect.LeakThresholdLitres <= 0 || c.Detect.LeakRatePerDay <= 0 {
		return errors.New("leak threshold and rate must be positive")
	}
	if c.Detect.ComparisonWindow <= 0 {
		return errors.New("comparison window must be positive")
	}
	if c.Detect.MaxDailyUsageColdL <= 0 || c.Detect.MaxDailyUsageWarmL <= 0 {
		return errors.New("daily usage ceilings must be positive")
	}
	if c.Analysis.EMAAlpha <= 0 || c.Analysis.EMAAlpha > 1 {
		return fmt.Errorf("EMA alpha %v outside (0, 1]", c.Analysis.EMAAlpha)
	}
	if c.Analysis.SmoothingWindowDays <= 0 {
		return errors.New("smoothing window must be positive")
	}
	if c.Analysis.KWHPerLitre <= 0 {
		return errors.New("kWh per litre must be positive")
	}
	if c.Analysis.BoilerEfficiency <= 0 || c.Analysis.BoilerEfficiency > 1 {
		return fmt.Errorf("boiler efficiency %v outside (0, 1]", c.Analysis.BoilerEfficiency)
	}
	if c.MQTT.BrokerURL == "" {
		return errors.New("mqtt broker required")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid QoS %d", c.MQTT.QoS)
	}
	return nil
}

// TankConfig converts to the geometry package's config.
func (c *Config) TankConfig() tank.Config {
	return tank.Config{
		CapacityLitres:       c.Tank.CapacityLitres,
		LengthCM:             c.Tank.LengthCM,
		WidthCM:              c.Tank.WidthCM,
		HeightCM:             c.Tank.HeightCM,
		ReferenceTempC:       c.Tank.ReferenceTempC,
		ExpansionCoefficient: c.Tank.ExpansionCoefficient,
		DensityAtRefKgM3:     c.Tank.DensityKgM3,
	}
}

// DetectConfig converts to the classifier's config.
func (c *Config) DetectConfig() detect.Config {
	return detect.Config{
		RefillThresholdLitres: c.Detect.RefillThresholdLitres,
		RefillAirGapDropCM:    c.Detect.RefillAirGapDropCM,
		LeakThresholdLitres:   c.Detect.LeakThresholdLitres,
		LeakRatePerDay:        c.Detect.LeakRatePerDay,
		MaxComparisonWindow:   c.Detect.ComparisonWindow,
		MaxDailyUsageColdL:    c.Detect.MaxDailyUsageColdL,
		MaxDailyUsageWarmL:    c.Detect.MaxDailyUsageWarmL,
		WarmTemperatureC:      c.Detect.WarmTemperatureC,
	}
}

// AnalysisConfig converts to the analyzer's config.
func (c *Config) AnalysisConfig() analysis.Config {
	return analysis.Config{
		EMAAlpha:              c.Analysis.EMAAlpha,
		RefillThresholdLitres: c.Detect.RefillThresholdLitres,
		SmoothingWindowDays:   c.Analysis.SmoothingWindowDays,
		HDDBaseTempC:          c.Analysis.HDDBaseTempC,
		CO2PerLitreKG:         c.Analysis.CO2PerLitreKG,
		HotWaterDailyLitres:   c.Analysis.HotWaterDailyLitres,
	}
}

// CostConfig converts to the cost analyzer's config.
func (c *Config) CostConfig() analysis.CostConfig {
	return analysis.CostConfig{
		KWHPerLitre:       c.Analysis.KWHPerLitre,
		DefaultEfficiency: c.Analysis.BoilerEfficiency,
	}
}

// MQTTConfig converts to the ingest loop's config.
func (c *Config) MQTTConfig() ingest.MQTTConfig {
	return ingest.MQTTConfig{
		BrokerURL:        c.MQTT.BrokerURL,
		ClientID:         c.MQTT.ClientID,
		SensorTopic:      c.MQTT.SensorTopic,
		ReadingsTopic:    c.MQTT.ReadingsTopic,
		QoS:              c.MQTT.QoS,
		KeepAlive:        c.MQTT.KeepAlive,
		WatchdogInterval: c.MQTT.WatchdogInterval,
	}
}
