package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DBPath: "data/kerotrack.db",
		Tank: Tank{
			CapacityLitres:       1200,
			LengthCM:             160,
			WidthCM:              72,
			HeightCM:             120,
			ReferenceTempC:       15,
			ExpansionCoefficient: 0.0008,
			DensityKgM3:          845,
		},
		Detect: Detect{
			RefillThresholdLitres: 100,
			RefillAirGapDropCM:    5,
			LeakThresholdLitres:   100,
			LeakRatePerDay:        50,
			ComparisonWindow:      72 * time.Hour,
			MaxDailyUsageColdL:    25,
			MaxDailyUsageWarmL:    8,
			WarmTemperatureC:      15,
		},
		Analysis: Analysis{
			EMAAlpha:            0.2,
			SmoothingWindowDays: 7,
			HDDBaseTempC:        15.5,
			CO2PerLitreKG:       2.54,
			KWHPerLitre:         10.35,
			BoilerEfficiency:    0.85,
		},
		MQTT: MQTT{
			BrokerURL: "mqtt://localhost:1883",
			QoS:       1,
		},
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero capacity", func(c *Config) { c.Tank.CapacityLitres = 0 }},
		{"negative height", func(c *Config) { c.Tank.HeightCM = -1 }},
		{"huge expansion coefficient", func(c *Config) { c.Tank.ExpansionCoefficient = 0.5 }},
		{"capacity above geometry", func(c *Config) { c.Tank.CapacityLitres = 5000 }},
		{"zero refill threshold", func(c *Config) { c.Detect.RefillThresholdLitres = 0 }},
		{"zero leak rate", func(c *Config) { c.Detect.LeakRatePerDay = 0 }},
		{"negative window", func(c *Config) { c.Detect.ComparisonWindow = -time.Hour }},
		{"alpha above one", func(c *Config) { c.Analysis.EMAAlpha = 1.5 }},
		{"zero smoothing window", func(c *Config) { c.Analysis.SmoothingWindowDays = 0 }},
		{"zero kwh per litre", func(c *Config) { c.Analysis.KWHPerLitre = 0 }},
		{"efficiency above one", func(c *Config) { c.Analysis.BoilerEfficiency = 1.2 }},
		{"missing broker", func(c *Config) { c.MQTT.BrokerURL = "" }},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate succeeded, want error")
			}
		})
	}
}

func TestConfigConversions(t *testing.T) {
	cfg := validConfig()

	tank := cfg.TankConfig()
	if tank.CapacityLitres != 1200 || tank.DensityAtRefKgM3 != 845 {
		t.Errorf("TankConfig = %+v", tank)
	}

	det := cfg.DetectConfig()
	if det.MaxComparisonWindow != 72*time.Hour || det.WarmTemperatureC != 15 {
		t.Errorf("DetectConfig = %+v", det)
	}

	an := cfg.AnalysisConfig()
	if an.RefillThresholdLitres != cfg.Detect.RefillThresholdLitres {
		t.Error("AnalysisConfig should share the detect refill threshold")
	}

	cost := cfg.CostConfig()
	if cost.KWHPerLitre != 10.35 || cost.DefaultEfficiency != 0.85 {
		t.Errorf("CostConfig = %+v", cost)
	}
}
