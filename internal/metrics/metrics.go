package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerotrack_readings_processed_total",
			Help: "Total sensor readings processed by outcome",
		},
		[]string{"sensor", "outcome"},
	)

	ReadingsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerotrack_readings_dropped_total",
			Help: "Total sensor readings rejected before processing",
		},
		[]string{"sensor", "reason"},
	)

	RefillsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerotrack_refills_detected_total",
			Help: "Total tank refills detected",
		},
		[]string{"sensor"},
	)

	LeaksDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerotrack_leaks_detected_total",
			Help: "Total suspected leaks detected",
		},
		[]string{"sensor"},
	)

	LitresRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kerotrack_litres_remaining",
			Help: "Temperature-corrected oil volume remaining in litres",
		},
		[]string{"sensor"},
	)

	OilTemperature = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kerotrack_oil_temperature_celsius",
			Help: "Last reported oil temperature in degrees Celsius",
		},
		[]string{"sensor"},
	)

	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerotrack_analysis_runs_total",
			Help: "Total consumption analysis runs by status",
		},
		[]string{"status"},
	)

	MQTTReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kerotrack_mqtt_reconnects_total",
			Help: "Total MQTT broker reconnections",
		},
	)
)
