// Command kerotrack monitors a heating oil tank from a Watchman Sonic
// ultrasonic sensor: it ingests rtl_433 payloads over MQTT, converts the
// air gap to a temperature-corrected volume, classifies refills and leaks,
// and keeps the reading history in SQLite.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/kerotrack/kerotrack/internal/analysis"
	"github.com/kerotrack/kerotrack/internal/config"
	"github.com/kerotrack/kerotrack/internal/ingest"
	"github.com/kerotrack/kerotrack/internal/metrics"
	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/pipeline"
	"github.com/kerotrack/kerotrack/internal/store"
)

type CLI struct {
	config.Config `embed:""`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the MQTT ingest loop with scheduled daily analysis."`
	Once    OnceCmd    `cmd:"" help:"Process a single sensor message and exit."`
	Replay  ReplayCmd  `cmd:"" help:"Replay recorded rtl_433 JSON lines from stdin through the pipeline."`
	Recalc  RecalcCmd  `cmd:"" help:"Recompute derived columns for every stored reading."`
	Analyze AnalyzeCmd `cmd:"" help:"Run consumption analysis once and exit."`
	Costs   CostsCmd   `cmd:"" help:"Analyze heating costs between recorded deliveries and exit."`

	SetPrice    SetPriceCmd    `cmd:"" name:"set-price" help:"Record a price quote for an order volume tier."`
	SetHDD      SetHDDCmd      `cmd:"" name:"set-hdd" help:"Record heating degree days for a date."`
	SetDelivery SetDeliveryCmd `cmd:"" name:"set-delivery" help:"Record an invoiced oil delivery."`
}

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	pipe   *pipeline.Pipeline
	clock  clockwork.Clock
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("kerotrack"),
		kong.Description("Heating oil tank monitor."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)

	logger := newLogger(cli.LogLevel)
	slog.SetDefault(logger)

	if err := cli.Config.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", cli.DBPath)
	if err != nil {
		logger.Error("open database", "path", cli.DBPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, logger)
	if err := st.Migrate(); err != nil {
		logger.Error("migrate database", "err", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	pipe := pipeline.New(st, cli.Config.TankConfig(), cli.Config.DetectConfig(),
		cli.Config.Analysis.HDDBaseTempC, cli.Config.Currency, clock, logger)

	kctx.FatalIfErrorf(kctx.Run(&app{
		cfg:    &cli.Config,
		logger: logger,
		store:  st,
		pipe:   pipe,
		clock:  clock,
	}))
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.RFC3339,
	}))
}

type ServeCmd struct{}

func (s *ServeCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.MetricsAddr != "" {
		go serveMetrics(a.cfg.MetricsAddr, a.logger)
	}

	ing := ingest.NewIngestor(a.cfg.MQTTConfig(), a.pipe, a.clock, a.logger, false)

	sched := cron.New()
	_, err := sched.AddFunc(a.cfg.Analysis.Schedule, func() {
		if err := runAnalysis(a, ing); err != nil {
			a.logger.Error("scheduled analysis failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron schedule %q: %w", a.cfg.Analysis.Schedule, err)
	}
	sched.Start()
	defer sched.Stop()

	a.logger.Info("starting ingest loop",
		"broker", a.cfg.MQTT.BrokerURL,
		"topic", a.cfg.MQTT.SensorTopic,
		"analysis_schedule", a.cfg.Analysis.Schedule)

	if err := ing.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("shutting down")
	return nil
}

type OnceCmd struct{}

func (o *OnceCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ing := ingest.NewIngestor(a.cfg.MQTTConfig(), a.pipe, a.clock, a.logger, true)
	if err := ing.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type ReplayCmd struct{}

func (r *ReplayCmd) Run(a *app) error {
	n, err := ingest.Replay(os.Stdin, a.pipe, a.clock, a.logger)
	if err != nil {
		return err
	}
	fmt.Printf("processed %d readings\n", n)
	return nil
}

type RecalcCmd struct{}

func (r *RecalcCmd) Run(a *app) error {
	n, err := a.pipe.Recalc(a.store)
	if err != nil {
		return err
	}
	fmt.Printf("recalculated %d readings\n", n)
	return nil
}

type AnalyzeCmd struct{}

func (c *AnalyzeCmd) Run(a *app) error {
	analyzer := analysis.NewAnalyzer(a.store, a.cfg.TankConfig(), a.cfg.AnalysisConfig(), a.clock, a.logger)
	result, err := analyzer.Run()
	if err != nil {
		metrics.AnalysisRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("analysis: %w", err)
	}
	if err := a.store.InsertAnalysisResult(*result); err != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}
	metrics.AnalysisRuns.WithLabelValues("ok").Inc()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Wire())
}

type CostsCmd struct{}

func (c *CostsCmd) Run(a *app) error {
	analyzer := analysis.NewCostAnalyzer(a.store, a.cfg.CostConfig(), a.clock, a.logger)
	result, err := analyzer.Run()
	if err != nil {
		return fmt.Errorf("cost analysis: %w", err)
	}
	if err := a.store.InsertCostAnalysis(*result); err != nil {
		return fmt.Errorf("persist cost analysis: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Wire())
}

type SetPriceCmd struct {
	Volume float64 `arg:"" help:"Order volume tier in litres."`
	Pence  float64 `arg:"" help:"Quoted pence per litre for that tier."`
}

func (c *SetPriceCmd) Run(a *app) error {
	if c.Volume <= 0 || c.Pence <= 0 {
		return errors.New("volume and price must be positive")
	}
	return a.store.UpsertPricePoint(models.PricePoint{
		VolumeLitres:  c.Volume,
		PencePerLitre: c.Pence,
		RecordedAt:    a.clock.Now(),
	})
}

type SetHDDCmd struct {
	Date string  `arg:"" help:"Date in YYYY-MM-DD form."`
	HDD  float64 `arg:"" help:"Heating degree days for that date."`
}

func (c *SetHDDCmd) Run(a *app) error {
	date, err := time.ParseInLocation("2006-01-02", c.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	return a.store.UpsertHDD(models.HDDRecord{Date: date, HDD: c.HDD})
}

type SetDeliveryCmd struct {
	Date   string  `arg:"" help:"Delivery date in YYYY-MM-DD form."`
	Litres float64 `arg:"" help:"Invoiced volume in litres."`
	Pence  float64 `arg:"" help:"Invoiced pence per litre."`
	Total  float64 `arg:"" help:"Invoice total including VAT and delivery."`
	Ref    string  `name:"ref" help:"Order or invoice reference."`
	Notes  string  `name:"notes" help:"Free-form note about the delivery."`
}

func (c *SetDeliveryCmd) Run(a *app) error {
	date, err := time.ParseInLocation("2006-01-02", c.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	if c.Litres <= 0 || c.Pence <= 0 || c.Total <= 0 {
		return errors.New("volume, price and total must be positive")
	}
	return a.store.UpsertDelivery(models.Delivery{
		Date:          date,
		VolumeLitres:  c.Litres,
		PencePerLitre: c.Pence,
		TotalCost:     c.Total,
		Reference:     c.Ref,
		Notes:         c.Notes,
		EnteredAt:     a.clock.Now(),
	})
}

// runAnalysis executes one consumption analysis, persists the result and,
// when an ingestor is connected, publishes it to the analysis topic.
func runAnalysis(a *app, ing *ingest.Ingestor) error {
	analyzer := analysis.NewAnalyzer(a.store, a.cfg.TankConfig(), a.cfg.AnalysisConfig(), a.clock, a.logger)
	result, err := analyzer.Run()
	if err != nil {
		metrics.AnalysisRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("analysis: %w", err)
	}
	if err := a.store.InsertAnalysisResult(*result); err != nil {
		metrics.AnalysisRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("persist analysis: %w", err)
	}
	metrics.AnalysisRuns.WithLabelValues("ok").Inc()

	if ing != nil {
		if err := ing.PublishAnalysis(a.cfg.MQTT.AnalysisTopic, result); err != nil {
			a.logger.Warn("publish analysis", "err", err)
		}
	}

	a.logger.Info("analysis complete",
		"days_since_refill", result.DaysSinceRefill,
		"consumption_l", fmt.Sprintf("%.1f", result.ConsumptionSinceRefill),
		"avg_daily_l", fmt.Sprintf("%.2f", result.AvgDailyConsumption),
		"smoothed_daily_l", fmt.Sprintf("%.2f", result.SmoothedDailyConsumption),
		"days_remaining", nullFloat(result.EstimatedDaysRemaining),
		"co2_kg", fmt.Sprintf("%.1f", result.CO2KG))

	runCostAnalysis(a, ing)
	return nil
}

// runCostAnalysis executes one cost analysis alongside the daily
// consumption run. Fewer than two recorded deliveries is normal for a
// new installation, so failure here never fails the scheduled run.
func runCostAnalysis(a *app, ing *ingest.Ingestor) {
	analyzer := analysis.NewCostAnalyzer(a.store, a.cfg.CostConfig(), a.clock, a.logger)
	result, err := analyzer.Run()
	if err != nil {
		a.logger.Warn("cost analysis skipped", "err", err)
		return
	}
	if err := a.store.InsertCostAnalysis(*result); err != nil {
		a.logger.Error("persist cost analysis", "err", err)
		return
	}
	if ing != nil {
		if err := ing.PublishCostAnalysis(a.cfg.MQTT.CostsTopic, result); err != nil {
			a.logger.Warn("publish cost analysis", "err", err)
		}
	}
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", v.Float64)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", "err", err)
	}
}
