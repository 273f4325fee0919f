package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/detect"
	"github.com/kerotrack/kerotrack/internal/metrics"
	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/pipeline"
)

// Processor runs one raw reading through the pipeline. Satisfied by
// *pipeline.Pipeline.
type Processor interface {
	Process(models.RawReading) (*models.Reading, error)
}

type MQTTConfig struct {
	BrokerURL        string
	ClientID         string
	SensorTopic      string
	ReadingsTopic    string
	QoS              byte
	KeepAlive        uint16
	WatchdogInterval time.Duration
}

// Ingestor subscribes to the rtl_433 sensor topic, feeds each payload to
// the pipeline and republishes the processed record, retained, on the
// readings topic.
type Ingestor struct {
	cfg    MQTTConfig
	proc   Processor
	clock  clockwork.Clock
	logger *slog.Logger
	once   bool

	cm       *autopaho.ConnectionManager
	lastMsg  atomic.Int64 // unix seconds of last sensor message
	oneDone  chan struct{}
	oneClose atomic.Bool
}

// NewIngestor builds an ingestor. With once set, Run returns after the
// first successfully processed reading.
func NewIngestor(cfg MQTTConfig, proc Processor, clock clockwork.Clock, logger *slog.Logger, once bool) *Ingestor {
	return &Ingestor{
		cfg:     cfg,
		proc:    proc,
		clock:   clock,
		logger:  logger,
		once:    once,
		oneDone: make(chan struct{}),
	}
}

// Run connects to the broker and blocks until the context is cancelled
// (or, in once mode, until one reading lands).
func (i *Ingestor) Run(ctx context.Context) error {
	u, err := url.Parse(i.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("broker url: %w", err)
	}

	ccfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{u},
		KeepAlive:  i.cfg.KeepAlive,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			metrics.MQTTReconnects.Inc()
			i.logger.Info("connected to broker", "topic", i.cfg.SensorTopic)
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: i.cfg.SensorTopic, QoS: i.cfg.QoS},
				},
			}); err != nil {
				i.logger.Error("subscribe failed", "err", err)
			}
		},
		OnConnectError: func(err error) {
			i.logger.Warn("broker connection error", "err", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: i.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				i.onMessage,
			},
			OnClientError: func(err error) {
				i.logger.Warn("mqtt client error", "err", err)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, ccfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	i.cm = cm
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("await connection: %w", err)
	}
	i.lastMsg.Store(i.clock.Now().Unix())

	watchdog := i.clock.NewTicker(i.watchdogInterval())
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = cm.Disconnect(disconnectCtx)
			return ctx.Err()
		case <-i.oneDone:
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = cm.Disconnect(disconnectCtx)
			return nil
		case <-watchdog.Chan():
			silent := i.clock.Now().Sub(time.Unix(i.lastMsg.Load(), 0))
			if silent >= i.watchdogInterval() {
				i.logger.Warn("no sensor message received",
					"silent_for", silent.Round(time.Second).String())
			}
		}
	}
}

func (i *Ingestor) watchdogInterval() time.Duration {
	if i.cfg.WatchdogInterval > 0 {
		return i.cfg.WatchdogInterval
	}
	return 30 * time.Minute
}

func (i *Ingestor) onMessage(pr paho.PublishReceived) (bool, error) {
	payload := pr.Packet.Payload

	raw, err := Parse(payload, i.clock.Now())
	if err != nil {
		if errors.Is(err, ErrSkipMessage) {
			return true, nil
		}
		i.logger.Warn("unparseable sensor payload", "err", err)
		return true, nil
	}
	i.lastMsg.Store(i.clock.Now().Unix())

	if raw.RSSI.Valid {
		i.logger.Debug("sensor transmission",
			"sensor", raw.SensorID,
			"model", raw.Model,
			"rssi", raw.RSSI.Int64,
			"signal", detect.SignalQuality(raw.RSSI.Int64))
	}
	if raw.Status.Valid {
		i.logger.Debug("sensor status",
			"sensor", raw.SensorID,
			"status", detect.StatusDescription(raw.Status.Int64))
	}

	rec, err := i.proc.Process(raw)
	if err != nil {
		if !errors.Is(err, pipeline.ErrInvalidReading) {
			i.logger.Error("pipeline failed", "err", err)
		}
		return true, nil
	}

	if err := i.publishReading(*rec); err != nil {
		i.logger.Error("republish failed", "err", err)
	}

	if i.once && i.oneClose.CompareAndSwap(false, true) {
		close(i.oneDone)
	}
	return true, nil
}

func (i *Ingestor) publishReading(rec models.Reading) error {
	body, err := json.Marshal(rec.Wire())
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	return i.publish(i.cfg.ReadingsTopic, body, true)
}

// PublishAnalysis pushes an analysis result to the given topic, retained.
func (i *Ingestor) PublishAnalysis(topic string, result *models.AnalysisResult) error {
	body, err := json.Marshal(result.Wire())
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return i.publish(topic, body, true)
}

// PublishCostAnalysis pushes a cost analysis to the given topic, retained.
func (i *Ingestor) PublishCostAnalysis(topic string, result *models.CostAnalysis) error {
	body, err := json.Marshal(result.Wire())
	if err != nil {
		return fmt.Errorf("marshal cost analysis: %w", err)
	}
	return i.publish(topic, body, true)
}

func (i *Ingestor) publish(topic string, body []byte, retain bool) error {
	if i.cm == nil {
		return errors.New("not connected")
	}
	operation := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := i.cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: body,
			Retain:  retain,
			QoS:     i.cfg.QoS,
		})
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
