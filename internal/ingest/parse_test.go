package ingest

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/models"
	"github.com/kerotrack/kerotrack/internal/pipeline"
)

const samplePayload = `{"time":"2026-01-10 08:15:00","model":"Oil-SonicSmart","id":106563,"flags":128,"maybetemp":25,"temperature_C":8.5,"binding_countdown":0,"depth_cm":52,"rssi":-63,"status":192}`

func TestParse(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	raw, err := Parse([]byte(samplePayload), now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if raw.SensorID != "106563" {
		t.Errorf("SensorID = %q, want %q", raw.SensorID, "106563")
	}
	if raw.Model != modelSonicSmart {
		t.Errorf("Model = %q, want %q", raw.Model, modelSonicSmart)
	}
	if raw.AirGapCM != 52 {
		t.Errorf("AirGapCM = %v, want 52", raw.AirGapCM)
	}
	if raw.TemperatureC != 8.5 {
		t.Errorf("TemperatureC = %v, want 8.5", raw.TemperatureC)
	}
	want := time.Date(2026, 1, 10, 8, 15, 0, 0, time.UTC)
	if !raw.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", raw.Timestamp, want)
	}
	if !raw.RSSI.Valid || raw.RSSI.Int64 != -63 {
		t.Errorf("RSSI = %+v, want -63", raw.RSSI)
	}
	if !raw.Status.Valid || raw.Status.Int64 != 192 {
		t.Errorf("Status = %+v, want 192", raw.Status)
	}
}

func TestParseErrors(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		skip    bool
	}{
		{"foreign model", `{"model":"Acurite-Tower","id":1,"temperature_C":20}`, true},
		{"missing model", `{"id":1,"depth_cm":52,"temperature_C":8.5}`, true},
		{"not JSON", `time=2026 model=Oil-SonicSmart`, false},
		{"missing id", `{"model":"Oil-SonicSmart","depth_cm":52,"temperature_C":8.5}`, false},
		{"missing depth", `{"model":"Oil-SonicSmart","id":1,"temperature_C":8.5}`, false},
		{"missing temperature", `{"model":"Oil-SonicSmart","id":1,"depth_cm":52}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload), now)
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if got := errors.Is(err, ErrSkipMessage); got != tt.skip {
				t.Errorf("errors.Is(err, ErrSkipMessage) = %v, want %v (err: %v)", got, tt.skip, err)
			}
		})
	}
}

func TestParseAirGapAlias(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	payload := `{"model":"Oil-SonicSmart","id":1,"air_gap_cm":47.5,"temperature_C":9}`

	raw, err := Parse([]byte(payload), now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if raw.AirGapCM != 47.5 {
		t.Errorf("AirGapCM = %v, want 47.5", raw.AirGapCM)
	}
}

func TestParseAdvancedModelAccepted(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	payload := `{"model":"Oil-SonicAdv","id":2001,"depth_cm":40,"temperature_C":12}`

	raw, err := Parse([]byte(payload), now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if raw.SensorID != "2001" {
		t.Errorf("SensorID = %q, want %q", raw.SensorID, "2001")
	}
	if raw.Model != modelSonicSmart {
		t.Errorf("Model = %q, want normalized %q", raw.Model, modelSonicSmart)
	}
}

func TestParseTimestampFallback(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	for _, payload := range []string{
		`{"model":"Oil-SonicSmart","id":1,"depth_cm":52,"temperature_C":8.5}`,
		`{"model":"Oil-SonicSmart","id":1,"depth_cm":52,"temperature_C":8.5,"time":"garbage"}`,
	} {
		raw, err := Parse([]byte(payload), now)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !raw.Timestamp.Equal(now) {
			t.Errorf("Timestamp = %v, want fallback %v", raw.Timestamp, now)
		}
	}
}

type replayProcessor struct {
	processed []models.RawReading
	fail      error
}

func (p *replayProcessor) Process(raw models.RawReading) (*models.Reading, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	p.processed = append(p.processed, raw)
	return &models.Reading{Date: raw.Timestamp, SensorID: raw.SensorID}, nil
}

func TestReplay(t *testing.T) {
	input := strings.Join([]string{
		samplePayload,
		"",
		`{"model":"Acurite-Tower","id":1,"temperature_C":20}`,
		`not json at all`,
		`{"time":"2026-01-10 08:45:00","model":"Oil-SonicSmart","id":106563,"depth_cm":52.5,"temperature_C":8.4}`,
	}, "\n")

	proc := &replayProcessor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))

	n, err := Replay(strings.NewReader(input), proc, clock, logger)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 2 {
		t.Errorf("processed = %d, want 2", n)
	}
	if len(proc.processed) != 2 {
		t.Fatalf("len(processed) = %d, want 2", len(proc.processed))
	}
	if proc.processed[1].AirGapCM != 52.5 {
		t.Errorf("second reading AirGapCM = %v, want 52.5", proc.processed[1].AirGapCM)
	}
}

func TestReplayInvalidReadingsSkipped(t *testing.T) {
	proc := &replayProcessor{fail: pipeline.ErrInvalidReading}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))

	n, err := Replay(strings.NewReader(samplePayload), proc, clock, logger)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 0 {
		t.Errorf("processed = %d, want 0", n)
	}
}
