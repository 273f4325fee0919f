// Package ingest feeds the processing pipeline from the rtl_433 MQTT
// topic or from a replay stream of recorded payloads.
package ingest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kerotrack/kerotrack/internal/models"
)

// ErrSkipMessage marks payloads from other rtl_433 devices sharing the
// topic. They are ignored without logging noise.
var ErrSkipMessage = errors.New("not an oil level sensor payload")

// TimeLayout is the timestamp format rtl_433 emits and the one used on
// the republished records.
const TimeLayout = "2006-01-02 15:04:05"

// Model tags the Watchman Sonic family reports. The Advanced variant
// carries the same fields and is normalized to the base model.
const (
	modelSonicSmart    = "Oil-SonicSmart"
	modelSonicAdvanced = "Oil-SonicAdv"
)

// Parse decodes one rtl_433 JSON payload into a raw reading. Payloads from
// other device models return ErrSkipMessage; payloads from the oil sensor
// with missing or unparseable required fields return a descriptive error.
// A missing or malformed timestamp falls back to now.
func Parse(payload []byte, now time.Time) (models.RawReading, error) {
	var raw models.RawReading

	if !gjson.ValidBytes(payload) {
		return raw, errors.New("malformed JSON payload")
	}

	model, err := NormalizedModel(payload)
	if err != nil {
		return raw, err
	}
	raw.Model = model

	id := gjson.GetBytes(payload, "id")
	if !id.Exists() {
		return raw, errors.New("missing sensor id")
	}
	raw.SensorID = id.String()

	depth := gjson.GetBytes(payload, "depth_cm")
	if !depth.Exists() {
		depth = gjson.GetBytes(payload, "air_gap_cm")
	}
	if !depth.Exists() {
		return raw, errors.New("missing depth_cm")
	}
	raw.AirGapCM = depth.Float()

	temp := gjson.GetBytes(payload, "temperature_C")
	if !temp.Exists() {
		return raw, errors.New("missing temperature_C")
	}
	raw.TemperatureC = temp.Float()

	raw.Timestamp = now
	if ts := gjson.GetBytes(payload, "time"); ts.Exists() {
		if parsed, err := time.ParseInLocation(TimeLayout, ts.String(), time.UTC); err == nil {
			raw.Timestamp = parsed
		}
	}

	if rssi := gjson.GetBytes(payload, "rssi"); rssi.Exists() {
		raw.RSSI = sql.NullInt64{Int64: rssi.Int(), Valid: true}
	}
	if status := gjson.GetBytes(payload, "status"); status.Exists() {
		raw.Status = sql.NullInt64{Int64: status.Int(), Valid: true}
	}

	return raw, nil
}

// NormalizedModel reports the canonical model tag for a payload, or an
// error when the model is not part of the Watchman Sonic family.
func NormalizedModel(payload []byte) (string, error) {
	model := gjson.GetBytes(payload, "model").String()
	switch model {
	case modelSonicSmart, modelSonicAdvanced:
		return modelSonicSmart, nil
	default:
		return "", fmt.Errorf("%w: model %q", ErrSkipMessage, model)
	}
}
