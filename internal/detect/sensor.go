package detect

import "fmt"

// SignalQuality interprets an RSSI value in dBm.
func SignalQuality(rssi int64) string {
	switch {
	case rssi >= -50:
		return "Excellent"
	case rssi >= -70:
		return "Good"
	case rssi >= -90:
		return "Fair"
	default:
		return "Poor"
	}
}

// StatusDescription decodes the Watchman Sonic Advanced status byte.
func StatusDescription(status int64) string {
	switch status {
	case 0xC0:
		return "Initial sync (20min fast reporting)"
	case 0x80:
		return "Post-sync calibration"
	case 0x90:
		return "Transitional state"
	case 0x98:
		return "Normal operation"
	default:
		return fmt.Sprintf("Unknown status: %d", status)
	}
}
