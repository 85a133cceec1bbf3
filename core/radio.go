// Package core holds the types shared by every layer of a LoRaChat device.
package core

import "fmt"

// Radio identifies which of the two interchangeable radio paths delivered a
// frame or will carry it. Exactly one radio is active on a device at a time.
type Radio uint8

const (
	// RadioLoRa is the long-range point-to-point radio (E220 LoRa module).
	RadioLoRa Radio = iota
	// RadioESPNow is the local broadcast radio.
	RadioESPNow
)

// String returns the name used in activity log lines.
func (r Radio) String() string {
	switch r {
	case RadioLoRa:
		return "LoRa"
	case RadioESPNow:
		return "ESP-NOW"
	default:
		return fmt.Sprintf("Radio(%d)", uint8(r))
	}
}

// IsValid returns true if r is one of the known radios.
func (r Radio) IsValid() bool {
	return r == RadioLoRa || r == RadioESPNow
}

// RadioFor returns the radio selected by the ESP-NOW mode setting.
func RadioFor(espNowMode bool) Radio {
	if espNowMode {
		return RadioESPNow
	}
	return RadioLoRa
}
