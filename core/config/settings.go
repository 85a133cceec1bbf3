// Package config loads and saves the device settings file and holds the
// runtime copy of those settings shared by the running components.
//
// The settings file is line-oriented "name=value" text. Names are matched
// case-insensitively, booleans accept true/1/on, and unknown names are
// ignored so files written by newer firmware still load.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kabili207/lorachat/core/codec"
)

const (
	// DefaultPath is where the device keeps its settings file.
	DefaultPath = "/LoRaChat/LoRaChat.conf"

	// DefaultUsername is used until the user picks a name.
	DefaultUsername = "user"

	// DefaultBrightness is the display brightness in percent.
	DefaultBrightness = 70
)

// ErrInvalidValue is returned for a settings value that cannot be parsed.
var ErrInvalidValue = errors.New("invalid settings value")

// Settings are the user-visible device settings.
type Settings struct {
	// Username is sent in every frame. At most codec.MaxUsernameLen bytes.
	Username string
	// Brightness is the display brightness, 0 to 100.
	Brightness int
	// PingMode enables periodic keep-alive pings.
	PingMode bool
	// RepeatMode echoes every received chat message back to the sender.
	RepeatMode bool
	// ESPNowMode selects the local broadcast radio instead of LoRa.
	ESPNowMode bool
}

// Defaults returns the settings of a freshly flashed device.
func Defaults() Settings {
	return Settings{
		Username:   DefaultUsername,
		Brightness: DefaultBrightness,
		PingMode:   true,
	}
}

// Load reads the settings file at path. A missing file yields Defaults and
// no error.
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("opening settings: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads settings from r, starting from Defaults. Values are lowercased
// before use, as the device keyboard has no reliable shift state.
func Parse(r io.Reader) (Settings, error) {
	s := Defaults()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.ToLower(strings.TrimSpace(value))

		switch name {
		case "username":
			s.Username = truncateName(value)
		case "brightness":
			n, err := strconv.Atoi(value)
			if err != nil {
				return s, fmt.Errorf("%w: brightness %q", ErrInvalidValue, value)
			}
			s.Brightness = clampBrightness(n)
		case "pingmode":
			s.PingMode = parseBool(value)
		case "repeatmode":
			s.RepeatMode = parseBool(value)
		case "espnowmode":
			s.ESPNowMode = parseBool(value)
		}
	}
	if err := sc.Err(); err != nil {
		return s, fmt.Errorf("reading settings: %w", err)
	}
	return s, nil
}

// Save writes s to path, creating parent directories, and syncs the file.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating settings: %w", err)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing settings: %w", err)
	}
	return f.Close()
}

// Encode writes s in settings file format.
func (s Settings) Encode(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"username=%s\nbrightness=%d\npingMode=%s\nrepeatMode=%s\nespNowMode=%s\n",
		s.Username, s.Brightness, onOff(s.PingMode), onOff(s.RepeatMode), onOff(s.ESPNowMode))
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1" || v == "on"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func truncateName(name string) string {
	if len(name) > codec.MaxUsernameLen {
		return name[:codec.MaxUsernameLen]
	}
	return name
}

func clampBrightness(n int) int {
	return min(max(n, 0), 100)
}
