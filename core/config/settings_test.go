package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s != Defaults() {
		t.Errorf("Load() = %+v, want defaults %+v", s, Defaults())
	}
}

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"Username = Alice",
		"brightness=40",
		"PingMode=off",
		"repeatMode=1",
		"espNowMode=TRUE",
		"unknown=whatever",
		"no equals sign",
	}, "\n")

	s, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := Settings{Username: "alice", Brightness: 40, PingMode: false, RepeatMode: true, ESPNowMode: true}
	if s != want {
		t.Errorf("Parse() = %+v, want %+v", s, want)
	}
}

func TestParse_TruncatesAndClamps(t *testing.T) {
	s, err := Parse(strings.NewReader("username=averylongname\nbrightness=250\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Username != "averylon" {
		t.Errorf("Username = %q, want %q", s.Username, "averylon")
	}
	if s.Brightness != 100 {
		t.Errorf("Brightness = %d, want 100", s.Brightness)
	}
}

func TestParse_InvalidBrightness(t *testing.T) {
	_, err := Parse(strings.NewReader("brightness=bright\n"))
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Parse() error = %v, want ErrInvalidValue", err)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	s := Settings{Username: "bob", Brightness: 70, PingMode: true}
	if err := s.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	want := "username=bob\nbrightness=70\npingMode=on\nrepeatMode=off\nespNowMode=off\n"
	if buf.String() != want {
		t.Errorf("Encode() = %q, want %q", buf.String(), want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LoRaChat", "LoRaChat.conf")
	s := Settings{Username: "carol", Brightness: 30, RepeatMode: true, ESPNowMode: true}

	if err := Save(path, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != s {
		t.Errorf("Load() = %+v, want %+v", got, s)
	}
}

func TestConfirm_ExistingFileAsksFirst(t *testing.T) {
	writes := 0
	c := &Confirm{
		NeedsConfirm: func() bool { return true },
		Write:        func() error { writes++; return nil },
	}

	steps := []WriteStage{StageConfirmPending, StageSuccess, StageIdle, StageConfirmPending}
	for i, want := range steps {
		got, err := c.Press()
		if err != nil {
			t.Fatalf("press %d: error = %v", i, err)
		}
		if got != want {
			t.Errorf("press %d: stage = %v, want %v", i, got, want)
		}
	}
	if writes != 1 {
		t.Errorf("writes = %d, want 1", writes)
	}
}

func TestConfirm_NoFileWritesImmediately(t *testing.T) {
	c := &Confirm{
		NeedsConfirm: func() bool { return false },
		Write:        func() error { return nil },
	}
	if got, _ := c.Press(); got != StageSuccess {
		t.Errorf("first press = %v, want success", got)
	}
}

func TestConfirm_WriteError(t *testing.T) {
	boom := errors.New("boom")
	c := &Confirm{Write: func() error { return boom }}

	c.Press()
	got, err := c.Press()
	if got != StageError || !errors.Is(err, boom) {
		t.Errorf("second press = %v, %v, want error stage with boom", got, err)
	}
	if got, _ := c.Press(); got != StageIdle {
		t.Errorf("third press = %v, want idle", got)
	}
}

func TestConfirm_Reset(t *testing.T) {
	c := &Confirm{Write: func() error { return nil }}
	c.Press()
	c.Reset()
	if c.Stage() != StageIdle {
		t.Errorf("Stage() after Reset = %v, want idle", c.Stage())
	}
}

func TestConfirm_SavesSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LoRaChat.conf")
	c := &Confirm{
		NeedsConfirm: func() bool {
			_, err := os.Stat(path)
			return err == nil
		},
		Write: func() error { return Save(path, Defaults()) },
	}
	if got, _ := c.Press(); got != StageSuccess {
		t.Fatalf("press without file = %v, want success", got)
	}
	c.Press()
	if got, _ := c.Press(); got != StageConfirmPending {
		t.Errorf("press with file present = %v, want confirm", got)
	}
}
