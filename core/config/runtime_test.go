package config

import (
	"sync"
	"testing"

	"github.com/kabili207/lorachat/core"
)

func TestRuntime_Setters(t *testing.T) {
	r := NewRuntime(Defaults())

	r.SetUsername("averylongname")
	if r.Username() != "averylon" {
		t.Errorf("Username() = %q, want truncated", r.Username())
	}
	r.SetPingMode(false)
	r.SetRepeatMode(true)
	r.SetBrightness(-5)
	r.SetRadio(core.RadioESPNow)

	s := r.Snapshot()
	if s.PingMode || !s.RepeatMode || s.Brightness != 0 || !s.ESPNowMode {
		t.Errorf("Snapshot() = %+v", s)
	}
	if r.Radio() != core.RadioESPNow {
		t.Errorf("Radio() = %v, want ESP-NOW", r.Radio())
	}
}

func TestRuntime_Concurrent(t *testing.T) {
	r := NewRuntime(Defaults())
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				r.SetPingMode(i%2 == 0)
				_ = r.PingMode()
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()
}
