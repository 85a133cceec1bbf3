// Command lorachat runs a headless chat device on a terminal. Chat lines are
// read from stdin; received messages and command output go to stdout and
// diagnostics to stderr.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kabili207/lorachat/core"
	"github.com/kabili207/lorachat/core/clock"
	"github.com/kabili207/lorachat/core/config"
	"github.com/kabili207/lorachat/core/logstore"
	"github.com/kabili207/lorachat/device/keepalive"
	"github.com/kabili207/lorachat/device/router"
	"github.com/kabili207/lorachat/transport"
	"github.com/kabili207/lorachat/transport/mqtt"
	"github.com/kabili207/lorachat/transport/serial"
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

var (
	settingsPath = flag.String("config", config.DefaultPath, "settings file")
	logPath      = flag.String("log", logstore.DefaultPath, "activity log file")
	serialPort   = flag.String("serial", "", "E220 LoRa module serial port (e.g. /dev/ttyUSB0)")
	baudRate     = flag.Int("baud", serial.DefaultBaudRate, "serial baud rate")
	fixedMode    = flag.Bool("fixed", false, "E220 fixed transmission mode (broadcast address)")
	airChannel   = flag.Uint("air-channel", 0, "E220 air channel for fixed mode")
	broker       = flag.String("mqtt", "", "MQTT broker URL for the local broadcast radio (e.g. tcp://localhost:1883)")
	meshID       = flag.String("mesh", "lorachat", "MQTT mesh name shared by nearby devices")
	espNow       = flag.Bool("espnow", false, "start on the local broadcast radio regardless of settings")
	verbose      = flag.Bool("v", false, "debug logging, including noise frames in the activity log")
	version      = flag.Bool("version", false, "show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("lorachat %s\n", appVersion)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("lorachat stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	settings, err := config.Load(*settingsPath)
	if err != nil {
		logger.Warn("using default settings", "path", *settingsPath, "error", err)
	}
	if *espNow {
		settings.ESPNowMode = true
	}
	rt := config.NewRuntime(settings)

	clk := clock.New()
	store := logstore.New(logstore.Config{Path: *logPath, Clock: clk, Logger: logger})
	if err := store.Open(); err != nil {
		// Messaging carries on without an activity log.
		logger.Warn("activity log unavailable", "path", *logPath, "error", err)
	} else {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Warn("not watching activity log", "error", err)
			}
		}()
	}

	r := router.New(router.Config{
		Runtime:  rt,
		Log:      store,
		LogNoise: *verbose,
		Logger:   logger,
	})
	r.Start(ctx)
	defer r.Stop()

	switchRadio := func(ctx context.Context, radio core.Radio) error {
		t, err := newTransport(radio, logger)
		if err != nil {
			return err
		}
		return r.SwitchTransport(ctx, t)
	}
	if err := switchRadio(ctx, rt.Radio()); err != nil {
		return err
	}
	defer func() {
		if err := r.SwitchTransport(context.Background(), nil); err != nil {
			logger.Warn("stopping transport", "error", err)
		}
	}()

	sched := keepalive.NewScheduler(r, keepalive.Config{Runtime: rt, Logger: logger})
	go sched.Start(ctx)
	defer sched.Stop()

	con := newConsole(os.Stdout, r, rt, store, clk, *settingsPath, switchRadio)
	r.SetMessageHandler(con.showMessage)

	if !clk.IsSet() {
		fmt.Println("clock is not set, use /time YYYY-MM-DD HH:MM:SS")
	}
	fmt.Printf("lorachat %s as %s on %s, /help for commands\n", appVersion, rt.Username(), rt.Radio())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || !con.handle(ctx, line) {
				return nil
			}
		}
	}
}

// newTransport builds the transport that drives radio from the command line
// flags.
func newTransport(radio core.Radio, logger *slog.Logger) (transport.Transport, error) {
	switch radio {
	case core.RadioLoRa:
		if *serialPort == "" {
			return nil, errors.New("LoRa radio needs -serial")
		}
		return serial.New(serial.Config{
			Port:       *serialPort,
			BaudRate:   *baudRate,
			FixedMode:  *fixedMode,
			AirChannel: uint8(*airChannel),
			Logger:     logger,
		}), nil
	case core.RadioESPNow:
		if *broker == "" {
			return nil, errors.New("local broadcast radio needs -mqtt")
		}
		return mqtt.New(mqtt.Config{
			Broker: *broker,
			MeshID: *meshID,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown radio %s", radio)
	}
}
