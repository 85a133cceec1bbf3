package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kabili207/lorachat/core"
	"github.com/kabili207/lorachat/core/clock"
	"github.com/kabili207/lorachat/core/codec"
	"github.com/kabili207/lorachat/core/config"
	"github.com/kabili207/lorachat/core/logstore"
	"github.com/kabili207/lorachat/core/presence"
	"github.com/kabili207/lorachat/device/chat"
	"github.com/kabili207/lorachat/device/router"
)

const helpText = `commands:
  <text>               send text on the active channel
  /ch a|b|c            switch chat channel
  /log [n|last|prev|next]  show a page of the activity log
  /who                 list peers heard on the active radio
  /name <name>         set the username (2-8 bytes)
  /ping on|off         keep-alive pings
  /repeat on|off       echo received messages back
  /radio lora|espnow   switch transport
  /save                write settings (press twice to overwrite)
  /time <YYYY-MM-DD HH:MM:SS>  set the clock
  /stats               frame counters
  /quit                exit`

// radioSwitcher brings up the transport for a radio.
type radioSwitcher func(ctx context.Context, radio core.Radio) error

// console turns text commands into router and settings operations.
type console struct {
	out          io.Writer
	router       *router.Router
	runtime      *config.Runtime
	store        *logstore.Store
	clock        *clock.Clock
	settingsPath string
	switchRadio  radioSwitcher
	save         config.Confirm
}

func newConsole(out io.Writer, r *router.Router, rt *config.Runtime, store *logstore.Store,
	clk *clock.Clock, settingsPath string, switchRadio radioSwitcher) *console {
	c := &console{
		out:          out,
		router:       r,
		runtime:      rt,
		store:        store,
		clock:        clk,
		settingsPath: settingsPath,
		switchRadio:  switchRadio,
	}
	c.save = config.Confirm{
		NeedsConfirm: func() bool {
			_, err := os.Stat(c.settingsPath)
			return err == nil
		},
		Write: func() error {
			return config.Save(c.settingsPath, c.runtime.Snapshot())
		},
	}
	return c
}

// showMessage prints a delivered chat message.
func (c *console) showMessage(channel uint8, msg codec.Message) {
	if msg.IsOwn() {
		fmt.Fprintf(c.out, "[%s] me: %s\n", chat.ChannelName(channel), msg.Text)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s: %s (%s %d)\n",
		chat.ChannelName(channel), msg.Username, msg.Text, msg.Radio, msg.RSSI)
}

// handle runs one input line. It returns false when the user asked to quit.
func (c *console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		c.sendChat(line)
		return true
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	cmd = strings.ToLower(cmd)
	arg = strings.TrimSpace(arg)
	if cmd != "save" {
		c.save.Reset()
	}

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(c.out, helpText)
	case "ch":
		c.setChannel(arg)
	case "log":
		c.showLog(arg)
	case "who":
		c.showPresence()
	case "name":
		c.setName(arg)
	case "ping":
		c.setFlag("ping mode", arg, c.runtime.SetPingMode)
	case "repeat":
		c.setFlag("repeat mode", arg, c.runtime.SetRepeatMode)
	case "radio":
		c.setRadio(ctx, arg)
	case "save":
		c.pressSave()
	case "time":
		c.setTime(arg)
	case "stats":
		c.showStats()
	default:
		fmt.Fprintf(c.out, "unknown command %q, try /help\n", cmd)
	}
	return true
}

func (c *console) sendChat(text string) {
	_, err := c.router.SendChat(c.router.Chat().Active(), text)
	if err != nil && !errors.Is(err, router.ErrEmptyMessage) {
		fmt.Fprintf(c.out, "send failed: %v\n", err)
	}
}

func (c *console) setChannel(arg string) {
	switch strings.ToLower(arg) {
	case "a":
		c.router.Chat().SetActive(codec.ChannelA)
	case "b":
		c.router.Chat().SetActive(codec.ChannelB)
	case "c":
		c.router.Chat().SetActive(codec.ChannelC)
	default:
		fmt.Fprintln(c.out, "usage: /ch a|b|c")
		return
	}
	active := c.router.Chat().Active()
	fmt.Fprintf(c.out, "channel %s\n", chat.ChannelName(active))
	for _, msg := range c.router.Chat().Messages(active) {
		c.showMessage(active, msg)
	}
}

func (c *console) showLog(arg string) {
	n := logstore.LatestPage
	switch strings.ToLower(arg) {
	case "", "last":
	case "prev":
		n = max(c.store.CurrentPage()-1, 0)
	case "next":
		n = c.store.CurrentPage() + 1
	default:
		v, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(c.out, "usage: /log [n|last|prev|next]")
			return
		}
		n = v - 1 // pages are shown 1-based
	}

	page, err := c.store.LoadPage(n)
	if err != nil {
		fmt.Fprintf(c.out, "log unavailable: %v\n", err)
		return
	}
	for _, e := range page.Entries {
		fmt.Fprintf(c.out, "%s %s\n", e.Timestamp, e.Content)
	}
	fmt.Fprintf(c.out, "page %d / %d\n", page.Number+1, page.Total)
}

func (c *console) showPresence() {
	radio := c.runtime.Radio()
	tracker := c.router.Presence()
	records := tracker.Records(radio)
	if len(records) == 0 {
		fmt.Fprintf(c.out, "nobody heard on %s\n", radio)
		return
	}
	now := time.Now()
	for _, r := range records {
		seen := presence.FormatLastSeen(now.Sub(r.LastSeen), tracker.Timeout())
		fmt.Fprintf(c.out, "%-8s RSSI: %d, last seen: %s\n", r.Username, r.RSSI, seen)
	}
	if rssi, ok := tracker.StrongestSignal(radio); ok {
		fmt.Fprintf(c.out, "strongest signal: %d\n", rssi)
	}
}

func (c *console) setName(arg string) {
	if len(arg) < codec.MinUsernameLen || len(arg) > codec.MaxUsernameLen {
		fmt.Fprintf(c.out, "username must be %d to %d bytes\n", codec.MinUsernameLen, codec.MaxUsernameLen)
		return
	}
	c.runtime.SetUsername(strings.ToLower(arg))
	fmt.Fprintf(c.out, "username %s\n", c.runtime.Username())
}

func (c *console) setFlag(name, arg string, set func(bool)) {
	switch strings.ToLower(arg) {
	case "on":
		set(true)
	case "off":
		set(false)
	default:
		fmt.Fprintf(c.out, "usage: on|off\n")
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", name, strings.ToLower(arg))
}

func (c *console) setRadio(ctx context.Context, arg string) {
	var radio core.Radio
	switch strings.ToLower(arg) {
	case "lora":
		radio = core.RadioLoRa
	case "espnow", "esp-now":
		radio = core.RadioESPNow
	default:
		fmt.Fprintln(c.out, "usage: /radio lora|espnow")
		return
	}
	if err := c.switchRadio(ctx, radio); err != nil {
		fmt.Fprintf(c.out, "switching to %s: %v\n", radio, err)
		return
	}
	fmt.Fprintf(c.out, "radio %s\n", radio)
}

func (c *console) pressSave() {
	stage, err := c.save.Press()
	switch stage {
	case config.StageConfirmPending:
		fmt.Fprintf(c.out, "%s exists, /save again to overwrite\n", c.settingsPath)
	case config.StageSuccess:
		fmt.Fprintf(c.out, "settings saved to %s\n", c.settingsPath)
	case config.StageError:
		fmt.Fprintf(c.out, "saving settings failed: %v\n", err)
	}
	if stage == config.StageSuccess || stage == config.StageError {
		c.save.Reset()
	}
}

func (c *console) setTime(arg string) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", arg, time.Local)
	if err != nil {
		fmt.Fprintln(c.out, "usage: /time YYYY-MM-DD HH:MM:SS")
		return
	}
	c.clock.Set(t)
	fmt.Fprintf(c.out, "clock %s\n", c.clock.Stamp())
}

func (c *console) showStats() {
	s := c.router.Counters().Snapshot()
	lastRx, lastTx := c.router.Activity()
	fmt.Fprintf(c.out, "recv %d (noise %d, undecoded %d, chat %d, pings %d)\n",
		s.FramesRecv, s.NoiseDropped, s.Undecoded, s.MessagesRecv, s.PingsRecv)
	fmt.Fprintf(c.out, "sent %d (failed %d, acks %d, echoes %d)\n",
		s.FramesSent, s.SendFailures, s.AcksSent, s.EchoesSent)
	fmt.Fprintf(c.out, "last rx %s, last tx %s\n", since(lastRx), since(lastTx))
}

func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Truncate(time.Second).String() + " ago"
}
