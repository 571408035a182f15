package main

import (
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/config"
	"github.com/banshee-data/track.monitor/internal/serialmux"
)

func TestOpenDevice(t *testing.T) {
	disabled, err := openDevice("gps", "", serialmux.PortOptions{}, nil, time.Second)
	if err != nil {
		t.Fatalf("openDevice: %v", err)
	}
	if _, ok := disabled.(*serialmux.DisabledSerialMux); !ok {
		t.Errorf("empty path gave %T, want *DisabledSerialMux", disabled)
	}

	gen := func(time.Time) []string { return []string{"ACC,1,0,0,9.8"} }
	simulated, err := openDevice("motion", "/dev/ttyUSB0", serialmux.PortOptions{}, gen, time.Millisecond)
	if err != nil {
		t.Fatalf("openDevice: %v", err)
	}
	defer simulated.Close()
	if simulated.Name() != "motion" {
		t.Errorf("Name() = %q", simulated.Name())
	}
	if _, ok := simulated.(*serialmux.DisabledSerialMux); ok {
		t.Error("generator should select a simulated mux")
	}
}

type recordingSender struct{ commands []string }

func (r *recordingSender) SendCommand(c string) error {
	r.commands = append(r.commands, c)
	return nil
}

func TestBuildSink(t *testing.T) {
	alerts := alert.NewBroadcaster(4)
	defer alerts.Close()
	_, events := alerts.Subscribe()

	buzzer := &recordingSender{}
	settings := alert.DefaultSettings()
	settings.AlertLA = false
	sink, closeSink := buildSink(settings, alerts, buzzer)

	sink.Emit(alert.NewEvent(alert.KindThreshold, alert.LA, 1, 1.5, 10))
	sink.Emit(alert.NewEvent(alert.KindThreshold, alert.LAI, 2, 3.0, 10))
	closeSink()

	if got := len(events); got != 2 {
		t.Errorf("broadcaster received %d events, want 2", got)
	}
	if len(buzzer.commands) != 1 || !strings.HasPrefix(buzzer.commands[0], "TONE 1500 400 square") {
		t.Errorf("buzzer commands = %q", buzzer.commands)
	}

	noBuzzer, closeNone := buildSink(settings, alerts, nil)
	closeNone()
	if got := len(noBuzzer.(alert.MultiSink)); got != 2 {
		t.Errorf("sink without buzzer has %d members, want 2", got)
	}
}

func TestApplyFlags(t *testing.T) {
	oldListen, oldGPS := *listen, *disableGPS
	t.Cleanup(func() { *listen, *disableGPS = oldListen, oldGPS })

	*listen = ":9090"
	*disableGPS = true
	cfg := config.EmptyInstrumentConfig()
	applyFlags(cfg)

	if cfg.GetListen() != ":9090" {
		t.Errorf("listen = %q, want :9090", cfg.GetListen())
	}
	if cfg.GetGPSPort() != "" {
		t.Errorf("GPS port = %q, want disabled", cfg.GetGPSPort())
	}
	if cfg.GetMotionPort() != "/dev/ttyUSB0" {
		t.Errorf("motion port = %q, want default", cfg.GetMotionPort())
	}
}
