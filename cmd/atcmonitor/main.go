package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/track.monitor/internal/acquire"
	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/api"
	"github.com/banshee-data/track.monitor/internal/config"
	"github.com/banshee-data/track.monitor/internal/db"
	"github.com/banshee-data/track.monitor/internal/diagnosis"
	"github.com/banshee-data/track.monitor/internal/serialmux"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/timeutil"
	"github.com/banshee-data/track.monitor/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to instrument configuration JSON (defaults built in)")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	dbPath      = flag.String("db-path", "", "Path to the sqlite history database (overrides config)")
	motionPort  = flag.String("motion-port", "", "Accelerometer serial port (overrides config)")
	gpsPort     = flag.String("gps-port", "", "GPS serial port (overrides config)")
	disableGPS  = flag.Bool("disable-gps", false, "Run without a GPS receiver; speed must be posted over HTTP")
	simulate    = flag.Bool("simulate", false, "Replace the sensors with simulated devices")
	simSpeedKmh = flag.Float64("simulate-speed", 80, "Simulated train speed in km/h")
	showVersion = flag.Bool("version", false, "Print version and exit")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
)

// Constants
const simulatedMotionRate = 20 * time.Millisecond
const simulatedGPSRate = time.Second

// applyFlags copies explicit command-line overrides onto cfg.
func applyFlags(cfg *config.InstrumentConfig) {
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *motionPort != "" {
		cfg.MotionPort = motionPort
	}
	if *gpsPort != "" {
		cfg.GPSPort = gpsPort
	}
	if *disableGPS {
		empty := ""
		cfg.GPSPort = &empty
	}
}

// openDevice returns a simulated mux when simulating, a disabled mux for an
// empty path and a real serial mux otherwise.
func openDevice(name, path string, opts serialmux.PortOptions, gen serialmux.LineGenerator, interval time.Duration, init ...string) (serialmux.SerialMuxInterface, error) {
	switch {
	case gen != nil:
		return serialmux.NewSimulatedSerialMux(name, interval, gen), nil
	case path == "":
		return serialmux.NewDisabledSerialMux(name), nil
	default:
		return serialmux.NewRealSerialMux(name, path, opts, init...)
	}
}

// buildSink fans alert events out to the log, the SSE broadcaster and the
// buzzer when one is attached. The returned func flushes and stops the
// buzzer writer.
func buildSink(settings alert.Settings, alerts *alert.Broadcaster, buzzer alert.CommandSender) (alert.Sink, func()) {
	sinks := alert.MultiSink{alert.LogSink{}, alerts}
	if buzzer == nil {
		return sinks, func() {}
	}
	serial := alert.NewSerialSink(buzzer, alert.DefaultSerialQueue)
	return append(sinks, alert.Filtered(settings, serial)), serial.Close
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	log.Printf("track monitor %s", version.String())

	cfg := config.EmptyInstrumentConfig()
	if *configPath != "" {
		loaded, err := config.LoadInstrumentConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	historyDB, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer historyDB.Close()

	var motionGen, gpsGen serialmux.LineGenerator
	if *simulate {
		motionGen = acquire.SimulatedMotion(7*time.Second, 2.5)
		if cfg.GetGPSPort() != "" {
			gpsGen = acquire.SimulatedGPS(*simSpeedKmh)
		}
	}

	motionSerial, err := openDevice("motion", cfg.GetMotionPort(), cfg.GetMotionOptions(), motionGen, simulatedMotionRate, cfg.MotionInit...)
	if err != nil {
		log.Fatalf("failed to open accelerometer port: %v", err)
	}
	defer motionSerial.Close()

	gpsSerial, err := openDevice("gps", cfg.GetGPSPort(), cfg.GetGPSOptions(), gpsGen, simulatedGPSRate)
	if err != nil {
		log.Fatalf("failed to open GPS port: %v", err)
	}
	defer gpsSerial.Close()

	devices := []serialmux.SerialMuxInterface{motionSerial, gpsSerial}
	var buzzer serialmux.SerialMuxInterface
	if p := cfg.GetBuzzerPort(); p != "" {
		buzzer, err = serialmux.NewRealSerialMux("buzzer", p, serialmux.PortOptions{})
		if err != nil {
			log.Fatalf("failed to open buzzer port: %v", err)
		}
		defer buzzer.Close()
		devices = append(devices, buzzer)
	}

	for _, d := range devices {
		if err := d.Initialise(); err != nil {
			log.Fatalf("failed to initialise %s: %v", d.Name(), err)
		}
		log.Printf("initialised device %s", d.Name())
	}

	alerts := alert.NewBroadcaster(64)
	defer alerts.Close()
	var buzzerSender alert.CommandSender
	if buzzer != nil {
		buzzerSender = buzzer
	}

	clock := timeutil.RealClock{}
	opts := cfg.StoreOptions()
	opts.Clock = clock
	opts.Persister = historyDB
	sink, closeSink := buildSink(cfg.GetAudio(), alerts, buzzerSender)
	defer closeSink()
	opts.Sink = sink
	store := session.NewStore(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Load(ctx); err != nil {
		log.Fatalf("failed to load session history: %v", err)
	}
	log.Printf("loaded %d session records from %s", len(store.History()), historyDB.Path())

	var diagnoser diagnosis.Diagnoser
	if endpoint := cfg.GetDiagnosisEndpoint(); endpoint != "" {
		diagnoser = diagnosis.NewClient(endpoint, cfg.GetDiagnosisKey(), nil)
	}

	var wg sync.WaitGroup

	// run the monitor routine to manage IO on each serial port
	for _, d := range devices {
		wg.Add(1)
		go func(d serialmux.SerialMuxInterface) {
			defer wg.Done()
			if err := d.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor %s serial port: %v", d.Name(), err)
			}
			log.Printf("%s monitor routine terminated", d.Name())
		}(d)
	}

	// feed sensor lines to the store
	subs := []*acquire.Subscription{
		acquire.Subscribe(ctx, motionSerial, store, clock),
		acquire.Subscribe(ctx, gpsSerial, store, clock),
	}
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *acquire.Subscription) {
			defer wg.Done()
			<-sub.Done()
			log.Printf("subscription stopped: %+v", sub.Counters())
		}(sub)
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(store, alerts, diagnoser, clock).ServeMux()
		for _, d := range devices {
			serialmux.AttachAdminRoutes(mux, d)
		}
		if err := historyDB.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// A session still recording at shutdown is kept rather than lost.
	if store.Status().State == session.Recording {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, err := store.Stop(saveCtx)
		cancel()
		if err != nil {
			log.Printf("failed to save session %s at shutdown: %v", rec.ID, err)
		} else {
			log.Printf("saved session %s at shutdown", rec.ID)
		}
	}
	log.Printf("Graceful shutdown complete")
}
