package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cwon789/adaptive-filter/internal/config"
	"github.com/cwon789/adaptive-filter/internal/fsutil"
	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/fusiondb"
	"github.com/cwon789/adaptive-filter/internal/ingest"
	"github.com/cwon789/adaptive-filter/internal/publish"
	"github.com/cwon789/adaptive-filter/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (mock wheel encoder, no hardware required)")
	configPath = flag.String("config", config.DefaultConfigPath, "Path to JSON config file")
	listen     = flag.String("listen", "", "Monitor HTTP listen address (overrides config)")
	udpListen  = flag.String("udp-listen", "", "Sensor ingest UDP listen address (overrides config)")
	serialPort = flag.String("serial-port", "", "Wheel encoder serial port (overrides config)")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable estimator diagnostic logging")
	trace      = flag.Bool("trace", false, "Enable per-tick estimator trace logging (implies -verbose)")
)

// applyOverrides copies non-empty flag values over the loaded config.
func applyOverrides(cfg *config.Config) {
	if *listen != "" {
		cfg.HTTPAddr = listen
	}
	if *udpListen != "" {
		cfg.ListenAddr = udpListen
	}
	if *serialPort != "" {
		cfg.SerialPort = serialPort
	}
	if *dbPath != "" {
		cfg.DatabasePath = dbPath
	}
}

// Main
func main() {
	flag.Parse()

	log.Printf("fusion daemon %s", version.Human())

	var diagW, traceW io.Writer
	if *verbose || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	fusion.SetLogWriters(os.Stderr, diagW, traceW)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("failed to load config from %s, using defaults: %v", *configPath, err)
		cfg = config.EmptyConfig()
	}
	applyOverrides(cfg)

	params := cfg.FilterParams()
	p := &pipeline{
		staging: fusion.NewStaging(),
		filter:  fusion.NewFilter(params),
	}

	p.publisher = publish.NewPublisher()
	p.publisher.Start()
	defer p.publisher.Stop()

	p.scheduler, err = fusion.NewScheduler(fusion.SchedulerConfig{
		Params:         params,
		Filter:         p.filter,
		Staging:        p.staging,
		Publish:        p.publisher.PublishEstimate,
		PublishDerived: p.publisher.PublishDerived,
	})
	if err != nil {
		log.Fatalf("failed to build scheduler: %v", err)
	}

	var journal *ingest.Journal
	if dir := cfg.GetJournalDir(); dir != "" {
		journal, err = ingest.NewJournal(fsutil.OSFileSystem{}, dir, nil)
		if err != nil {
			log.Fatalf("failed to open journal in %s: %v", dir, err)
		}
		defer journal.Close()
		log.Printf("journalling datagrams to %s", journal.Path())
	}

	p.router = ingest.NewRouter(p.staging, ingest.RouterConfig{
		InertialTopic: cfg.GetInertialTopic(),
		WheelTopic:    cfg.GetWheelTopic(),
		RangeTopic:    cfg.GetRangeTopic(),
	})
	p.listener = ingest.NewUDPListener(ingest.UDPListenerConfig{
		Address: cfg.GetListenAddr(),
		Router:  p.router,
		Journal: journal,
	})

	if path := cfg.GetDatabasePath(); path != "" {
		p.db, err = fusiondb.Open(path)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer p.db.Close()

		configJSON, err := json.Marshal(cfg)
		if err != nil {
			log.Fatalf("failed to marshal config: %v", err)
		}
		run := &fusiondb.Run{ConfigJSON: configJSON}
		if err := p.db.BeginRun(run); err != nil {
			log.Fatalf("failed to begin run: %v", err)
		}
		p.recorder = fusiondb.NewRecorder(p.db, run.RunID)
		log.Printf("recording estimates to %s as run %s", path, run.RunID)
	}

	if addr := cfg.GetEgressAddr(); addr != "" {
		p.sender, err = publish.NewSender(publish.SenderConfig{
			Address:           addr,
			OdometryTopic:     cfg.GetOdometryTopic(),
			DerivedTwistTopic: cfg.GetDerivedTwistTopic(),
			TransformTopic:    cfg.GetTransformTopic(),
			MapFrame:          cfg.GetMapFrame(),
			DerivedFrame:      cfg.GetDerivedFrame(),
		})
		if err != nil {
			log.Fatalf("failed to create egress sender: %v", err)
		}
		defer p.sender.Close()
	}

	p.wheel, err = buildWheelMux(cfg, *devMode)
	if err != nil {
		log.Fatalf("failed to create wheel encoder mux: %v", err)
	}
	defer p.wheel.Close()

	if err := p.wheel.Initialize(); err != nil {
		log.Fatalf("failed to initialize wheel encoder: %v", err)
	}
	log.Printf("wheel encoder initialized")

	// Create a wait group for the fusion, ingest, serial, and monitor routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the estimation loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.scheduler.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	// listen for sensor datagrams
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener stopped: %v", err)
		}
	}()

	// record published estimates to the database
	if p.recorder != nil {
		sub := p.publisher.Subscribe("recorder", 256)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.publisher.Unsubscribe("recorder")
			if err := p.recorder.Run(ctx, sub); err != nil && err != context.Canceled {
				log.Printf("recorder stopped: %v", err)
			}
		}()
	}

	// forward published estimates over UDP egress
	if p.sender != nil {
		sub := p.publisher.Subscribe("egress", 256)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.publisher.Unsubscribe("egress")
			if err := p.sender.Run(ctx, sub); err != nil && err != context.Canceled {
				log.Printf("egress sender stopped: %v", err)
			}
		}()
	}

	runWheelSerial(ctx, &wg, p.wheel, p.staging)

	// monitor web server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := buildMonitor(cfg, p).Start(ctx); err != nil {
			log.Printf("monitor stopped: %v", err)
		}
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
