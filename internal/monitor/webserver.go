// Package monitor serves the HTTP interface of the fusion daemon: a
// status page, JSON endpoints over the live pipeline counters and the
// estimate database, and go-echarts debug charts.
package monitor

import (
	"context"
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/fusiondb"
	"github.com/cwon789/adaptive-filter/internal/httputil"
	"github.com/cwon789/adaptive-filter/internal/ingest"
	"github.com/cwon789/adaptive-filter/internal/publish"
	"github.com/cwon789/adaptive-filter/internal/version"
)

//go:embed status.html
var StatusHTML embed.FS

// WheelCommander is the subset of the wheel serial mux the command
// endpoint needs.
type WheelCommander interface {
	SendCommand(command string) error
}

// WebServer handles the HTTP interface for monitoring the fusion
// pipeline. Every data source is optional; endpoints backed by a
// source that is not wired answer 503.
type WebServer struct {
	address       string
	server        *http.Server
	staging       *fusion.Staging
	filter        *fusion.Filter
	scheduler     *fusion.Scheduler
	listener      *ingest.UDPListener
	router        *ingest.Router
	publisher     *publish.Publisher
	sender        *publish.Sender
	recorder      *fusiondb.Recorder
	db            *fusiondb.DB
	wheel         WheelCommander
	wheelCommands []string
	journalDir    string
	udpPort       int
	started       time.Time
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address       string
	Staging       *fusion.Staging
	Filter        *fusion.Filter
	Scheduler     *fusion.Scheduler
	Listener      *ingest.UDPListener
	Router        *ingest.Router
	Publisher     *publish.Publisher
	Sender        *publish.Sender
	Recorder      *fusiondb.Recorder
	DB            *fusiondb.DB
	Wheel         WheelCommander
	WheelCommands []string
	JournalDir    string
	UDPPort       int
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:       config.Address,
		staging:       config.Staging,
		filter:        config.Filter,
		scheduler:     config.Scheduler,
		listener:      config.Listener,
		router:        config.Router,
		publisher:     config.Publisher,
		sender:        config.Sender,
		recorder:      config.Recorder,
		db:            config.DB,
		wheel:         config.Wheel,
		wheelCommands: config.WheelCommands,
		journalDir:    config.JournalDir,
		udpPort:       config.UDPPort,
		started:       time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// Create a shutdown context with a shorter timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/status", ws.handleAPIStatus)
	mux.HandleFunc("/api/estimate/latest", ws.handleLatestEstimate)
	mux.HandleFunc("/api/estimates/recent", ws.handleRecentEstimates)
	mux.HandleFunc("/api/runs", ws.handleRuns)
	mux.HandleFunc("/api/wheel/command", ws.handleWheelCommand)
	mux.HandleFunc("/api/journals", ws.handleJournalList)
	mux.HandleFunc("/api/journals/download", ws.handleJournalDownload)
	mux.HandleFunc("/charts/trajectory", ws.handleTrajectoryChart)
	mux.HandleFunc("/charts/covariance", ws.handleCovarianceChart)

	return mux
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "fusion",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus handles the main status page endpoint
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	// Load and parse the HTML template from embedded filesystem
	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		Version     string
		HTTPAddress string
		UDPPort     int
		Uptime      string
		RunID       string
		HasEstimate bool
		Stage       string
		Pose        [6]float64
		Twist       [6]float64
		Scheduler   fusion.SchedulerStats
		Staging     fusion.StagingStats
		Diagnostics fusion.DiagnosticCounts
	}{
		Version:     version.Version,
		HTTPAddress: ws.address,
		UDPPort:     ws.udpPort,
		Uptime:      time.Since(ws.started).Round(time.Second).String(),
	}
	if ws.recorder != nil {
		data.RunID = ws.recorder.RunID()
	}
	if ws.publisher != nil {
		if est, ok := ws.publisher.Latest(); ok {
			data.HasEstimate = true
			data.Stage = string(est.Stage)
			data.Pose = est.Pose
			data.Twist = est.Twist
		}
	}
	if ws.scheduler != nil {
		data.Scheduler = ws.scheduler.Stats()
	}
	if ws.staging != nil {
		data.Staging = ws.staging.Stats()
	}
	if ws.filter != nil {
		data.Diagnostics = ws.filter.Diagnostics().Snapshot()
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
