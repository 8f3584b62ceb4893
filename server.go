package main

import (
	"net"
	"strconv"

	"github.com/cwon789/adaptive-filter/internal/config"
	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/fusiondb"
	"github.com/cwon789/adaptive-filter/internal/ingest"
	"github.com/cwon789/adaptive-filter/internal/monitor"
	"github.com/cwon789/adaptive-filter/internal/publish"
	"github.com/cwon789/adaptive-filter/serialmux"
)

// pipeline bundles the components main assembles so the monitor can
// report on all of them. Optional components stay nil when disabled.
type pipeline struct {
	staging   *fusion.Staging
	filter    *fusion.Filter
	scheduler *fusion.Scheduler
	listener  *ingest.UDPListener
	router    *ingest.Router
	publisher *publish.Publisher
	sender    *publish.Sender
	recorder  *fusiondb.Recorder
	db        *fusiondb.DB
	wheel     serialmux.SerialMuxInterface
}

// buildMonitor wires the monitor web server over the assembled pipeline.
func buildMonitor(cfg *config.Config, p *pipeline) *monitor.WebServer {
	return monitor.NewWebServer(monitor.WebServerConfig{
		Address:       cfg.GetHTTPAddr(),
		Staging:       p.staging,
		Filter:        p.filter,
		Scheduler:     p.scheduler,
		Listener:      p.listener,
		Router:        p.router,
		Publisher:     p.publisher,
		Sender:        p.sender,
		Recorder:      p.recorder,
		DB:            p.db,
		Wheel:         p.wheel,
		WheelCommands: allowedCommands,
		JournalDir:    cfg.GetJournalDir(),
		UDPPort:       udpPort(cfg.GetListenAddr()),
	})
}

// udpPort extracts the numeric port from a listen address for display.
func udpPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
