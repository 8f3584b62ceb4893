package monitor

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/fusiondb"
	"github.com/cwon789/adaptive-filter/internal/httputil"
	"github.com/cwon789/adaptive-filter/internal/ingest"
	"github.com/cwon789/adaptive-filter/internal/publish"
	"github.com/cwon789/adaptive-filter/internal/units"
	"github.com/cwon789/adaptive-filter/internal/version"
)

// StatusSnapshot aggregates the counters of every wired pipeline
// component. Components that are not wired report zero values.
type StatusSnapshot struct {
	Service       string                  `json:"service"`
	Version       string                  `json:"version"`
	Uptime        string                  `json:"uptime"`
	RunID         string                  `json:"run_id,omitempty"`
	SchemaVersion uint                    `json:"schema_version,omitempty"`
	Scheduler     fusion.SchedulerStats   `json:"scheduler"`
	Staging       fusion.StagingStats     `json:"staging"`
	Filter        fusion.DiagnosticCounts `json:"filter"`
	Listener      ingest.ListenerStats    `json:"listener"`
	Router        ingest.RouterStats      `json:"router"`
	Publisher     publish.PublisherStats  `json:"publisher"`
	Sender        publish.SenderStats     `json:"sender"`
	Recorder      fusiondb.RecorderStats  `json:"recorder"`
}

// handleAPIStatus returns a JSON snapshot of all pipeline counters.
//
// GET /api/status
func (ws *WebServer) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, ws.statusSnapshot())
}

func (ws *WebServer) statusSnapshot() StatusSnapshot {
	snap := StatusSnapshot{
		Service: "fusion",
		Version: version.Version,
		Uptime:  ws.uptime(),
	}
	if ws.scheduler != nil {
		snap.Scheduler = ws.scheduler.Stats()
	}
	if ws.staging != nil {
		snap.Staging = ws.staging.Stats()
	}
	if ws.filter != nil {
		snap.Filter = ws.filter.Diagnostics().Snapshot()
	}
	if ws.listener != nil {
		snap.Listener = ws.listener.Stats()
	}
	if ws.router != nil {
		snap.Router = ws.router.Stats()
	}
	if ws.publisher != nil {
		snap.Publisher = ws.publisher.Stats()
	}
	if ws.sender != nil {
		snap.Sender = ws.sender.Stats()
	}
	if ws.recorder != nil {
		snap.Recorder = ws.recorder.Stats()
		snap.RunID = ws.recorder.RunID()
	}
	if ws.db != nil {
		if sv, dirty, err := ws.db.SchemaVersion(); err == nil && !dirty {
			snap.SchemaVersion = sv
		}
	}
	return snap
}

func (ws *WebServer) uptime() string {
	return time.Since(ws.started).Round(time.Second).String()
}

// handleLatestEstimate returns the most recently published estimate.
// Linear velocities stay in m/s in the estimate body; the summary
// speed field is converted to the requested units.
//
// GET /api/estimate/latest?units=mph
func (ws *WebServer) handleLatestEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.publisher == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no publisher configured")
		return
	}

	target := r.URL.Query().Get("units")
	if target == "" {
		target = units.MPS
	}
	if !units.IsValid(target) {
		httputil.BadRequest(w,
			fmt.Sprintf("invalid 'units' parameter, must be one of: %s", units.GetValidUnitsString()))
		return
	}

	est, ok := ws.publisher.Latest()
	if !ok {
		httputil.NotFound(w, "no estimate published yet")
		return
	}

	speed := math.Hypot(est.Twist[0], est.Twist[1])

	httputil.WriteJSONOK(w, map[string]interface{}{
		"estimate": est,
		"units":    target,
		"speed":    units.ConvertSpeed(speed, target),
	})
}

// handleRecentEstimates returns the newest recorded estimates for a
// run. Defaults to the live recording run when none is given.
//
// Query params:
//
//	run_id (optional when a recorder is active)
//	limit (optional, default 100)
func (ws *WebServer) handleRecentEstimates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" && ws.recorder != nil {
		runID = ws.recorder.RunID()
	}
	if runID == "" {
		httputil.BadRequest(w, "missing 'run_id' parameter")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := ws.db.RecentEstimates(runID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("query estimates: %v", err))
		return
	}
	if records == nil {
		records = []*fusiondb.EstimateRecord{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id":    runID,
		"estimates": records,
		"count":     len(records),
	})
}

// handleRuns lists recorded runs, newest first.
//
// GET /api/runs?limit=20
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	runs, err := ws.db.Runs(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("query runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*fusiondb.Run{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleWheelCommand forwards an allowlisted command to the wheel
// encoder serial port.
//
// POST /api/wheel/command with form value `command`
func (ws *WebServer) handleWheelCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.wheel == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "wheel port not configured")
		return
	}

	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "missing 'command' parameter")
		return
	}

	if !slices.Contains(ws.wheelCommands, strings.TrimSpace(command)) {
		httputil.BadRequest(w, fmt.Sprintf("command %q not allowed", command))
		return
	}

	if err := ws.wheel.SendCommand(command); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("send command: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "command": strings.TrimSpace(command)})
}
