package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cwon789/adaptive-filter/internal/httputil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTrajectoryChart renders the recorded trajectory of a run as an
// XY scatter (HTML) using go-echarts. Points are colored by ground
// speed. This is a debugging-only endpoint (no auth) to inspect a run
// without external tooling.
// Query params:
//   - run_id (optional; defaults to the live recording run)
//   - since (optional; unix seconds, defaults to run start)
//   - max_points (optional; default 8000) to reduce payload size
func (ws *WebServer) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
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

	var sinceNanos int64
	if s := r.URL.Query().Get("since"); s != "" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			sinceNanos = parsed * 1e9
		}
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	records, err := ws.db.TrajectorySince(runID, sinceNanos)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("query trajectory: %v", err))
		return
	}
	if len(records) == 0 {
		httputil.NotFound(w, "no estimates recorded for run")
		return
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if len(records) > maxPoints {
		stride = int(math.Ceil(float64(len(records)) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, len(records)/stride+1)
	maxAbs := 0.0
	maxSpeed := 0.0
	for i := 0; i < len(records); i += stride {
		rec := records[i]
		x := rec.Pose[0]
		y := rec.Pose[1]
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}

		speed := math.Hypot(rec.Twist[0], rec.Twist[1])
		if speed > maxSpeed {
			maxSpeed = speed
		}

		data = append(data, opts.ScatterData{Value: []interface{}{x, y, speed}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	if maxSpeed == 0 {
		maxSpeed = 1
	}

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Fused Trajectory", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Fused Trajectory", Subtitle: fmt.Sprintf("run=%s points=%d stride=%d", runID, len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSpeed),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("trajectory", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCovarianceChart renders a bar chart of the current estimate's
// per-state standard deviations.
func (ws *WebServer) handleCovarianceChart(w http.ResponseWriter, r *http.Request) {
	if ws.publisher == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no publisher configured")
		return
	}

	est, ok := ws.publisher.Latest()
	if !ok {
		httputil.NotFound(w, "no estimate published yet")
		return
	}

	x := []string{
		"x (m)", "y (m)", "z (m)", "roll (rad)", "pitch (rad)", "yaw (rad)",
		"vx (m/s)", "vy (m/s)", "vz (m/s)", "wx (rad/s)", "wy (rad/s)", "wz (rad/s)",
	}
	y := make([]opts.BarData, 0, len(x))
	for i := 0; i < 6; i++ {
		y = append(y, opts.BarData{Value: math.Sqrt(math.Abs(est.PoseCov[i*6+i]))})
	}
	for i := 0; i < 6; i++ {
		y = append(y, opts.BarData{Value: math.Sqrt(math.Abs(est.TwistCov[i*6+i]))})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Estimate Standard Deviations",
			Subtitle: fmt.Sprintf("stage=%s %s", est.Stage, est.Time.UTC().Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("sigma", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
