package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cwon789/adaptive-filter/internal/fusiondb"
)

func main() {
	var dbPath string
	var runID string
	var outPath string

	flag.StringVar(&dbPath, "db", "fusion.db", "path to sqlite db")
	flag.StringVar(&runID, "run", "", "run ID to plot (defaults to the latest run)")
	flag.StringVar(&outPath, "out", "trajectory.png", "output PNG path")
	flag.Parse()

	db, err := fusiondb.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if runID == "" {
		runs, err := db.Runs(1)
		if err != nil {
			log.Fatalf("list runs: %v", err)
		}
		if len(runs) == 0 {
			log.Fatalf("no runs in %s", dbPath)
		}
		runID = runs[0].RunID
	}

	records, err := db.TrajectorySince(runID, 0)
	if err != nil {
		log.Fatalf("query trajectory: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("run %s has no estimates", runID)
	}

	pts := make(plotter.XYs, len(records))
	for i, r := range records {
		pts[i] = plotter.XY{X: r.Pose[0], Y: r.Pose[1]}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectory %s (%d estimates)", runID, len(records))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("build path line: %v", err)
	}
	line.Color = color.RGBA{B: 255, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("path", line)

	start, err := plotter.NewScatter(plotter.XYs{pts[0]})
	if err != nil {
		log.Fatalf("build start marker: %v", err)
	}
	start.GlyphStyle.Color = color.RGBA{G: 180, A: 255}
	start.GlyphStyle.Radius = vg.Points(4)
	p.Add(start)
	p.Legend.Add("start", start)

	end, err := plotter.NewScatter(plotter.XYs{pts[len(pts)-1]})
	if err != nil {
		log.Fatalf("build end marker: %v", err)
	}
	end.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
	end.GlyphStyle.Radius = vg.Points(4)
	p.Add(end)
	p.Legend.Add("end", end)

	p.Legend.Top = true

	squareAxes(p, pts)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, outPath); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	fmt.Printf("wrote %s with %d points\n", outPath, len(pts))
}

// squareAxes pads both axes to the same span so the path geometry is
// not distorted by independent axis scaling.
func squareAxes(p *plot.Plot, pts plotter.XYs) {
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, pt := range pts {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}

	span := maxX - minX
	if s := maxY - minY; s > span {
		span = s
	}
	if span == 0 {
		span = 1
	}

	half := span/2 + span*0.05
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	p.X.Min, p.X.Max = cx-half, cx+half
	p.Y.Min, p.Y.Max = cy-half, cy+half
}
