package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cwon789/adaptive-filter/internal/config"
	"github.com/cwon789/adaptive-filter/internal/fsutil"
	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/fusiondb"
	"github.com/cwon789/adaptive-filter/internal/ingest"
	"github.com/cwon789/adaptive-filter/internal/rosmsg"
	"github.com/cwon789/adaptive-filter/internal/timeutil"
)

func main() {
	var journalPath string
	var pcapPath string
	var pcapPort int
	var dbPath string
	var configPath string
	var realtime bool
	var verbose bool

	flag.StringVar(&journalPath, "journal", "", "path to a journal JSONL file")
	flag.StringVar(&pcapPath, "pcap", "", "path to a pcap capture of sensor traffic (needs -tags=pcap)")
	flag.IntVar(&pcapPort, "pcap-port", 7447, "UDP port the sensors were captured on")
	flag.StringVar(&dbPath, "db", "", "record estimates to this sqlite db")
	flag.StringVar(&configPath, "config", "", "path to a JSON config file")
	flag.BoolVar(&realtime, "realtime", false, "pace replay at recorded speed instead of file rate")
	flag.BoolVar(&verbose, "verbose", false, "enable estimator diagnostic logging")
	flag.Parse()

	if journalPath == "" && pcapPath == "" {
		log.Fatalf("a journal or a pcap capture must be provided")
	}
	if verbose {
		fusion.SetLogWriters(os.Stderr, os.Stderr, nil)
	}

	cfg := config.EmptyConfig()
	if configPath != "" {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	params := cfg.FilterParams()

	staging := fusion.NewStaging()
	filter := fusion.NewFilter(params)

	// the clock is stepped to each record's stamp so staged
	// measurements carry the recorded time, not replay wall time
	clock := timeutil.NewMockClock(time.Time{})
	router := ingest.NewRouter(staging, ingest.RouterConfig{
		InertialTopic: cfg.GetInertialTopic(),
		WheelTopic:    cfg.GetWheelTopic(),
		RangeTopic:    cfg.GetRangeTopic(),
		Clock:         clock,
	})

	var db *fusiondb.DB
	var runID string
	if dbPath != "" {
		var err error
		db, err = fusiondb.Open(dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()

		configJSON, err := json.Marshal(cfg)
		if err != nil {
			log.Fatalf("marshal config: %v", err)
		}
		run := &fusiondb.Run{ConfigJSON: configJSON}
		if err := db.BeginRun(run); err != nil {
			log.Fatalf("begin run: %v", err)
		}
		runID = run.RunID
		fmt.Printf("recording replay to %s as run %s\n", dbPath, runID)
	}

	var published, derived, insertErrors int
	scheduler, err := fusion.NewScheduler(fusion.SchedulerConfig{
		Params:  params,
		Filter:  filter,
		Staging: staging,
		Clock:   clock,
		Publish: func(e fusion.Estimate) {
			published++
			if db != nil {
				if err := db.InsertEstimate(runID, e); err != nil {
					insertErrors++
				}
			}
		},
		PublishDerived: func(d fusion.DerivedTwist) {
			derived++
			if db != nil {
				if err := db.InsertDerivedTwist(runID, d); err != nil {
					insertErrors++
				}
			}
		},
	})
	if err != nil {
		log.Fatalf("build scheduler: %v", err)
	}

	start := time.Now()
	var records, dispatchErrors int
	var firstStamp, lastStamp, prev time.Time

	// step feeds one captured datagram through the dispatch path and
	// runs a scheduler tick at its recorded time.
	step := func(ts time.Time, raw []byte) {
		records++
		if firstStamp.IsZero() {
			firstStamp = ts
		}
		lastStamp = ts

		if realtime && !prev.IsZero() {
			if d := ts.Sub(prev); d > 0 {
				time.Sleep(d)
			}
		}
		prev = ts
		clock.Set(ts)

		var env rosmsg.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			dispatchErrors++
			log.Printf("record %d: %v", records, err)
		} else if err := router.Dispatch(env); err != nil {
			dispatchErrors++
			log.Printf("record %d: %v", records, err)
		}
		scheduler.Tick(ts)
	}

	if pcapPath != "" {
		err = ingest.ReadPCAPFile(context.Background(), pcapPath, pcapPort, func(ts time.Time, payload []byte) error {
			step(ts, payload)
			return nil
		})
	} else {
		err = ingest.ReadJournal(fsutil.OSFileSystem{}, journalPath, func(rec ingest.JournalRecord) error {
			step(rec.Time, rec.Envelope)
			return nil
		})
	}
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	elapsed := time.Since(start)
	diag := filter.Diagnostics().Snapshot()
	stats := router.Stats()

	fmt.Printf("replayed %d records spanning %s in %s\n",
		records, lastStamp.Sub(firstStamp).Round(time.Millisecond), elapsed.Round(time.Millisecond))
	fmt.Printf("dispatched: inertial=%d wheel=%d range=%d unknown=%d errors=%d\n",
		stats.Inertial, stats.Wheel, stats.Range, stats.Unknown, dispatchErrors)
	fmt.Printf("published %d estimates, %d derived twists\n", published, derived)
	if insertErrors > 0 {
		fmt.Printf("insert errors: %d\n", insertErrors)
	}
	if n := diag.SingularInertial + diag.SingularWheel + diag.SingularRange; n > 0 {
		fmt.Printf("singular innovations: inertial=%d wheel=%d range=%d\n",
			diag.SingularInertial, diag.SingularWheel, diag.SingularRange)
	}
	if diag.GimbalClamps > 0 || diag.GimbalRejects > 0 {
		fmt.Printf("gimbal: clamps=%d rejects=%d\n", diag.GimbalClamps, diag.GimbalRejects)
	}

	est := filter.Estimate(lastStamp, fusion.StagePrediction)
	fmt.Printf("final pose: x=%.3f y=%.3f z=%.3f roll=%.3f pitch=%.3f yaw=%.3f\n",
		est.Pose[0], est.Pose[1], est.Pose[2], est.Pose[3], est.Pose[4], est.Pose[5])
}
