package main

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cwon789/adaptive-filter/internal/config"
	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/testutil"
	"github.com/cwon789/adaptive-filter/serialmux"
)

func TestBuildWheelMux_DisabledWithoutPort(t *testing.T) {
	cfg := config.EmptyConfig()

	mux, err := buildWheelMux(cfg, false)
	if err != nil {
		t.Fatalf("buildWheelMux returned error: %v", err)
	}
	defer mux.Close()

	if _, ok := mux.(*serialmux.DisabledSerialMux); !ok {
		t.Fatalf("expected disabled mux without a serial port, got %T", mux)
	}
}

func TestBuildWheelMux_BadPort(t *testing.T) {
	cfg := config.EmptyConfig()
	port := "/dev/nonexistent-serial-port-12345"
	cfg.SerialPort = &port

	_, err := buildWheelMux(cfg, false)
	testutil.AssertError(t, err)
}

func TestBuildWheelMux_DevMode(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	mux, err := buildWheelMux(config.EmptyConfig(), true)
	if err != nil {
		t.Fatalf("buildWheelMux returned error: %v", err)
	}
	defer mux.Close()

	if err := mux.Initialize(); err != nil {
		t.Errorf("Initialize returned error: %v", err)
	}
}

func TestBuildWheelMux_DevModeFixture(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.WriteFile("fixtures.txt", []byte("999,1.5,0.25\n"), 0644); err != nil {
		t.Fatalf("failed to write fixtures file: %v", err)
	}

	mux, err := buildWheelMux(config.EmptyConfig(), true)
	if err != nil {
		t.Fatalf("buildWheelMux returned error: %v", err)
	}
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	id, c := mux.Subscribe()
	defer mux.Unsubscribe(id)

	select {
	case payload := <-c:
		if payload != "999,1.5,0.25" {
			t.Errorf("payload = %q; want fixture line", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fixture telemetry")
	}
}

func TestRunWheelSerial_FeedsStaging(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.BlockReads = true
	mux := serialmux.NewSerialMux(port)
	staging := fusion.NewStaging()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	runWheelSerial(ctx, &wg, mux, staging)

	port.AddReadData([]byte("184533,0.412,-0.087\n"))

	deadline := time.Now().Add(2 * time.Second)
	var got fusion.WheelMeasurement
	for {
		m, ok := staging.Wheel.Take()
		if ok {
			got = m
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for wheel measurement")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.Forward != 0.412 {
		t.Errorf("Forward = %v; want 0.412", got.Forward)
	}
	if got.YawRate != -0.087 {
		t.Errorf("YawRate = %v; want -0.087", got.YawRate)
	}
	if got.Time.IsZero() {
		t.Error("measurement time was not stamped")
	}

	cancel()
	mux.Close()
	wg.Wait()
}
