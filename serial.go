package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cwon789/adaptive-filter/internal/config"
	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/serialmux"
)

// mockTelemetry is the line the mock wheel encoder replays in dev mode
// when no fixtures file is present.
const mockTelemetry = "1000,0.25,-0.04\n"

// buildWheelMux constructs the serial mux for the wheel encoder board.
// In dev mode it replays a fixture line instead of opening hardware. An
// empty serial port in the config disables the wheel reader entirely.
func buildWheelMux(cfg *config.Config, devMode bool) (serialmux.SerialMuxInterface, error) {
	if devMode {
		line := mockTelemetry
		if data, err := os.ReadFile("fixtures.txt"); err == nil {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 && lines[0] != "" {
				line = lines[0] + "\n"
			}
		}
		return serialmux.NewMockSerialMux([]byte(line)), nil
	}

	port := cfg.GetSerialPort()
	if port == "" {
		return serialmux.NewDisabledSerialMux(), nil
	}

	mux, err := serialmux.NewRealSerialMux(port, serialmux.PortOptions{BaudRate: cfg.GetSerialBaud()})
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel encoder port %s: %w", port, err)
	}
	return mux, nil
}

// runWheelSerial starts the serial monitor and a subscriber that feeds
// decoded wheel telemetry into the staging area.
func runWheelSerial(ctx context.Context, wg *sync.WaitGroup, mux serialmux.SerialMuxInterface, staging *fusion.Staging) {
	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the serial port messages
	// and pass them to the event handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := mux.Subscribe()
		defer mux.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := serialmux.HandleEvent(staging, time.Now(), payload); err != nil {
					log.Printf("error handling wheel event: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()
}
