package serialmux

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/cwon789/adaptive-filter/internal/fusion"
)

// Serial telemetry carries no covariance, so staged measurements use these
// fixed variances. The filter still scales them by its wheel gain.
const (
	telemetryForwardVar = 0.1
	telemetryYawRateVar = 0.1
)

// CurrentState holds the latest config values received from the device
// and is intentionally package-level so the monitor or tests can inspect it.
var CurrentState map[string]any

// ParseTelemetry decodes one `uptime_ms,vx,wz` line into the device uptime,
// forward velocity in m/s and yaw rate in rad/s.
func ParseTelemetry(payload string) (time.Duration, float64, float64, error) {
	fields := strings.Split(strings.TrimSpace(payload), ",")
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	ms, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad uptime field %q: %w", fields[0], err)
	}
	forward, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad forward velocity field %q: %w", fields[1], err)
	}
	yawRate, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad yaw rate field %q: %w", fields[2], err)
	}
	return time.Duration(ms) * time.Millisecond, forward, yawRate, nil
}

// HandleTelemetry stages one telemetry line as a wheel measurement. The
// measurement is stamped with the host receive time rather than the device
// uptime so it shares a clock with the other sensor streams.
func HandleTelemetry(staging *fusion.Staging, now time.Time, payload string) error {
	_, forward, yawRate, err := ParseTelemetry(payload)
	if err != nil {
		return fmt.Errorf("failed to parse telemetry line %q: %w", payload, err)
	}
	staging.Wheel.Put(fusion.WheelMeasurement{
		Time:       now,
		Forward:    forward,
		YawRate:    yawRate,
		ForwardVar: telemetryForwardVar,
		YawRateVar: telemetryYawRateVar,
	})
	return nil
}

func HandleConfigResponse(payload string) error {
	var configValues map[string]any

	if err := json.Unmarshal([]byte(payload), &configValues); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	// update the current state with the new config values
	if CurrentState == nil {
		CurrentState = make(map[string]any)
	}
	for k, v := range configValues {
		CurrentState[k] = v
	}

	// log the current line
	log.Printf("Config Line: %+v", payload)

	return nil
}

func HandleEvent(staging *fusion.Staging, now time.Time, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeTelemetry:
		if err := HandleTelemetry(staging, now, payload); err != nil {
			return fmt.Errorf("failed to handle telemetry event: %v", err)
		}
	case EventTypeConfig:
		if err := HandleConfigResponse(payload); err != nil {
			return fmt.Errorf("failed to handle config response: %v", err)
		}
	case EventTypeNotice:
		log.Printf("Encoder: %s", strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(payload), "#")))
	default:
		log.Printf("unknown event type: %s", payload)
	}
	return nil
}
