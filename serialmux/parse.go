package serialmux

import "strings"

const (
	EventTypeTelemetry = "telemetry"
	EventTypeNotice    = "notice"
	EventTypeConfig    = "config"
	EventTypeUnknown   = "unknown"
)

// ClassifyPayload inspects a payload string and returns a simple event type
// token. The classification is intentionally conservative and mirrors the
// framing the encoder firmware emits.
func ClassifyPayload(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return EventTypeUnknown
	}
	if strings.HasPrefix(trimmed, "{") {
		return EventTypeConfig
	}
	if strings.HasPrefix(trimmed, "#") {
		return EventTypeNotice
	}
	if looksLikeTelemetry(trimmed) {
		return EventTypeTelemetry
	}
	return EventTypeUnknown
}

// looksLikeTelemetry reports whether a line matches the `uptime_ms,vx,wz`
// shape: three comma separated fields with a numeric first field.
func looksLikeTelemetry(line string) bool {
	if strings.Count(line, ",") != 2 {
		return false
	}
	first := line[:strings.IndexByte(line, ',')]
	if first == "" {
		return false
	}
	for _, r := range first {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
