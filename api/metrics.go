package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertPasswordFailureSpike AlertType = "password_failure_spike"
	AlertAuthFailureSpike     AlertType = "auth_failure_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// window counts events in a sliding time window and fires once per spike.
type window struct {
	times     []time.Time
	span      time.Duration
	threshold int
}

// metricsCollector tracks sliding window counters for anomaly detection.
type metricsCollector struct {
	mu sync.Mutex

	passwordFailures window
	authFailures     window

	alertFn AlertFunc
}

const (
	defaultPasswordFailureWindow    = 1 * time.Minute
	defaultPasswordFailureThreshold = 30
	defaultAuthFailureWindow        = 1 * time.Minute
	defaultAuthFailureThreshold     = 100
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		passwordFailures: window{span: defaultPasswordFailureWindow, threshold: defaultPasswordFailureThreshold},
		authFailures:     window{span: defaultAuthFailureWindow, threshold: defaultAuthFailureThreshold},
		alertFn:          alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditPasswordFailure:
		m.record(&m.passwordFailures, AlertPasswordFailureSpike, "certificate password failure rate exceeds threshold")
	case AuditAuthFailure:
		m.record(&m.authFailures, AlertAuthFailureSpike, "token validation failure rate exceeds threshold")
	}
}

func (m *metricsCollector) record(w *window, typ AlertType, msg string) {
	m.mu.Lock()
	now := time.Now()
	w.times = trimWindow(append(w.times, now), now, w.span)
	if len(w.times) < w.threshold {
		m.mu.Unlock()
		return
	}
	ev := AlertEvent{
		Type:      typ,
		Message:   msg,
		Count:     len(w.times),
		Threshold: w.threshold,
		Timestamp: now,
	}
	// Reset to avoid repeated alerts within the same spike.
	w.times = w.times[:0]
	m.mu.Unlock()
	m.alertFn(ev)
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
