package core

import "testing"

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.incRPC()
	m.incRPCRejected()
	m.incAuthRetry()
	m.setReady(true)
	if m.Set() != nil {
		t.Fatalf("nil Metrics must return a nil Set")
	}
}

func TestMetricsReadyGaugeReflectsState(t *testing.T) {
	m := NewMetrics()
	m.setReady(true)
	if got := m.set.GetOrCreateGauge("dsclient_ready", nil).Get(); got != 1 {
		t.Fatalf("ready gauge = %v, want 1", got)
	}
	m.setReady(false)
	if got := m.set.GetOrCreateGauge("dsclient_ready", nil).Get(); got != 0 {
		t.Fatalf("ready gauge = %v, want 0", got)
	}
}
