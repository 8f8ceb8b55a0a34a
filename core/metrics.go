package core

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics groups the VictoriaMetrics/metrics counters a Client updates as
// it runs, wired into pkg/debugsrv's /metrics endpoint. A nil *Metrics is
// valid everywhere it's used (all methods below are nil-safe no-ops),
// since metrics are optional. cmd/dsclient always attaches one and serves
// it over HTTP only when --metrics-listen is set.
type Metrics struct {
	set *metrics.Set

	rpcTotal         *metrics.Counter
	rpcRejectedTotal *metrics.Counter
	authRetriesTotal *metrics.Counter
	readyState       int32 // 0 or 1, read by the dsclient_ready gauge callback
}

// NewMetrics creates a fresh metric set, registering its gauges/counters
// under the dsclient_* namespace.
func NewMetrics() *Metrics {
	m := &Metrics{set: metrics.NewSet()}
	m.rpcTotal = m.set.NewCounter("dsclient_rpc_total")
	m.rpcRejectedTotal = m.set.NewCounter("dsclient_rpc_rejected_total")
	m.authRetriesTotal = m.set.NewCounter("dsclient_auth_retries_total")
	m.set.NewGauge("dsclient_ready", func() float64 {
		return float64(atomic.LoadInt32(&m.readyState))
	})
	return m
}

// Set returns the underlying metrics.Set for registration with a
// WritePrometheus handler (see pkg/debugsrv).
func (m *Metrics) Set() *metrics.Set {
	if m == nil {
		return nil
	}
	return m.set
}

func (m *Metrics) incRPC() {
	if m != nil {
		m.rpcTotal.Inc()
	}
}

func (m *Metrics) incRPCRejected() {
	if m != nil {
		m.rpcRejectedTotal.Inc()
	}
}

func (m *Metrics) incAuthRetry() {
	if m != nil {
		m.authRetriesTotal.Inc()
	}
}

func (m *Metrics) setReady(ready bool) {
	if m == nil {
		return
	}
	var v int32
	if ready {
		v = 1
	}
	atomic.StoreInt32(&m.readyState, v)
}
