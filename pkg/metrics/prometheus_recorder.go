package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pairtimer"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	messages      *prom.CounterVec
	merges        *prom.CounterVec
	transitions   *prom.CounterVec
	storeFailures *prom.CounterVec
	reachable     prom.Gauge
	running       prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		messages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Replication envelopes by message type and outcome",
		}, []string{"type", "outcome"}),
		merges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Incoming timer records by merge result",
		}, []string{"result"}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_transitions_total",
			Help:      "Countdown transitions by action and origin",
		}, []string{"action", "origin"}),
		storeFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Failed persistent store writes by operation",
		}, []string{"op"}),
		reachable: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "peer_reachable",
			Help:      "1 while the paired device is reachable",
		}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "running_timers",
			Help:      "Timers currently counting down on this device (0 or 1)",
		}),
	}
	reg.MustRegister(pr.messages, pr.merges, pr.transitions, pr.storeFailures, pr.reachable, pr.running)
	return pr
}

func (p *PrometheusRecorder) IncMessage(msgType string, outcome MessageOutcome) {
	if p == nil {
		return
	}
	p.messages.WithLabelValues(msgType, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncMerge(result MergeResult) {
	if p == nil {
		return
	}
	p.merges.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncRuntimeTransition(action, origin string) {
	if p == nil {
		return
	}
	p.transitions.WithLabelValues(action, origin).Inc()
}

func (p *PrometheusRecorder) IncStoreFailure(op string) {
	if p == nil {
		return
	}
	p.storeFailures.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) SetPeerReachable(reachable bool) {
	if p == nil {
		return
	}
	if reachable {
		p.reachable.Set(1)
	} else {
		p.reachable.Set(0)
	}
}

func (p *PrometheusRecorder) SetRunningTimers(n int) {
	if p == nil {
		return
	}
	p.running.Set(float64(n))
}

var _ Recorder = (*PrometheusRecorder)(nil)
