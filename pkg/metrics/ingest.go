package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics records counters for the payment-sync pipeline.
type IngestMetrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	docs          *prometheus.CounterVec
	grants        *prometheus.CounterVec
	pending       *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	capabilityOff *prometheus.CounterVec
}

// NewIngestMetrics registers the pipeline metrics on the provided registerer.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passes_sync_runs_total",
		Help: "Payment sync runs by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "passes_sync_duration_seconds",
		Help:    "Duration of payment sync runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	docs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passes_sync_documents_total",
		Help: "Upstream documents seen, by disposition.",
	}, []string{"disposition"})
	grants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passes_sync_grants_total",
		Help: "Pass ownerships granted, by source.",
	}, []string{"source"})
	pending := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passes_sync_pending_total",
		Help: "Logs left pending after a run, by reason.",
	}, []string{"reason"})
	fetchAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_fetch_attempts_total",
		Help: "Upstream portal fetch attempts by result.",
	}, []string{"result"})
	capabilityOff := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_capability_disabled_total",
		Help: "Storage capability flags flipped off at runtime.",
	}, []string{"capability"})
	reg.MustRegister(runs, duration, docs, grants, pending, fetchAttempts, capabilityOff)
	return &IngestMetrics{
		runs:          runs,
		duration:      duration,
		docs:          docs,
		grants:        grants,
		pending:       pending,
		fetchAttempts: fetchAttempts,
		capabilityOff: capabilityOff,
	}
}

// ObserveRun records one completed sync run.
func (m *IngestMetrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.runs.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncDocument counts one upstream document by disposition
// (persisted, duplicate, rejected, skipped).
func (m *IngestMetrics) IncDocument(disposition string) {
	if m == nil || m.docs == nil {
		return
	}
	m.docs.WithLabelValues(normalizeLabel(disposition)).Inc()
}

// IncGrant counts one granted ownership by source.
func (m *IngestMetrics) IncGrant(source string) {
	if m == nil || m.grants == nil {
		return
	}
	m.grants.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncPending counts one log left pending by reason.
func (m *IngestMetrics) IncPending(reason string) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncFetchAttempt counts one portal request by result (ok, error, timeout).
func (m *IngestMetrics) IncFetchAttempt(result string) {
	if m == nil || m.fetchAttempts == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCapabilityDisabled counts a storage capability being turned off.
func (m *IngestMetrics) IncCapabilityDisabled(capability string) {
	if m == nil || m.capabilityOff == nil {
		return
	}
	m.capabilityOff.WithLabelValues(normalizeLabel(capability)).Inc()
}
