package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIngestMetricsExportsRunAndDocumentCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewIngestMetrics(reg)

	metrics.ObserveRun("ok", 120*time.Millisecond)
	metrics.IncDocument("persisted")
	metrics.IncDocument("duplicate")
	metrics.IncGrant("payment_sync")
	metrics.IncPending("unmapped")
	metrics.IncFetchAttempt("timeout")
	metrics.IncCapabilityDisabled("ownership_upsert")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "passes_sync_runs_total", "outcome", "ok"); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected runs=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "passes_sync_documents_total", "disposition", "persisted"); err != nil {
		t.Fatalf("fetch docs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected persisted docs=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "storage_capability_disabled_total", "capability", "ownership_upsert"); err != nil {
		t.Fatalf("fetch capability: %v", err)
	} else if got != 1 {
		t.Fatalf("expected capability=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "passes_sync_duration_seconds", "outcome", "ok"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestIngestMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *IngestMetrics
	metrics.ObserveRun("ok", time.Second)
	metrics.IncDocument("persisted")
	metrics.IncGrant("derived")
	metrics.IncPending("unmapped")
	metrics.IncFetchAttempt("ok")
	metrics.IncCapabilityDisabled("token_column")
}
