package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue gathers reg and returns the value of the named counter for
// the given outcome label, or -1 when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func Test_Metrics_ObserveIngestByOutcome(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIngest(nil, 7)
	m.ObserveIngest(errors.New("boom"), 0)
	m.ObserveIngest(nil, 9)

	if got := counterValue(t, reg, "ragstore_corpus_ingests_total", "ok"); got != 2 {
		t.Errorf("ok ingests: want 2, got %v", got)
	}
	if got := counterValue(t, reg, "ragstore_corpus_ingests_total", "error"); got != 1 {
		t.Errorf("error ingests: want 1, got %v", got)
	}
}

func Test_Metrics_StoreSizeGaugeTracksLastSuccess(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIngest(nil, 5)
	// A failed ingest must not move the gauge.
	m.ObserveIngest(errors.New("boom"), 0)
	m.SetStoreSize(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "ragstore_store_chunks" {
			v := mf.GetMetric()[0].GetGauge().GetValue()
			if v != 3 {
				t.Errorf("want chunks=3, got %v", v)
			}
			return
		}
	}
	t.Error("ragstore_store_chunks not found in gathered metrics")
}

func Test_Metrics_NilReceiverIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics

	m.ObserveIngest(nil, 1)
	m.ObserveQuery(errors.New("boom"), time.Second)
	m.SetStoreSize(10)
}
