package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artpar/dbedit/adapters/metrics"
)

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.DocumentsLoaded == nil || m.RecordsSaved == nil || m.RequestsTotal == nil {
		t.Error("collector has nil metrics")
	}
}

func TestRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RecordsAdded.WithLabelValues("mob").Inc()
	m.RecordsAdded.WithLabelValues("mob").Inc()
	m.RecordsDeleted.WithLabelValues("item").Inc()
	m.Records.WithLabelValues("mob").Set(42)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	values := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[f.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[f.GetName()] += metric.GetGauge().GetValue()
			}
		}
	}

	if got := values["dbedit_records_added_total"]; got != 2 {
		t.Errorf("records_added_total = %v, want 2", got)
	}
	if got := values["dbedit_records"]; got != 42 {
		t.Errorf("records = %v, want 42", got)
	}
	if _, ok := values["dbedit_records_deleted_total"]; !ok {
		t.Error("dbedit_records_deleted_total metric not found")
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{409, "4xx"},
		{500, "5xx"},
	}

	for _, tt := range tests {
		if got := metrics.StatusClass(tt.status); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
