package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.ObserveValidation("valid", 10*time.Millisecond)
	m.ObserveValidation("valid", 10*time.Millisecond)
	m.ObserveValidation("digest_mismatch", time.Millisecond)
	m.IncContentSource("store")
	m.IncFetchFailure()
	m.IncStoreOp("Get", "ok")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var valid float64
	for _, mf := range families {
		if mf.GetName() != "sigpolicy_validations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == "valid" {
					valid = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if valid != 2 {
		t.Fatalf("valid count: got %v", valid)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"sigpolicy_store_operations_total", "sigpolicy_fetch_failures_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}

	if _, err := New(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveValidation("valid", time.Second)
	m.IncContentSource("fetch")
	m.IncFetchFailure()
	m.IncStoreOp("Put", "ok")
}
