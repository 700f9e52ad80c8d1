package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordAssignment(t *testing.T) {
	c := NewCollector("", nil)

	c.RecordAssignment("homepage_hero", "hero_button_colors_v1", "blue")
	c.RecordAssignment("homepage_hero", "hero_button_colors_v1", "blue")
	c.RecordAssignment("homepage_hero", "hero_button_colors_v1", "green")

	got := testutil.ToFloat64(c.assignmentsTotal.WithLabelValues("homepage_hero", "hero_button_colors_v1", "blue"))
	if got != 2 {
		t.Errorf("blue assignments = %v, want 2", got)
	}
}

func TestCollector_RecordSRMTest(t *testing.T) {
	c := NewCollector("", nil)

	c.RecordSRMTest("exp_1", false)
	c.RecordSRMTest("exp_1", true)
	c.RecordSRMTest("exp_2", true)

	if got := testutil.ToFloat64(c.srmTestsTotal); got != 3 {
		t.Errorf("srm tests = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.srmFlaggedTotal.WithLabelValues("exp_1")); got != 1 {
		t.Errorf("exp_1 flags = %v, want 1", got)
	}
}

func TestCollector_NilReceiverIsSafe(t *testing.T) {
	var c *Collector
	c.RecordAssignment("l", "e", "v")
	c.RecordExclusion("l", "ramp_gate")
	c.RecordUnassigned("l")
	c.RecordAssignmentDuration(time.Millisecond)
	c.RecordSyncApply("l", "applied")
	c.RecordSyncViolation("l", "capacity")
	c.RecordSRMTest("e", true)
	if c.Registry() != nil {
		t.Error("nil collector should have a nil registry")
	}
}

func TestCollector_CustomNamespaceAndRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector("traffic", registry)
	c.RecordUnassigned("homepage_hero")

	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "traffic_unassigned_total" {
			found = true
		}
	}
	if !found {
		t.Error("namespaced metric not registered on the supplied registry")
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("", nil)
	c.RecordSyncApply("homepage_hero", "applied")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "avos_sync_applies_total") {
		t.Errorf("exposition output missing counter:\n%s", body)
	}
}
