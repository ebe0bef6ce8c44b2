package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("test")

	c.IncPipelineStage("DETECTING", "ok")
	c.IncPipelineStage("DETECTING", "ok")
	c.AddDetections("MINING", 3)
	c.IncCacheLookup(true)
	c.IncCacheLookup(false)
	c.IncCacheLookup(false)
	c.SetQueueDepth(7)
	c.SetReferenceFeatures("protected_areas", 12)
	c.IncReferenceReloads(false)
	c.IncPersistenceTasks("SUCCEEDED")
	c.ObserveBatchSize(4)
	c.ObservePipelineDuration("completed", 2*time.Second)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"stages", testutil.ToFloat64(c.pipelineStages.WithLabelValues("DETECTING", "ok")), 2},
		{"detections", testutil.ToFloat64(c.detections.WithLabelValues("MINING")), 3},
		{"cache hits", testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")), 1},
		{"cache misses", testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")), 2},
		{"queue depth", testutil.ToFloat64(c.queueDepth), 7},
		{"features", testutil.ToFloat64(c.referenceFeatures.WithLabelValues("protected_areas")), 12},
		{"reload errors", testutil.ToFloat64(c.referenceReloads.WithLabelValues("error")), 1},
		{"tasks", testutil.ToFloat64(c.persistenceTasks.WithLabelValues("SUCCEEDED")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")
	a.IncCacheLookup(true)

	if got := testutil.ToFloat64(b.cacheLookups.WithLabelValues("hit")); got != 0 {
		t.Errorf("second collector saw %v hits", got)
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	c := NewCollector("test")

	r := mux.NewRouter()
	r.Use(c.Middleware)
	r.HandleFunc("/api/v1/suppliers/{id}/risk-assessment", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/suppliers/"+id+"/risk-assessment", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/suppliers/{id}/risk-assessment", "4xx"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("lens")
	c.AddDetections("DEFORESTATION", 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `lens_detections_total{type="DEFORESTATION"} 1`) {
		t.Errorf("metrics output missing detections counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing runtime metrics")
	}
}

func TestStatusToString(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		304: "3xx",
		429: "4xx",
		503: "5xx",
		0:   "unknown",
	}
	for code, want := range tests {
		if got := statusToString(code); got != want {
			t.Errorf("statusToString(%d) = %q, want %q", code, got, want)
		}
	}
}
