package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineLifecycle(t *testing.T) {
	m := New()

	m.PipelineStarted()
	if got := testutil.ToFloat64(m.ActiveOperations); got != 1 {
		t.Errorf("ActiveOperations = %v, want 1", got)
	}

	m.PipelineFinished("generating-text", OutcomeOK, 2*time.Second)
	if got := testutil.ToFloat64(m.ActiveOperations); got != 0 {
		t.Errorf("ActiveOperations after finish = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.PipelineRuns.WithLabelValues("generating-text", OutcomeOK)); got != 1 {
		t.Errorf("PipelineRuns = %v, want 1", got)
	}
}

func TestRecordRetry(t *testing.T) {
	m := New()

	m.RecordRetry("elevenlabs")
	m.RecordRetry("elevenlabs")
	m.RecordRetry("openai")

	if got := testutil.ToFloat64(m.BackendRetries.WithLabelValues("elevenlabs")); got != 2 {
		t.Errorf("BackendRetries[elevenlabs] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BackendRetries.WithLabelValues("openai")); got != 1 {
		t.Errorf("BackendRetries[openai] = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordUpdate()
	m.RecordUpdate()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "voxrelay_updates_total 2") {
		t.Errorf("metrics output missing update counter:\n%s", body)
	}
}
