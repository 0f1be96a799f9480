package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/civicwatch/intake/internal/telemetry"
)

// providerOnce ensures we only create one Provider per test run to avoid
// duplicate Prometheus metric registration errors from promauto's global
// registry.
var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

func getTestProvider(t *testing.T) *telemetry.Provider {
	t.Helper()
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

func TestNewProvider(t *testing.T) {
	provider := getTestProvider(t)
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
	if provider.Tracer == nil {
		t.Error("expected non-nil tracer")
	}
	if provider.Metrics == nil {
		t.Error("expected non-nil metrics")
	}
}

func TestRecordSubmission(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordSubmission(ctx, "auto_processed", 100*time.Millisecond)
	provider.RecordSubmission(ctx, "submitted", 50*time.Millisecond)
	provider.RecordSubmissionFailure(ctx, "validation")
}

func TestRecordEnrichmentAndFallback(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordEnrichment(ctx, "succeeded")
	provider.RecordEnrichment(ctx, "failed")
	provider.RecordMLFallback(ctx, "classify")
	provider.RecordMLFallback(ctx, "similarity")
}

func TestRecordDedup(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordDedup(ctx, 3, 0.62)
	provider.RecordDedup(ctx, 0, 0)
	provider.RecordAutoMerge(ctx)
	provider.RecordAutoFlag(ctx, "toxicity")
}

func TestRecordWorkflow(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordTransition(ctx, "verified")
	provider.RecordTransitionRejected(ctx)
	provider.RecordReclassify(ctx, true)
	provider.RecordReclassify(ctx, false)
}

func TestStartSpan(t *testing.T) {
	provider := getTestProvider(t)

	ctx, span := provider.StartSpan(context.Background(), "test-span")
	defer span.End()

	if ctx == nil {
		t.Error("expected non-nil context")
	}
}
