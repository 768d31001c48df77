package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersIncrementCounters(t *testing.T) {
	m := New("test")

	m.RecordCheckout("created")
	m.RecordCheckout("created")
	m.RecordWebhook("stripe", "processed")
	m.RecordRefund("rejected")
	m.RecordReconciled("confirmed")
	m.RecordHTTPRequest(http.MethodPost, "/checkout", http.StatusCreated, 10*time.Millisecond)
	m.ObserveProviderCall("stripe", "create_checkout_session", time.Now(), errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CheckoutsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("stripe", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefundsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconciledTotal.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/checkout", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderCallDuration))
}

func TestNewUsesIsolatedRegistries(t *testing.T) {
	first := New("test")
	second := New("test")

	first.RecordCheckout("created")
	assert.Equal(t, 0.0, testutil.ToFloat64(second.CheckoutsTotal.WithLabelValues("created")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("test")
	m.RecordWebhook("stripe", "rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_webhook_events_total{outcome="rejected",provider="stripe"} 1`))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCheckout("created")
	m.RecordWebhook("stripe", "processed")
	m.RecordRefund("refunded")
	m.RecordReconciled("open")
	m.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	m.ObserveProviderCall("stripe", "create_refund", time.Now(), nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
