package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.ObserveDelivery(OutcomeDelivered)
	m.ObserveDelivery(OutcomeDelivered)
	m.ObserveDelivery(OutcomeExpired)
	m.ObserveClick()
	m.ObserveSubscriber()
	m.ObserveSend(150 * time.Millisecond)
	m.ObserveRequest("GET", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues(OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues(OutcomeExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClicksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscribersRegisteredTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SendDurationSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "200")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDelivery(OutcomeFailed)
		m.ObserveClick()
		m.ObserveSubscriber()
		m.ObserveSend(time.Second)
		m.ObserveRequest("POST", 500)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveClick()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chirpy_push_clicks_total 1")
}
