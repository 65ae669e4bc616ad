package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAPI(t *testing.T) {
	m := New()

	m.ObserveAPI("login", "ok", 20*time.Millisecond)
	m.ObserveAPI("login", "ok", 30*time.Millisecond)
	m.ObserveAPI("login", "backend_error", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("login", "backend_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.apiDuration))
}

func TestCounters(t *testing.T) {
	m := New()

	m.CheckoutResult("confirmed")
	m.SessionTransition("authenticated")
	m.CartPersist(true)
	m.CartPersist(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("authenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartWrites.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartWrites.WithLabelValues("error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAPI("x", "ok", time.Millisecond)
		m.CheckoutResult("failed")
		m.SessionTransition("anonymous")
		m.CartPersist(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.CheckoutResult("confirmed")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_checkout_submissions_total{result="confirmed"} 1`)
}
