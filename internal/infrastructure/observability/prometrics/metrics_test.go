package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "vending", "")

	c := r.Counter("drinks_sold_total", "Drinks sold.", "slot")
	c.Add(1, observability.L("slot", "A1"))
	c.Add(2, observability.L("slot", "A1"))
	c.Bind(observability.L("slot", "B1")).Add(1)

	cv, ok := r.counters.Load("drinks_sold_total")
	require.True(t, ok)
	vec := cv.(*prometheus.CounterVec)
	assert.Equal(t, 3.0, testutil.ToFloat64(vec.WithLabelValues("A1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("B1")))

	// Same name returns the same vector.
	r.Counter("drinks_sold_total", "Drinks sold.", "slot").Add(1, observability.L("slot", "B1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("B1")))
}

func TestHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "", "")

	h := r.Histogram("usecase_duration_seconds", "Duration.", nil, "use_case")
	h.Observe(0.2, observability.L("use_case", "vending.buy"))
	h.Bind(observability.L("use_case", "vending.refill")).Observe(0.1)

	n, err := testutil.GatherAndCount(reg, "usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRegistriesShareRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "", "")
	b := New(reg, "", "")

	a.Counter("http_requests_total", "Requests.", "route").Add(1, observability.L("route", "/api/buy"))
	assert.NotPanics(t, func() {
		b.Counter("http_requests_total", "Requests.", "route").Add(1, observability.L("route", "/api/buy"))
	})

	assert.Equal(t, 1, testutil.CollectAndCount(mustLoad(t, a)))
	assert.Equal(t, 2.0, testutil.ToFloat64(mustLoad(t, b).WithLabelValues("/api/buy")))
}

func mustLoad(t *testing.T, r *Registry) *prometheus.CounterVec {
	t.Helper()
	v, ok := r.counters.Load("http_requests_total")
	require.True(t, ok)
	return v.(*prometheus.CounterVec)
}
