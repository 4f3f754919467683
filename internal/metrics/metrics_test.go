package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	r.RewriteOutcome("accepted")
	r.RewriteOutcome("accepted")
	r.RewriteOutcome("UNSAFE_CONTENT")
	r.GeneratorCall("first")
	r.GeneratorCall("regeneration")
	r.Admission(true)
	r.Admission(false)
	r.Admission(false)
	r.ObserveRequest(200, 15*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("accepted")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("UNSAFE_CONTENT")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.generatorCalls.WithLabelValues("regeneration")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.admissions.WithLabelValues("admitted")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.admissions.WithLabelValues("denied")))
	require.Equal(t, 1, testutil.CollectAndCount(r.requestDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.RewriteOutcome("accepted")
		r.GeneratorCall("first")
		r.Admission(true)
		r.ObserveRequest(500, time.Second)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewWithRegistry_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewWithRegistry(reg, reg)
	require.NoError(t, err)

	_, err = NewWithRegistry(reg, reg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "register collector")
}

func TestRecorder_Handler(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	r.Admission(true)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `clancha_admissions_total{result="admitted"} 1`)
}
