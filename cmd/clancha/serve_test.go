package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clancha/handler"
	"clancha/internal/domain"
	"clancha/internal/metrics"
	"clancha/internal/ratelimit"
	"clancha/internal/usecase"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _ domain.GenerationRequest) (string, error) {
	return "Rewritten text", nil
}

type modelParams struct{}

func (modelParams) GetParameter(_ context.Context, name string) (string, error) {
	if strings.HasSuffix(name, "/config/model") {
		return "gpt-test", nil
	}
	return "", errors.New("not found")
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	gate, err := ratelimit.NewGate(ratelimit.NewMemoryStore(), ratelimit.WithLimit(2))
	require.NoError(t, err)
	rec, err := metrics.New()
	require.NoError(t, err)
	svc, err := usecase.NewRewriteService(modelParams{}, echoGenerator{}, "/clancha", usecase.WithRecorder(rec))
	require.NoError(t, err)
	h, err := handler.NewHandler(gate, svc, handler.WithMetrics(rec), handler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return newMux(h, rec)
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(b)
}

func TestServeMux_RewriteAndMetrics(t *testing.T) {
	srv := httptest.NewServer(newTestMux(t))
	defer srv.Close()

	res, body := post(t, srv.URL+rewritePath, `{"text":"He was happy","style":"Calm & Clear"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"rewrittenText":"Rewritten text"}`, body)
	require.NotEmpty(t, res.Header.Get("X-Correlation-Id"))

	res, body = post(t, srv.URL+rewritePath, `{"text":"I will kill you"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Contains(t, body, "direct threat")

	res, _ = post(t, srv.URL+rewritePath, `{"text":"hello"}`)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	mres, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = mres.Body.Close() }()
	metricsBody, err := io.ReadAll(mres.Body)
	require.NoError(t, err)
	require.Contains(t, string(metricsBody), `clancha_admissions_total{result="denied"} 1`)
	require.Contains(t, string(metricsBody), `clancha_rewrite_outcomes_total{outcome="UNSAFE_CONTENT"} 1`)
	require.Contains(t, string(metricsBody), `clancha_generator_calls_total{attempt="first"} 1`)
}

func TestServeMux_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(newTestMux(t))
	defer srv.Close()

	res, err := http.Get(srv.URL + rewritePath)
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestToProxyRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, rewritePath, strings.NewReader(`{"text":"hi"}`))
	r.RemoteAddr = "192.0.2.9:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")

	event, err := toProxyRequest(r)
	require.NoError(t, err)
	require.Equal(t, `{"text":"hi"}`, event.Body)
	require.Equal(t, "192.0.2.9", event.RequestContext.Identity.SourceIP)
	require.Equal(t, "203.0.113.7", handler.RateKey(event))

	big := httptest.NewRequest(http.MethodPost, rewritePath, strings.NewReader(strings.Repeat("a", maxBodyBytes+1)))
	_, err = toProxyRequest(big)
	require.Error(t, err)
}
