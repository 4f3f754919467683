// Package metrics exposes rewrite, admission and generator counters through
// Prometheus. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	outcomes        *prometheus.CounterVec
	admissions      *prometheus.CounterVec
	generatorCalls  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates a Recorder registered on its own registry.
func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) (*Recorder, error) {
	r := &Recorder{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clancha_rewrite_outcomes_total",
				Help: "Rewrite requests by outcome (accepted, regenerated or an error code)",
			},
			[]string{"outcome"},
		),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clancha_admissions_total",
				Help: "Rate gate decisions by result",
			},
			[]string{"result"},
		),
		generatorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clancha_generator_calls_total",
				Help: "Generator invocations by attempt",
			},
			[]string{"attempt"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clancha_request_duration_seconds",
				Help:    "Rewrite endpoint latency in seconds by status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		gatherer: g,
	}
	for _, c := range []prometheus.Collector{r.outcomes, r.admissions, r.generatorCalls, r.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) RewriteOutcome(outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) GeneratorCall(attempt string) {
	if r == nil {
		return
	}
	r.generatorCalls.WithLabelValues(attempt).Inc()
}

// Admission counts one rate gate decision.
func (r *Recorder) Admission(admitted bool) {
	if r == nil {
		return
	}
	result := "denied"
	if admitted {
		result = "admitted"
	}
	r.admissions.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveRequest(status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
