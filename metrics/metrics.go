/*package metrics exports Prometheus instrumentation for the coupling loop.

A nil *Metrics is valid and records nothing, so callers never need to check
whether instrumentation was requested.
*/
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "simplepart"

type Metrics struct {
	Iterations  prometheus.Counter
	SimTime     prometheus.Gauge
	Workers     prometheus.Gauge
	Images      *prometheus.GaugeVec
	Exchange    prometheus.Histogram
	Step        prometheus.Histogram
	LoggedRows  prometheus.Counter
	reg         prometheus.Gatherer
	workerNames []string
}

// New creates the collectors and registers them with reg. If reg is nil a
// private registry is used.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed coupling iterations.",
		}),
		SimTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_time_seconds",
			Help:      "Simulated time at the last completed iteration.",
		}),
		Workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Number of calculator workers in the last iteration.",
		}),
		Images: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "images",
			Help:      "Particle images sent to each worker in the last iteration.",
		}, []string{"worker"}),
		Exchange: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_seconds",
			Help:      "Wall time of one particle/force exchange.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
		Step: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_seconds",
			Help:      "Wall time of one integration step.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		LoggedRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logged_rows_total",
			Help:      "Rows written to the trajectory log.",
		}),
		reg: reg,
	}
}

func (m *Metrics) worker(i int) string {
	for len(m.workerNames) <= i {
		m.workerNames = append(m.workerNames, strconv.Itoa(len(m.workerNames)))
	}
	return m.workerNames[i]
}

// ObserveExchange records the partitioning and image counts of one exchange.
func (m *Metrics) ObserveExchange(images []int, d time.Duration) {
	if m == nil {
		return
	}
	m.Workers.Set(float64(len(images)))
	m.Images.Reset()
	for i, n := range images {
		m.Images.WithLabelValues(m.worker(i)).Set(float64(n))
	}
	m.Exchange.Observe(d.Seconds())
}

// ObserveStep records a completed integration step ending at simulated time
// t.
func (m *Metrics) ObserveStep(t float64, d time.Duration) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.SimTime.Set(t)
	m.Step.Observe(d.Seconds())
}

// ObserveRow counts a trajectory log row.
func (m *Metrics) ObserveRow() {
	if m == nil {
		return
	}
	m.LoggedRows.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Server exposes Handler at /metrics.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// Serve starts serving m on addr in the background.
func Serve(addr string, m *Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	s := &Server{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
	go func() {
		err := s.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return s
}

// Close stops the server, waiting at most a second for open scrapes.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
