// Package metrics exposes solver and job server metrics on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/filo/internal/opt"
)

const namespace = "filo"

var (
	// Registry is the dedicated registry served on /metrics
	Registry = prometheus.NewRegistry()

	// BestCost is the cost of the best solution found so far, per run
	BestCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "best_cost", Help: "Cost of the best solution found so far."},
		[]string{"run"},
	)
	// CurrentCost is the cost of the solution the main loop currently walks from
	CurrentCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "current_cost", Help: "Cost of the current solution."},
		[]string{"run"},
	)
	// BestRoutes is the number of routes of the best solution
	BestRoutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "best_routes", Help: "Routes in the best solution."},
		[]string{"run"},
	)
	Temperature = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "temperature", Help: "Simulated annealing temperature."},
		[]string{"run"},
	)
	MeanGamma = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "mean_gamma", Help: "Mean sparsification factor."},
		[]string{"run"},
	)
	MeanOmega = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "mean_omega", Help: "Mean ruin intensity."},
		[]string{"run"},
	)
	// Iterations counts completed main loop iterations
	Iterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "iterations_total", Help: "Completed main loop iterations."},
		[]string{"run"},
	)
	// Improvements counts new best solutions
	Improvements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "improvements_total", Help: "New best solutions found."},
		[]string{"run"},
	)

	// Jobs counts job server jobs by terminal state
	Jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "jobs_total", Help: "Solver jobs by final state."},
		[]string{"state"},
	)
	// ActiveJobs is the number of running jobs
	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "active_jobs", Help: "Solver jobs currently running."},
	)
	// Checkpoints counts checkpoint writes by outcome
	Checkpoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "checkpoints_total", Help: "Checkpoint writes by outcome."},
		[]string{"status"},
	)

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// Register adds all collectors to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(BestCost, CurrentCost, BestRoutes, Temperature, MeanGamma, MeanOmega)
		Registry.MustRegister(Iterations, Improvements)
		Registry.MustRegister(Jobs, ActiveJobs, Checkpoints)
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Observer publishes progress snapshots of one run.
type Observer struct {
	run           string
	lastIteration int
}

// NewObserver returns an observer labelling every series with run.
func NewObserver(run string) *Observer {
	Register()
	return &Observer{run: run}
}

// Observe implements opt.Observer.
func (o *Observer) Observe(p opt.Progress) {
	BestCost.WithLabelValues(o.run).Set(p.BestCost)
	CurrentCost.WithLabelValues(o.run).Set(p.CurrentCost)
	BestRoutes.WithLabelValues(o.run).Set(float64(p.BestRoutes))
	Temperature.WithLabelValues(o.run).Set(p.Temperature)
	MeanGamma.WithLabelValues(o.run).Set(p.MeanGamma)
	MeanOmega.WithLabelValues(o.run).Set(p.MeanOmega)
	if p.Iteration > o.lastIteration {
		Iterations.WithLabelValues(o.run).Add(float64(p.Iteration - o.lastIteration))
		o.lastIteration = p.Iteration
	}
	if p.Improved {
		Improvements.WithLabelValues(o.run).Inc()
	}
}

// Forget drops every series of run, used when a job is removed.
func Forget(run string) {
	for _, vec := range []*prometheus.GaugeVec{BestCost, CurrentCost, BestRoutes, Temperature, MeanGamma, MeanOmega} {
		vec.DeleteLabelValues(run)
	}
	Iterations.DeleteLabelValues(run)
	Improvements.DeleteLabelValues(run)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and durations. pattern labels the route to keep
// cardinality bounded.
func Middleware(pattern string, next http.Handler) http.Handler {
	Register()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		HTTPRequests.WithLabelValues(r.Method, pattern, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, pattern, status).Observe(time.Since(start).Seconds())
	})
}
