// Package metrics exposes Prometheus collectors for the daemon's
// supervision activity: spawns, stops, ring evictions and live counts.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	processSpawns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "petri",
		Subsystem: "process",
		Name:      "spawns_total",
		Help:      "Number of processes successfully spawned.",
	})
	processStops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "petri",
		Subsystem: "process",
		Name:      "stops_total",
		Help:      "Number of stop requests that completed.",
	})
	processExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "petri",
		Subsystem: "process",
		Name:      "exits_total",
		Help:      "Number of processes that have exited, by whether the exit code was zero.",
	}, []string{"outcome"})
	runningProcesses = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "petri",
		Subsystem: "process",
		Name:      "running",
		Help:      "Number of currently supervised processes.",
	})
	ringEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "petri",
		Subsystem: "ring",
		Name:      "evictions_total",
		Help:      "Number of line evictions performed across all output rings.",
	})
	logSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "petri",
		Subsystem: "control",
		Name:      "log_subscribers",
		Help:      "Number of currently attached `log` streaming connections.",
	})
	jobsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "petri",
		Subsystem: "job",
		Name:      "registered",
		Help:      "Number of jobs currently tracked by the job registry.",
	})
)

// Register registers every collector with r. It is safe to call more than
// once; later calls after a success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	collectors := []prometheus.Collector{
		processSpawns, processStops, processExits, runningProcesses,
		ringEvictions, logSubscribers, jobsTotal,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default Prometheus gatherer's metrics.
func Handler() http.Handler { return promhttp.Handler() }

func IncSpawn() {
	if regOK.Load() {
		processSpawns.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		processStops.Inc()
	}
}

func IncExit(exitCode int) {
	if !regOK.Load() {
		return
	}
	outcome := "nonzero"
	if exitCode == 0 {
		outcome = "zero"
	}
	processExits.WithLabelValues(outcome).Inc()
}

func SetRunningProcesses(n int) {
	if regOK.Load() {
		runningProcesses.Set(float64(n))
	}
}

func AddRingEvictions(n uint64) {
	if regOK.Load() && n > 0 {
		ringEvictions.Add(float64(n))
	}
}

func SetLogSubscribers(n int) {
	if regOK.Load() {
		logSubscribers.Set(float64(n))
	}
}

func SetJobsRegistered(n int) {
	if regOK.Load() {
		jobsTotal.Set(float64(n))
	}
}
