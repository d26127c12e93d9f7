package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegisterPoolMetrics exposes pgxpool statistics as Prometheus gauges.
// The pool label distinguishes multiple pools in one process.
func RegisterPoolMetrics(pool *pgxpool.Pool, name string) {
	labels := prometheus.Labels{"pool": name}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "pgxpool_total_conns",
		Help:        "Total number of connections currently in the pool",
		ConstLabels: labels,
	}, func() float64 { return float64(pool.Stat().TotalConns()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "pgxpool_idle_conns",
		Help:        "Number of idle connections in the pool",
		ConstLabels: labels,
	}, func() float64 { return float64(pool.Stat().IdleConns()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "pgxpool_acquired_conns",
		Help:        "Number of connections currently acquired from the pool",
		ConstLabels: labels,
	}, func() float64 { return float64(pool.Stat().AcquiredConns()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "pgxpool_max_conns",
		Help:        "Maximum size of the pool",
		ConstLabels: labels,
	}, func() float64 { return float64(pool.Stat().MaxConns()) })
}
