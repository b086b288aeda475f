package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors exposes connection pool statistics as gauges.
func (db *DB) Collectors() []prometheus.Collector {
	gauge := func(name string, help string, read func(*pgxpool.Stat) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "social_feed",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(db.Pool.Stat())) })
	}

	return []prometheus.Collector{
		gauge("acquired_conns", "Connections currently checked out.", (*pgxpool.Stat).AcquiredConns),
		gauge("idle_conns", "Idle connections in the pool.", (*pgxpool.Stat).IdleConns),
		gauge("total_conns", "All open connections.", (*pgxpool.Stat).TotalConns),
		gauge("max_conns", "Configured pool ceiling.", (*pgxpool.Stat).MaxConns),
	}
}
