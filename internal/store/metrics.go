package store

import "expvar"

var (
	metricSubscriptionsActive = expvar.NewInt("store_subscriptions_active")
	metricSnapshotPushes      = expvar.NewInt("store_snapshot_pushes_total")
	metricWritesTotal         = expvar.NewInt("store_writes_total")
	metricWriteErrors         = expvar.NewInt("store_write_errors_total")
)
