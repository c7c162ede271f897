package ws

import "expvar"

var (
	metricWSConnectionsTotal  = expvar.NewInt("store_ws_connections_total")
	metricWSConnectionsActive = expvar.NewInt("store_ws_connections_active")
)
