package roomstream

import "expvar"

var (
	metricRoomSSEConnectionsTotal  = expvar.NewInt("room_sse_connections_total")
	metricRoomSSEConnectionsActive = expvar.NewInt("room_sse_connections_active")
)
