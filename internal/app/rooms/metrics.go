package rooms

import "expvar"

var (
	metricRoomsCreated  = expvar.NewInt("rooms_created_total")
	metricJanitorSweeps = expvar.NewInt("janitor_sweeps_total")
	metricRoomsExpired  = expvar.NewInt("rooms_expired_total")
)
