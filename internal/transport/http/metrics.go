package httptransport

import "expvar"

var (
	metricRoomCreateTotal  = expvar.NewInt("room_create_total")
	metricRoomCreateErrors = expvar.NewInt("room_create_errors_total")

	metricCommitRequests      = expvar.NewInt("room_edit_requests_total")
	metricCommitRequestErrors = expvar.NewInt("room_edit_errors_total")
)
