package httptransport

import "expvar"

var (
	metricSessionCreateTotal  = expvar.NewInt("session_create_total")
	metricSessionCreateErrors = expvar.NewInt("session_create_errors_total")

	metricSessionJoinTotal  = expvar.NewInt("session_join_total")
	metricSessionJoinErrors = expvar.NewInt("session_join_errors_total")

	metricTurnEndTotal    = expvar.NewInt("turn_end_total")
	metricTurnEndErrors   = expvar.NewInt("turn_end_errors_total")
	metricTurnEndRejected = expvar.NewInt("turn_end_rejected_total")
)
