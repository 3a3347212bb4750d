package ws

import "expvar"

var (
	metricSubscribeTotal  = expvar.NewInt("store_subscribe_total")
	metricSubscribeErrors = expvar.NewInt("store_subscribe_errors_total")
	metricSubscribersLive = expvar.NewInt("store_subscribers_active")
	metricSlowSubscribers = expvar.NewInt("store_subscribers_dropped_total")
	metricFramesDelivered = expvar.NewInt("store_frames_delivered_total")
)
