package http

import "expvar"

var (
	entriesReplacedTotal = expvar.NewInt("entries_replaced_total")
	entriesPurgedTotal   = expvar.NewInt("entries_purged_total")
	framesReceivedTotal  = expvar.NewInt("frames_received_total")
	audioReceivedTotal   = expvar.NewInt("audio_received_total")
	heartbeatsTotal      = expvar.NewInt("heartbeats_total")
	eventsAppendedTotal  = expvar.NewInt("events_appended_total")
)
