package metrics

import (
	"expvar"
)

var (
	expmap      = expvar.NewMap("arcade")
	Conns       = new(expvar.Int)
	Rooms       = new(expvar.Int)
	EventSent   = new(expvar.Int)
	MessageRecv = new(expvar.Int)
)

func init() {
	expmap.Set("conns", Conns)
	expmap.Set("rooms", Rooms)
	expmap.Set("event_sent", EventSent)
	expmap.Set("message_recv", MessageRecv)
}
