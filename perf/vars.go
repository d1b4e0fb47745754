package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency = metric.NewHistogram("1m1s")
	TableOccupancy  = metric.NewHistogram("1m1s")
	DaoReceived     = metric.NewCounter("10s1s")
	DaoDropped      = metric.NewCounter("10s1s")
	NoPathReceived  = metric.NewCounter("10s1s")
	NodesExpired    = metric.NewCounter("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("rpl:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("rpl:TableOccupancy", TableOccupancy)
	expvar.Publish("rpl:Dao/s", DaoReceived)
	expvar.Publish("rpl:DaoDropped/s", DaoDropped)
	expvar.Publish("rpl:NoPath/s", NoPathReceived)
	expvar.Publish("rpl:NodesExpired", NodesExpired)
}
