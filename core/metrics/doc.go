// Package metrics exports the counters of dispatchers, invokers and
// synchronizers as Prometheus metrics.
//
// The collector reads Stats at scrape time, so nothing is recorded on the hot path:
//
//	c := metrics.NewCollector()
//	c.AddDispatcher("world", dispatcher)
//	c.AddInvoker("main", inv)
//	c.AddSynchronizer("main", sync)
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(c)
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics
