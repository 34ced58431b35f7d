package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/mainsync/core/event"
	"github.com/dmitrymomot/mainsync/core/invoker"
	"github.com/dmitrymomot/mainsync/core/synchronizer"
)

// DispatcherSource is implemented by *event.Dispatcher.
type DispatcherSource interface {
	Stats() event.Stats
}

// InvokerSource is implemented by *invoker.Invoker.
type InvokerSource interface {
	Stats() invoker.Stats
}

// SynchronizerSource is implemented by *synchronizer.Synchronizer.
type SynchronizerSource interface {
	Stats() synchronizer.Stats
}

// Collector is a prometheus.Collector over named stat sources.
type Collector struct {
	mu            sync.RWMutex
	dispatchers   map[string]DispatcherSource
	invokers      map[string]InvokerSource
	synchronizers map[string]SynchronizerSource

	dispatched *prometheus.Desc
	dropped    *prometheus.Desc
	deliveries *prometheus.Desc
	drains     *prometheus.Desc
	pending    *prometheus.Desc

	submitted    *prometheus.Desc
	coalesced    *prometheus.Desc
	calls        *prometheus.Desc
	invokerTicks *prometheus.Desc
	pendingCalls *prometheus.Desc

	ticks        *prometheus.Desc
	failures     *prometheus.Desc
	participants *prometheus.Desc
	running      *prometheus.Desc
	lastTick     *prometheus.Desc
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace   string
	constLabels prometheus.Labels
}

// WithNamespace replaces the default "mainsync" metric namespace.
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithConstLabels attaches fixed labels, such as the process role, to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.constLabels = labels
	}
}

// NewCollector creates an empty collector.
func NewCollector(opts ...Option) *Collector {
	o := &options{namespace: "mainsync"}
	for _, opt := range opts {
		opt(o)
	}

	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(o.namespace, subsystem, name),
			help, append([]string{"name"}, labels...), o.constLabels)
	}

	return &Collector{
		dispatchers:   make(map[string]DispatcherSource),
		invokers:      make(map[string]InvokerSource),
		synchronizers: make(map[string]SynchronizerSource),

		dispatched: desc("dispatcher", "events_dispatched_total", "Events accepted into the dispatcher queue"),
		dropped:    desc("dispatcher", "events_dropped_total", "Events discarded because no listener was registered"),
		deliveries: desc("dispatcher", "deliveries_total", "Listener invocations by result", "result"),
		drains:     desc("dispatcher", "drains_total", "Completed drains"),
		pending:    desc("dispatcher", "pending_events", "Events waiting for the next drain"),

		submitted:    desc("invoker", "calls_submitted_total", "Calls accepted into the invoker queues"),
		coalesced:    desc("invoker", "calls_coalesced_total", "Deferred calls whose arguments replaced those of a pending call"),
		calls:        desc("invoker", "calls_total", "Executed calls by result", "result"),
		invokerTicks: desc("invoker", "ticks_total", "Completed invoker ticks"),
		pendingCalls: desc("invoker", "pending_calls", "Calls waiting in the invoker queues"),

		ticks:        desc("synchronizer", "ticks_total", "Completed synchronizer ticks"),
		failures:     desc("synchronizer", "participant_failures_total", "Participant calls that failed, by kind", "kind"),
		participants: desc("synchronizer", "participants", "Active participants"),
		running:      desc("synchronizer", "running", "Whether the tick loop is running"),
		lastTick:     desc("synchronizer", "last_tick_timestamp_seconds", "Unix time of the last finished tick"),
	}
}

// AddDispatcher exports the stats of d under name, replacing any previous source of that name.
func (c *Collector) AddDispatcher(name string, d DispatcherSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchers[name] = d
}

// AddInvoker exports the stats of inv under name.
func (c *Collector) AddInvoker(name string, inv InvokerSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invokers[name] = inv
}

// AddSynchronizer exports the stats of s under name.
func (c *Collector) AddSynchronizer(name string, s SynchronizerSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synchronizers[name] = s
}

// Remove stops exporting every source registered under name.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dispatchers, name)
	delete(c.invokers, name)
	delete(c.synchronizers, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.dispatched, c.dropped, c.deliveries, c.drains, c.pending,
		c.submitted, c.coalesced, c.calls, c.invokerTicks, c.pendingCalls,
		c.ticks, c.failures, c.participants, c.running, c.lastTick,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	for _, name := range sortedKeys(c.dispatchers) {
		s := c.dispatchers[name].Stats()
		counter(c.dispatched, s.Dispatched, name)
		counter(c.dropped, s.Dropped, name)
		counter(c.deliveries, s.Delivered, name, "ok")
		counter(c.deliveries, s.Failed, name, "error")
		counter(c.deliveries, s.Panicked, name, "panic")
		counter(c.drains, s.Drains, name)
		gauge(c.pending, float64(s.Pending), name)
	}

	for _, name := range sortedKeys(c.invokers) {
		s := c.invokers[name].Stats()
		counter(c.submitted, s.Submitted, name)
		counter(c.coalesced, s.Coalesced, name)
		counter(c.calls, s.Executed, name, "ok")
		counter(c.calls, s.Failed, name, "error")
		counter(c.calls, s.Panicked, name, "panic")
		counter(c.invokerTicks, s.Ticks, name)
		gauge(c.pendingCalls, float64(s.Pending), name)
	}

	for _, name := range sortedKeys(c.synchronizers) {
		s := c.synchronizers[name].Stats()
		counter(c.ticks, s.Ticks, name)
		counter(c.failures, s.Failed, name, "error")
		counter(c.failures, s.Panicked, name, "panic")
		gauge(c.participants, float64(s.Participants), name)
		gauge(c.running, boolFloat(s.IsRunning), name)

		var last float64
		if !s.LastTick.IsZero() {
			last = float64(s.LastTick.UnixNano()) / 1e9
		}
		gauge(c.lastTick, last, name)
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
