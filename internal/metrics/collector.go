// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector. It outputs text/plain in Prometheus exposition format without
// requiring the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters and gauges.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	gauges    sync.Map // name -> *Gauge
	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	if v, ok := c.counters.Load(name); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help}
	actual, _ := c.counters.LoadOrStore(name, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	if v, ok := c.gauges.Load(name); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help}
	actual, _ := c.gauges.LoadOrStore(name, g)
	return actual.(*Gauge)
}

// Handler returns an http.HandlerFunc that renders metrics in Prometheus
// text format. Metrics are rendered in name order so output is stable.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP agriassist_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE agriassist_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "agriassist_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

		var counters []*Counter
		c.counters.Range(func(_, value any) bool {
			counters = append(counters, value.(*Counter))
			return true
		})
		sort.Slice(counters, func(i, j int) bool { return counters[i].name < counters[j].name })
		for _, ctr := range counters {
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
		}

		var gauges []*Gauge
		c.gauges.Range(func(_, value any) bool {
			gauges = append(gauges, value.(*Gauge))
			return true
		})
		sort.Slice(gauges, func(i, j int) bool { return gauges[i].name < gauges[j].name })
		for _, g := range gauges {
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
		}

		fmt.Fprint(w, sb.String())
	}
}

// Pre-defined metrics used across the application.
var (
	TurnsTotal          = Collector.Counter("agriassist_turns_total", "Total completed conversation turns")
	ClassifierCalls     = Collector.Counter("agriassist_classifier_calls_total", "Total image classifier calls")
	ClassifierFailures  = Collector.Counter("agriassist_classifier_failures_total", "Total failed image classifier calls")
	NarratorCalls       = Collector.Counter("agriassist_narrator_calls_total", "Total narration calls")
	NarratorFailures    = Collector.Counter("agriassist_narrator_failures_total", "Total failed narration calls")
	ActiveConversations = Collector.Gauge("agriassist_active_conversations", "Conversations currently held in memory")
)
