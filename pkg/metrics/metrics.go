// Metrics collection for the avrpwm tool
//
// Prometheus-compatible counters, gauges and histograms, serialized in
// the Prometheus text exposition format for scraping.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Labels represents metric labels as key-value pairs
type Labels map[string]string

// labelKey generates a stable map key for a label set
func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

// formatLabels formats labels for Prometheus output
func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeLabel(labels[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Write(sb *strings.Builder)
}

// Counter is a monotonically increasing metric
type Counter struct {
	name   string
	help   string
	mu     sync.Mutex
	values map[string]*counterValue
}

type counterValue struct {
	labels Labels
	count  atomic.Uint64
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help, values: make(map[string]*counterValue)}
}

func (c *Counter) Name() string { return c.name }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the counter by delta
func (c *Counter) Add(labels Labels, delta uint64) {
	c.value(labels).count.Add(delta)
}

// Get returns the current value for a label set
func (c *Counter) Get(labels Labels) uint64 {
	return c.value(labels).count.Load()
}

func (c *Counter) value(labels Labels) *counterValue {
	key := labelKey(labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		v = &counterValue{labels: labels}
		c.values[key] = v
	}
	return v
}

func (c *Counter) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(sb, "# TYPE %s counter\n", c.name)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range sortedKeys(c.values) {
		v := c.values[key]
		fmt.Fprintf(sb, "%s%s %d\n", c.name, formatLabels(v.labels), v.count.Load())
	}
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name   string
	help   string
	mu     sync.Mutex
	values map[string]*gaugeValue
}

type gaugeValue struct {
	labels Labels
	bits   atomic.Uint64 // float64 bits
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help, values: make(map[string]*gaugeValue)}
}

func (g *Gauge) Name() string { return g.name }

// Set sets the gauge value
func (g *Gauge) Set(labels Labels, value float64) {
	g.value(labels).bits.Store(math.Float64bits(value))
}

// Inc increments the gauge by 1
func (g *Gauge) Inc(labels Labels) {
	g.addDelta(labels, 1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec(labels Labels) {
	g.addDelta(labels, -1)
}

func (g *Gauge) addDelta(labels Labels, delta float64) {
	v := g.value(labels)
	for {
		old := v.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if v.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Get returns the current value for a label set
func (g *Gauge) Get(labels Labels) float64 {
	return math.Float64frombits(g.value(labels).bits.Load())
}

func (g *Gauge) value(labels Labels) *gaugeValue {
	key := labelKey(labels)
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.values[key]
	if !ok {
		v = &gaugeValue{labels: labels}
		g.values[key] = v
	}
	return v
}

func (g *Gauge) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(sb, "# TYPE %s gauge\n", g.name)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range sortedKeys(g.values) {
		v := g.values[key]
		fmt.Fprintf(sb, "%s%s %g\n", g.name, formatLabels(v.labels), math.Float64frombits(v.bits.Load()))
	}
}

// Histogram tracks the distribution of observations in buckets
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	values  map[string]*histogramValue
}

type histogramValue struct {
	labels Labels
	counts []uint64
	count  uint64
	sum    float64
}

// NewHistogram creates a new histogram with the given bucket upper bounds,
// which must be sorted ascending.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	return &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		values:  make(map[string]*histogramValue),
	}
}

func (h *Histogram) Name() string { return h.name }

// Observe records one observation
func (h *Histogram) Observe(labels Labels, value float64) {
	key := labelKey(labels)
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	if !ok {
		v = &histogramValue{labels: labels, counts: make([]uint64, len(h.buckets))}
		h.values[key] = v
	}
	for i, bound := range h.buckets {
		if value <= bound {
			v.counts[i]++
		}
	}
	v.count++
	v.sum += value
}

// Count returns the observation count for a label set
func (h *Histogram) Count(labels Labels) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[labelKey(labels)]
	if !ok {
		return 0
	}
	return v.count
}

func (h *Histogram) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(sb, "# TYPE %s histogram\n", h.name)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range sortedKeys(h.values) {
		v := h.values[key]
		for i, bound := range h.buckets {
			labels := make(Labels, len(v.labels)+1)
			for k, lv := range v.labels {
				labels[k] = lv
			}
			labels["le"] = formatBound(bound)
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, formatLabels(labels), v.counts[i])
		}
		infLabels := make(Labels, len(v.labels)+1)
		for k, lv := range v.labels {
			infLabels[k] = lv
		}
		infLabels["le"] = "+Inf"
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, formatLabels(infLabels), v.count)
		fmt.Fprintf(sb, "%s_sum%s %g\n", h.name, formatLabels(v.labels), v.sum)
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, formatLabels(v.labels), v.count)
	}
}

func formatBound(bound float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%g", bound), ".0")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Registry holds a set of metrics and gathers them for exposition
type Registry struct {
	mu      sync.Mutex
	metrics []Metric
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a metric to the registry
func (r *Registry) Register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// Gather serializes all registered metrics in Prometheus text format
func (r *Registry) Gather() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sb strings.Builder
	for _, m := range r.metrics {
		m.Write(&sb)
	}
	return sb.String()
}
