// Package metrics exposes grid and process notifications as Prometheus
// metrics. A Collector is an event sink; attach it next to other sinks with
// event.Multi.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/procslot/model"
	"github.com/viant/procslot/service/event"
)

const (
	namespace = "procslot"
	subsystem = "grid"
)

var statuses = []model.Status{
	model.StatusLocked,
	model.StatusEmpty,
	model.StatusLoading,
	model.StatusActive,
	model.StatusSuspended,
	model.StatusCorrupted,
}

// UsageSource reports current resource usage, e.g. a grid.
type UsageSource interface {
	Used() model.Usage
}

// Collector tracks resource usage, slot statuses and event counts
type Collector struct {
	usedMemory prometheus.Gauge
	usedCPU    prometheus.Gauge
	slots      *prometheus.GaugeVec
	events     *prometheus.CounterVec
	processes  prometheus.Gauge

	mux    sync.Mutex
	source UsageSource
	status map[string]model.Status
	mapped map[string]bool
}

// New creates a collector and registers its metrics with registerer; a nil
// registerer leaves them unregistered.
func New(registerer prometheus.Registerer) (*Collector, error) {
	ret := &Collector{
		usedMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "used_memory",
			Help:      "memory used by all slots",
		}),
		usedCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "used_cpu",
			Help:      "CPU used by all slots",
		}),
		slots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slots",
			Help:      "number of slots per status",
		}, []string{"status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "total",
			Help:      "number of emitted notifications per type",
		}, []string{"type"}),
		processes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "mapped_processes",
			Help:      "number of processes mapped to a slot",
		}),
		status: map[string]model.Status{},
		mapped: map[string]bool{},
	}
	if registerer == nil {
		return ret, nil
	}
	for _, collector := range ret.collectors() {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.usedMemory, c.usedCPU, c.slots, c.events, c.processes}
}

// Track seeds slot status gauges from grid snapshots
func (c *Collector) Track(snapshots []*model.SlotSnapshot) {
	c.mux.Lock()
	defer c.mux.Unlock()
	var used model.Usage
	for _, snapshot := range snapshots {
		c.setStatus(snapshot.ID, snapshot.Status)
		used = used.Add(model.Usage{Memory: snapshot.MemoryUsage, CPU: snapshot.CPUUsage})
	}
	c.setUsage(used)
}

func (c *Collector) setUsage(used model.Usage) {
	c.usedMemory.Set(used.Memory)
	c.usedCPU.Set(used.CPU)
}

// Bind makes usage gauges follow source; the payload of a resources-changed
// notification is ignored once bound, since notifications may arrive out of
// order.
func (c *Collector) Bind(source UsageSource) {
	c.mux.Lock()
	c.source = source
	c.mux.Unlock()
}

// Emit updates metrics from a notification
func (c *Collector) Emit(_ context.Context, message *event.Message) {
	if message == nil || message.Context == nil {
		return
	}
	c.events.WithLabelValues(string(message.Type())).Inc()
	switch message.Type() {
	case event.ResourcesChanged:
		c.mux.Lock()
		if c.source != nil {
			c.setUsage(c.source.Used())
		} else if used := message.Data.Used; used != nil {
			c.setUsage(*used)
		}
		c.mux.Unlock()
	case event.SlotStatusChanged:
		c.mux.Lock()
		c.setStatus(message.Context.SlotID, message.Data.Status)
		c.mux.Unlock()
	case event.MappingChanged:
		c.mux.Lock()
		if message.Context.SlotID == "" {
			delete(c.mapped, message.Context.ProcessID)
		} else {
			c.mapped[message.Context.ProcessID] = true
		}
		c.processes.Set(float64(len(c.mapped)))
		c.mux.Unlock()
	}
}

func (c *Collector) setStatus(slotID string, status model.Status) {
	if previous, ok := c.status[slotID]; ok {
		if previous == status {
			return
		}
		c.slots.WithLabelValues(string(previous)).Dec()
	}
	c.status[slotID] = status
	c.slots.WithLabelValues(string(status)).Inc()
}

// Reset zeroes every status series so that all statuses are exported
func (c *Collector) Reset() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.status = map[string]model.Status{}
	for _, status := range statuses {
		c.slots.WithLabelValues(string(status)).Set(0)
	}
}
