// Package observability exposes world and index metrics to Prometheus.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"megabots.dev/internal/persistence/indexdb"
	"megabots.dev/internal/sim/world"
)

// WorldSource is satisfied by *world.World.
type WorldSource interface {
	Metrics() world.WorldMetrics
}

// IndexSource is satisfied by *indexdb.SQLiteIndex.
type IndexSource interface {
	Stats() indexdb.Stats
}

// Collector reads the world's published metrics at scrape time, so the sim
// loop never blocks on Prometheus.
type Collector struct {
	world WorldSource
	index IndexSource

	tick          *prometheus.Desc
	robots        *prometheus.Desc
	clients       *prometheus.Desc
	queued        *prometheus.Desc
	tiles         *prometheus.Desc
	tickSpeed     *prometheus.Desc
	program       *prometheus.Desc
	queueDepth    *prometheus.Desc
	stepMS        *prometheus.Desc
	steps         *prometheus.Desc
	moves         *prometheus.Desc
	blocked       *prometheus.Desc
	reveals       *prometheus.Desc
	indexDepth    *prometheus.Desc
	indexCapacity *prometheus.Desc
	indexDropped  *prometheus.Desc
}

func NewCollector(worldID string, w WorldSource, idx IndexSource) *Collector {
	labels := prometheus.Labels{"world": worldID}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, variable, labels)
	}
	return &Collector{
		world: w,
		index: idx,

		tick:          desc("megabots_world_tick", "Current world tick."),
		robots:        desc("megabots_world_robots", "Robots in the fleet by link state.", "state"),
		clients:       desc("megabots_world_clients", "Connected websocket clients."),
		queued:        desc("megabots_world_queued_waypoints", "Waypoints queued across all robots."),
		tiles:         desc("megabots_world_tiles", "Grid tiles by knowledge state.", "state"),
		tickSpeed:     desc("megabots_world_tick_speed_ms", "Auto tick interval in milliseconds."),
		program:       desc("megabots_world_program", "Active exploration program and tick mode (always 1).", "program", "mode"),
		queueDepth:    desc("megabots_world_queue_depth", "World loop channel backlog.", "queue"),
		stepMS:        desc("megabots_world_step_ms", "Last tick step duration in milliseconds."),
		steps:         desc("megabots_world_steps_total", "Ticks stepped."),
		moves:         desc("megabots_world_moves_total", "Robot moves applied."),
		blocked:       desc("megabots_world_blocked_total", "Robot moves refused by occupancy or obstacles."),
		reveals:       desc("megabots_world_reveals_total", "Tiles revealed by robot sensing."),
		indexDepth:    desc("megabots_index_queue_depth", "Pending index writes."),
		indexCapacity: desc("megabots_index_queue_capacity", "Index write queue capacity."),
		indexDropped:  desc("megabots_index_dropped_total", "Index writes dropped because the queue was full.", "kind"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.tick, c.robots, c.clients, c.queued, c.tiles, c.tickSpeed, c.program,
		c.queueDepth, c.stepMS, c.steps, c.moves, c.blocked, c.reveals,
	} {
		ch <- d
	}
	if c.index != nil {
		ch <- c.indexDepth
		ch <- c.indexCapacity
		ch <- c.indexDropped
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.world.Metrics()
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}
	counter := func(d *prometheus.Desc, v uint64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lv...)
	}

	gauge(c.tick, float64(m.Tick))
	gauge(c.robots, float64(m.ConnectedRobots), "connected")
	gauge(c.robots, float64(m.Robots-m.ConnectedRobots), "disconnected")
	gauge(c.clients, float64(m.Clients))
	gauge(c.queued, float64(m.QueuedWaypoints))
	gauge(c.tiles, float64(m.KnownTiles), "known")
	gauge(c.tiles, float64(m.UnknownTiles), "unknown")
	gauge(c.tickSpeed, float64(m.TickSpeedMs))
	if m.ActiveProgram != "" {
		gauge(c.program, 1, m.ActiveProgram, m.TickMode)
	}
	gauge(c.queueDepth, float64(m.QueueDepths.Inbox), "inbox")
	gauge(c.queueDepth, float64(m.QueueDepths.Join), "join")
	gauge(c.queueDepth, float64(m.QueueDepths.Leave), "leave")
	gauge(c.stepMS, m.StepMS)
	counter(c.steps, m.StepsTotal)
	counter(c.moves, m.MovesTotal)
	counter(c.blocked, m.BlockedTotal)
	counter(c.reveals, m.RevealsTotal)

	if c.index == nil {
		return
	}
	s := c.index.Stats()
	gauge(c.indexDepth, float64(s.QueueDepth))
	gauge(c.indexCapacity, float64(s.QueueCapacity))
	counter(c.indexDropped, s.DropTickTotal, "tick")
	counter(c.indexDropped, s.DropAuditTotal, "audit")
}

// Register adds c to reg, defaulting to the global registry when nil.
func Register(reg prometheus.Registerer, c *Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return fmt.Errorf("world collector already registered")
		}
		return err
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
