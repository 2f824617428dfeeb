package world

type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Robots          int `json:"robots"`
	ConnectedRobots int `json:"connected_robots"`
	Clients         int `json:"clients"`
	QueuedWaypoints int `json:"queued_waypoints"`
	KnownTiles      int `json:"known_tiles"`
	UnknownTiles    int `json:"unknown_tiles"`

	TickMode      string `json:"tick_mode"`
	TickSpeedMs   int    `json:"tick_speed_ms"`
	ActiveProgram string `json:"active_program"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS      float64 `json:"step_ms"`
	LastMoves   int     `json:"last_moves"`
	LastBlocked int     `json:"last_blocked"`

	StepsTotal   uint64 `json:"steps_total"`
	MovesTotal   uint64 `json:"moves_total"`
	BlockedTotal uint64 `json:"blocked_total"`
	RevealsTotal uint64 `json:"reveals_total"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics() {
	unknown := w.grid.Count(TileUnknown)
	w.metrics.Store(WorldMetrics{
		Tick:            w.tick.Load(),
		Robots:          w.fleet.Len(),
		ConnectedRobots: w.fleet.ConnectedCount(),
		Clients:         len(w.clients),
		QueuedWaypoints: w.fleet.QueuedWaypoints(),
		KnownTiles:      w.grid.Width()*w.grid.Height() - unknown,
		UnknownTiles:    unknown,
		TickMode:        w.clock.Mode.String(),
		TickSpeedMs:     w.clock.SpeedMs,
		ActiveProgram:   w.program,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:       float64(w.lastStep.Duration.Microseconds()) / 1000,
		LastMoves:    w.lastStep.Moves,
		LastBlocked:  w.lastStep.Blocked,
		StepsTotal:   w.totals.Steps,
		MovesTotal:   w.totals.Moves,
		BlockedTotal: w.totals.Blocked,
		RevealsTotal: w.totals.Reveals,
	})
}
