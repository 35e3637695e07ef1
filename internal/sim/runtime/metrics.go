package runtime

import "time"

// Metrics is a read-only view of loop health. It is written by the loop goroutine and
// read from HTTP handlers.
type Metrics struct {
	Tick uint64 `json:"tick"`

	Players   int `json:"players"`
	Clients   int `json:"clients"`
	Observers int `json:"observers"`
	Resources int `json:"resources"`
	Depleted  int `json:"depleted"`
	Acting    int `json:"acting"`
	Pending   int `json:"pending"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS         float64 `json:"step_ms"`
	EventsLastTick int     `json:"events_last_tick"`
	EventsTotal    uint64  `json:"events_total"`
	SavesTotal     uint64  `json:"saves_total"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (r *Runtime) Metrics() Metrics {
	if r == nil {
		return Metrics{}
	}
	m, ok := r.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (r *Runtime) storeMetrics(stepStart time.Time, events int) {
	c := r.w.Counts()
	r.metrics.Store(Metrics{
		Tick:      r.w.Tick(),
		Players:   c.Players,
		Clients:   len(r.clients),
		Observers: len(r.observers),
		Resources: c.Resources,
		Depleted:  c.Depleted,
		Acting:    c.Acting,
		Pending:   c.Pending,
		QueueDepths: QueueDepths{
			Inbox: len(r.inbox),
			Join:  len(r.join),
			Leave: len(r.leave),
		},
		StepMS:         float64(time.Since(stepStart).Microseconds()) / 1000.0,
		EventsLastTick: events,
		EventsTotal:    r.eventsTotal.Load(),
		SavesTotal:     r.savesTotal.Load(),
	})
}
