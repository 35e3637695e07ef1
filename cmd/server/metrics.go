package main

import (
	"fmt"
	"io"

	"tileworld.ai/internal/persistence/sqlstore"
	"tileworld.ai/internal/sim/runtime"
)

// writeMetrics renders the loop metrics in the Prometheus text exposition format.
func writeMetrics(w io.Writer, worldID string, m runtime.Metrics, db *sqlstore.Stats) {
	gauge := func(name, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	}
	counter := func(name, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
	}

	gauge("tileworld_world_tick", "Current world tick.")
	fmt.Fprintf(w, "tileworld_world_tick{world=%q} %d\n", worldID, m.Tick)

	gauge("tileworld_world_players", "Players present in the world.")
	fmt.Fprintf(w, "tileworld_world_players{world=%q} %d\n", worldID, m.Players)

	gauge("tileworld_world_clients", "Connected client sessions.")
	fmt.Fprintf(w, "tileworld_world_clients{world=%q} %d\n", worldID, m.Clients)
	gauge("tileworld_world_observers", "Subscribed spectator feeds.")
	fmt.Fprintf(w, "tileworld_world_observers{world=%q} %d\n", worldID, m.Observers)

	gauge("tileworld_world_resources", "Resource instances by state.")
	fmt.Fprintf(w, "tileworld_world_resources{world=%q,state=%q} %d\n", worldID, "alive", m.Resources-m.Depleted)
	fmt.Fprintf(w, "tileworld_world_resources{world=%q,state=%q} %d\n", worldID, "depleted", m.Depleted)

	gauge("tileworld_world_players_busy", "Players with an action or a pending interaction.")
	fmt.Fprintf(w, "tileworld_world_players_busy{world=%q,kind=%q} %d\n", worldID, "acting", m.Acting)
	fmt.Fprintf(w, "tileworld_world_players_busy{world=%q,kind=%q} %d\n", worldID, "pending", m.Pending)

	gauge("tileworld_world_queue_depth", "Channel backlog depth.")
	fmt.Fprintf(w, "tileworld_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(w, "tileworld_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
	fmt.Fprintf(w, "tileworld_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)

	gauge("tileworld_world_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(w, "tileworld_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	counter("tileworld_world_events_total", "Gameplay events emitted.")
	fmt.Fprintf(w, "tileworld_world_events_total{world=%q} %d\n", worldID, m.EventsTotal)

	counter("tileworld_world_character_saves_total", "Character records handed to the store.")
	fmt.Fprintf(w, "tileworld_world_character_saves_total{world=%q} %d\n", worldID, m.SavesTotal)

	if db == nil {
		return
	}
	gauge("tileworld_db_pending_saves", "Character saves waiting for the writer.")
	fmt.Fprintf(w, "tileworld_db_pending_saves %d\n", db.Pending)
	counter("tileworld_db_saves_total", "Character rows written.")
	fmt.Fprintf(w, "tileworld_db_saves_total %d\n", db.SavesTotal)
	counter("tileworld_db_save_errors_total", "Failed character write batches.")
	fmt.Fprintf(w, "tileworld_db_save_errors_total %d\n", db.SaveErrors)
	gauge("tileworld_db_last_flush_ms", "Duration of the last character write batch.")
	fmt.Fprintf(w, "tileworld_db_last_flush_ms %d\n", db.LastFlushMs)
}
