// Package dispocore is a disposition core for a running train timetable:
// it tracks a simulator's live roster against its plan, keeps three
// coupled graphs — trains, planned targets, and derived prognosis events —
// in sync as delays and live events arrive, and exposes both an
// automatic re-prognosis loop and a dispatcher-intent API so a human (or
// a rule) can steer the result.
//
// Under the hood:
//
//	core/         — thread-safe directed graph engine shared by the three domain graphs
//	zeit/         — the minutes-since-midnight time model every graph and prognosis computes in
//	zuggraph/     — the train roster graph
//	zielgraph/    — the planned-target graph, topologically ordered per train
//	ereignisgraph/ — the derived arrival/departure event graph prognosis actually runs over
//	prognose/     — the iterative delay-propagation sweep
//	dispo/        — the seven dispatcher operations (fixed_delay, wait_for_arrival, ...)
//	ingest/       — turns live simulator events into graph mutations
//	bus/          — the observer bus loosely coupling the above to outside listeners
//	orchestrator/ — the cooperative scheduler tying ingest, prognosis and the bus together
//	config/       — tunables, with hot reload
//	telemetry/    — structured logging, metrics, and tracing
//	simplugin/    — normalizes the simulator's wire records into the graphs' own types
//	persist/      — a debug-only JSON dump of the target graph on shutdown
//	wsview/       — pushes bus notifications to a browser ticker view over a websocket
//
// cmd/dispocored wires all of the above into one daemon.
package dispocore
