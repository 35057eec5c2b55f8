// Package countdown implements the per-timer countdown state machine.
//
// A Machine is a pure transition function: each intent (Start, Pause,
// Resume, Reset, Tick, Recover, ApplyRemote) takes the current wall-clock
// time and returns a Transition carrying the list of side effects to run.
// It performs no I/O. An Engine is the thin shell that owns one Machine and
// executes those effects against the checkpoint store, the notification
// scheduler, the tick scheduler and the exclusivity coordinator.
//
// # States
//
//	Idle ──start──> Running ──pause──> Paused
//	  ^               │  ^               │
//	  │               │  └────resume─────┘
//	  │             zero
//	  │               v
//	  └──────── Completed   (reported once, then Idle)
//
// Reset returns Running or Paused to Idle.
//
// # Time
//
// Remaining time is never counted down in memory. While running, it is
// derived from the checkpoint with
//
//	max(0, remaining - floor(now - last_update))
//
// Ticking applies that formula once per second and recovery after a restart
// applies it once, so live and cold behavior cannot diverge. A checkpoint
// that reaches zero during recovery goes straight to Completed.
//
// # Effect Order
//
// Durable effects (persist, delete) run before in-memory ones so a failed
// write can be rolled back by restoring the Machine. Only the exclusivity
// claim precedes persistence on start, and it is released again if the
// write fails.
package countdown
