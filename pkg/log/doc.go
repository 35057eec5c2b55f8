// Package log provides the pairtimer protocol trace.
//
// The trace is separate from operational logging (slog). It records every
// replication envelope sent, coalesced or received, every countdown
// transition and every protocol error as an Event, so a session between two
// devices can be replayed and inspected after the fact.
//
// # Basic Usage
//
//	// Console while developing
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary trace file
//	fl, _ := log.NewFileLogger("/var/lib/pairtimer/primary.ptlog")
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Transport: raw envelope bytes (FrameEvent)
//   - Wire: decoded replication messages (MessageEvent)
//   - Service: reachability and countdown state changes (StateChangeEvent)
//   - Any layer: errors (ErrorEventData)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with the .ptlog extension.
// The pairtimer-log command views, filters and summarizes them.
//
// # Field Helpers
//
// fields.go holds the canonical slog attribute keys (timer_id, device_id,
// msg_type, ...) shared by operational log lines across packages.
package log
