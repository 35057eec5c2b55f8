// Package store provides durable keyed storage for pairtimer.
//
// The catalog needs only point lookups, full-prefix scans and transactional
// multi-record writes, so Store is a plain key-value contract:
//
//	Get(key)              point lookup
//	PutAll(records)       all-or-nothing write
//	Delete(key)           single delete
//	Scan(prefix)          ordered iteration
//	Commit(puts, deletes) all-or-nothing mixed write
//
// # Key Layout
//
//	timer/<timer-id>             one Timer without items
//	item/<timer-id>/<item-id>    one ChecklistItem
//	runtime/<timer-id>           one RuntimeState checkpoint
//
// # Record Encoding
//
// Values are CBOR with integer keys and RFC 3339 nanosecond timestamps,
// encoded deterministically so equal records produce equal bytes.
//
// # Implementations
//
//   - MemoryStore: in-process, for tests and ephemeral devices
//   - SQLiteStore: a single records table managed by embedded migrations
package store
