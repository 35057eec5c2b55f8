// Package persistence stores the device identity that must survive restarts.
//
// The state file is a small JSON document holding the device id, its role,
// the paired peer and the time of the last applied FullSync. Timers and
// countdown checkpoints live in the store package, not here.
package persistence
