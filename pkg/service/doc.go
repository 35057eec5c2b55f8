// Package service provides the device shell that ties the timer catalog,
// the countdown engines and the replication protocol together.
//
// # DeviceService
//
// DeviceService runs one device of a phone/watch pair. It owns:
//   - the timer catalog and its persistent store
//   - the active-timer coordinator and one countdown engine per used timer
//   - the replication protocol on top of a Transport
//   - tick scheduling and the "timer finished" alert
//
// Every catalog, engine and protocol call runs on a single control
// goroutine. UI calls, transport callbacks and scheduled ticks are queued
// onto it, so none of the owned components need their own locking.
//
// Example usage:
//
//	svc, err := service.NewDeviceService(service.DeviceConfig{
//		DeviceID:  "phone",
//		PeerID:    "watch",
//		Store:     store.NewMemoryStore(),
//		Transport: tr,
//	})
//	if err := svc.Start(ctx); err != nil { ... }
//	defer svc.Stop()
//
//	t, _ := svc.CreateTimer(ctx, catalog.NewTimer{Name: "Tea", DurationSeconds: 180})
//	_, _ = svc.StartTimer(ctx, t.ID)
//
// # Event Callbacks
//
// The service emits events for state changes the UI renders: timer edits
// (local or replicated), deletions, countdown transitions including ticks,
// fired alerts, peer reachability and save failures.
package service
