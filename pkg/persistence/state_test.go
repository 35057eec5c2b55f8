package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDeviceStateStore(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))

		sync := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
		state := &DeviceState{
			DeviceID:     "dev-1",
			Role:         "primary",
			Name:         "phone",
			PeerID:       "dev-2",
			PeerURL:      "nats://10.0.0.2:4222",
			LastFullSync: sync,
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
		if got.DeviceID != "dev-1" || got.Role != "primary" || got.PeerID != "dev-2" {
			t.Errorf("identity = %+v", got)
		}
		if !got.LastFullSync.Equal(sync) {
			t.Errorf("LastFullSync = %v, want %v", got.LastFullSync, sync)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewDeviceStateStore(filepath.Join(t.TempDir(), "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("CreatesParentDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
		store := NewDeviceStateStore(path)
		if err := store.Save(&DeviceState{DeviceID: "x"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("state file missing: %v", err)
		}
		if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
			t.Error("temporary file left behind")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))
		if err := store.Save(&DeviceState{DeviceID: "x"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("Clear() on missing file error = %v", err)
		}
		got, _ := store.Load()
		if got != nil {
			t.Error("state still present after Clear")
		}
	})

	t.Run("RejectsNewerVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{"version": 99, "device_id": "x"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := NewDeviceStateStore(path).Load()
		if !errors.Is(err, ErrVersion) {
			t.Errorf("Load() error = %v, want ErrVersion", err)
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewDeviceStateStore(path).Load(); err == nil {
			t.Error("Load() of corrupt file succeeded")
		}
	})
}

func TestLoadOrCreate(t *testing.T) {
	store := NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))

	first, err := store.LoadOrCreate("companion", "watch")
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if first.DeviceID == "" {
		t.Fatal("no device id generated")
	}
	if first.Role != "companion" || first.Name != "watch" {
		t.Errorf("state = %+v", first)
	}

	second, err := store.LoadOrCreate("primary", "other")
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("device id changed: %s -> %s", first.DeviceID, second.DeviceID)
	}
	if second.Role != "companion" {
		t.Errorf("Role = %q, want the stored role", second.Role)
	}
}

func TestUpdate(t *testing.T) {
	store := NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))
	if _, err := store.LoadOrCreate("primary", ""); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	if err := store.Update(func(s *DeviceState) {
		s.PeerID = "peer"
		s.LastFullSync = at
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.PeerID != "peer" || !got.LastFullSync.Equal(at) {
		t.Errorf("state = %+v", got)
	}
}
