package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrVersion is returned when the state file was written by a newer format.
var ErrVersion = errors.New("unsupported state file version")

// DeviceState is the persisted identity of one device.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// DeviceID is generated once and never changes.
	DeviceID string `json:"device_id"`

	// Role is "primary" or "companion".
	Role string `json:"role"`

	// Name is the human readable device name.
	Name string `json:"name,omitempty"`

	// PeerID is the paired device, once known.
	PeerID string `json:"peer_id,omitempty"`

	// PeerURL is the last NATS URL the peer was reached at.
	PeerURL string `json:"peer_url,omitempty"`

	// LastFullSync is when a peer FullSync was last applied.
	LastFullSync time.Time `json:"last_full_sync,omitzero"`
}

// DeviceStateStore manages persistence of device state to a JSON file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Path returns the state file path.
func (s *DeviceStateStore) Path() string { return s.path }

// Save persists the device state to disk. The file is replaced atomically.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &DeviceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, state.Version)
	}
	return state, nil
}

// LoadOrCreate returns the stored state, creating and saving a new identity
// with a fresh device id when none exists. An existing state keeps its id
// even if role differs; the caller decides whether that is an error.
func (s *DeviceStateStore) LoadOrCreate(role, name string) (*DeviceState, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	if state != nil && state.DeviceID != "" {
		return state, nil
	}

	state = &DeviceState{DeviceID: uuid.NewString(), Role: role, Name: name}
	if err := s.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Update loads the state, applies fn and saves the result.
func (s *DeviceStateStore) Update(fn func(*DeviceState)) error {
	state, err := s.Load()
	if err != nil {
		return err
	}
	if state == nil {
		state = &DeviceState{}
	}
	fn(state)
	return s.Save(state)
}

// Clear removes the state file.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
