package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairtimer/pairtimer-go/pkg/model"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pairtimer.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func collect(t *testing.T, s Store, prefix string) []Record {
	t.Helper()
	var out []Record
	for r, err := range s.Scan(context.Background(), prefix) {
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func TestStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "timer/missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.PutAll(ctx, []Record{{Key: "timer/a", Value: []byte{1}}}))
			r, ok, err := s.Get(ctx, "timer/a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte{1}, r.Value)

			require.NoError(t, s.PutAll(ctx, []Record{{Key: "timer/a", Value: []byte{2}}}))
			r, _, _ = s.Get(ctx, "timer/a")
			assert.Equal(t, []byte{2}, r.Value)

			require.NoError(t, s.Delete(ctx, "timer/a"))
			_, ok, _ = s.Get(ctx, "timer/a")
			assert.False(t, ok)

			// Deleting again is fine.
			assert.NoError(t, s.Delete(ctx, "timer/a"))
		})
	}
}

func TestStoreScanPrefixOrdered(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutAll(ctx, []Record{
				{Key: "item/t1/b", Value: []byte("b")},
				{Key: "item/t1/a", Value: []byte("a")},
				{Key: "item/t2/a", Value: []byte("x")},
				{Key: "timer/t1", Value: []byte("t")},
			}))

			got := collect(t, s, "item/t1/")
			require.Len(t, got, 2)
			assert.Equal(t, "item/t1/a", got[0].Key)
			assert.Equal(t, "item/t1/b", got[1].Key)

			assert.Len(t, collect(t, s, "item/"), 3)
			assert.Len(t, collect(t, s, ""), 4)
			assert.Empty(t, collect(t, s, "runtime/"))
		})
	}
}

func TestStoreScanAllowsReentrantCalls(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutAll(ctx, []Record{
				{Key: "timer/a", Value: []byte{1}},
				{Key: "timer/b", Value: []byte{2}},
			}))
			for r, err := range s.Scan(ctx, "timer/") {
				require.NoError(t, err)
				require.NoError(t, s.Delete(ctx, r.Key))
			}
			assert.Empty(t, collect(t, s, "timer/"))
		})
	}
}

func TestStoreCommitMixed(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutAll(ctx, []Record{
				{Key: "item/t/a", Value: []byte{1}},
				{Key: "item/t/b", Value: []byte{2}},
			}))
			err := s.Commit(ctx,
				[]Record{{Key: "item/t/c", Value: []byte{3}}},
				[]string{"item/t/a"},
			)
			require.NoError(t, err)

			got := collect(t, s, "item/t/")
			require.Len(t, got, 2)
			assert.Equal(t, "item/t/b", got[0].Key)
			assert.Equal(t, "item/t/c", got[1].Key)
		})
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.PutAll(ctx, []Record{
				{Key: "timer/ok", Value: []byte{1}},
				{Key: "", Value: []byte{2}},
			})
			assert.ErrorIs(t, err, ErrEmptyKey)

			// Nothing from the rejected batch is written.
			_, ok, _ := s.Get(ctx, "timer/ok")
			assert.False(t, ok)
		})
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.PutAll(context.Background(), []Record{{Key: "k"}}), ErrClosed)
	for _, err := range s.Scan(context.Background(), "") {
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	v := []byte{1, 2}
	require.NoError(t, s.PutAll(context.Background(), []Record{{Key: "k", Value: v}}))
	v[0] = 9

	r, _, _ := s.Get(context.Background(), "k")
	assert.Equal(t, []byte{1, 2}, r.Value)
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.PutAll(ctx, []Record{{Key: "runtime/x", Value: []byte("v")}}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	r, ok, err := s.Get(ctx, "runtime/x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), r.Value)
}

func TestKeys(t *testing.T) {
	timerID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	itemID := uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

	assert.Equal(t, "timer/6ba7b810-9dad-11d1-80b4-00c04fd430c8", TimerKey(timerID))
	assert.Equal(t, "item/6ba7b810-9dad-11d1-80b4-00c04fd430c8/6ba7b811-9dad-11d1-80b4-00c04fd430c8", ItemKey(timerID, itemID))
	assert.Equal(t, "runtime/6ba7b810-9dad-11d1-80b4-00c04fd430c8", RuntimeKey(timerID))

	id, ok := ParseRuntimeKey(RuntimeKey(timerID))
	assert.True(t, ok)
	assert.Equal(t, timerID, id)

	_, ok = ParseRuntimeKey("timer/6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.False(t, ok)
	_, ok = ParseRuntimeKey("runtime/not-a-uuid")
	assert.False(t, ok)
}

func TestRecordCodecRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC)
	tm := &model.Timer{
		ID:              uuid.New(),
		Name:            "Tea",
		DurationSeconds: 180,
		Icon:            "cup",
		SortRank:        2,
		Notes:           "green",
		CreatedAt:       created,
		UpdatedAt:       created.Add(time.Second),
	}
	tm.Items = []model.ChecklistItem{{
		ID:        uuid.New(),
		TimerID:   tm.ID,
		Text:      "boil water",
		Completed: true,
		CreatedAt: created,
		UpdatedAt: created,
	}}

	records, err := TimerRecords(tm)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, TimerKey(tm.ID), records[0].Key)
	assert.Equal(t, ItemKey(tm.ID, tm.Items[0].ID), records[1].Key)

	gotTimer, err := DecodeTimer(records[0].Value)
	require.NoError(t, err)
	assert.Empty(t, gotTimer.Items)
	assert.Equal(t, tm.Name, gotTimer.Name)
	assert.Equal(t, tm.Notes, gotTimer.Notes)
	assert.True(t, tm.UpdatedAt.Equal(gotTimer.UpdatedAt))
	assert.Equal(t, tm.CreatedAt.Nanosecond(), gotTimer.CreatedAt.Nanosecond())

	gotItem, err := DecodeItem(records[1].Value)
	require.NoError(t, err)
	assert.Equal(t, tm.Items[0].ID, gotItem.ID)
	assert.Equal(t, tm.ID, gotItem.TimerID)
	assert.True(t, gotItem.Completed)

	rs := &model.RuntimeState{
		TimerID:          tm.ID,
		Paused:           true,
		RemainingSeconds: 42,
		PauseTimestamp:   created,
		LastUpdate:       created,
	}
	rec, err := RuntimeRecord(rs)
	require.NoError(t, err)
	gotRS, err := DecodeRuntime(rec.Value)
	require.NoError(t, err)
	assert.True(t, gotRS.Paused)
	assert.False(t, gotRS.Running)
	assert.Equal(t, 42, gotRS.RemainingSeconds)
	assert.True(t, gotRS.StartTimestamp.IsZero())
	assert.True(t, created.Equal(gotRS.PauseTimestamp))
}

func TestRecordCodecDeterministic(t *testing.T) {
	rs := &model.RuntimeState{TimerID: uuid.New(), RemainingSeconds: 5, LastUpdate: time.Unix(100, 0).UTC()}
	a, err := RuntimeRecord(rs)
	require.NoError(t, err)
	b, err := RuntimeRecord(rs)
	require.NoError(t, err)
	assert.Equal(t, a.Value, b.Value)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeTimer([]byte{0xff, 0x00})
	assert.Error(t, err)
	_, err = DecodeRuntime([]byte("nope"))
	assert.Error(t, err)
}
