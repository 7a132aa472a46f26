package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pacochain/core/types"
)

type payload struct{ evt *types.Event }

func (p payload) EventType() string { return p.evt.Type }
func (p payload) Event() *types.Event { return p.evt }

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store, err := NewStore(db, WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func listingEvent(eventType string, id, owner string) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{"assetId": id, "owner": owner, "bond": "10"}}
}

func TestStoreHistoryByAsset(t *testing.T) {
	store := setupTestStore(t)
	store.Emit(payload{listingEvent("harberger.minted", "1", "paco1alice")})
	store.Emit(payload{listingEvent("harberger.minted", "2", "paco1bob")})
	store.Emit(payload{listingEvent("harberger.sold", "1", "paco1bob")})

	history, err := store.History(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "harberger.minted", history[0].Type)
	require.Equal(t, "harberger.sold", history[1].Type)
	require.Less(t, history[0].Sequence, history[1].Sequence)

	attrs, err := history[1].DecodeAttributes()
	require.NoError(t, err)
	require.Equal(t, "paco1bob", attrs["owner"])

	byAccount, err := store.Events(context.Background(), Query{Account: "paco1bob"})
	require.NoError(t, err)
	require.Len(t, byAccount, 2)

	_, err = store.History(context.Background(), 0, 10)
	require.Error(t, err)
}

func TestStoreRecordIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	evt := listingEvent("harberger.minted", "7", "paco1alice")
	inserted, err := store.Record(context.Background(), 42, evt)
	require.NoError(t, err)
	require.True(t, inserted)
	inserted, err = store.Record(context.Background(), 42, evt)
	require.NoError(t, err)
	require.False(t, inserted)

	require.Equal(t, Fingerprint(42, evt), Fingerprint(42, evt.Clone()))
	require.NotEqual(t, Fingerprint(42, evt), Fingerprint(43, evt))

	// later emits continue after the highest recorded sequence
	store.Emit(payload{listingEvent("harberger.altered", "7", "paco1alice")})
	history, err := store.History(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, uint64(43), history[1].Sequence)
}

func TestExportParquet(t *testing.T) {
	store := setupTestStore(t)
	for i := 1; i <= 5; i++ {
		store.Emit(payload{listingEvent("harberger.minted", fmt.Sprint(i), "paco1alice")})
	}
	path := filepath.Join(t.TempDir(), "events.parquet")
	n, err := store.ExportParquet(context.Background(), path, Query{})
	require.NoError(t, err)
	require.Equal(t, 5, n)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestOpenDialector(t *testing.T) {
	d, err := OpenDialector("postgres://paco@localhost/paco")
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())
	d, err = OpenDialector(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name())
	_, err = OpenDialector(" ")
	require.Error(t, err)
}
