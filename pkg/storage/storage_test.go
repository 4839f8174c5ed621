package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name  string
	Count int
}

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	kv := New("widget", db)

	require.NoError(t, kv.Put("a", testRecord{Name: "alpha", Count: 1}))

	var got testRecord
	require.NoError(t, kv.Get("a", &got))
	require.Equal(t, testRecord{Name: "alpha", Count: 1}, got)
}

func TestKVGetMissingKey(t *testing.T) {
	db := openTestDB(t)
	kv := New("widget", db)

	var got testRecord
	err := kv.Get("missing", &got)
	require.True(t, errors.Is(err, badger.ErrKeyNotFound))
}

func TestKVDelete(t *testing.T) {
	db := openTestDB(t)
	kv := New("widget", db)
	require.NoError(t, kv.Put("a", testRecord{Name: "alpha"}))
	require.NoError(t, kv.Delete("a"))

	var got testRecord
	err := kv.Get("a", &got)
	require.True(t, errors.Is(err, badger.ErrKeyNotFound))
}

func TestKVListFiltersByPrefixAndFunc(t *testing.T) {
	db := openTestDB(t)
	widgets := New("widget", db)
	gadgets := New("gadget", db)

	require.NoError(t, widgets.Put("a", testRecord{Name: "a", Count: 1}))
	require.NoError(t, widgets.Put("b", testRecord{Name: "b", Count: 2}))
	require.NoError(t, gadgets.Put("c", testRecord{Name: "c", Count: 99}))

	items, err := widgets.List(
		func() interface{} { return &testRecord{} },
		func(item interface{}) bool { return item.(*testRecord).Count > 1 },
	)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "b", items[0].(*testRecord).Name)
}

func TestJSONFileRoundTrip(t *testing.T) {
	type cfg struct {
		Hostname string `json:"hostname"`
		Port     int    `json:"port"`
	}
	path := filepath.Join(t.TempDir(), "config.json")

	want := cfg{Hostname: "start-1", Port: 9000}
	require.NoError(t, SaveJSON(path, want))

	var got cfg
	require.NoError(t, LoadJSON(path, &got))
	require.Equal(t, want, got)
}

func TestJSONFileLoadMissingFileErrors(t *testing.T) {
	var got map[string]any
	err := LoadJSON(filepath.Join(t.TempDir(), "nope.json"), &got)
	require.Error(t, err)
}
