package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()

	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)
	t.Cleanup(level.Close)

	bolt, err := NewBoltDB(filepath.Join(dir, "ledger.bolt"))
	require.NoError(t, err)
	t.Cleanup(bolt.Close)

	return map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": level,
		"bolt":    bolt,
	}
}

func TestDatabaseGetMissingReturnsErrNotFound(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("absent"))
			require.ErrorIs(t, err, ErrNotFound)
			ok, err := db.Has([]byte("absent"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestDatabaseBatchWriteAppliesInOrder(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("stale"))
			batch.Put([]byte("a"), []byte("3"))
			require.Equal(t, 4, batch.Len())
			require.NoError(t, db.Write(batch))

			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("3"), got)

			got, err = db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), got)

			ok, err := db.Has([]byte("stale"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("key"), []byte("value")))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocksdb", t.TempDir())
	require.Error(t, err)

	db, err := Open("memory", "")
	require.NoError(t, err)
	db.Close()
}
