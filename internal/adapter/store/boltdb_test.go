package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestIndexFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.index")
	x := buildIndex(t)

	require.NoError(t, WriteIndexFile(path, "build-1", x))

	loaded, header, err := ReadIndexFile(path)
	require.NoError(t, err)
	assert.Equal(t, IndexHeader{Version: CurrentFormatVersion, BuildID: "build-1", Dimension: 3, Count: 4}, header)
	require.Equal(t, x.Len(), loaded.Len())
	for slot := 0; slot < x.Len(); slot++ {
		assert.Equal(t, x.Vector(slot), loaded.Vector(slot))
	}

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is gone after rename")
}

func TestIndexFile_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.index")

	require.NoError(t, WriteIndexFile(path, "old", buildIndex(t)))

	small := NewFlatIndex(2)
	require.NoError(t, small.Add([][]float32{{0, 1}}))
	require.NoError(t, WriteIndexFile(path, "new", small))

	loaded, header, err := ReadIndexFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", header.BuildID)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, 2, loaded.Dimension())
}

func TestReadIndexFile_Missing(t *testing.T) {
	_, _, err := ReadIndexFile(filepath.Join(t.TempDir(), "absent.index"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadIndexFile_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.index")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a bolt file"), 0644))

	_, _, err := ReadIndexFile(path)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReadIndexFile_WrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.index")
	require.NoError(t, WriteIndexFile(path, "b", buildIndex(t)))

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		header, _ := json.Marshal(IndexHeader{Version: CurrentFormatVersion + 1, BuildID: "b", Dimension: 3, Count: 4})
		return tx.Bucket(bucketMeta).Put(keyHeader, header)
	}))
	require.NoError(t, db.Close())

	_, _, err = ReadIndexFile(path)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReadIndexFile_MissingVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.index")
	require.NoError(t, WriteIndexFile(path, "b", buildIndex(t)))

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Delete(slotKey(2))
	}))
	require.NoError(t, db.Close())

	_, _, err = ReadIndexFile(path)
	assert.True(t, errors.Is(err, ErrFormat))
}
