package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// CurrentFormatVersion is the on-disk layout version of index files.
// Increment this when changing buckets or encodings; older files are then
// rejected and rebuilt rather than migrated.
const CurrentFormatVersion = 1

var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")
	keyHeader     = []byte("header")
)

// ErrFormat is returned for index files that are not readable as this format.
var ErrFormat = errors.New("unrecognized index file")

// IndexHeader describes a persisted index.
type IndexHeader struct {
	Version   int    `json:"version"`
	BuildID   string `json:"build_id"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
}

// WriteIndexFile persists index to path as a bolt database. The file is built
// under a temporary name and renamed into place, so path never holds a
// half-written index.
func WriteIndexFile(path, buildID string, index *FlatIndex) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale temp index: %w", err)
	}

	if err := writeBolt(tmp, buildID, index); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}

func writeBolt(path, buildID string, index *FlatIndex) error {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}
		vectors, err := tx.CreateBucketIfNotExists(bucketVectors)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketVectors, err)
		}

		header, err := json.Marshal(IndexHeader{
			Version:   CurrentFormatVersion,
			BuildID:   buildID,
			Dimension: index.Dimension(),
			Count:     index.Len(),
		})
		if err != nil {
			return err
		}
		if err := meta.Put(keyHeader, header); err != nil {
			return err
		}

		for slot := 0; slot < index.Len(); slot++ {
			if err := vectors.Put(slotKey(slot), encodeVector(index.Vector(slot))); err != nil {
				return fmt.Errorf("failed to store vector %d: %w", slot, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// ReadIndexFile loads an index written by WriteIndexFile.
func ReadIndexFile(path string) (*FlatIndex, IndexHeader, error) {
	var header IndexHeader

	if _, err := os.Stat(path); err != nil {
		return nil, header, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, header, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer db.Close()

	var index *FlatIndex
	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		vectors := tx.Bucket(bucketVectors)
		if meta == nil || vectors == nil {
			return fmt.Errorf("%w: missing buckets", ErrFormat)
		}

		data := meta.Get(keyHeader)
		if data == nil {
			return fmt.Errorf("%w: missing header", ErrFormat)
		}
		if err := json.Unmarshal(data, &header); err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if header.Version != CurrentFormatVersion {
			return fmt.Errorf("%w: format v%d, want v%d", ErrFormat, header.Version, CurrentFormatVersion)
		}
		if header.Dimension <= 0 || header.Count < 0 {
			return fmt.Errorf("%w: bad header %+v", ErrFormat, header)
		}

		loaded := make([][]float32, header.Count)
		for slot := range loaded {
			raw := vectors.Get(slotKey(slot))
			if raw == nil {
				return fmt.Errorf("%w: missing vector %d", ErrFormat, slot)
			}
			v, err := decodeVector(raw, header.Dimension)
			if err != nil {
				return fmt.Errorf("%w: vector %d: %v", ErrFormat, slot, err)
			}
			loaded[slot] = v
		}

		index = NewFlatIndex(header.Dimension)
		return index.Add(loaded)
	})
	if err != nil {
		return nil, header, err
	}

	return index, header, nil
}

func slotKey(slot int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(slot))
	return key
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte, dimension int) ([]float32, error) {
	if len(buf) != 4*dimension {
		return nil, fmt.Errorf("expected %d bytes, got %d", 4*dimension, len(buf))
	}
	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
