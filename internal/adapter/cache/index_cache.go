package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"finrag/internal/adapter/store"
	"finrag/internal/domain"
)

const lockFile = ".finrag.lock"

// IndexCache persists a built index together with its metadata and decides
// whether a persisted pair is still fresh.
//
// The pair is an index file (see store.WriteIndexFile) plus a JSON sidecar.
// Both carry the same build id; a sidecar is only accepted together with the
// index file written in the same Store call.
type IndexCache struct {
	dir       string
	indexPath string
	metaPath  string
	logger    *zap.Logger
}

// Entry is a cache hit.
type Entry struct {
	Index    *store.FlatIndex
	Metadata []domain.Metadata
	BuildID  string
}

type sidecar struct {
	Fingerprint string            `json:"fingerprint"`
	BuildID     string            `json:"build_id"`
	Model       string            `json:"model"`
	Dimension   int               `json:"dimension"`
	Metadata    []json.RawMessage `json:"metadata"`
}

type sidecarOut struct {
	Fingerprint string            `json:"fingerprint"`
	BuildID     string            `json:"build_id"`
	Model       string            `json:"model"`
	Dimension   int               `json:"dimension"`
	Metadata    []domain.Metadata `json:"metadata"`
}

// NewIndexCache creates a cache rooted at dir.
func NewIndexCache(dir, indexFile, metadataFile string, logger *zap.Logger) *IndexCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexCache{
		dir:       dir,
		indexPath: filepath.Join(dir, indexFile),
		metaPath:  filepath.Join(dir, metadataFile),
		logger:    logger,
	}
}

// IndexPath returns the path of the index file.
func (c *IndexCache) IndexPath() string { return c.indexPath }

// MetadataPath returns the path of the sidecar.
func (c *IndexCache) MetadataPath() string { return c.metaPath }

// Load returns the persisted index if its sidecar fingerprint equals
// fingerprint exactly and it was built by the same model. Every failure,
// I/O or parse, is reported as a miss.
func (c *IndexCache) Load(fingerprint, model string, dimension int) (*Entry, bool) {
	entry, err := c.load(fingerprint, model, dimension)
	if err != nil {
		c.logger.Debug("index cache miss", zap.String("reason", err.Error()))
		return nil, false
	}
	return entry, true
}

func (c *IndexCache) load(fingerprint, model string, dimension int) (*Entry, error) {
	lock := flock.New(filepath.Join(c.dir, lockFile))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock cache: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(c.metaPath)
	if err != nil {
		return nil, err
	}

	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt sidecar: %w", err)
	}
	if meta.Fingerprint != fingerprint {
		return nil, fmt.Errorf("fingerprint changed")
	}
	if meta.Model != model || meta.Dimension != dimension {
		return nil, fmt.Errorf("built by %s/%d, want %s/%d", meta.Model, meta.Dimension, model, dimension)
	}

	index, header, err := store.ReadIndexFile(c.indexPath)
	if err != nil {
		return nil, err
	}
	if header.BuildID != meta.BuildID {
		return nil, fmt.Errorf("index build %s does not match sidecar build %s", header.BuildID, meta.BuildID)
	}
	if index.Len() != len(meta.Metadata) || index.Dimension() != dimension {
		return nil, fmt.Errorf("index holds %d vectors of dim %d, sidecar lists %d entries",
			index.Len(), index.Dimension(), len(meta.Metadata))
	}

	metadata := make([]domain.Metadata, len(meta.Metadata))
	for i, raw := range meta.Metadata {
		m, err := domain.DecodeMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata %d: %w", i, err)
		}
		metadata[i] = m
	}

	return &Entry{Index: index, Metadata: metadata, BuildID: meta.BuildID}, nil
}

// Store persists index and metadata as one unit under a fresh build id.
// The index file is replaced first, then the sidecar; a reader in between
// sees mismatched build ids and misses.
func (c *IndexCache) Store(fingerprint, model string, index *store.FlatIndex, metadata []domain.Metadata) (string, error) {
	if index.Len() != len(metadata) {
		return "", fmt.Errorf("index holds %d vectors but %d metadata entries given", index.Len(), len(metadata))
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	lock := flock.New(filepath.Join(c.dir, lockFile))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock cache: %w", err)
	}
	defer lock.Unlock()

	buildID := uuid.NewString()

	if err := store.WriteIndexFile(c.indexPath, buildID, index); err != nil {
		return "", fmt.Errorf("failed to write index: %w", err)
	}

	data, err := json.MarshalIndent(sidecarOut{
		Fingerprint: fingerprint,
		BuildID:     buildID,
		Model:       model,
		Dimension:   index.Dimension(),
		Metadata:    metadata,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := renameio.WriteFile(c.metaPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write sidecar: %w", err)
	}

	c.logger.Debug("index cache stored",
		zap.String("build_id", buildID),
		zap.Int("vectors", index.Len()),
		zap.String("path", c.indexPath),
	)
	return buildID, nil
}
