// Package manifest records the persisted partition layout: which
// partitions exist, where their blobs live, and how they were encoded.
//
// A manifest snapshot is written as a versioned blob plus a CURRENT
// pointer naming the live snapshot, so readers always see a complete
// manifest and writers never overwrite one in place.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/codec"
	"github.com/erichchampion/codegraph/model"
)

const (
	// FilePrefix prefixes versioned manifest blob names.
	FilePrefix = "MANIFEST"
	// CurrentName is the pointer blob naming the live manifest.
	CurrentName = "CURRENT"
	// CurrentVersion is the manifest format version.
	CurrentVersion = 1
)

// Manifest describes one persisted snapshot of the partition layout.
type Manifest struct {
	Version     int       `json:"version"`
	ID          uint64    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Strategy    string    `json:"strategy"`
	Codec       string    `json:"codec"`
	Compression uint8     `json:"compression"`

	Partitions    []PartitionInfo `json:"partitions"`
	CrossRefCount int             `json:"cross_ref_count"`
}

// PartitionInfo describes a single persisted partition.
type PartitionInfo struct {
	ID            model.PartitionID `json:"id"`
	Name          string            `json:"name"`
	BlobName      string            `json:"blob_name"`
	NodeCount     int               `json:"node_count"`
	EdgeCount     int               `json:"edge_count"`
	EstimatedSize int64             `json:"estimated_size"`
	Priority      float64           `json:"priority,omitempty"`
}

// Store manages manifest snapshots in a blob store.
type Store struct {
	store blobstore.Store
	codec codec.Codec
	mu    sync.Mutex
}

// NewStore creates a manifest store. A nil codec uses the default.
func NewStore(bs blobstore.Store, c codec.Codec) *Store {
	if c == nil {
		c = codec.Default
	}
	return &Store{store: bs, codec: c}
}

// Load reads the live manifest. A store with no manifest yet yields an
// empty manifest at the current version, not an error.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return &Manifest{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", CurrentName, err)
	}

	data, err := s.store.Get(ctx, string(current))
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", current, err)
	}

	var m Manifest
	if err := s.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", current, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}

// Save writes m as a new versioned snapshot and repoints CURRENT at it.
// The snapshot blob lands fully before the pointer moves.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	data, err := s.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}

	name := fmt.Sprintf("%s-%06d.json", FilePrefix, m.ID)
	if err := s.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("manifest: write %s: %w", name, err)
	}
	if err := s.store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("manifest: write %s: %w", CurrentName, err)
	}
	return nil
}
