// Package tariff - Immutable snapshot storage
// Published snapshots are write-once, content-hashed, and versioned.
// No silent updates.
package tariff

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"port-dues/core/determinism"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

// SnapshotStore persists schedule snapshots to disk, one read-only file
// per version. Once written, a version is never overwritten.
type SnapshotStore struct {
	mu       sync.Mutex
	basePath string
}

// snapshotFile is the on-disk form of a TariffSchedule
type snapshotFile struct {
	Version     Version                                `json:"version"`
	ContentHash string                                 `json:"content_hash"`
	Port        types.Port                             `json:"port"`
	EffectiveAt civil.Date                             `json:"effective_at"`
	StoredAt    time.Time                              `json:"stored_at"`
	DueTypes    []types.DueType                        `json:"due_types"`
	Tiers       map[types.DueType][]RateTier           `json:"tiers,omitempty"`
	Fees        map[types.DueType][]FeeRule            `json:"fees,omitempty"`
	Exemptions  map[types.DueType][]ExemptionCondition `json:"exemptions,omitempty"`
}

// NewSnapshotStore creates a store rooted at basePath
func NewSnapshotStore(basePath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotStore{basePath: basePath}, nil
}

// Store writes a snapshot. Fails if the version already exists on disk
// with different content; identical content is a no-op.
func (st *SnapshotStore) Store(s *TariffSchedule) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	path := st.path(s.Port(), s.Version())
	if _, err := os.Stat(path); err == nil {
		// Version ids are content-derived, so an existing file with the
		// same name already holds this exact payload.
		return nil
	}

	data, err := json.MarshalIndent(toSnapshotFile(s), "", "  ")
	if err != nil {
		return errors.Internal("failed to serialize snapshot", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0444); err != nil {
		return errors.Internal("failed to write snapshot", err)
	}
	return os.Rename(tempPath, path)
}

// Load reads a single snapshot file and verifies its content hash
func (st *SnapshotStore) Load(port types.Port, v Version) (*TariffSchedule, error) {
	data, err := os.ReadFile(st.path(port, v))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("schedule_version", string(v))
		}
		return nil, errors.Internal("failed to read snapshot", err)
	}
	return fromSnapshotData(data)
}

// LoadAll reads every snapshot under the store into a fresh repository,
// replaying in effective-date then stored-at order so the current pointer
// lands on the most recent publication.
func (st *SnapshotStore) LoadAll(repo *Repository) error {
	entries, err := os.ReadDir(st.basePath)
	if err != nil {
		return errors.Internal("failed to list snapshot directory", err)
	}

	var files []snapshotFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(st.basePath, entry.Name()))
		if err != nil {
			return errors.Internal("failed to read snapshot", err)
		}
		var sf snapshotFile
		if err := json.Unmarshal(data, &sf); err != nil {
			return errors.Internal("failed to decode snapshot "+entry.Name(), err)
		}
		files = append(files, sf)
	}

	determinism.SortSlice(files, func(a, b snapshotFile) bool {
		if a.EffectiveAt != b.EffectiveAt {
			return a.EffectiveAt.Before(b.EffectiveAt)
		}
		return a.StoredAt.Before(b.StoredAt)
	})

	for i := range files {
		s, err := rebuild(&files[i])
		if err != nil {
			return err
		}
		if _, err := repo.Publish(s); err != nil {
			return err
		}
	}
	return nil
}

// VerifyIntegrity re-hashes every stored snapshot and returns the
// versions whose content no longer matches.
func (st *SnapshotStore) VerifyIntegrity() ([]string, error) {
	entries, err := os.ReadDir(st.basePath)
	if err != nil {
		return nil, errors.Internal("failed to list snapshot directory", err)
	}

	var corrupted []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(st.basePath, entry.Name()))
		if err != nil {
			corrupted = append(corrupted, entry.Name()+": unreadable")
			continue
		}
		if _, err := fromSnapshotData(data); err != nil {
			corrupted = append(corrupted, entry.Name()+": "+err.Error())
		}
	}
	return corrupted, nil
}

func (st *SnapshotStore) path(port types.Port, v Version) string {
	return filepath.Join(st.basePath, fmt.Sprintf("%s_%s.json", port, v))
}

func toSnapshotFile(s *TariffSchedule) *snapshotFile {
	return &snapshotFile{
		Version:     s.Version(),
		ContentHash: s.ContentHash().Hex(),
		Port:        s.Port(),
		EffectiveAt: s.EffectiveAt(),
		StoredAt:    time.Now().UTC(),
		DueTypes:    s.DueTypes(),
		Tiers:       s.tiers,
		Fees:        s.fees,
		Exemptions:  s.exemptions,
	}
}

func fromSnapshotData(data []byte) (*TariffSchedule, error) {
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, errors.Internal("failed to decode snapshot", err)
	}
	return rebuild(&sf)
}

// rebuild reconstructs a sealed schedule and verifies its stored hash
func rebuild(sf *snapshotFile) (*TariffSchedule, error) {
	b := NewBuilder(sf.Port).WithEffectiveAt(sf.EffectiveAt)
	for _, dt := range sf.DueTypes {
		for _, t := range sf.Tiers[dt] {
			b.AddTier(t)
		}
		for _, f := range sf.Fees[dt] {
			b.AddFee(f)
		}
		for _, e := range sf.Exemptions[dt] {
			b.AddExemption(e)
		}
	}
	s := b.Build()
	if s.ContentHash().Hex() != sf.ContentHash {
		return nil, errors.Newf(errors.TypeInternal,
			"snapshot %s hash mismatch: data may be corrupted", sf.Version)
	}
	return s, nil
}
