// Package tariff - Versioned schedule repository
// Publication is a single atomic pointer swap. Readers borrow whichever
// snapshot was current when their request started; in-flight requests are
// never migrated to a newer version.
package tariff

import (
	"sync"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"port-dues/core/determinism"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

// Repository holds published schedule snapshots per port and serves
// read-only lookups. The read path takes no lock beyond the RWMutex
// read-acquire guarding the current-pointer map.
type Repository struct {
	mu       sync.RWMutex
	current  map[types.Port]*TariffSchedule
	versions map[types.Port]map[Version]*TariffSchedule

	// history preserves publish order per port, oldest first
	history map[types.Port][]*TariffSchedule

	logger *zap.Logger
}

// NewRepository creates an empty repository
func NewRepository(logger *zap.Logger) *Repository {
	return &Repository{
		current:  make(map[types.Port]*TariffSchedule),
		versions: make(map[types.Port]map[Version]*TariffSchedule),
		history:  make(map[types.Port][]*TariffSchedule),
		logger:   logger,
	}
}

// Publish validates a schedule and atomically makes it the current
// snapshot for its port. Republishing identical content is a no-op that
// returns the existing version.
func (r *Repository) Publish(s *TariffSchedule) (Version, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	port := s.Port()
	if byVersion, ok := r.versions[port]; ok {
		if _, exists := byVersion[s.Version()]; exists {
			return s.Version(), nil
		}
	} else {
		r.versions[port] = make(map[Version]*TariffSchedule)
	}

	r.versions[port][s.Version()] = s
	r.history[port] = append(r.history[port], s)
	r.current[port] = s

	r.logger.Info("schedule published",
		zap.String("port", port.String()),
		zap.String("version", string(s.Version())),
		zap.String("effective_at", s.EffectiveAt().String()),
	)
	return s.Version(), nil
}

// Snapshot returns the current schedule for a port
func (r *Repository) Snapshot(port types.Port) (*TariffSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.current[port]
	if !ok {
		return nil, errors.NotFound("schedule", port.String())
	}
	return s, nil
}

// SnapshotAsOf returns the most recently published schedule whose
// effective date is not after asOf.
func (r *Repository) SnapshotAsOf(port types.Port, asOf civil.Date) (*TariffSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.history[port]
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].EffectiveAt().After(asOf) {
			return history[i], nil
		}
	}
	return nil, errors.NotFound("schedule", port.String()).
		WithContext("as_of", asOf.String())
}

// VersionSnapshot returns a pinned schedule version for a port
func (r *Repository) VersionSnapshot(port types.Port, v Version) (*TariffSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.versions[port][v]
	if !ok {
		return nil, errors.NotFound("schedule_version", string(v)).
			WithContext("port", port.String())
	}
	return s, nil
}

// HasSchedule reports whether a port has a current schedule. The
// guardrail uses this to resolve port codes before any calculation.
func (r *Repository) HasSchedule(port types.Port) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.current[port]
	return ok
}

// Ports returns all ports with a current schedule, sorted
func (r *Repository) Ports() []types.Port {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ports := make([]types.Port, 0, len(r.current))
	for p := range r.current {
		ports = append(ports, p)
	}
	// Stable order for listings
	determinism.SortSlice(ports, func(a, b types.Port) bool { return a < b })
	return ports
}

// Versions returns the published versions for a port in publish order
func (r *Repository) Versions(port types.Port) []Version {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.history[port]
	out := make([]Version, 0, len(history))
	for _, s := range history {
		out = append(out, s.Version())
	}
	return out
}
