package regime

import (
	"sync/atomic"

	"TrendPull/internal/domain/models"
)

// Store publishes completed regime snapshots. Publication is a single
// pointer swap, so readers either see the previous complete snapshot or
// the new one, never a partial build. Stale publishes (older sequence)
// are dropped.
type Store struct {
	current atomic.Pointer[models.RegimeSnapshot]
}

func NewStore() *Store { return &Store{} }

// Publish installs snap unless a newer snapshot is already current.
// Returns false when snap lost the race.
func (s *Store) Publish(snap *models.RegimeSnapshot) bool {
	for {
		cur := s.current.Load()
		if cur != nil && cur.Seq >= snap.Seq {
			return false
		}
		if s.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

// Current returns the latest complete snapshot, or nil before the first
// publication.
func (s *Store) Current() *models.RegimeSnapshot {
	return s.current.Load()
}
