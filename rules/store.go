package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrTableNotFound is returned when a site has no active rule table
var ErrTableNotFound = errors.New("rule table not found")

// TableStore manages versioned rule tables per site
type TableStore interface {
	// Save stores table as the new active version for siteID and returns the version number
	Save(siteID string, table *Table) (int, error)

	// Active returns the active table for siteID
	Active(siteID string) (*StoredTable, error)

	// ListActive returns the active table of every site
	ListActive() ([]*StoredTable, error)

	// Delete removes all versions for siteID
	Delete(siteID string) error
}

// InMemoryTableStore implements TableStore using an in-memory map.
// Thread-safe.
type InMemoryTableStore struct {
	versions map[string][]*StoredTable
	mu       sync.RWMutex
}

// NewInMemoryTableStore creates a new in-memory table store
func NewInMemoryTableStore() *InMemoryTableStore {
	return &InMemoryTableStore{
		versions: make(map[string][]*StoredTable),
	}
}

// Save appends a new version and deactivates the previous one
func (s *InMemoryTableStore) Save(siteID string, table *Table) (int, error) {
	if siteID == "" {
		return 0, fmt.Errorf("site ID is required")
	}
	if table == nil {
		return 0, fmt.Errorf("rule table is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.versions[siteID]
	for _, v := range history {
		v.Active = false
	}

	stored := &StoredTable{
		SiteID:    siteID,
		Version:   len(history) + 1,
		Table:     table,
		Active:    true,
		CreatedAt: time.Now(),
	}
	s.versions[siteID] = append(history, stored)
	return stored.Version, nil
}

// Active returns the active version for siteID
func (s *InMemoryTableStore) Active(siteID string) (*StoredTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions[siteID] {
		if v.Active {
			return v, nil
		}
	}
	return nil, fmt.Errorf("site %s: %w", siteID, ErrTableNotFound)
}

// ListActive returns active versions ordered by site ID
func (s *InMemoryTableStore) ListActive() ([]*StoredTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*StoredTable
	for _, history := range s.versions {
		for _, v := range history {
			if v.Active {
				active = append(active, v)
			}
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].SiteID < active[j].SiteID
	})
	return active, nil
}

// Delete removes every version stored for siteID
func (s *InMemoryTableStore) Delete(siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.versions[siteID]; !exists {
		return fmt.Errorf("site %s: %w", siteID, ErrTableNotFound)
	}
	delete(s.versions, siteID)
	return nil
}
