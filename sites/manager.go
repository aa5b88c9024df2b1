// Package sites keeps one compiled rule table per site origin and swaps
// tables without interrupting evaluation.
package sites

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pubomax/website-navigator/internal/logger"
	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/segment"
)

// DefaultSiteID names the site built from the default table
const DefaultSiteID = "default"

var (
	// ErrSiteNotFound is returned for operations on unknown sites
	ErrSiteNotFound = errors.New("site not found")

	// ErrInvalidTable wraps rule table validation failures
	ErrInvalidTable = errors.New("invalid rule table")
)

// Site is a compiled rule table for one origin
type Site struct {
	ID       string
	Version  int
	Table    *rules.Table
	Engine   *rules.Engine
	Selector *segment.Selector
}

// Manager manages compiled sites
type Manager struct {
	sites    map[string]*Site
	fallback *Site
	store    rules.TableStore
	caches   map[string]rules.TableCache
	cacheCfg rules.CacheConfig
	mu       sync.RWMutex
}

// NewManager creates a manager backed by store. fallback is the table used
// for unknown sites; nil means rules.DefaultTable().
func NewManager(store rules.TableStore, fallback *rules.Table, cacheCfg rules.CacheConfig) (*Manager, error) {
	if fallback == nil {
		fallback = rules.DefaultTable()
	}
	site, err := compileSite(DefaultSiteID, 0, fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to compile fallback table: %w", err)
	}

	return &Manager{
		sites:    make(map[string]*Site),
		fallback: site,
		store:    store,
		caches:   make(map[string]rules.TableCache),
		cacheCfg: cacheCfg,
	}, nil
}

func compileSite(siteID string, version int, table *rules.Table) (*Site, error) {
	engine, err := rules.NewEngine(table)
	if err != nil {
		return nil, err
	}
	return &Site{
		ID:       siteID,
		Version:  version,
		Table:    table,
		Engine:   engine,
		Selector: segment.NewSelector(engine),
	}, nil
}

// LoadAllSites compiles the active table of every stored site
func (m *Manager) LoadAllSites() error {
	tables, err := m.store.ListActive()
	if err != nil {
		return fmt.Errorf("failed to fetch sites: %w", err)
	}

	for _, stored := range tables {
		if err := m.install(stored); err != nil {
			return fmt.Errorf("failed to initialize site %s: %w", stored.SiteID, err)
		}
	}

	logger.Info("sites loaded", "count", len(tables))
	return nil
}

func (m *Manager) install(stored *rules.StoredTable) error {
	site, err := compileSite(stored.SiteID, stored.Version, stored.Table)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sites[stored.SiteID] = site
	cache, ok := m.caches[stored.SiteID]
	if !ok {
		cache = rules.NewInMemoryTableCache(m.cacheCfg)
		m.caches[stored.SiteID] = cache
	}
	cache.Set(stored)
	return nil
}

// CreateSite validates table, stores it as the site's first or next version
// and compiles it
func (m *Manager) CreateSite(siteID string, table *rules.Table) (*Site, error) {
	return m.UpdateSiteTable(siteID, table)
}

// UpdateSiteTable validates and stores a new table version, then swaps the
// compiled site atomically. Evaluation in flight keeps the previous site.
func (m *Manager) UpdateSiteTable(siteID string, table *rules.Table) (*Site, error) {
	if siteID == "" {
		return nil, fmt.Errorf("%w: site ID is required", ErrInvalidTable)
	}
	if err := rules.ValidateTable(table); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	version, err := m.store.Save(siteID, table)
	if err != nil {
		return nil, fmt.Errorf("failed to save rule table: %w", err)
	}

	stored := &rules.StoredTable{SiteID: siteID, Version: version, Table: table, Active: true}
	if err := m.install(stored); err != nil {
		return nil, fmt.Errorf("failed to compile rule table: %w", err)
	}

	logger.Info("rule table updated", "site", siteID, "version", version, "tableVersion", table.Version)
	return m.Lookup(siteID)
}

// Lookup returns a loaded site
func (m *Manager) Lookup(siteID string) (*Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	site, ok := m.sites[siteID]
	if !ok {
		return nil, fmt.Errorf("site %s: %w", siteID, ErrSiteNotFound)
	}
	return site, nil
}

// Site returns the compiled site for siteID. Expired cache entries are
// refreshed from the store; unknown sites and refresh failures fall back to
// the last compiled site or the default table. It never fails.
func (m *Manager) Site(siteID string) *Site {
	m.mu.RLock()
	site, ok := m.sites[siteID]
	cache := m.caches[siteID]
	m.mu.RUnlock()

	if !ok {
		return m.fallback
	}
	if cache == nil || cache.IsValid() {
		return site
	}

	stored, err := m.store.Active(siteID)
	if err != nil {
		logger.Warn("failed to refresh rule table, keeping compiled version", "site", siteID, "error", err)
		return site
	}
	if stored.Version == site.Version {
		cache.Set(stored)
		return site
	}
	if err := m.install(stored); err != nil {
		logger.Warn("failed to compile refreshed rule table", "site", siteID, "error", err)
		return site
	}
	refreshed, err := m.Lookup(siteID)
	if err != nil {
		return site
	}
	return refreshed
}

// Default returns the fallback site
func (m *Manager) Default() *Site {
	return m.fallback
}

// ListSites returns loaded site IDs in order
func (m *Manager) ListSites() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sites))
	for id := range m.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeleteSite removes a site's tables from the store and unloads it
func (m *Manager) DeleteSite(siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sites[siteID]; !exists {
		return fmt.Errorf("site %s: %w", siteID, ErrSiteNotFound)
	}
	if err := m.store.Delete(siteID); err != nil && !errors.Is(err, rules.ErrTableNotFound) {
		return fmt.Errorf("failed to delete rule tables: %w", err)
	}

	delete(m.sites, siteID)
	if cache, ok := m.caches[siteID]; ok {
		cache.Invalidate()
		delete(m.caches, siteID)
	}
	return nil
}
