package satrain

import (
	"context"
	"sync"
)

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// cfg holds the module configuration.
	cfg Config

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// store reads and writes the persisted config file.
	store *configStore

	// server handles dataset-server communication.
	server *serverClient

	// dataRoot and tier are the resolved data root and its source,
	// fixed at construction.
	dataRoot string
	tier     Tier

	// catalogMu guards the lazily fetched catalog. The index is fetched
	// at most once per Manager.
	catalogMu  sync.Mutex
	catalogVal *Catalog
}

// DataRoot returns the resolved data root and its precedence tier.
func (m *manager) DataRoot() (string, Tier) {
	return m.dataRoot, m.tier
}

// SetDataPath persists the given path to the config file.
func (m *manager) SetDataPath(path string) error {
	return m.store.saveDataPath(path)
}

// ValidKeys expands partial filters against the catalog schema.
func (m *manager) ValidKeys(f Filters) ([]PartitionKey, error) {
	return ValidKeys(f)
}

// catalog returns the dataset catalog, fetching the index on first use.
func (m *manager) catalog(ctx context.Context) (*Catalog, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	if m.catalogVal != nil {
		return m.catalogVal, nil
	}
	entries, err := m.server.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	m.catalogVal = newCatalog(entries)
	return m.catalogVal, nil
}

// Scan reports local inventory with catalog-derived expected counts.
func (m *manager) Scan(ctx context.Context, keys []PartitionKey) ([]InventoryRecord, error) {
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
	}
	cat, err := m.catalog(ctx)
	if err != nil {
		return nil, err
	}
	records, err := newScanner(m.dataRoot).scan(keys)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Expected = cat.ExpectedFileCount(records[i].Key)
	}
	return records, nil
}

// ListLocal discovers and scans every partition under the data root.
func (m *manager) ListLocal(ctx context.Context) ([]InventoryRecord, error) {
	s := newScanner(m.dataRoot)
	keys, err := s.discoverKeys()
	if err != nil {
		return nil, err
	}
	return s.scan(keys)
}

// EnsureLocal downloads the missing files of the given keys.
func (m *manager) EnsureLocal(ctx context.Context, keys []PartitionKey, opts ...DownloadOption) (DownloadReport, error) {
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return DownloadReport{}, err
		}
	}

	cfg := newDownloadConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	cat, err := m.catalog(ctx)
	if err != nil {
		return DownloadReport{}, err
	}

	coord := newCoordinator(m.server, m.dataRoot, m.logger)
	return coord.ensureLocal(ctx, cat, keys, cfg)
}
