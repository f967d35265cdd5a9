package satrain

import (
	"context"
	"errors"
)

// DefaultServerURL is the public SatRain dataset server.
const DefaultServerURL = "https://rain.atmos.colostate.edu/gprof_nn/satrain"

// Manager provides programmatic access to the local dataset registry and
// the download coordinator. All methods are safe for concurrent use.
// For CLI integration, use NewCommand instead.
type Manager interface {
	// DataRoot returns the resolved local data root and the precedence
	// tier that produced it.
	DataRoot() (string, Tier)

	// SetDataPath persists a data root to the config file so subsequent
	// invocations inherit it. Returns ErrConfigPersist if the file
	// cannot be written; the in-memory root of this Manager is
	// unaffected either way.
	SetDataPath(path string) error

	// ValidKeys expands partial filters into the matching set of valid
	// partition keys. See the package-level ValidKeys.
	ValidKeys(f Filters) ([]PartitionKey, error)

	// Scan reports local inventory for the given keys, with completeness
	// judged against the catalog's expected file counts. Fetches the
	// dataset index on first use.
	Scan(ctx context.Context, keys []PartitionKey) ([]InventoryRecord, error)

	// ListLocal reports every partition present under the data root.
	// Purely local: no network access, no expected counts.
	ListLocal(ctx context.Context) ([]InventoryRecord, error)

	// EnsureLocal downloads the missing or incomplete files of the given
	// keys. Individual file failures are aggregated into the report; the
	// returned error is non-nil only for cancellation or when the work
	// could not be planned at all.
	EnsureLocal(ctx context.Context, keys []PartitionKey, opts ...DownloadOption) (DownloadReport, error)
}

// Ensure manager implements Manager.
var _ Manager = (*manager)(nil)

// NewManager creates a Manager with the given configuration. The data
// root is resolved once, here; it does not change for the lifetime of the
// Manager.
func NewManager(cfg Config, opts ...ManagerOption) (Manager, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("satrain: ServerURL is required")
	}

	mcfg := newManagerConfig()
	for _, opt := range opts {
		opt(mcfg)
	}

	store, err := newConfigStore(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	dataRoot, tier, err := store.resolveDataRoot(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	server := newServerClient(cfg.ServerURL, mcfg.httpClient, mcfg.logger)

	return &manager{
		cfg:      cfg,
		logger:   mcfg.logger,
		store:    store,
		server:   server,
		dataRoot: dataRoot,
		tier:     tier,
	}, nil
}
