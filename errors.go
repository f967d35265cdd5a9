package satrain

import "errors"

// Sentinel errors for dataset operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrInvalidPartition indicates a filter or key names a value outside
	// the recognized set for its dimension (e.g. sensor "foo").
	ErrInvalidPartition = errors.New("satrain: unrecognized partition value")

	// ErrEmptyIntersection indicates a syntactically valid filter
	// combination matches no catalog entries. Non-fatal: the invocation
	// proceeds with zero work for that combination.
	ErrEmptyIntersection = errors.New("satrain: no valid partitions match the given filters")

	// ErrInvalidKey indicates a malformed partition key string.
	ErrInvalidKey = errors.New("satrain: invalid partition key")

	// ErrNetwork indicates a network or connection failure.
	ErrNetwork = errors.New("satrain: network error")

	// ErrServer indicates the dataset server returned invalid or
	// unparseable data.
	ErrServer = errors.New("satrain: invalid server response")

	// ErrConfigPersist indicates the config file could not be written.
	// The resolved in-memory path is still usable for the current
	// invocation, but the setting will not survive it.
	ErrConfigPersist = errors.New("satrain: cannot persist configuration")

	// ErrStorage indicates a local filesystem operation failed.
	ErrStorage = errors.New("satrain: storage error")
)
