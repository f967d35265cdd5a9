package satrain

import (
	"path"
	"strings"
)

// Config configures the satrain data manager.
type Config struct {
	// ServerURL is the base URL of the dataset server.
	// Example: "https://rain.atmos.colostate.edu/gprof_nn/satrain"
	ServerURL string

	// DataPath is an explicit per-invocation data root. When set it wins
	// over the DATA_PATH environment variable, the persisted config file,
	// and the current-working-directory default.
	DataPath string

	// ConfigDir overrides the directory holding the persisted config
	// file. If empty, the user's standard configuration directory is
	// used (e.g. ~/.config/satrain on Linux).
	ConfigDir string
}

// Tier identifies which precedence level produced the resolved data root.
type Tier int

// Precedence tiers, highest first.
const (
	// TierArgument: an explicit per-invocation path (Config.DataPath).
	TierArgument Tier = iota

	// TierEnvironment: the DATA_PATH environment variable.
	TierEnvironment

	// TierConfigFile: the persisted config file.
	TierConfigFile

	// TierDefault: the current working directory.
	TierDefault
)

// String returns the tier name as reported by "config show".
func (t Tier) String() string {
	switch t {
	case TierArgument:
		return "argument"
	case TierEnvironment:
		return "environment"
	case TierConfigFile:
		return "config file"
	case TierDefault:
		return "default"
	}
	return "unknown"
}

// PartitionKey identifies one addressable slice of the dataset.
//
// Exactly one of Subset and Domain is set: training and validation keys
// carry a size subset, testing and evaluation keys carry a spatial domain.
type PartitionKey struct {
	// Sensor is the reference sensor, "gmi" or "atms".
	Sensor string

	// Split is the data split: "training", "validation", "testing", or
	// "evaluation".
	Split string

	// Subset is the cumulative size tier "xs".."xl".
	// Set only for training and validation splits.
	Subset string

	// Domain is the spatial domain, e.g. "conus".
	// Set only for testing and evaluation splits.
	Domain string

	// Geometry is the spatial representation, "on_swath" or "gridded".
	Geometry string

	// Format is the file layout, "spatial" or "tabular".
	Format string

	// Source is the input source, e.g. "gmi", "geo_ir", "ancillary",
	// or "target".
	Source string
}

// tier returns the split-dependent path component: the subset for
// training/validation keys, the domain for testing/evaluation keys.
func (k PartitionKey) tier() string {
	if k.Subset != "" {
		return k.Subset
	}
	return k.Domain
}

// String returns the canonical slash-separated form:
// "sensor/split/subset-or-domain/geometry/format/source".
func (k PartitionKey) String() string {
	return strings.Join([]string{k.Sensor, k.Split, k.tier(), k.Geometry, k.Format, k.Source}, "/")
}

// Dir returns the key's directory relative to the data root. Files of the
// key live directly below it, named "<source>_<timestamp>.nc"; the source
// is encoded in the file name, not the directory.
func (k PartitionKey) Dir() string {
	return path.Join(k.Sensor, k.Split, k.tier(), k.Geometry, k.Format)
}

// ParsePartitionKey parses the canonical slash-separated form produced by
// String. Returns ErrInvalidKey if the string is malformed and
// ErrInvalidPartition if a component is outside the recognized sets.
func ParsePartitionKey(s string) (PartitionKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 {
		return PartitionKey{}, ErrInvalidKey
	}
	for _, p := range parts {
		if p == "" {
			return PartitionKey{}, ErrInvalidKey
		}
	}

	k := PartitionKey{
		Sensor:   parts[0],
		Split:    parts[1],
		Geometry: parts[3],
		Format:   parts[4],
		Source:   parts[5],
	}
	switch k.Split {
	case SplitTraining, SplitValidation:
		k.Subset = parts[2]
	default:
		k.Domain = parts[2]
	}

	if err := validateKey(k); err != nil {
		return PartitionKey{}, err
	}
	return k, nil
}

// Filters selects a subset of the catalog's valid partition keys. An empty
// field matches every recognized value for its dimension; the subset
// defaults to "xl" (which, being cumulative, spans all smaller subsets).
type Filters struct {
	// Sensors restricts the reference sensors.
	Sensors []string

	// Splits restricts the data splits.
	Splits []string

	// Subset is the size subset for training/validation keys.
	// At most one subset is meaningful per request since subsets are
	// cumulative. Empty means "xl".
	Subset string

	// Domains restricts the spatial domains of testing/evaluation keys.
	Domains []string

	// Geometries restricts the viewing geometries.
	Geometries []string

	// Sources restricts the input sources.
	Sources []string

	// Formats restricts the file formats.
	Formats []string
}

// FileInfo describes a single remote dataset file.
type FileInfo struct {
	// Path is the file path relative to both the server base URL and the
	// local data root.
	Path string

	// Size is the file size in bytes.
	Size int64
}

// Status describes the local state of a partition.
type Status string

// Local partition states as reported by the inventory scanner.
const (
	// StatusAbsent: no local files for the key.
	StatusAbsent Status = "absent"

	// StatusPartial: fewer local files than the catalog expects.
	StatusPartial Status = "partial"

	// StatusComplete: every expected file is present.
	StatusComplete Status = "complete"
)

// InventoryRecord reports the locally present files for one partition key.
type InventoryRecord struct {
	// Key identifies the partition.
	Key PartitionKey

	// Files lists the present files relative to the data root, sorted.
	// For cumulative subsets this spans all subsumed subset directories.
	Files []string

	// Expected is the catalog's expected file count for the key, or -1
	// when no catalog was available (offline listings).
	Expected int
}

// Count returns the number of locally present files.
func (r InventoryRecord) Count() int {
	return len(r.Files)
}

// Status derives the partition state from the local count and the
// expected count. With an unknown expected count, any present file counts
// as partial since completeness cannot be established.
func (r InventoryRecord) Status() Status {
	if len(r.Files) == 0 {
		return StatusAbsent
	}
	if r.Expected >= 0 && len(r.Files) >= r.Expected {
		return StatusComplete
	}
	return StatusPartial
}

// KeyStatus describes the outcome of a download request for one key.
type KeyStatus string

// Per-key download outcomes.
const (
	// KeyComplete: every missing file was fetched successfully.
	KeyComplete KeyStatus = "complete"

	// KeyPartial: one or more files failed after exhausting retries.
	KeyPartial KeyStatus = "partial"

	// KeySkipped: the key was already complete before this invocation.
	KeySkipped KeyStatus = "skipped"
)

// FileFailure records a file whose download failed after all retries.
type FileFailure struct {
	// Path is the file path relative to the data root.
	Path string

	// Err is the final error message.
	Err string
}

// KeyReport is the per-key section of a DownloadReport.
type KeyReport struct {
	// Key identifies the partition.
	Key PartitionKey

	// Status is the aggregate outcome for the key.
	Status KeyStatus

	// Fetched is the number of files downloaded in this invocation.
	Fetched int

	// Skipped is the number of files already present with the correct
	// size (no fetch attempted).
	Skipped int

	// Failed lists the files that could not be downloaded.
	Failed []FileFailure
}

// DownloadReport enumerates the per-key outcome of a download request.
type DownloadReport struct {
	// Keys holds one report per requested key, ordered by key.
	Keys []KeyReport
}

// Failed reports whether any file in any key failed.
func (r DownloadReport) Failed() bool {
	for _, k := range r.Keys {
		if len(k.Failed) > 0 {
			return true
		}
	}
	return false
}

// TotalFetched returns the number of files downloaded across all keys.
func (r DownloadReport) TotalFetched() int {
	n := 0
	for _, k := range r.Keys {
		n += k.Fetched
	}
	return n
}

// DownloadProgress reports progress during a download request.
type DownloadProgress struct {
	// FilesTotal is the number of files queued for fetching.
	FilesTotal int

	// FilesCompleted is the number of files finished so far, successful
	// or not.
	FilesCompleted int

	// FilesFailed is the number of files that failed after all retries.
	FilesFailed int

	// BytesFetched is the cumulative bytes from completed downloads.
	BytesFetched int64

	// BytesInProgress is the bytes currently being downloaded across all
	// workers.
	BytesInProgress int64
}
