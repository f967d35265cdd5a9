// Package satrain provides access to the SatRain satellite precipitation
// benchmark dataset: a local file registry over a configured data root and
// an incremental download coordinator against the dataset server.
//
// The package serves two primary use cases:
//
//  1. Programmatic API via the Manager interface - Applications can use
//     NewManager to create a Manager that resolves the local data root,
//     scans local inventory, and downloads missing dataset partitions.
//
//  2. Embeddable CLI via NewCommand - Parent CLI tools can attach the
//     complete command tree to their Cobra root command, providing
//     "download", "list", and "config" subcommands.
//
// # Partitions
//
// The dataset is addressed by partition keys: tuples of reference sensor,
// split, size subset or spatial domain, viewing geometry, data format, and
// input source. The catalog owns the set of valid combinations; subsets
// are cumulative (xl contains l contains m contains s contains xs), so the
// files of a larger subset include everything already materialized for the
// smaller ones.
//
// # Data Root Resolution
//
// The local data root is resolved once per invocation with the following
// precedence (highest wins):
//
//  1. An explicit per-invocation path (Config.DataPath / --data_path)
//  2. The DATA_PATH environment variable
//  3. The persisted config file in the user's configuration directory
//  4. The current working directory
//
// # Downloads
//
// Downloads are incremental and idempotent: files already present locally
// with the expected size are never fetched again. Each file is fetched to
// a temporary path and atomically renamed into place, so an interrupted
// run never leaves a half-written file that passes for complete. A failed
// file is retried with exponential backoff; exhausted retries are recorded
// in the DownloadReport without aborting the rest of the request.
//
// # Thread Safety
//
// The Manager interface is safe for concurrent use. All methods can be
// called from multiple goroutines without external synchronization.
package satrain
