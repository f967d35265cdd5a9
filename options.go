package satrain

import (
	"net/http"
	"time"
)

// Concurrency limits for file downloads.
const (
	// DefaultConcurrency is the default number of concurrent file
	// downloads. Kept small as a courtesy to the dataset server.
	DefaultConcurrency = 4

	// MaxConcurrency is the maximum allowed concurrent file downloads.
	MaxConcurrency = 16
)

// Retry configuration for failed file fetches.
const (
	// MaxRetries is the number of retry attempts after a failed fetch.
	MaxRetries = 3

	// InitialBackoff is the backoff duration before the first retry.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the backoff duration between retries.
	MaxBackoff = 8 * time.Second
)

// DownloadOption configures a download request.
type DownloadOption func(*downloadConfig)

// downloadConfig holds configuration for one download request.
type downloadConfig struct {
	// concurrency is the worker count for file fetches.
	concurrency int

	// retries is the number of retry attempts per file.
	retries int

	// initialBackoff and maxBackoff shape the retry backoff. Only tests
	// shrink them.
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// progressFn is called with progress updates during the download.
	progressFn func(DownloadProgress)
}

// newDownloadConfig returns a downloadConfig with default values.
func newDownloadConfig() *downloadConfig {
	return &downloadConfig{
		concurrency:    DefaultConcurrency,
		retries:        MaxRetries,
		initialBackoff: InitialBackoff,
		maxBackoff:     MaxBackoff,
	}
}

// WithConcurrency sets the number of concurrent file downloads.
// Values are clamped to the range [1, MaxConcurrency].
func WithConcurrency(n int) DownloadOption {
	return func(c *downloadConfig) {
		if n < 1 {
			n = 1
		}
		if n > MaxConcurrency {
			n = MaxConcurrency
		}
		c.concurrency = n
	}
}

// WithRetries sets the number of retry attempts per failed file.
// Negative values are treated as zero (a single attempt, no retries).
func WithRetries(n int) DownloadOption {
	return func(c *downloadConfig) {
		if n < 0 {
			n = 0
		}
		c.retries = n
	}
}

// WithProgress sets a callback for progress updates during a download.
// The callback is invoked from the result-collection goroutine, never
// concurrently with itself.
func WithProgress(fn func(DownloadProgress)) DownloadOption {
	return func(c *downloadConfig) {
		c.progressFn = fn
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// managerConfig holds configuration for Manager construction.
type managerConfig struct {
	// httpClient is used for all HTTP requests to the dataset server.
	httpClient HTTPClient

	// logger receives diagnostic log messages.
	logger Logger
}

// newManagerConfig returns a managerConfig with default values.
func newManagerConfig() *managerConfig {
	return &managerConfig{
		httpClient: http.DefaultClient,
	}
}

// WithHTTPClient sets a custom HTTP client for dataset-server requests.
// Useful for testing with mock servers or customizing timeouts.
// If not set, http.DefaultClient is used.
func WithHTTPClient(client HTTPClient) ManagerOption {
	return func(c *managerConfig) {
		c.httpClient = client
	}
}

// WithLogger sets a logger for diagnostic output.
// If not set, logging is disabled.
func WithLogger(logger Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// HTTPClient is the interface for HTTP operations.
// *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zerolog, logrus, and other structured loggers
// via a thin adapter.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}
