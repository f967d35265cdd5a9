// Command satrain downloads the SatRain satellite precipitation benchmark
// dataset and inspects the local copy.
//
// Configuration is read from environment variables:
//   - SATRAIN_SERVER_URL: Base URL of the dataset server (optional,
//     defaults to the public SatRain server)
//   - DATA_PATH: Local data root override (optional)
//   - SATRAIN_LOG: Log level, e.g. "debug" (optional, defaults to "warn")
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ipwgml/satrain"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitInvalidPartition indicates a filter named an unrecognized value.
	ExitInvalidPartition = 2

	// ExitNetworkError indicates a network or server failure.
	ExitNetworkError = 3

	// ExitStorageError indicates a local filesystem operation failed.
	ExitStorageError = 4

	// ExitConfigError indicates the config file could not be written.
	ExitConfigError = 5
)

func main() {
	serverURL := os.Getenv("SATRAIN_SERVER_URL")
	if serverURL == "" {
		serverURL = satrain.DefaultServerURL
	}

	level := zerolog.WarnLevel
	if env := os.Getenv("SATRAIN_LOG"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	cfg := satrain.Config{ServerURL: serverURL}
	cmd := satrain.NewCommand(cfg, satrain.WithLogger(zlogAdapter{zl}))

	// An interrupt cancels in-flight downloads; temp files are discarded,
	// never renamed into place.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCodeFromError(err))
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, satrain.ErrInvalidPartition), errors.Is(err, satrain.ErrInvalidKey):
		return ExitInvalidPartition
	case errors.Is(err, satrain.ErrNetwork), errors.Is(err, satrain.ErrServer):
		return ExitNetworkError
	case errors.Is(err, satrain.ErrConfigPersist):
		return ExitConfigError
	case errors.Is(err, satrain.ErrStorage):
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}

// zlogAdapter exposes a zerolog.Logger through the satrain.Logger
// interface.
type zlogAdapter struct {
	l zerolog.Logger
}

func (a zlogAdapter) Debug(msg string, kv ...any) { emit(a.l.Debug(), msg, kv) }
func (a zlogAdapter) Info(msg string, kv ...any)  { emit(a.l.Info(), msg, kv) }
func (a zlogAdapter) Warn(msg string, kv ...any)  { emit(a.l.Warn(), msg, kv) }
func (a zlogAdapter) Error(msg string, kv ...any) { emit(a.l.Error(), msg, kv) }

// emit attaches alternating key-value pairs to the event. A trailing key
// without a value is logged as-is.
func emit(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
