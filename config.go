package scribeq

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for the scheduling core.
type Config struct {
	// PollTimeout is how long a tenant worker blocks waiting for a queue
	// entry before re-checking the running flag.
	PollTimeout time.Duration `env:"SCRIBEQ_POLL_TIMEOUT" envDefault:"1s"`

	// StopTimeout is the maximum time Stop waits for each worker to exit.
	StopTimeout time.Duration `env:"SCRIBEQ_STOP_TIMEOUT" envDefault:"5s"`

	// ErrorBackoff is the pause after a worker-loop infrastructure error,
	// preventing a tight failure loop from starving the tenant.
	ErrorBackoff time.Duration `env:"SCRIBEQ_ERROR_BACKOFF" envDefault:"1s"`

	// MaxQueueDepth caps per-tenant queue length. Zero means unbounded.
	MaxQueueDepth int `env:"SCRIBEQ_MAX_QUEUE_DEPTH" envDefault:"0"`

	// StoragePath is the root directory for tenant result artifacts.
	StoragePath string `env:"SCRIBEQ_STORAGE_PATH" envDefault:"storage"`

	// ListenAddr is the realtime server bind address.
	ListenAddr string `env:"SCRIBEQ_LISTEN_ADDR" envDefault:":8000"`

	// PostgresDSN selects the bun/PostgreSQL store when non-empty; the
	// in-memory store is used otherwise.
	PostgresDSN string `env:"SCRIBEQ_POSTGRES_DSN"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollTimeout:  time.Second,
		StopTimeout:  5 * time.Second,
		ErrorBackoff: time.Second,
		StoragePath:  "storage",
		ListenAddr:   ":8000",
	}
}

// LoadConfig reads configuration from the environment, falling back to
// the documented defaults for unset variables.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("scribeq: parse config: %w", err)
	}
	return c, nil
}
