package views

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	backend "github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Options selects and configures a counter backend.
type Options struct {
	Backend  string
	DB       *sqlx.DB
	RedisURL string
	RedisKey string
}

// Open builds the counter for opts.Backend. The returned close function releases
// backend resources and is never nil.
func Open(opts Options) (Counter, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendPostgres:
		if opts.DB == nil {
			return nil, noop, fmt.Errorf("views: postgres backend requires a database")
		}
		return NewPostgresCounter(opts.DB), noop, nil
	case BackendRedis:
		ropts, err := backend.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("views: redis url: %w", err)
		}
		client := backend.NewClient(ropts)
		return NewRedisCounter(client, opts.RedisKey), client.Close, nil
	case BackendMemory:
		return NewMemoryCounter(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
