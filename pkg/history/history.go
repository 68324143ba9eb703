// Package history is the processed-file ledger. Watch mode consults
// it to skip inputs whose content fingerprint was already processed,
// and the history command lists what ran before.
package history

import (
	"context"
	"fmt"
	"time"
)

// Entry records one completed run of one input file. The Signature
// is the SHA-256 of the raw file bytes, so a renamed copy of a
// processed file is still recognized.
type Entry struct {
	Signature   string    `json:"sha256"`
	Path        string    `json:"path"`
	RunID       string    `json:"run_id"`
	ProcessedAt time.Time `json:"processed_at"`
	Accepted    int       `json:"rows_accepted"`
	Rejected    int       `json:"rows_rejected"`
}

// Store is the ledger behind watch mode. Implementations are safe
// for concurrent use. Lookup returns os.ErrNotExist for fingerprints
// that were never processed.
type Store interface {
	MarkProcessed(ctx context.Context, e Entry) error
	Lookup(ctx context.Context, signature string) (*Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Config selects and configures a ledger backend.
type Config struct {
	// Backend is "memory" or "redis". Empty means memory.
	Backend string

	Redis RedisConfig
}

// New creates the configured ledger.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
