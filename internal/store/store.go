// Package store persists the usage counter: accumulated active milliseconds and
// the activated flag. Writes are synchronous and durable on return.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Key names inside the namespace. The format is versioned by key names only.
const (
	KeyAccumulatedMs = "accumulated_ms"
	KeyActivated     = "activated"
)

// DefaultNamespace is the bucket/key prefix used when none is configured.
const DefaultNamespace = "warranty"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Counter is the persisted usage counter.
type Counter struct {
	AccumulatedMs int64
	Activated     bool
}

// Store reads and writes the usage counter.
type Store interface {
	// Load returns the persisted counter. Missing keys read as zero values.
	Load(ctx context.Context) (Counter, error)

	// SaveAccumulated writes the accumulated total. A value lower than the
	// stored one is ignored so the counter never decreases.
	SaveAccumulated(ctx context.Context, ms int64) error

	// SaveActivated writes the activated flag.
	SaveActivated(ctx context.Context, activated bool) error

	// Close releases resources.
	Close() error
}

func formatInt(ms int64) []byte {
	return []byte(strconv.FormatInt(ms, 10))
}

func parseInt(raw []byte) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", KeyAccumulatedMs, err)
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

func formatBool(b bool) []byte {
	return []byte(strconv.FormatBool(b))
}

func parseBool(raw []byte) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}
	v, err := strconv.ParseBool(string(raw))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", KeyActivated, err)
	}
	return v, nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
