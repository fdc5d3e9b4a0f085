// Package kvstore provides the persistent key-value store the favourites managers write
// to, with memory, file, Redis and PostgreSQL backends.
package kvstore

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is an async string-to-string store. Get reports found=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Entry is a single stored key and value.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Entries returns every stored entry ordered by key. Keys that vanish between listing and
// reading are skipped.
func Entries(ctx context.Context, store Store) ([]Entry, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value, found, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}

// Dump logs every stored entry at info level and returns them.
func Dump(ctx context.Context, store Store, logger zerolog.Logger) []Entry {
	entries, err := Entries(ctx, store)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read storage")
		return nil
	}

	logger.Info().Int("count", len(entries)).Msg("storage contents")
	for _, e := range entries {
		logger.Info().Str("key", e.Key).Str("value", e.Value).Msg("storage entry")
	}
	return entries
}

// ClearAll empties the store. Failures are logged rather than returned.
func ClearAll(ctx context.Context, store Store, logger zerolog.Logger) bool {
	if err := store.Clear(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to clear storage")
		return false
	}
	logger.Info().Msg("storage cleared")
	return true
}
