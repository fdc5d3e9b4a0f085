package favourites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/kvstore"
)

// SchemaVersion is the version written into every persisted list.
const SchemaVersion = 1

// envelope is the persisted form of a list.
type envelope[T any] struct {
	Version int `json:"version"`
	Items   []T `json:"items"`
}

// decodeList parses a persisted list. Version 0 is the legacy bare JSON array.
func decodeList[T any](raw string) (items []T, version int, err error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, SchemaVersion, nil
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, 0, fmt.Errorf("decode legacy list: %w", err)
		}
		return items, 0, nil
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("decode list: %w", err)
	}
	return env.Items, env.Version, nil
}

func encodeList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(envelope[T]{Version: SchemaVersion, Items: items})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readList loads the list under key. Missing, unreadable or corrupt data yields an empty
// list; the failure is logged. Legacy data is rewritten in the current format.
func readList[T any](ctx context.Context, store kvstore.Store, key string, logger zerolog.Logger) []T {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("failed to read favourites, starting empty")
		return []T{}
	}
	if !found {
		return []T{}
	}

	items, version, err := decodeList[T](raw)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("stored favourites are corrupt, starting empty")
		return []T{}
	}
	if items == nil {
		items = []T{}
	}

	switch {
	case version < SchemaVersion:
		logger.Info().
			Str("key", key).
			Int("from_version", version).
			Int("to_version", SchemaVersion).
			Msg("migrating stored list")
		if err := writeList(ctx, store, key, items); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to persist migrated list")
		}
	case version > SchemaVersion:
		logger.Warn().
			Str("key", key).
			Int("version", version).
			Msg("stored list has a newer schema version, unknown fields are ignored")
	}

	return items
}

func writeList[T any](ctx context.Context, store kvstore.Store, key string, items []T) error {
	value, err := encodeList(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, value)
}

// List helpers keyed by an identity function.

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, item := range items {
		if key(item) == id {
			return i
		}
	}
	return -1
}

func without[T any](items []T, id string, key func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if key(item) != id {
			out = append(out, item)
		}
	}
	return out
}

func prepend[T any](item T, items []T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
