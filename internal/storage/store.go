// Package storage persists pairing records in a namespaced key-value store.
//
// Backends implement Store over plain strings. Adapter layers JSON encoding on
// top and reports every failure as a STORAGE_ERROR.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/tether-go/internal/errors"
	"github.com/openclaw/tether-go/internal/model"
)

// Store is a durable key-value store scoped to one namespace.
type Store interface {
	Put(ctx context.Context, key, value string) error
	// Get returns found=false, err=nil when no entry exists.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Remove is a no-op when the key is absent.
	Remove(ctx context.Context, key string) error
	// Clear deletes every entry in this store's namespace and nothing else.
	Clear(ctx context.Context) error
}

// Key builds the per-user, per-kind record key, e.g. "code_user_123".
func Key(kind model.RecordKind, userID string) string {
	return fmt.Sprintf("%s_%s", kind, userID)
}

type Adapter struct {
	store Store
}

func New(store Store) *Adapter {
	return &Adapter{store: store}
}

// Put serializes value as JSON and replaces whatever is stored under key.
func (a *Adapter) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: serialize failed")
		return apperrors.Storage("put", fmt.Errorf("serialize %s: %w", key, err))
	}

	if err := a.store.Put(ctx, key, string(data)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: write failed")
		return apperrors.Storage("put", err)
	}
	return nil
}

// Get decodes the entry under key into dest. It returns false when the key is absent.
func (a *Adapter) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, found, err := a.store.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: read failed")
		return false, apperrors.Storage("get", err)
	}
	if !found {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: malformed entry")
		return false, apperrors.Storage("get", fmt.Errorf("decode %s: %w", key, err))
	}
	return true, nil
}

func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.store.Remove(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: remove failed")
		return apperrors.Storage("remove", err)
	}
	return nil
}

func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("storage: clear failed")
		return apperrors.Storage("clear", err)
	}
	return nil
}
