package storage

import (
	"context"
	"fmt"

	"github.com/openclaw/tether-go/internal/util"
)

// EncryptedStore seals values with AES-256-GCM before handing them to the wrapped store.
// Keys are stored in the clear.
type EncryptedStore struct {
	inner Store
	key   string
}

func NewEncryptedStore(inner Store, hexKey string) (*EncryptedStore, error) {
	if err := util.ValidateKey(hexKey); err != nil {
		return nil, err
	}
	return &EncryptedStore{inner: inner, key: hexKey}, nil
}

func (s *EncryptedStore) Put(ctx context.Context, key, value string) error {
	sealed, err := util.Encrypt(s.key, value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.inner.Put(ctx, key, sealed)
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}

	value, err := util.Decrypt(s.key, sealed)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return value, true, nil
}

func (s *EncryptedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *EncryptedStore) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}
