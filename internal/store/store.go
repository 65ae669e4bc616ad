package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys persisted by the client. Each key has exactly one writer.
const (
	KeyCart  = "axys-cart"  // cart package
	KeyToken = "axys-token" // session package
	KeyUser  = "axys-user"  // session package
	KeyTheme = "theme"      // theme package
)

var (
	ErrNotFound  = errors.New("key not found")
	ErrMalformed = errors.New("malformed stored value")
)

// Store is a durable key/value store. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the key; removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	Close() error
}

// GetJSON reads key into v. An absent key yields (false, nil); undecodable JSON yields
// (false, ErrMalformed) so callers can log it and carry on as if the key were absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
