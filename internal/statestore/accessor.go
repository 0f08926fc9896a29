// Package statestore provides typed get/put/delete access to the external
// state store behind the sidecar. All cross-request state (conversation
// history, dedup markers) lives here so that compute replicas stay
// stateless and interchangeable.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskwire/taskwire/internal/sidecar"
)

// StateClient is the slice of the sidecar client this package needs.
// Narrowing the dependency keeps tests to a small fake.
type StateClient interface {
	GetState(ctx context.Context, store, key string) ([]byte, bool, error)
	PutState(ctx context.Context, store, key string, value []byte, ttlSeconds int) error
	DeleteState(ctx context.Context, store, key string) error
}

// Ensure the sidecar client satisfies StateClient.
var _ StateClient = (*sidecar.Client)(nil)

// Accessor performs JSON-typed operations against one named state store.
type Accessor struct {
	client StateClient
	store  string
}

// NewAccessor creates an accessor bound to the given state store component.
func NewAccessor(client StateClient, store string) *Accessor {
	return &Accessor{
		client: client,
		store:  store,
	}
}

// GetJSON loads the value for key into out. Returns false when the key is
// absent or expired; out is untouched in that case.
func (a *Accessor) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, found, err := a.client.GetState(ctx, a.store, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode state for key %q: %w", key, err)
	}
	return true, nil
}

// PutJSON stores value under key with an optional TTL in seconds (zero means
// no expiry). Writes are full overwrites, last-writer-wins per key.
func (a *Accessor) PutJSON(ctx context.Context, key string, value interface{}, ttlSeconds int) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state for key %q: %w", key, err)
	}
	return a.client.PutState(ctx, a.store, key, raw, ttlSeconds)
}

// Delete removes the value for key. Deleting an absent key is not an error.
func (a *Accessor) Delete(ctx context.Context, key string) error {
	return a.client.DeleteState(ctx, a.store, key)
}
