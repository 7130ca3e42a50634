// Package secretsvault implements the Secrets Provider port
// (internal/port/secrets) as a thread-safe in-memory vault with hot
// reload, adapted from the teacher's internal/secrets.Vault: same
// Loader-func-plus-atomic-swap shape, generalized from a flat
// string-keyed map to a per-user credentials map since this vault serves
// one Cloudflare {accountId, apiToken} pair per user rather than one flat
// key-value namespace.
package secretsvault

import (
	"context"
	"fmt"
	"sync"

	"github.com/Strob0t/CodeForge/internal/port/secrets"
)

// Loader retrieves the full set of per-user Cloudflare credentials from a
// source (env vars, file, remote secret store).
type Loader func() (map[string]secrets.CloudflareCredentials, error)

// Vault holds per-user Cloudflare credentials in memory and supports
// atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]secrets.CloudflareCredentials
	loader Loader
}

// NewVault creates a Vault, calling loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("secretsvault: initial load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// GetCloudflareCredentials implements secrets.Provider. Returns nil, nil
// if userID has no credentials on file — not an error (per the port's
// doc comment).
func (v *Vault) GetCloudflareCredentials(ctx context.Context, userID string) (*secrets.CloudflareCredentials, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	creds, ok := v.values[userID]
	if !ok {
		return nil, nil
	}
	out := creds
	return &out, nil
}

// Reload calls the loader and swaps in the new values atomically. If the
// loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("secretsvault: reload: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}

var _ secrets.Provider = (*Vault)(nil)
