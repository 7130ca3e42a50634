// Package secrets defines the external credentials lookup port used by
// the Deployment Manager's Cloudflare deploy path (§4.16).
package secrets

import "context"

// CloudflareCredentials is the {accountId, apiToken} pair returned for a
// user, if any is on file.
type CloudflareCredentials struct {
	AccountID string
	APIToken  string
}

// Provider looks up per-user external deployment credentials.
type Provider interface {
	// GetCloudflareCredentials returns nil, nil if no credentials are on
	// file for userID — this is not an error condition.
	GetCloudflareCredentials(ctx context.Context, userID string) (*CloudflareCredentials, error)
}
