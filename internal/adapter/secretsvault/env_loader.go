package secretsvault

import (
	"encoding/json"
	"os"

	"github.com/Strob0t/CodeForge/internal/port/secrets"
)

// EnvLoader returns a Loader reading a JSON-encoded
// {userID: {accountId, apiToken}} map from the named environment
// variable, adapted from the teacher's flat internal/secrets.EnvLoader
// (os.Getenv per key) to this vault's per-user credentials shape: there
// is no fixed set of keys to enumerate ahead of time, since the set of
// users with Cloudflare credentials on file is only known at deploy time.
// A missing or empty variable yields an empty vault rather than an error,
// the same "missing is not an error" contract EnvLoader's key omission
// follows.
func EnvLoader(envVar string) Loader {
	return func() (map[string]secrets.CloudflareCredentials, error) {
		raw := os.Getenv(envVar)
		if raw == "" {
			return map[string]secrets.CloudflareCredentials{}, nil
		}
		var vals map[string]secrets.CloudflareCredentials
		if err := json.Unmarshal([]byte(raw), &vals); err != nil {
			return nil, err
		}
		return vals, nil
	}
}
