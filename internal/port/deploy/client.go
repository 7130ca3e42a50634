// Package deploy defines the external Cloudflare-style deployment API
// client contract used by the Deployment Manager's DeployToCloudflare
// (§4.6, §4.16). This is the "opaque" deployment client named in §6 —
// distinct from the sandbox client (C8) and from the export client used by
// pushToGitHub.
package deploy

import "context"

// Status enumerates outcomes the external deploy API can report.
type Status string

const (
	StatusDeployed       Status = "deployed"
	StatusFailed         Status = "failed"
	StatusPreviewExpired Status = "preview_expired"
)

// Request carries everything the external deployer needs.
type Request struct {
	AccountID string
	APIToken  string
	Files     map[string]string
	Bindings  map[string]string // rendered wrangler.jsonc bindings, opaque to this contract
}

// Result is the outcome of a deploy attempt.
type Result struct {
	Status        Status
	DeploymentURL string
	Error         string
}

// Client is the external deployment API contract.
type Client interface {
	Deploy(ctx context.Context, req Request) (Result, error)
}
