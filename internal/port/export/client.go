// Package export defines the external version-control/export API port
// used by pushToGitHub (§4.16). The core never talks to GitHub directly;
// it hands the exported git objects and a target repository name to this
// client contract.
package export

import "context"

// PushRequest carries the exported object stream plus enough metadata for
// the external service to materialize a repository.
type PushRequest struct {
	SessionID       string
	RepositoryName  string
	GitObjects      []byte // zstd-compressed object stream, see internal/vcs.ExportGitObjects
	Query           string
	TemplateDetails string
}

// PushResult is returned on a successful push.
type PushResult struct {
	RepositoryURL string
}

// Client is the port interface for the external export/publish API.
type Client interface {
	PushToGitHub(ctx context.Context, req PushRequest) (PushResult, error)
}
