// Package gitexport implements the Export Client port (internal/port/export)
// against an external repository-publishing API, grounded on the same
// HTTP+circuit-breaker shape as internal/adapter/sandboxhttp and
// internal/adapter/llmclient rather than a local gh-CLI-exec shape: the
// export port hands over an opaque zstd-compressed object stream for a
// remote service to materialize, not a local `gh` invocation this
// process could shell out to.
package gitexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/CodeForge/internal/port/export"
	"github.com/Strob0t/CodeForge/internal/resilience"
)

// Client talks to an external repository-publishing service.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates an export client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type pushRequestBody struct {
	SessionID       string `json:"sessionId"`
	RepositoryName  string `json:"repositoryName"`
	GitObjects      []byte `json:"gitObjects"`
	Query           string `json:"query,omitempty"`
	TemplateDetails string `json:"templateDetails,omitempty"`
}

type pushResponseBody struct {
	RepositoryURL string `json:"repositoryUrl"`
}

// PushToGitHub implements export.Client.
func (c *Client) PushToGitHub(ctx context.Context, req export.PushRequest) (export.PushResult, error) {
	body, err := json.Marshal(pushRequestBody{
		SessionID:       req.SessionID,
		RepositoryName:  req.RepositoryName,
		GitObjects:      req.GitObjects,
		Query:           req.Query,
		TemplateDetails: req.TemplateDetails,
	})
	if err != nil {
		return export.PushResult{}, fmt.Errorf("gitexport: marshal request: %w", err)
	}

	data, err := c.doRequest(ctx, body)
	if err != nil {
		return export.PushResult{}, fmt.Errorf("gitexport: push to github: %w", err)
	}

	var resp pushResponseBody
	if err := json.Unmarshal(data, &resp); err != nil {
		return export.PushResult{}, fmt.Errorf("gitexport: decode response: %w", err)
	}
	return export.PushResult{RepositoryURL: resp.RepositoryURL}, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/repos/push", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("export API error %d: %s", resp.StatusCode, string(data))
		}
		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ export.Client = (*Client)(nil)
