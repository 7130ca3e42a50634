// Package cfdeploy is an HTTP adapter for the external deployment API port
// (C7's deployToCloudflare, §4.16), grounded on
// internal/adapter/sandboxhttp/client.go's doJSON+circuit-breaker shape:
// a bearer-authenticated JSON API with every outgoing call routed through
// a shared resilience.Breaker.
package cfdeploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/CodeForge/internal/port/deploy"
	"github.com/Strob0t/CodeForge/internal/resilience"
)

// Client talks to the external Cloudflare-style deployment API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a deployment API client rooted at baseURL (the
// account's Workers/Pages API base, e.g. config.Deploy.APIBaseURL).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type deployRequestBody struct {
	Files    map[string]string `json:"files"`
	Bindings map[string]string `json:"bindings,omitempty"`
}

type deployResponseBody struct {
	Status        string `json:"status"`
	DeploymentURL string `json:"deploymentUrl,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Deploy pushes req.Files (and rendered wrangler bindings) to the account
// identified by req.AccountID/req.APIToken. No exceptions cross this
// boundary: a non-2xx response or a malformed body is reported through
// the returned error, never a Result with an unset Status.
func (c *Client) Deploy(ctx context.Context, req deploy.Request) (deploy.Result, error) {
	if req.AccountID == "" || req.APIToken == "" {
		return deploy.Result{Status: deploy.StatusFailed, Error: "missing cloudflare credentials"}, nil
	}

	body := deployRequestBody{Files: req.Files, Bindings: req.Bindings}
	var out deployResponseBody
	path := fmt.Sprintf("/accounts/%s/workers/scripts", req.AccountID)
	err := c.doJSON(ctx, req.APIToken, http.MethodPut, path, body, &out)
	if err != nil {
		return deploy.Result{}, fmt.Errorf("cfdeploy: deploy: %w", err)
	}

	switch deploy.Status(out.Status) {
	case deploy.StatusDeployed:
		return deploy.Result{Status: deploy.StatusDeployed, DeploymentURL: out.DeploymentURL}, nil
	case deploy.StatusPreviewExpired:
		return deploy.Result{Status: deploy.StatusPreviewExpired, Error: out.Error}, nil
	default:
		return deploy.Result{Status: deploy.StatusFailed, Error: out.Error}, nil
	}
}

func (c *Client) doJSON(ctx context.Context, apiToken, method, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var respBytes []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("deploy API error %d: %s", resp.StatusCode, string(data))
		}
		respBytes = data
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return err
	}
	if len(respBytes) == 0 {
		return nil
	}
	return json.Unmarshal(respBytes, out)
}
