// Package sandboxhttp is an HTTP adapter for the Sandbox Client port
// (C8): a bearer-authenticated JSON API with every outgoing call routed
// through a shared resilience.Breaker, the same doRequest+circuit-breaker
// shape internal/adapter/llmclient and internal/adapter/gitexport use.
package sandboxhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/CodeForge/internal/port/sandbox"
	"github.com/Strob0t/CodeForge/internal/resilience"
)

// Client talks to the external sandbox execution service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a sandbox HTTP client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

func (c *Client) CreateInstance(ctx context.Context) (string, error) {
	var out struct {
		InstanceID string `json:"instanceId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/instances", nil, &out); err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}
	return out.InstanceID, nil
}

func (c *Client) GetFiles(ctx context.Context, instanceID string, paths []string) (sandbox.FilesResult, error) {
	var out sandbox.FilesResult
	body := map[string]any{"paths": paths}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/files/get", body, &out)
	return out, wrap(err, "get files")
}

func (c *Client) WriteFiles(ctx context.Context, instanceID string, files map[string]string) (sandbox.Result, error) {
	var out sandbox.Result
	body := map[string]any{"files": files}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/files/write", body, &out)
	return out, wrap(err, "write files")
}

func (c *Client) ExecuteCommands(ctx context.Context, instanceID string, cmds []string, timeout int) (sandbox.Result, error) {
	var out sandbox.Result
	body := map[string]any{"commands": cmds, "timeoutSeconds": timeout}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/exec", body, &out)
	return out, wrap(err, "execute commands")
}

func (c *Client) GetLogs(ctx context.Context, instanceID string, reset bool, durationSeconds int) (sandbox.LogsResult, error) {
	var out sandbox.LogsResult
	body := map[string]any{"reset": reset, "durationSeconds": durationSeconds}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/logs", body, &out)
	return out, wrap(err, "get logs")
}

func (c *Client) RunStaticAnalysis(ctx context.Context, instanceID string, files []string) (sandbox.AnalysisResult, error) {
	var out sandbox.AnalysisResult
	body := map[string]any{"files": files}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/analyze", body, &out)
	return out, wrap(err, "run static analysis")
}

func (c *Client) FetchRuntimeErrors(ctx context.Context, instanceID string, clear bool) (sandbox.RuntimeErrorsResult, error) {
	var out sandbox.RuntimeErrorsResult
	body := map[string]any{"clear": clear}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/runtime-errors", body, &out)
	return out, wrap(err, "fetch runtime errors")
}

func (c *Client) UpdateProjectName(ctx context.Context, instanceID, name string) (sandbox.Result, error) {
	var out sandbox.Result
	body := map[string]any{"name": name}
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/name", body, &out)
	return out, wrap(err, "update project name")
}

func (c *Client) Deploy(ctx context.Context, instanceID string) (sandbox.DeployResult, error) {
	var out sandbox.DeployResult
	err := c.doJSON(ctx, http.MethodPost, "/instances/"+instanceID+"/deploy", nil, &out)
	return out, wrap(err, "deploy")
}

func (c *Client) PreviewStatus(ctx context.Context, instanceID string) (sandbox.PreviewStatusResult, error) {
	var out sandbox.PreviewStatusResult
	err := c.doJSON(ctx, http.MethodGet, "/instances/"+instanceID+"/preview-status", nil, &out)
	return out, wrap(err, "preview status")
}

func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("sandboxhttp: %s: %w", what, err)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyBytes = b
	}

	var respBytes []byte
	call := func() error {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

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
			return fmt.Errorf("sandbox API error %d: %s", resp.StatusCode, string(data))
		}
		respBytes = data
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return err
	}
	if out == nil || len(respBytes) == 0 {
		return nil
	}
	return json.Unmarshal(respBytes, out)
}
