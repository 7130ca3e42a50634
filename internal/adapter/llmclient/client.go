// Package llmclient implements the LLM inference client port
// (internal/port/llm) against an OpenAI-chat-completions-compatible
// endpoint fronted by a LiteLLM-style proxy, using the same
// doRequest+circuit-breaker shape as internal/adapter/sandboxhttp and
// internal/adapter/gitexport.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/resilience"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates an inference client targeting model at baseURL (a
// LiteLLM proxy or any OpenAI-compatible gateway).
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	Index    int    `json:"index,omitempty"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolSpec struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string     `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolSpec `json:"tools,omitempty"`
	Stream   bool       `json:"stream,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	Delta        chatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// ExecuteInference implements llm.Client. Non-streaming requests decode
// one JSON response body; streaming requests consume an SSE-style
// `data: {...}` chunk stream, invoking req.OnChunk per text delta and
// accumulating tool-call argument fragments across chunks (the OpenAI
// streaming tool-call convention: the first chunk for a call carries
// id/name, later chunks append to `arguments`).
func (c *Client) ExecuteInference(ctx context.Context, req llm.InferenceRequest) (llm.InferenceResult, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: toChatMessages(req.Messages),
		Tools:    toToolSpecs(req.Tools),
		Stream:   req.Stream,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.InferenceResult{}, fmt.Errorf("llmclient: marshal request: %w", err)
	}

	if req.Stream {
		return c.executeStreaming(ctx, payload, req.OnChunk)
	}
	return c.executeOnce(ctx, payload)
}

func toChatMessages(msgs []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func toToolSpecs(defs []llm.ToolDef) []toolSpec {
	out := make([]toolSpec, 0, len(defs))
	for _, d := range defs {
		var spec toolSpec
		spec.Type = "function"
		spec.Function.Name = d.Name
		spec.Function.Description = d.Description
		spec.Function.Parameters = d.JSONSchema
		out = append(out, spec)
	}
	return out
}

func (c *Client) executeOnce(ctx context.Context, payload []byte) (llm.InferenceResult, error) {
	data, err := c.doRequest(ctx, payload)
	if err != nil {
		return llm.InferenceResult{}, fmt.Errorf("llmclient: execute inference: %w", err)
	}
	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return llm.InferenceResult{}, fmt.Errorf("llmclient: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.InferenceResult{}, nil
	}
	return toInferenceResult(resp.Choices[0].Message), nil
}

func toInferenceResult(msg chatMessage) llm.InferenceResult {
	result := llm.InferenceResult{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result
}

func (c *Client) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
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
			return fmt.Errorf("inference API error %d: %s", resp.StatusCode, string(data))
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

// executeStreaming issues the request with a streaming response body and
// reassembles the OpenAI SSE chunk convention line by line.
func (c *Client) executeStreaming(ctx context.Context, payload []byte, onChunk func(string)) (llm.InferenceResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return llm.InferenceResult{}, fmt.Errorf("llmclient: create streaming request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llm.InferenceResult{}, fmt.Errorf("llmclient: streaming request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return llm.InferenceResult{}, fmt.Errorf("llmclient: streaming API error %d: %s", resp.StatusCode, string(data))
	}

	var textBuilder strings.Builder
	toolCalls := map[int]*llm.ToolCall{}
	toolOrder := []int{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			textBuilder.WriteString(delta.Content)
			if onChunk != nil {
				onChunk(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			existing, ok := toolCalls[tc.Index]
			if !ok {
				existing = &llm.ToolCall{}
				toolCalls[tc.Index] = existing
				toolOrder = append(toolOrder, tc.Index)
			}
			if tc.ID != "" {
				existing.ID = tc.ID
			}
			if tc.Function.Name != "" {
				existing.Name = tc.Function.Name
			}
			existing.Args = append(existing.Args, json.RawMessage(tc.Function.Arguments)...)
		}
	}
	if err := scanner.Err(); err != nil {
		return llm.InferenceResult{}, fmt.Errorf("llmclient: read stream: %w", err)
	}

	result := llm.InferenceResult{Text: textBuilder.String()}
	for _, i := range toolOrder {
		result.ToolCalls = append(result.ToolCalls, *toolCalls[i])
	}
	return result, nil
}
