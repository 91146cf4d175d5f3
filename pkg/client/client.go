// Copyright 2025 Justin P Barnett
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client provides a Go client for the portfolio chat API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant"
	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/llm"
)

// NewUserMessage creates a user chat message.
func NewUserMessage(content string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant chat message.
func NewAssistantMessage(content string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: content}
}

// APIError is a non-2xx response from the chat API.
type APIError struct {
	StatusCode   int
	Message      string
	Provider     string
	RequiresAuth bool
}

func (e *APIError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("chat api returned %d (%s): %s", e.StatusCode, e.Provider, e.Message)
	}
	return fmt.Sprintf("chat api returned %d: %s", e.StatusCode, e.Message)
}

// Client is a client for the portfolio chat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL
// (e.g. "http://localhost:4210"). A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Chat sends a chat request and returns the reply as a plain-text token
// stream. The caller must close the returned reader. A reply truncated
// before its natural end indicates a provider failure mid-stream.
func (c *Client) Chat(ctx context.Context, req assistant.ChatRequest) (io.ReadCloser, error) {
	var body strings.Builder
	if err := encoder.NewStreamEncoder(&body).Encode(req); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat", strings.NewReader(body.String()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

// ChatText sends a chat request and collects the full streamed reply.
func (c *Client) ChatText(ctx context.Context, req assistant.ChatRequest) (string, error) {
	stream, err := c.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = stream.Close() }()

	text, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	return string(text), nil
}

// Ask is a convenience wrapper sending a single user message.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	return c.ChatText(ctx, assistant.ChatRequest{
		Messages: []llm.Message{NewUserMessage(question)},
	})
}

// Models returns the model catalog and the server's default model token.
func (c *Client) Models(ctx context.Context) (*assistant.ModelsResponse, error) {
	resp, err := c.get(ctx, "/api/models")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var models assistant.ModelsResponse
	if err := decoder.NewStreamDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &models, nil
}

// Ready reports which providers the server has credentials for. A non-nil
// response alongside an error means the server is up but cannot serve chat.
func (c *Client) Ready(ctx context.Context) (*assistant.ReadyResponse, error) {
	resp, err := c.get(ctx, "/readyz")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var ready assistant.ReadyResponse
	if err := decoder.NewStreamDecoder(resp.Body).Decode(&ready); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ready, &APIError{StatusCode: resp.StatusCode, Message: ready.Status}
	}
	return &ready, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body assistant.ErrorResponse
	if err := decoder.NewStreamDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Message = body.Error
	apiErr.Provider = body.Provider
	apiErr.RequiresAuth = body.RequiresAuth
	return apiErr
}
