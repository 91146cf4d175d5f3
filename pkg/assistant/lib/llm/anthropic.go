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

package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"

	// The messages API rejects requests without max_tokens.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicBackend streams completions from the Anthropic messages API.
//
// Provider quirks handled here: the messages API accepts no system role, so a
// leading system message is lifted into the top-level system field; model
// identifiers are normalized to bare names (a "anthropic/" prefix, as some
// clients send, is stripped).
type AnthropicBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewAnthropicBackend creates a backend for api.anthropic.com.
func NewAnthropicBackend(apiKey string, logger *zap.Logger) *AnthropicBackend {
	return &AnthropicBackend{
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		client:  newStreamingClient(),
		logger:  logger,
	}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// normalizeAnthropicModel strips a provider prefix from the model identifier.
func normalizeAnthropicModel(model string) string {
	return strings.TrimPrefix(model, "anthropic/")
}

// splitSystem separates a leading system message from the transcript.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system == "" {
				system = m.Content
			} else {
				system += "\n\n" + m.Content
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// Stream implements Backend.
func (b *AnthropicBackend) Stream(ctx context.Context, req Request) (<-chan TokenDelta, <-chan error, error) {
	system, transcript := splitSystem(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	body, err := sonic.Marshal(anthropicRequest{
		Model:       normalizeAnthropicModel(req.Model),
		System:      system,
		Messages:    transcript,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, nil, readAPIError("anthropic", resp)
	}

	tokens := make(chan TokenDelta, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(tokens)
		defer func() { _ = resp.Body.Close() }()

		reader := newSSEReader(resp.Body)
		for {
			if ctx.Err() != nil {
				errc <- ctx.Err()
				return
			}

			_, data, err := reader.next()
			if err != nil {
				if err == io.EOF {
					return
				}
				errc <- err
				return
			}

			var event anthropicStreamEvent
			if err := sonic.Unmarshal(data, &event); err != nil {
				b.logger.Debug("skipping malformed stream event", zap.Error(err))
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text != "" {
					select {
					case tokens <- TokenDelta{Text: event.Delta.Text}:
					case <-ctx.Done():
						errc <- ctx.Err()
						return
					}
				}
			case "message_stop":
				return
			case "error":
				errc <- fmt.Errorf("anthropic stream error: %s", event.Error.Message)
				return
			}
		}
	}()

	return tokens, errc, nil
}
