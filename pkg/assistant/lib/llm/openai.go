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

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIBackend streams chat completions from an OpenAI-compatible endpoint.
// It also serves any provider exposing the same wire format (Grok).
type OpenAIBackend struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenAIBackend creates a backend for api.openai.com.
func NewOpenAIBackend(apiKey string, logger *zap.Logger) *OpenAIBackend {
	return &OpenAIBackend{
		name:    "openai",
		baseURL: openAIBaseURL,
		apiKey:  apiKey,
		client:  newStreamingClient(),
		logger:  logger,
	}
}

// NewCompatibleBackend creates a backend for any OpenAI-compatible API at the
// given base URL, reported under the given provider name.
func NewCompatibleBackend(name, baseURL, apiKey string, logger *zap.Logger) *OpenAIBackend {
	return &OpenAIBackend{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  newStreamingClient(),
		logger:  logger,
	}
}

func (b *OpenAIBackend) Name() string { return b.name }

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream implements Backend.
func (b *OpenAIBackend) Stream(ctx context.Context, req Request) (<-chan TokenDelta, <-chan error, error) {
	body, err := sonic.Marshal(openAIChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, nil, readAPIError(b.name, resp)
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

			if bytes.Equal(data, []byte("[DONE]")) {
				return
			}

			var chunk openAIStreamChunk
			if err := sonic.Unmarshal(data, &chunk); err != nil {
				// Skip malformed chunks rather than aborting the stream.
				b.logger.Debug("skipping malformed stream chunk", zap.Error(err))
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case tokens <- TokenDelta{Text: content}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if chunk.Choices[0].FinishReason != "" {
				return
			}
		}
	}()

	return tokens, errc, nil
}
