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

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleBackend streams completions from the Gemini API.
//
// Provider quirks handled here: model identifiers must carry a "models/"
// resource prefix in the request path (prepended when absent); the assistant
// role is named "model"; system messages go into system_instruction.
type GoogleBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewGoogleBackend creates a backend for the Gemini generative language API.
func NewGoogleBackend(apiKey string, logger *zap.Logger) *GoogleBackend {
	return &GoogleBackend{
		baseURL: googleBaseURL,
		apiKey:  apiKey,
		client:  newStreamingClient(),
		logger:  logger,
	}
}

func (b *GoogleBackend) Name() string { return "google" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiGenConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiStreamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// normalizeGoogleModel ensures the model carries the models/ resource prefix.
func normalizeGoogleModel(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func toGeminiContents(messages []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	return contents
}

// Stream implements Backend.
func (b *GoogleBackend) Stream(ctx context.Context, req Request) (<-chan TokenDelta, <-chan error, error) {
	system, transcript := splitSystem(req.Messages)

	greq := geminiRequest{
		Contents: toGeminiContents(transcript),
		GenerationConfig: geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if system != "" {
		greq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	body, err := sonic.Marshal(greq)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", b.baseURL, normalizeGoogleModel(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", b.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, nil, readAPIError("google", resp)
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

			var chunk geminiStreamChunk
			if err := sonic.Unmarshal(data, &chunk); err != nil {
				b.logger.Debug("skipping malformed stream chunk", zap.Error(err))
				continue
			}
			if len(chunk.Candidates) == 0 {
				continue
			}

			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case tokens <- TokenDelta{Text: part.Text}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if chunk.Candidates[0].FinishReason != "" {
				return
			}
		}
	}()

	return tokens, errc, nil
}
