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

package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
	"go.uber.org/zap"
)

const (
	defaultEmbeddingBaseURL = "https://api.openai.com/v1"
	defaultEmbeddingModel   = "text-embedding-3-small"

	defaultRequestTimeout = 60 * time.Second
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint. Failures propagate
// immediately; the chat path treats an embedding failure as fatal to the
// request rather than retrying.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// EmbedderConfig configures the OpenAI embeddings client.
type EmbedderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewOpenAIEmbedder creates an embeddings client.
func NewOpenAIEmbedder(cfg EmbedderConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing embedding API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmbeddingBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &OpenAIEmbedder{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := sonic.Marshal(embeddingRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(payload))
	}

	var out embeddingResponse
	if err := decoder.NewStreamDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}

	vector := out.Data[0].Embedding
	e.logger.Debug("embedding generated",
		zap.String("model", e.model),
		zap.Int("dimension", len(vector)),
		zap.Duration("duration", time.Since(start)))

	return vector, nil
}
