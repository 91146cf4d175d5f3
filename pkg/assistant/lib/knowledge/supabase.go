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
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
	"go.uber.org/zap"
)

// SupabaseStore is a REST client for a Supabase-hosted pgvector corpus.
// Search goes through the match_content_vectors RPC; ingestion writes the
// content_vectors table through PostgREST.
type SupabaseStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// SupabaseConfig configures the store client.
type SupabaseConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

const (
	matchRPC     = "match_content_vectors"
	vectorsTable = "content_vectors"
)

// NewSupabaseStore creates the store client.
func NewSupabaseStore(cfg SupabaseConfig, logger *zap.Logger) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing supabase URL")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("missing supabase API key")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &SupabaseStore{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type matchRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchThreshold float64   `json:"match_threshold"`
	MatchCount     int       `json:"match_count"`
}

// Search implements Store. Match order is whatever the RPC returns, which is
// descending similarity; it is preserved as-is.
func (s *SupabaseStore) Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]ContentMatch, error) {
	var matches []ContentMatch
	err := s.do(ctx, http.MethodPost, "/rest/v1/rpc/"+matchRPC, matchRequest{
		QueryEmbedding: vector,
		MatchThreshold: threshold,
		MatchCount:     limit,
	}, nil, &matches)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return matches, nil
}

// FindByHash implements Corpus, looking a record up by its metadata
// content_hash key.
func (s *SupabaseStore) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	path := fmt.Sprintf("/rest/v1/%s?select=id&metadata-%%3E%%3Econtent_hash=eq.%s&limit=1",
		vectorsTable, url.QueryEscape(hash))

	var rows []struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return "", false, fmt.Errorf("hash lookup: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].ID, true, nil
}

// Insert implements Corpus.
func (s *SupabaseStore) Insert(ctx context.Context, rec Record) error {
	if err := s.do(ctx, http.MethodPost, "/rest/v1/"+vectorsTable, rec, nil, nil); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Update implements Corpus.
func (s *SupabaseStore) Update(ctx context.Context, id string, rec Record) error {
	path := fmt.Sprintf("/rest/v1/%s?id=eq.%s", vectorsTable, url.QueryEscape(id))
	if err := s.do(ctx, http.MethodPatch, path, rec, nil, nil); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// DeleteAll implements Corpus, clearing the corpus before a clean re-ingest.
func (s *SupabaseStore) DeleteAll(ctx context.Context) error {
	path := fmt.Sprintf("/rest/v1/%s?id=not.is.null", vectorsTable)
	if err := s.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

func (s *SupabaseStore) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(payload))
	}
	if out != nil {
		return decoder.NewStreamDecoder(resp.Body).Decode(out)
	}
	return nil
}
