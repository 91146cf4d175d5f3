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

// Package knowledge embeds text, stores content vectors, and retrieves the
// facts most similar to a query. It backs the grounding context for the chat
// assistant.
package knowledge

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentMatch is one retrieved fact, produced per-request and never
// persisted. Ordering by descending similarity is significant downstream.
type ContentMatch struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"`
	Similarity float64         `json:"similarity"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Source     string          `json:"source"`
	Type       string          `json:"type"`
}

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store answers similarity queries over the content corpus. Results are
// ordered by descending similarity, filtered to similarity >= threshold,
// and capped at limit.
type Store interface {
	Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]ContentMatch, error)
}

// Record is one corpus entry as written by ingestion.
type Record struct {
	Content   string          `json:"content"`
	Embedding []float32       `json:"embedding"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Source    string          `json:"source"`
	Type      string          `json:"type"`
}

// Corpus extends Store with the write operations ingestion needs. The chat
// pipeline itself only ever reads.
type Corpus interface {
	Store
	FindByHash(ctx context.Context, hash string) (id string, ok bool, err error)
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, id string, rec Record) error
	DeleteAll(ctx context.Context) error
}

// ContentHash produces the stable de-duplication key for a piece of content.
func ContentHash(source, contentType, content string) string {
	h := xxhash.New()
	_, _ = h.WriteString(source)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(contentType)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(content)
	return strconv.FormatUint(h.Sum64(), 16)
}
