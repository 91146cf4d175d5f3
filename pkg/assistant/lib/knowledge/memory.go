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
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
)

// MemoryStore is an in-memory corpus using brute-force cosine similarity.
// It serves tests and credential-less local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory corpus.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Search implements Store.
func (m *MemoryStore) Search(_ context.Context, vector []float32, threshold float64, limit int) ([]ContentMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]ContentMatch, 0, len(m.records))
	for id, rec := range m.records {
		sim := cosineSimilarity(vector, rec.Embedding)
		if sim < threshold {
			continue
		}
		matches = append(matches, ContentMatch{
			ID:         id,
			Content:    rec.Content,
			Similarity: sim,
			Metadata:   rec.Metadata,
			Source:     rec.Source,
			Type:       rec.Type,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// FindByHash implements Corpus.
func (m *MemoryStore) FindByHash(_ context.Context, hash string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, rec := range m.records {
		var meta struct {
			ContentHash string `json:"content_hash"`
		}
		if len(rec.Metadata) == 0 {
			continue
		}
		if err := sonic.Unmarshal(rec.Metadata, &meta); err != nil {
			continue
		}
		if meta.ContentHash == hash {
			return id, true, nil
		}
	}
	return "", false, nil
}

// Insert implements Corpus.
func (m *MemoryStore) Insert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.records[strconv.Itoa(m.nextID)] = rec
	return nil
}

// Update implements Corpus.
func (m *MemoryStore) Update(_ context.Context, id string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = rec
	return nil
}

// DeleteAll implements Corpus.
func (m *MemoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
