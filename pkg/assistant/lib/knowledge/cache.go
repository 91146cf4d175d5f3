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
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EmbeddingCacheTTL is the default TTL for cached query embeddings. Repeat
// questions within this window skip the embedding service entirely.
const EmbeddingCacheTTL = 2 * time.Minute

// CachedEmbedder wraps an Embedder with a TTL cache and singleflight
// deduplication of concurrent identical requests.
type CachedEmbedder struct {
	embedder Embedder
	cache    *ttlcache.Cache[string, []float32]
	sfGroup  singleflight.Group
	logger   *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedEmbedder wraps an embedder with caching.
func NewCachedEmbedder(embedder Embedder, logger *zap.Logger) *CachedEmbedder {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []float32](EmbeddingCacheTTL),
	)
	go cache.Start()

	return &CachedEmbedder{
		embedder: embedder,
		cache:    cache,
		logger:   logger,
	}
}

// Embed implements Embedder with caching.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		c.logger.Debug("embedding cache hit", zap.Int("dimension", len(item.Value())))
		return item.Value(), nil
	}

	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		c.misses.Add(1)

		start := time.Now()
		vector, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		c.cache.Set(key, vector, ttlcache.DefaultTTL)
		c.logger.Debug("embedding generated and cached",
			zap.Int("dimension", len(vector)),
			zap.Duration("duration", time.Since(start)))
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("singleflight hit for embedding request")
	}

	return result.([]float32), nil
}

// Stats returns hit/miss counters.
func (c *CachedEmbedder) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the cache eviction loop.
func (c *CachedEmbedder) Close() {
	c.cache.Stop()
}

func cacheKey(text string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(text))
	return string(buf[:])
}
