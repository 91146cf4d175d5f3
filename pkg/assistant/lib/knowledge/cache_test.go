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
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, zap.NewNop())
	defer cached.Close()

	ctx := context.Background()

	v1, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	v2, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Equal(t, int32(1), inner.calls.Load())

	hits, misses := cached.Stats()
	require.Equal(t, uint64(1), hits)
	require.Equal(t, uint64(1), misses)
}

func TestCachedEmbedderDistinctKeys(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, zap.NewNop())
	defer cached.Close()

	ctx := context.Background()
	_, err := cached.Embed(ctx, "one")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "two")
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedderErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("service down")}
	cached := NewCachedEmbedder(inner, zap.NewNop())
	defer cached.Close()

	ctx := context.Background()
	_, err := cached.Embed(ctx, "hello")
	require.Error(t, err)

	// A later attempt goes back to the service.
	inner.err = nil
	_, err = cached.Embed(ctx, "hello")
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedderConcurrentSameKey(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, zap.NewNop())
	defer cached.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Embed(ctx, "same question")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Singleflight collapses concurrent identical requests; the cache then
	// answers everything else. Far fewer than 20 calls must reach the
	// service.
	require.LessOrEqual(t, inner.calls.Load(), int32(2))
}
