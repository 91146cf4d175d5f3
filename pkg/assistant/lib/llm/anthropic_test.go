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
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic/decoder"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnthropicBackend(url string) *AnthropicBackend {
	return &AnthropicBackend{
		baseURL: url,
		apiKey:  "ak-test",
		client:  newStreamingClient(),
		logger:  zap.NewNop(),
	}
}

func TestNormalizeAnthropicModel(t *testing.T) {
	require.Equal(t, "claude-3-opus-latest", normalizeAnthropicModel("anthropic/claude-3-opus-latest"))
	require.Equal(t, "claude-3-opus-latest", normalizeAnthropicModel("claude-3-opus-latest"))
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.Equal(t, "persona", system)
	require.Len(t, rest, 2)
	require.Equal(t, RoleUser, rest[0].Role)

	system, rest = splitSystem([]Message{{Role: RoleUser, Content: "hi"}})
	require.Empty(t, system)
	require.Len(t, rest, 1)
}

func TestAnthropicStream(t *testing.T) {
	var gotReq anthropicRequest
	var gotVersion, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, decoder.NewStreamDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" back\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	backend := newTestAnthropicBackend(srv.URL)

	tokens, errc, err := backend.Stream(context.Background(), Request{
		Model: "anthropic/claude-3-5-haiku-latest",
		Messages: []Message{
			{Role: RoleSystem, Content: "persona"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)

	out, streamErr := collect(t, tokens, errc)
	require.NoError(t, streamErr)
	require.Equal(t, "Hi back", out)

	require.Equal(t, "2023-06-01", gotVersion)
	require.Equal(t, "ak-test", gotKey)
	// System role lifted into the top-level field, prefix stripped.
	require.Equal(t, "claude-3-5-haiku-latest", gotReq.Model)
	require.Equal(t, "persona", gotReq.System)
	require.Len(t, gotReq.Messages, 1)
	// max_tokens is mandatory for the messages API.
	require.Equal(t, anthropicDefaultMaxTokens, gotReq.MaxTokens)
}

func TestAnthropicStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	backend := newTestAnthropicBackend(srv.URL)

	tokens, errc, err := backend.Stream(context.Background(), Request{Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)

	_, streamErr := collect(t, tokens, errc)
	require.Error(t, streamErr)
	require.Contains(t, streamErr.Error(), "Overloaded")
}
