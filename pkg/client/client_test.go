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

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic/decoder"
	"github.com/stretchr/testify/require"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant"
	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/llm"
)

func TestClientChatText(t *testing.T) {
	var gotReq assistant.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, decoder.NewStreamDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Justin ", "builds ", "things."} {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	reply, err := c.ChatText(context.Background(), assistant.ChatRequest{
		Messages: []llm.Message{NewUserMessage("What does Justin do?")},
		Model:    "openai:gpt-4o-mini",
	})
	require.NoError(t, err)
	require.Equal(t, "Justin builds things.", reply)

	require.Equal(t, "openai:gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	require.Equal(t, llm.RoleUser, gotReq.Messages[0].Role)
}

func TestClientChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Authentication required to use openai:gpt-4o","requiresAuth":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Ask(context.Background(), "hello")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.True(t, apiErr.RequiresAuth)
	require.Contains(t, apiErr.Message, "Authentication required")
}

func TestClientChatNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Ask(context.Background(), "hello")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestClientModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"provider":"openai","model":"gpt-4o-mini"}],"default":"openai:gpt-4o"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	models, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Equal(t, "openai:gpt-4o", models.Default)
	require.Len(t, models.Models, 1)
	require.Equal(t, "openai", models.Models[0].Provider)
}

func TestClientReadyDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":"not_ready","providers":0,"models":21}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ready, err := c.Ready(context.Background())
	require.Error(t, err)
	require.NotNil(t, ready)
	require.Equal(t, "not_ready", ready.Status)
	require.Zero(t, ready.Providers)
}

func TestClientHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthz", r.URL.Path)
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	require.NoError(t, c.Health(context.Background()))
}

func TestClientTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthz", r.URL.Path)
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	require.NoError(t, c.Health(context.Background()))
}
