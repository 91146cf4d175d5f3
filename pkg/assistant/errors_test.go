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

package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/llm"
)

func TestClassifyErrorAPIKey(t *testing.T) {
	status, resp := classifyError(errors.New("Incorrect API key provided"), "openai", false)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Contains(t, resp.Error, "API key")
	require.Contains(t, resp.Error, "openai")
	require.Nil(t, resp.Details)
}

func TestClassifyErrorRateLimit(t *testing.T) {
	status, resp := classifyError(errors.New("Rate limit reached for requests"), "openai", false)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Contains(t, resp.Error, "rate limit")

	status, _ = classifyError(errors.New("You exceeded your current quota"), "openai", false)
	require.Equal(t, http.StatusTooManyRequests, status)
}

func TestClassifyErrorModelNotFound(t *testing.T) {
	status, resp := classifyError(errors.New("The model `gpt-99` does not exist or was not found"), "openai", false)
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, resp.Error, "not found")
}

func TestClassifyErrorUnclassified(t *testing.T) {
	status, resp := classifyError(errors.New("something odd happened"), "google", false)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "something odd happened", resp.Error)
	require.Equal(t, "google", resp.Provider)
}

func TestClassifyErrorUsesDispatchProvider(t *testing.T) {
	err := &llm.DispatchError{Provider: "anthropic", Err: errors.New("Overloaded")}
	_, resp := classifyError(err, "unknown", false)
	require.Equal(t, "anthropic", resp.Provider)
	require.Contains(t, resp.Error, "overloaded")
}

func TestClassifyErrorUnknownProviderSentinel(t *testing.T) {
	_, resp := classifyError(errors.New("boom"), "", false)
	require.Equal(t, "unknown", resp.Provider)
}

func TestClassifyErrorDevModeDetails(t *testing.T) {
	err := errors.New("raw upstream message with internals")

	_, resp := classifyError(err, "openai", true)
	require.NotNil(t, resp.Details)
	require.Equal(t, "raw upstream message with internals", resp.Details.Message)
	require.NotEmpty(t, resp.Details.Stack)
	require.LessOrEqual(t, len(resp.Details.Stack), maxDetailStackLen)

	// Outside dev mode the raw details never leave the server.
	_, resp = classifyError(err, "openai", false)
	require.Nil(t, resp.Details)
}

func TestClassifyErrorDevModeDetailName(t *testing.T) {
	// An unwrapped error reports its own type, not "<nil>".
	_, resp := classifyError(errors.New("boom"), "openai", true)
	require.NotNil(t, resp.Details)
	require.Equal(t, "*errors.errorString", resp.Details.Name)

	// A wrapped error reports the cause's type.
	wrapped := fmt.Errorf("dispatch failed: %w", &llm.DispatchError{Provider: "openai", Err: errors.New("boom")})
	_, resp = classifyError(wrapped, "openai", true)
	require.Equal(t, "*llm.DispatchError", resp.Details.Name)
}
