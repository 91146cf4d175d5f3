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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModelToken(t *testing.T) {
	tests := []struct {
		token    string
		provider string
		model    string
		wantErr  bool
	}{
		{token: "openai:gpt-4o", provider: "openai", model: "gpt-4o"},
		{token: "anthropic:claude-3-5-haiku-latest", provider: "anthropic", model: "claude-3-5-haiku-latest"},
		{token: "google:models/gemini-1.5-pro", provider: "google", model: "models/gemini-1.5-pro"},
		{token: "gpt-4o", wantErr: true},
		{token: ":gpt-4o", wantErr: true},
		{token: "openai:", wantErr: true},
		{token: "", wantErr: true},
		{token: ":", wantErr: true},
	}

	for _, tt := range tests {
		provider, model, err := ParseModelToken(tt.token)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidModelToken, "token %q", tt.token)
			continue
		}
		require.NoError(t, err, "token %q", tt.token)
		require.Equal(t, tt.provider, provider)
		require.Equal(t, tt.model, model)
	}
}

func TestCatalogGating(t *testing.T) {
	catalog := NewCatalog()

	gated, ok := catalog.Lookup("anthropic", "claude-3-opus-latest")
	require.True(t, ok)
	require.True(t, gated.Gated)
	require.False(t, gated.Authorized(false))
	require.True(t, gated.Authorized(true))

	free, ok := catalog.Lookup("openai", "gpt-4o-mini")
	require.True(t, ok)
	require.False(t, free.Gated)
	require.True(t, free.Authorized(false))
	require.True(t, free.Authorized(true))
}

func TestCatalogUnknownModel(t *testing.T) {
	catalog := NewCatalog()

	_, ok := catalog.Lookup("openai", "gpt-99")
	require.False(t, ok)

	_, ok = catalog.Lookup("notaprovider", "foo")
	require.False(t, ok)
}

func TestCatalogEntriesIncludeDefault(t *testing.T) {
	catalog := NewCatalog()

	provider, model, err := ParseModelToken(DefaultModelToken)
	require.NoError(t, err)

	_, ok := catalog.Lookup(provider, model)
	require.True(t, ok, "default model must be in the catalog")

	entries := catalog.Entries()
	require.NotEmpty(t, entries)

	// The served list is a copy, mutating it must not corrupt the catalog.
	entries[0].Gated = !entries[0].Gated
	fresh := catalog.Entries()
	require.NotEqual(t, entries[0].Gated, fresh[0].Gated)
}
