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
	"strings"
)

// DefaultModelToken is used when a chat request names no model.
const DefaultModelToken = "openai:gpt-4o"

// ErrInvalidModelToken is returned for model tokens that are not of the form
// "provider:model" with both sides non-empty.
var ErrInvalidModelToken = errors.New("invalid model format, expected provider:model")

// ModelCatalogEntry describes one provider/model pair offered by the chat
// assistant. Gated entries may only be invoked by authenticated callers.
type ModelCatalogEntry struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Gated    bool   `json:"gated"`
}

// Authorized reports whether a caller may invoke this entry.
func (e ModelCatalogEntry) Authorized(isAuthenticated bool) bool {
	return !e.Gated || isAuthenticated
}

// Token returns the entry's "provider:model" form.
func (e ModelCatalogEntry) Token() string {
	return e.Provider + ":" + e.Model
}

// Catalog is the static model catalog. It is the single source of truth for
// gating, served to clients via the models endpoint so the UI pre-check and
// the server policy cannot drift apart.
type Catalog struct {
	entries []ModelCatalogEntry
	byToken map[string]ModelCatalogEntry
}

// NewCatalog builds the default catalog.
func NewCatalog() *Catalog {
	entries := []ModelCatalogEntry{
		{Provider: "openai", Model: "gpt-4o", Gated: true},
		{Provider: "openai", Model: "gpt-4o-mini"},
		{Provider: "openai", Model: "gpt-4-turbo", Gated: true},
		{Provider: "openai", Model: "gpt-4", Gated: true},
		{Provider: "openai", Model: "gpt-3.5-turbo"},
		{Provider: "openai", Model: "o1", Gated: true},
		{Provider: "openai", Model: "o1-mini", Gated: true},
		{Provider: "openai", Model: "o1-preview", Gated: true},
		{Provider: "openai", Model: "o3-mini", Gated: true},
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", Gated: true},
		{Provider: "anthropic", Model: "claude-3-7-sonnet-latest", Gated: true},
		{Provider: "anthropic", Model: "claude-3-5-sonnet-latest", Gated: true},
		{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
		{Provider: "anthropic", Model: "claude-3-opus-latest", Gated: true},
		{Provider: "anthropic", Model: "claude-3-sonnet-latest", Gated: true},
		{Provider: "anthropic", Model: "claude-3-haiku-latest"},
		{Provider: "google", Model: "gemini-2.0-flash-001", Gated: true},
		{Provider: "google", Model: "gemini-1.5-pro-latest", Gated: true},
		{Provider: "google", Model: "gemini-1.5-flash-latest"},
		{Provider: "google", Model: "gemini-1.5-flash-8b-latest"},
		{Provider: "grok", Model: "grok-2-1212", Gated: true},
	}

	byToken := make(map[string]ModelCatalogEntry, len(entries))
	for _, e := range entries {
		byToken[e.Token()] = e
	}
	return &Catalog{entries: entries, byToken: byToken}
}

// ParseModelToken splits a "provider:model" token on its first colon. Both
// sides must be non-empty.
func ParseModelToken(token string) (provider, model string, err error) {
	provider, model, found := strings.Cut(token, ":")
	if !found || provider == "" || model == "" {
		return "", "", ErrInvalidModelToken
	}
	return provider, model, nil
}

// Lookup finds the catalog entry for a provider/model pair. Models absent
// from the catalog are not rejected; they are simply ungated, and the
// dispatcher decides whether the provider is reachable.
func (c *Catalog) Lookup(provider, model string) (ModelCatalogEntry, bool) {
	e, ok := c.byToken[provider+":"+model]
	return e, ok
}

// Entries returns the full catalog in declaration order.
func (c *Catalog) Entries() []ModelCatalogEntry {
	out := make([]ModelCatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}
