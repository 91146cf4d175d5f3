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

	"go.uber.org/zap"
)

const grokBaseURL = "https://api.x.ai/v1"

// Defaults applied when a request names a provider no backend is registered
// for. An unknown provider is a documented fallback, not an error.
const (
	DefaultProvider = "openai"
	DefaultModel    = "gpt-4o-mini"
)

// Credentials holds per-provider API keys, typically environment-supplied.
// An empty key means the provider is registered but unusable; callers should
// check HasCredential before dispatching.
type Credentials struct {
	OpenAI    string
	Anthropic string
	Google    string
	Grok      string
}

// Dispatcher routes a chat request to the backend registered for its
// provider, falling back to the default provider and model for unknown ones.
type Dispatcher struct {
	backends    map[string]Backend
	credentials map[string]string
	logger      *zap.Logger
}

// NewDispatcher registers one backend per supported provider.
func NewDispatcher(creds Credentials, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		backends:    make(map[string]Backend),
		credentials: make(map[string]string),
		logger:      logger,
	}
	d.register(NewOpenAIBackend(creds.OpenAI, logger.Named("openai")), creds.OpenAI)
	d.register(NewAnthropicBackend(creds.Anthropic, logger.Named("anthropic")), creds.Anthropic)
	d.register(NewGoogleBackend(creds.Google, logger.Named("google")), creds.Google)
	d.register(NewCompatibleBackend("grok", grokBaseURL, creds.Grok, logger.Named("grok")), creds.Grok)
	return d
}

func (d *Dispatcher) register(b Backend, credential string) {
	d.backends[b.Name()] = b
	d.credentials[b.Name()] = credential
}

// Register adds or replaces a backend. Intended for tests and for wiring
// additional OpenAI-compatible providers.
func (d *Dispatcher) Register(b Backend, credential string) {
	d.register(b, credential)
}

// Resolve maps a requested provider and model to the backend that will serve
// them. Unknown providers resolve to the default backend and default model.
func (d *Dispatcher) Resolve(provider, model string) (Backend, string) {
	if b, ok := d.backends[provider]; ok {
		return b, model
	}
	d.logger.Warn("unknown provider, using default backend",
		zap.String("requested_provider", provider),
		zap.String("fallback_provider", DefaultProvider),
		zap.String("fallback_model", DefaultModel))
	return d.backends[DefaultProvider], DefaultModel
}

// HasCredential reports whether the provider's API key is configured. The
// provider is resolved the same way Dispatch resolves it, so an unknown
// provider is checked against the default backend's credential.
func (d *Dispatcher) HasCredential(provider string) bool {
	b, _ := d.Resolve(provider, "")
	return d.credentials[b.Name()] != ""
}

// Dispatch resolves the provider and starts a token stream. Any failure is
// wrapped in a DispatchError naming the backend that actually served the
// request.
func (d *Dispatcher) Dispatch(ctx context.Context, provider string, req Request) (<-chan TokenDelta, <-chan error, error) {
	backend, model := d.Resolve(provider, req.Model)
	req.Model = model

	tokens, errc, err := backend.Stream(ctx, req)
	if err != nil {
		return nil, nil, &DispatchError{Provider: backend.Name(), Err: err}
	}
	return tokens, wrapStreamErrors(backend.Name(), errc), nil
}

// wrapStreamErrors decorates mid-stream failures with provider attribution.
func wrapStreamErrors(provider string, errc <-chan error) <-chan error {
	wrapped := make(chan error, 1)
	go func() {
		defer close(wrapped)
		for err := range errc {
			if err != nil {
				wrapped <- &DispatchError{Provider: provider, Err: err}
			}
		}
	}()
	return wrapped
}
