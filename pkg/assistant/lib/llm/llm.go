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

// Package llm dispatches chat requests to hosted language-model providers
// and exposes their output as a uniform token stream.
package llm

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenDelta is a single text fragment emitted during streaming generation.
type TokenDelta struct {
	Text string `json:"text"`
}

// Request holds the parameters for one streaming completion.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Backend is a single provider integration. Stream starts a completion and
// returns a finite token channel plus an error channel. The token channel is
// closed when generation ends; a mid-stream failure is delivered on the error
// channel after the token channel closes. Cancel the context to stop
// consuming provider output.
type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan TokenDelta, <-chan error, error)
}

// DispatchError wraps any failure raised by a provider backend, preserving
// which provider failed.
type DispatchError struct {
	Provider string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// LastUserContent returns the content of the final user message, or the
// final message of any role if no user message exists.
func LastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
