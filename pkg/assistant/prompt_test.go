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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/knowledge"
)

func TestFormatContext(t *testing.T) {
	matches := []knowledge.ContentMatch{
		{Type: "resume", Content: "Justin studied computer science.", Source: "resume.json", Similarity: 0.9},
		{Type: "project", Content: "Project: Portfolio Website", Source: "Portfolio Website", Similarity: 0.7},
		{Type: "blog", Content: "Some post excerpt.", Similarity: 0.5},
	}

	got := FormatContext(matches)

	lines := strings.Split(got, "\n\n")
	require.Len(t, lines, 3)
	require.Equal(t, "[resume] Justin studied computer science. (Source: resume.json)", lines[0])
	require.Equal(t, "[project] Project: Portfolio Website (Source: Portfolio Website)", lines[1])
	// No source segment when source is empty.
	require.Equal(t, "[blog] Some post excerpt.", lines[2])
}

func TestFormatContextPreservesRetrievalOrder(t *testing.T) {
	matches := []knowledge.ContentMatch{
		{Type: "a", Content: "first", Similarity: 0.3},
		{Type: "b", Content: "second", Similarity: 0.9},
	}

	got := FormatContext(matches)
	require.Less(t, strings.Index(got, "first"), strings.Index(got, "second"))
}

func TestSystemPromptContainsPersonaAndContext(t *testing.T) {
	builder, err := NewPromptBuilder(0, zap.NewNop())
	require.NoError(t, err)

	prompt := builder.SystemPrompt([]knowledge.ContentMatch{
		{Type: "resume", Content: "Justin worked at Acme.", Source: "resume.json"},
	})

	require.Contains(t, prompt, "speaks on behalf of Justin P Barnett")
	require.Contains(t, prompt, "ONLY answer using the provided context")
	require.Contains(t, prompt, "I don't have specific information")
	require.Contains(t, prompt, "[resume] Justin worked at Acme. (Source: resume.json)")
}

func TestSystemPromptTrimsToTokenBudget(t *testing.T) {
	builder, err := NewPromptBuilder(40, zap.NewNop())
	require.NoError(t, err)

	matches := []knowledge.ContentMatch{
		{Type: "resume", Content: strings.Repeat("Justin shipped software. ", 5)},
		{Type: "project", Content: strings.Repeat("More project detail here. ", 5)},
		{Type: "blog", Content: "A final low-ranked excerpt."},
	}

	prompt := builder.SystemPrompt(matches)

	// Highest-ranked match survives; the tail is dropped once the budget
	// is exceeded.
	require.Contains(t, prompt, "Justin shipped software.")
	require.NotContains(t, prompt, "More project detail here.")
	require.NotContains(t, prompt, "A final low-ranked excerpt.")
}

func TestSystemPromptKeepsFirstMatchOverBudget(t *testing.T) {
	builder, err := NewPromptBuilder(5, zap.NewNop())
	require.NoError(t, err)

	prompt := builder.SystemPrompt([]knowledge.ContentMatch{
		{Type: "resume", Content: "This single match alone exceeds the tiny budget."},
	})
	require.Contains(t, prompt, "This single match alone exceeds the tiny budget.")
}

func TestSystemPromptWithinBudgetKeepsAll(t *testing.T) {
	builder, err := NewPromptBuilder(0, zap.NewNop())
	require.NoError(t, err)

	prompt := builder.SystemPrompt([]knowledge.ContentMatch{
		{Type: "resume", Content: "First fact."},
		{Type: "blog", Content: "Second fact."},
	})
	require.Contains(t, prompt, "First fact.")
	require.Contains(t, prompt, "Second fact.")
}

func TestCountTokens(t *testing.T) {
	builder, err := NewPromptBuilder(0, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, 0, builder.CountTokens(""))
	require.Greater(t, builder.CountTokens("Hello, world!"), 0)

	short := builder.CountTokens("hi")
	long := builder.CountTokens(strings.Repeat("hi there ", 100))
	require.Greater(t, long, short)
}
