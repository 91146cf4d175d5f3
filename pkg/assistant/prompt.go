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
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"go.uber.org/zap"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/knowledge"
)

const personaTemplate = `You are an AI assistant that speaks on behalf of Justin P Barnett. Your primary purpose is to answer questions about Justin's background, experience, projects, and expertise.

Key guidelines:
1. When someone asks about "you", always interpret and answer as if they're asking about "Justin"
2. NEVER say "I am an AI" or make AI disclaimers - simply answer directly about Justin
3. ONLY answer using the provided context about Justin
4. If you're not confident about some information, say "I don't have specific information about that aspect of Justin's background"
5. If asked about someone other than Justin, say "I can only provide information about Justin P Barnett"
6. Keep responses focused on Justin's professional background, skills, and projects
7. Respond in first person when appropriate (e.g. "I graduated from..." instead of "Justin graduated from...")
8. Format responses using markdown:
   - Use **bold** for emphasis
   - Use bullet points for lists
   - Use backticks for code or technical terms
   - Use proper heading levels (# ## ###)
   - Format links as [text](url)

Context about Justin:
%s`

// DefaultContextTokenBudget caps the cl100k_base token footprint of the
// rendered context block.
const DefaultContextTokenBudget = 2000

// PromptBuilder assembles the grounding system message for each request and
// tracks its token footprint.
type PromptBuilder struct {
	encoder *tiktoken.Tiktoken
	budget  int
	logger  *zap.Logger
}

// NewPromptBuilder creates a builder with the given context token budget;
// zero means DefaultContextTokenBudget. The token encoder loads its BPE ranks
// from the embedded offline dictionary, so no network access is needed.
func NewPromptBuilder(budget int, logger *zap.Logger) (*PromptBuilder, error) {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading token encoder: %w", err)
	}
	if budget == 0 {
		budget = DefaultContextTokenBudget
	}
	return &PromptBuilder{encoder: encoder, budget: budget, logger: logger}, nil
}

func formatMatch(m knowledge.ContentMatch) string {
	line := fmt.Sprintf("[%s] %s", m.Type, m.Content)
	if m.Source != "" {
		line += fmt.Sprintf(" (Source: %s)", m.Source)
	}
	return line
}

// FormatContext renders retrieved matches in retrieval order, one line per
// match as "[type] content (Source: source)", joined by blank lines. The
// source segment is omitted when empty.
func FormatContext(matches []knowledge.ContentMatch) string {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, formatMatch(m))
	}
	return strings.Join(lines, "\n\n")
}

// fitBudget keeps matches in retrieval order until the rendered context
// exceeds the token budget, dropping the tail. The first match is always
// kept so retrieval is never discarded entirely.
func (p *PromptBuilder) fitBudget(matches []knowledge.ContentMatch) ([]knowledge.ContentMatch, int) {
	total := 0
	for i, m := range matches {
		cost := p.CountTokens(formatMatch(m))
		if i > 0 && total+cost > p.budget {
			return matches[:i], len(matches) - i
		}
		total += cost
	}
	return matches, 0
}

// SystemPrompt interpolates the retrieved context into the persona template,
// trimming low-ranked matches that would push the context past the token
// budget.
func (p *PromptBuilder) SystemPrompt(matches []knowledge.ContentMatch) string {
	kept, dropped := p.fitBudget(matches)
	prompt := fmt.Sprintf(personaTemplate, FormatContext(kept))

	tokens := p.CountTokens(prompt)
	RecordPromptTokens(tokens)
	if dropped > 0 {
		RecordContextDropped(dropped)
	}
	p.logger.Debug("assembled system prompt",
		zap.Int("matches", len(kept)),
		zap.Int("dropped", dropped),
		zap.Int("tokens", tokens))
	return prompt
}

// CountTokens returns the cl100k_base token count of text.
func (p *PromptBuilder) CountTokens(text string) int {
	return len(p.encoder.Encode(text, nil, nil))
}
