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
	"regexp"
	"strings"
)

// DefaultChunkLength is the maximum chunk size in characters.
const DefaultChunkLength = 1000

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// SentenceChunker splits text on sentence boundaries and packs sentences
// into chunks up to a maximum length.
type SentenceChunker struct {
	maxLength int
}

// NewSentenceChunker creates a chunker with the given maximum chunk length
// in characters. Non-positive values use DefaultChunkLength.
func NewSentenceChunker(maxLength int) *SentenceChunker {
	if maxLength <= 0 {
		maxLength = DefaultChunkLength
	}
	return &SentenceChunker{maxLength: maxLength}
}

// Chunk splits text into sentence-packed chunks. Text with no sentence
// terminators becomes a single chunk.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.maxLength {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
