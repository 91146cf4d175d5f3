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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ContentItem is one piece of source content headed for the corpus.
type ContentItem struct {
	Content  string
	Metadata map[string]any
	Source   string
	Type     string
}

// IngestOptions controls an ingestion run.
type IngestOptions struct {
	// Clean drops the whole corpus before ingesting.
	Clean bool
	// UpdateExisting re-embeds and rewrites records whose content hash is
	// already present; otherwise they are skipped.
	UpdateExisting bool
	// Concurrency bounds parallel embed+upsert work. Defaults to 4.
	Concurrency int
}

// IngestSummary reports what an ingestion run did.
type IngestSummary struct {
	Added   uint64
	Updated uint64
	Skipped uint64
}

// Ingestor populates the corpus from local content sources: a JSON Resume
// file, a projects file, and a directory of markdown posts.
type Ingestor struct {
	embedder Embedder
	corpus   Corpus
	chunker  *SentenceChunker
	logger   *zap.Logger
}

// NewIngestor creates an ingestion pipeline.
func NewIngestor(embedder Embedder, corpus Corpus, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		embedder: embedder,
		corpus:   corpus,
		chunker:  NewSentenceChunker(DefaultChunkLength),
		logger:   logger,
	}
}

// Run ingests all recognized content under dataDir: resume.json,
// projects.json, and blog/*.md. Missing sources are skipped silently.
func (ing *Ingestor) Run(ctx context.Context, dataDir string, opts IngestOptions) (IngestSummary, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	if opts.Clean {
		ing.logger.Info("cleaning existing corpus")
		if err := ing.corpus.DeleteAll(ctx); err != nil {
			return IngestSummary{}, fmt.Errorf("cleaning corpus: %w", err)
		}
	}

	var items []ContentItem

	resumePath := filepath.Join(dataDir, "resume.json")
	if _, err := os.Stat(resumePath); err == nil {
		resumeItems, err := resumeItems(resumePath)
		if err != nil {
			return IngestSummary{}, fmt.Errorf("processing resume: %w", err)
		}
		items = append(items, resumeItems...)
	}

	projectsPath := filepath.Join(dataDir, "projects.json")
	if _, err := os.Stat(projectsPath); err == nil {
		projectItems, err := projectItems(projectsPath)
		if err != nil {
			return IngestSummary{}, fmt.Errorf("processing projects: %w", err)
		}
		items = append(items, projectItems...)
	}

	blogDir := filepath.Join(dataDir, "blog")
	if entries, err := os.ReadDir(blogDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			blogItems, err := ing.markdownItems(filepath.Join(blogDir, entry.Name()))
			if err != nil {
				return IngestSummary{}, fmt.Errorf("processing %s: %w", entry.Name(), err)
			}
			items = append(items, blogItems...)
		}
	}

	var summary IngestSummary
	var added, updated, skipped atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, item := range items {
		g.Go(func() error {
			outcome, err := ing.processItem(gctx, item, opts)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomeAdded:
				added.Add(1)
			case outcomeUpdated:
				updated.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IngestSummary{}, err
	}

	summary.Added = added.Load()
	summary.Updated = updated.Load()
	summary.Skipped = skipped.Load()

	ing.logger.Info("content ingestion complete",
		zap.Uint64("added", summary.Added),
		zap.Uint64("updated", summary.Updated),
		zap.Uint64("skipped", summary.Skipped))
	return summary, nil
}

type itemOutcome int

const (
	outcomeAdded itemOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (ing *Ingestor) processItem(ctx context.Context, item ContentItem, opts IngestOptions) (itemOutcome, error) {
	hash := ContentHash(item.Source, item.Type, item.Content)

	existingID, exists, err := ing.corpus.FindByHash(ctx, hash)
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", item.Source, err)
	}
	if exists && !opts.UpdateExisting {
		ing.logger.Debug("skipping existing content",
			zap.String("source", item.Source),
			zap.String("type", item.Type))
		return outcomeSkipped, nil
	}

	vector, err := ing.embedder.Embed(ctx, item.Content)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", item.Source, err)
	}

	meta := make(map[string]any, len(item.Metadata)+2)
	for k, v := range item.Metadata {
		meta[k] = v
	}
	meta["content_hash"] = hash
	meta["last_updated"] = time.Now().UTC().Format(time.RFC3339)
	metaJSON, err := sonic.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshaling metadata: %w", err)
	}

	rec := Record{
		Content:   item.Content,
		Embedding: vector,
		Metadata:  metaJSON,
		Source:    item.Source,
		Type:      item.Type,
	}

	if exists {
		if err := ing.corpus.Update(ctx, existingID, rec); err != nil {
			return 0, fmt.Errorf("updating %s: %w", item.Source, err)
		}
		ing.logger.Info("updated existing content",
			zap.String("source", item.Source),
			zap.String("type", item.Type))
		return outcomeUpdated, nil
	}

	if err := ing.corpus.Insert(ctx, rec); err != nil {
		return 0, fmt.Errorf("inserting %s: %w", item.Source, err)
	}
	ing.logger.Info("added new content",
		zap.String("source", item.Source),
		zap.String("type", item.Type))
	return outcomeAdded, nil
}

// markdownItems chunks one markdown file into content items.
func (ing *Ingestor) markdownItems(path string) ([]ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fileName := filepath.Base(path)

	chunks := ing.chunker.Chunk(string(data))
	items := make([]ContentItem, 0, len(chunks))
	for i, chunk := range chunks {
		items = append(items, ContentItem{
			Content: chunk,
			Metadata: map[string]any{
				"file_name":   fileName,
				"chunk_index": i,
			},
			Source: fileName,
			Type:   "blog",
		})
	}
	return items, nil
}

// jsonResume is the subset of the JSON Resume schema ingestion reads.
type jsonResume struct {
	Basics struct {
		Name    string `json:"name"`
		Label   string `json:"label"`
		Summary string `json:"summary"`
	} `json:"basics"`
	Skills []struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
	} `json:"skills"`
	Work []struct {
		Company   string `json:"company"`
		Position  string `json:"position"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
		Summary   string `json:"summary"`
	} `json:"work"`
	Education []struct {
		Institution string `json:"institution"`
		Area        string `json:"area"`
		StudyType   string `json:"studyType"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
	} `json:"education"`
}

// resumeItems flattens a JSON Resume into per-section content items, phrased
// in third person so retrieval matches questions about the subject.
func resumeItems(path string) ([]ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resume jsonResume
	if err := sonic.Unmarshal(data, &resume); err != nil {
		return nil, fmt.Errorf("parsing resume: %w", err)
	}

	name := resume.Basics.Name
	if name == "" {
		name = "The site owner"
	}

	sections := map[string]string{}
	if resume.Basics.Label != "" || resume.Basics.Summary != "" {
		sections["personal"] = strings.TrimSpace(fmt.Sprintf("%s is a %s. %s", name, resume.Basics.Label, resume.Basics.Summary))
	}
	if len(resume.Skills) > 0 {
		var lines []string
		for _, s := range resume.Skills {
			lines = append(lines, fmt.Sprintf("%s has expertise in %s, specifically with: %s", name, s.Name, strings.Join(s.Keywords, ", ")))
		}
		sections["skills"] = strings.Join(lines, ". ")
	}
	if len(resume.Work) > 0 {
		var lines []string
		for _, w := range resume.Work {
			lines = append(lines, fmt.Sprintf("%s worked as a %s at %s from %s to %s. %s", name, w.Position, w.Company, w.StartDate, w.EndDate, w.Summary))
		}
		sections["work"] = strings.Join(lines, "\n\n")
	}
	if len(resume.Education) > 0 {
		var lines []string
		for _, e := range resume.Education {
			lines = append(lines, fmt.Sprintf("%s studied %s at %s, earning a %s (%s - %s)", name, e.Area, e.Institution, e.StudyType, e.StartDate, e.EndDate))
		}
		sections["education"] = strings.Join(lines, "\n\n")
	}

	var items []ContentItem
	for section, content := range sections {
		if content == "" {
			continue
		}
		items = append(items, ContentItem{
			Content: content,
			Metadata: map[string]any{
				"section":      section,
				"is_personal":  true,
				"subject":      name,
				"content_type": "personal_info",
				"source_type":  "resume",
			},
			Source: "resume.json",
			Type:   "resume",
		})
	}
	return items, nil
}

type project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Features     []string `json:"features"`
	GithubURL    string   `json:"github_url"`
	LiveURL      string   `json:"live_url"`
}

// projectItems turns each portfolio project into one content item.
func projectItems(path string) ([]ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var projects []project
	if err := sonic.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parsing projects: %w", err)
	}

	items := make([]ContentItem, 0, len(projects))
	for _, p := range projects {
		var b strings.Builder
		fmt.Fprintf(&b, "Project: %s\n", p.Name)
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
		if len(p.Technologies) > 0 {
			fmt.Fprintf(&b, "Technologies Used: %s\n", strings.Join(p.Technologies, ", "))
		}
		if len(p.Features) > 0 {
			fmt.Fprintf(&b, "Key Features: %s\n", strings.Join(p.Features, ", "))
		}
		if p.GithubURL != "" {
			fmt.Fprintf(&b, "GitHub Repository: %s\n", p.GithubURL)
		}
		if p.LiveURL != "" {
			fmt.Fprintf(&b, "Live Demo: %s\n", p.LiveURL)
		}

		items = append(items, ContentItem{
			Content: strings.TrimSpace(b.String()),
			Metadata: map[string]any{
				"project_id":   p.ID,
				"is_personal":  true,
				"content_type": "project",
				"source_type":  "portfolio",
			},
			Source: p.Name,
			Type:   "project",
		})
	}
	return items, nil
}
