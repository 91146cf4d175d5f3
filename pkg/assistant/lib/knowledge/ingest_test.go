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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testResume = `{
  "basics": {
    "name": "Justin P Barnett",
    "label": "Software Engineer",
    "summary": "Builds VR experiences and web applications."
  },
  "skills": [
    {"name": "Web Development", "keywords": ["Go", "TypeScript", "React"]}
  ],
  "work": [
    {"company": "Acme", "position": "Engineer", "startDate": "2020-01", "endDate": "2023-01", "summary": "Shipped things."}
  ],
  "education": [
    {"institution": "Georgia Tech", "area": "Mechanical Engineering", "studyType": "BS", "startDate": "2012", "endDate": "2016"}
  ]
}`

const testProjects = `[
  {
    "id": "portfolio",
    "name": "Portfolio Website",
    "description": "Personal site with an AI chat assistant.",
    "technologies": ["Go", "Supabase"],
    "features": ["RAG chat", "Streaming responses"],
    "github_url": "https://github.com/example/portfolio",
    "live_url": "https://example.com"
  }
]`

func writeTestData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "resume.json"), []byte(testResume), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.json"), []byte(testProjects), 0o644))

	blogDir := filepath.Join(dir, "blog")
	require.NoError(t, os.MkdirAll(blogDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blogDir, "first-post.md"),
		[]byte("A post about building things. It has two sentences."), 0o644))
	return dir
}

func TestIngestorRun(t *testing.T) {
	dir := writeTestData(t)
	embedder := &countingEmbedder{}
	store := NewMemoryStore()
	ingestor := NewIngestor(embedder, store, zap.NewNop())

	summary, err := ingestor.Run(context.Background(), dir, IngestOptions{UpdateExisting: true})
	require.NoError(t, err)

	// Four resume sections, one project, one blog chunk.
	require.Equal(t, uint64(6), summary.Added)
	require.Zero(t, summary.Updated)
	require.Equal(t, 6, store.Len())
}

func TestIngestorSkipsExistingWithoutUpdate(t *testing.T) {
	dir := writeTestData(t)
	embedder := &countingEmbedder{}
	store := NewMemoryStore()
	ingestor := NewIngestor(embedder, store, zap.NewNop())

	_, err := ingestor.Run(context.Background(), dir, IngestOptions{UpdateExisting: true})
	require.NoError(t, err)

	summary, err := ingestor.Run(context.Background(), dir, IngestOptions{UpdateExisting: false})
	require.NoError(t, err)
	require.Zero(t, summary.Added)
	require.Zero(t, summary.Updated)
	require.Equal(t, uint64(6), summary.Skipped)
	require.Equal(t, 6, store.Len())
}

func TestIngestorUpdatesExisting(t *testing.T) {
	dir := writeTestData(t)
	embedder := &countingEmbedder{}
	store := NewMemoryStore()
	ingestor := NewIngestor(embedder, store, zap.NewNop())

	_, err := ingestor.Run(context.Background(), dir, IngestOptions{UpdateExisting: true})
	require.NoError(t, err)

	summary, err := ingestor.Run(context.Background(), dir, IngestOptions{UpdateExisting: true})
	require.NoError(t, err)
	require.Zero(t, summary.Added)
	require.Equal(t, uint64(6), summary.Updated)
	require.Equal(t, 6, store.Len())
}

func TestIngestorClean(t *testing.T) {
	dir := writeTestData(t)
	embedder := &countingEmbedder{}
	store := NewMemoryStore()
	ingestor := NewIngestor(embedder, store, zap.NewNop())

	_, err := ingestor.Run(context.Background(), dir, IngestOptions{UpdateExisting: true})
	require.NoError(t, err)

	summary, err := ingestor.Run(context.Background(), dir, IngestOptions{Clean: true, UpdateExisting: true})
	require.NoError(t, err)
	require.Equal(t, uint64(6), summary.Added)
	require.Equal(t, 6, store.Len())
}

func TestIngestorEmptyDir(t *testing.T) {
	embedder := &countingEmbedder{}
	store := NewMemoryStore()
	ingestor := NewIngestor(embedder, store, zap.NewNop())

	summary, err := ingestor.Run(context.Background(), t.TempDir(), IngestOptions{})
	require.NoError(t, err)
	require.Zero(t, summary.Added)
	require.Zero(t, store.Len())
}
