package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const resumeChunkSize = 400

// ResumeIndexStore keeps a per-user vector index over resume text chunks.
// Rebuilding a user's index swaps it atomically; concurrent rebuilds are
// last-write-wins.
type ResumeIndexStore struct {
	encoder Encoder

	mu      sync.RWMutex
	indexes map[int64]*resumeIndex
}

type resumeIndex struct {
	index  *FlatIndex
	chunks []string
}

// NewResumeIndexStore creates an empty store.
func NewResumeIndexStore(encoder Encoder) *ResumeIndexStore {
	return &ResumeIndexStore{
		encoder: encoder,
		indexes: make(map[int64]*resumeIndex),
	}
}

// Build chunks the resume text, embeds the chunks, and replaces the user's
// index.
func (s *ResumeIndexStore) Build(ctx context.Context, userID int64, resumeText string) error {
	if strings.TrimSpace(resumeText) == "" {
		return errors.New("resume text is empty")
	}

	chunks := chunkText(resumeText, resumeChunkSize)
	vectors, err := s.encoder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed resume chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed resume chunks: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	index, err := NewFlatIndex(len(vectors[0]))
	if err != nil {
		return err
	}
	if err := index.Add(vectors); err != nil {
		return err
	}

	s.mu.Lock()
	s.indexes[userID] = &resumeIndex{index: index, chunks: chunks}
	s.mu.Unlock()
	return nil
}

// Search returns up to k resume chunks nearest to the query. A user without
// an index yields an empty result, not an error.
func (s *ResumeIndexStore) Search(ctx context.Context, userID int64, query string, k int) ([]string, error) {
	s.mu.RLock()
	ri := s.indexes[userID]
	s.mu.RUnlock()
	if ri == nil || query == "" || k <= 0 {
		return nil, nil
	}

	vectors, err := s.encoder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embed query: unexpected vector count")
	}
	indices, err := ri.index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}
	results := make([]string, 0, len(indices))
	for _, i := range indices {
		results = append(results, ri.chunks[i])
	}
	return results, nil
}

// Has reports whether the user has a built index.
func (s *ResumeIndexStore) Has(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[userID] != nil
}

func chunkText(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
