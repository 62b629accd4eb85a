package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"prepstage/internal/models"
)

// Encoder produces one embedding vector per input text.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// QuestionBank holds the shared interview question corpus together with its
// vector index. The bank is immutable after load.
type QuestionBank struct {
	entries []models.BankEntry
	index   *FlatIndex
	encoder Encoder
}

// LoadQuestionBank reads the bank file, drops exact duplicate questions,
// and indexes the remainder.
func LoadQuestionBank(ctx context.Context, path string, encoder Encoder) (*QuestionBank, error) {
	if encoder == nil {
		return nil, errors.New("encoder required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	var raw []models.BankEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	entries := make([]models.BankEntry, 0, len(raw))
	texts := make([]string, 0, len(raw))
	for _, e := range raw {
		if e.Question == "" {
			continue
		}
		if _, dup := seen[e.Question]; dup {
			continue
		}
		seen[e.Question] = struct{}{}
		entries = append(entries, e)
		texts = append(texts, e.Question)
	}
	if len(entries) == 0 {
		return nil, errors.New("question bank is empty")
	}

	vectors, err := encoder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed question bank: %w", err)
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("embed question bank: %d vectors for %d questions", len(vectors), len(entries))
	}

	index, err := NewFlatIndex(len(vectors[0]))
	if err != nil {
		return nil, err
	}
	if err := index.Add(vectors); err != nil {
		return nil, err
	}
	return &QuestionBank{entries: entries, index: index, encoder: encoder}, nil
}

// Size reports the number of indexed questions.
func (b *QuestionBank) Size() int {
	return len(b.entries)
}

// Search returns up to k bank entries nearest to the query.
func (b *QuestionBank) Search(ctx context.Context, query string, k int) ([]models.BankEntry, error) {
	if query == "" || k <= 0 {
		return nil, nil
	}
	vectors, err := b.encoder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embed query: unexpected vector count")
	}
	indices, err := b.index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}
	results := make([]models.BankEntry, 0, len(indices))
	for _, i := range indices {
		results = append(results, b.entries[i])
	}
	return results, nil
}
