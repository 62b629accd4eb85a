package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prepstage/internal/models"
	"prepstage/internal/redis"
)

const (
	sessionTTL    = 24 * time.Hour
	evaluationTTL = 24 * time.Hour
)

// Cache is the subset of redis operations the interview pipeline uses.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// SessionContext is the per-session interview state kept in redis. A
// session has a single writer at any time; handlers never mutate the same
// session concurrently.
type SessionContext struct {
	Topics        []string             `json:"topics"`
	Questions     []string             `json:"questions"`
	SampleAnswers []string             `json:"sample_answers"`
	Answers       []models.AnswerEntry `json:"answers"`
	Evaluations   []models.Evaluation  `json:"evaluations"`
	QuestionCount int                  `json:"question_count"`
	Stage         Stage                `json:"stage"`
	FinalSummary  *models.FinalSummary `json:"final_summary,omitempty"`
}

// NewSessionContext returns the initial state for a fresh session.
func NewSessionContext() *SessionContext {
	return &SessionContext{
		Topics:        []string{},
		Questions:     []string{},
		SampleAnswers: []string{},
		Answers:       []models.AnswerEntry{},
		Evaluations:   []models.Evaluation{},
		QuestionCount: 0,
		Stage:         StageIntro,
	}
}

// ContextStore persists session contexts and cached evaluations in redis.
type ContextStore struct {
	cache Cache
}

// NewContextStore wraps the cache.
func NewContextStore(cache Cache) *ContextStore {
	return &ContextStore{cache: cache}
}

func contextKey(userID, sessionID int64) string {
	return fmt.Sprintf("ctx:%d:%d", userID, sessionID)
}

func evaluationKey(userID, sessionID int64, questionID string) string {
	return fmt.Sprintf("evaluation:%d:%d:%s", userID, sessionID, questionID)
}

func finalSummaryKey(userID, sessionID int64) string {
	return fmt.Sprintf("final_summary:%d:%d", userID, sessionID)
}

// Load fetches the session context, returning a fresh one when nothing is
// cached yet.
func (s *ContextStore) Load(ctx context.Context, userID, sessionID int64) (*SessionContext, error) {
	data, err := s.cache.Get(ctx, contextKey(userID, sessionID))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return NewSessionContext(), nil
		}
		return nil, fmt.Errorf("load session context: %w", err)
	}
	sc := NewSessionContext()
	if err := json.Unmarshal([]byte(data), sc); err != nil {
		return nil, fmt.Errorf("decode session context: %w", err)
	}
	return sc, nil
}

// Save writes the session context with a one-day TTL.
func (s *ContextStore) Save(ctx context.Context, userID, sessionID int64, sc *SessionContext) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	if err := s.cache.Set(ctx, contextKey(userID, sessionID), string(data), sessionTTL); err != nil {
		return fmt.Errorf("save session context: %w", err)
	}
	return nil
}

// CacheEvaluation stores a single answer evaluation keyed by question id so
// it survives session cleanup.
func (s *ContextStore) CacheEvaluation(ctx context.Context, userID, sessionID int64, questionID string, eval models.Evaluation) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	if err := s.cache.Set(ctx, evaluationKey(userID, sessionID, questionID), string(data), evaluationTTL); err != nil {
		return fmt.Errorf("cache evaluation: %w", err)
	}
	return nil
}

// CachedEvaluations loads every evaluation cached for the session, keyed by
// question id. Entries that fail to decode are skipped.
func (s *ContextStore) CachedEvaluations(ctx context.Context, userID, sessionID int64) (map[string]models.Evaluation, error) {
	pattern := fmt.Sprintf("evaluation:%d:%d:*", userID, sessionID)
	keys, err := s.cache.ScanKeys(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("scan evaluations: %w", err)
	}
	prefix := fmt.Sprintf("evaluation:%d:%d:", userID, sessionID)
	out := make(map[string]models.Evaluation, len(keys))
	for _, key := range keys {
		data, err := s.cache.Get(ctx, key)
		if err != nil {
			continue
		}
		var eval models.Evaluation
		if err := json.Unmarshal([]byte(data), &eval); err != nil {
			continue
		}
		out[key[len(prefix):]] = eval
	}
	return out, nil
}

// SaveFinalSummary persists the report so it outlives session cleanup.
func (s *ContextStore) SaveFinalSummary(ctx context.Context, userID, sessionID int64, summary *models.FinalSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode final summary: %w", err)
	}
	if err := s.cache.Set(ctx, finalSummaryKey(userID, sessionID), string(data), sessionTTL); err != nil {
		return fmt.Errorf("save final summary: %w", err)
	}
	return nil
}

// Cleanup removes the session context and transient per-session keys.
// Cached evaluations and the final summary are kept.
func (s *ContextStore) Cleanup(ctx context.Context, userID, sessionID int64) error {
	if err := s.cache.Del(ctx, contextKey(userID, sessionID)); err != nil {
		return fmt.Errorf("delete session context: %w", err)
	}
	patterns := []string{
		fmt.Sprintf("followup:%d:%d:*", userID, sessionID),
		fmt.Sprintf("stt:%d:%d:*", userID, sessionID),
		fmt.Sprintf("tts:%d:%d:*", userID, sessionID),
		fmt.Sprintf("audio:%d:%d:*", userID, sessionID),
	}
	for _, pattern := range patterns {
		keys, err := s.cache.ScanKeys(ctx, pattern)
		if err != nil {
			return fmt.Errorf("scan session keys: %w", err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := s.cache.Del(ctx, keys...); err != nil {
			return fmt.Errorf("delete session keys: %w", err)
		}
	}
	return nil
}
