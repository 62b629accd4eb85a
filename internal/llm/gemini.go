package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"prepstage/internal/config"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const (
	requestTimeout     = 10 * time.Second
	defaultTemperature = float32(0.4)
	defaultMaxTokens   = 1500
)

// Service talks to Gemini through the configured key pool. Chat models and
// genai clients are built lazily per key and reused.
type Service struct {
	rotator        *KeyRotator
	modelName      string
	embeddingModel string

	mu         sync.Mutex
	clients    map[string]*genai.Client
	chatModels map[string]model.ToolCallingChatModel
}

// NewService builds the Gemini service from configuration.
func NewService(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if len(cfg.Gemini.APIKeys) == 0 {
		return nil, errors.New("at least one gemini api key is required")
	}
	return &Service{
		rotator:        NewKeyRotator(cfg.Gemini.APIKeys, time.Duration(cfg.Gemini.CooldownSeconds)*time.Second),
		modelName:      cfg.Gemini.Model,
		embeddingModel: cfg.Gemini.EmbeddingModel,
		clients:        make(map[string]*genai.Client),
		chatModels:     make(map[string]model.ToolCallingChatModel),
	}, nil
}

// Generate sends the prompt and returns the model's text. A key that fails
// on quota or auth is cooled down and the next key is tried.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}

	attempts := s.rotator.Size()
	var lastErr error
	for i := 0; i < attempts; i++ {
		key, err := s.rotator.Get()
		if err != nil {
			if lastErr != nil {
				return "", fmt.Errorf("%w: %v", err, lastErr)
			}
			return "", err
		}
		chatModel, err := s.chatModelFor(ctx, key)
		if err != nil {
			s.rotator.MarkFailed(key)
			lastErr = err
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		msg, err := chatModel.Generate(reqCtx,
			[]*schema.Message{schema.UserMessage(prompt)},
			model.WithTemperature(defaultTemperature),
			model.WithMaxTokens(defaultMaxTokens),
		)
		cancel()
		if err != nil {
			lastErr = err
			if isKeyFailure(err) {
				log.Printf("gemini key rotated after failure: %v", err)
				s.rotator.MarkFailed(key)
				continue
			}
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		return msg.Content, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrExhausted, lastErr)
	}
	return "", ErrExhausted
}

// Embed returns one embedding vector per input text.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	attempts := s.rotator.Size()
	var lastErr error
	for i := 0; i < attempts; i++ {
		key, err := s.rotator.Get()
		if err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %v", err, lastErr)
			}
			return nil, err
		}
		client, err := s.clientFor(ctx, key)
		if err != nil {
			s.rotator.MarkFailed(key)
			lastErr = err
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp, err := client.Models.EmbedContent(reqCtx, s.embeddingModel, contents, nil)
		cancel()
		if err != nil {
			lastErr = err
			if isKeyFailure(err) {
				s.rotator.MarkFailed(key)
				continue
			}
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		}
		vectors := make([][]float32, len(resp.Embeddings))
		for j, emb := range resp.Embeddings {
			vectors[j] = emb.Values
		}
		return vectors, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
	}
	return nil, ErrExhausted
}

func (s *Service) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[key]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	s.clients[key] = client
	return client, nil
}

func (s *Service) chatModelFor(ctx context.Context, key string) (model.ToolCallingChatModel, error) {
	s.mu.Lock()
	if chatModel, ok := s.chatModels[key]; ok {
		s.mu.Unlock()
		return chatModel, nil
	}
	s.mu.Unlock()

	client, err := s.clientFor(ctx, key)
	if err != nil {
		return nil, err
	}
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  s.modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model: %w", err)
	}

	s.mu.Lock()
	s.chatModels[key] = chatModel
	s.mu.Unlock()
	return chatModel, nil
}

// isKeyFailure reports whether the error looks like a per-key quota or auth
// problem rather than a bad request.
func isKeyFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "quota", "resource_exhausted", "rate limit",
		"401", "403", "api key", "permission_denied", "unauthenticated",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
