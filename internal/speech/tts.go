package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prepstage/internal/config"
)

// Synthesizer renders question text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, questionID, text string) ([]byte, error)
}

// TTSClient calls an HTTP text-to-speech endpoint. Generated audio is
// cached per question id so repeated playback costs nothing.
type TTSClient struct {
	httpClient *http.Client
	baseURL    string
	cache      Cache
}

// NewTTSClient builds the client from configuration.
func NewTTSClient(cfg *config.Config, cache Cache) *TTSClient {
	return &TTSClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.Speech.TTSBaseURL, "/"),
		cache:      cache,
	}
}

// AudioKey derives the cache key for a question's audio.
func AudioKey(questionID string) string {
	return "tts:" + questionID
}

// Synthesize returns spoken audio for the text, consulting the cache first.
func (c *TTSClient) Synthesize(ctx context.Context, questionID, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}
	key := AudioKey(questionID)
	if cached, err := c.cache.GetBytes(ctx, key); err == nil && len(cached) > 0 {
		return cached, nil
	}

	audio, err := c.request(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, audio, audioTTL); err != nil {
		return audio, fmt.Errorf("cache audio: %w", err)
	}
	return audio, nil
}

func (c *TTSClient) request(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"text": strings.ReplaceAll(strings.TrimSpace(text), "\n", " "),
		"lang": "en",
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	url := c.baseURL + "/api/tts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("tts service returned no audio")
	}
	return audio, nil
}
