package speech

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"prepstage/internal/config"
)

const (
	transcriptTTL = time.Hour
	audioTTL      = 24 * time.Hour
)

// Cache is the subset of redis operations the speech clients use.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetBytes(ctx context.Context, key string) ([]byte, error)
}

// Transcriber converts candidate audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// WhisperClient calls a Whisper-compatible transcription endpoint.
// Transcripts are cached by audio content hash.
type WhisperClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	cache      Cache
}

// NewWhisperClient builds the client from configuration.
func NewWhisperClient(cfg *config.Config, cache Cache) *WhisperClient {
	return &WhisperClient{
		// Whisper can take a while for long recordings.
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    strings.TrimRight(cfg.Speech.STTBaseURL, "/"),
		model:      cfg.Speech.WhisperModel,
		cache:      cache,
	}
}

// TranscriptKey derives the cache key for an audio payload.
func TranscriptKey(audio []byte) string {
	sum := md5.Sum(audio)
	return "stt:" + hex.EncodeToString(sum[:])
}

// Transcribe returns the text for the audio, consulting the cache first.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("audio payload is empty")
	}
	key := TranscriptKey(audio)
	if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
		return cached, nil
	}

	text, err := c.request(ctx, audio)
	if err != nil {
		return "", err
	}
	if text != "" {
		if err := c.cache.Set(ctx, key, text, transcriptTTL); err != nil {
			return text, fmt.Errorf("cache transcript: %w", err)
		}
	}
	return text, nil
}

func (c *WhisperClient) request(ctx context.Context, audio []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "answer.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("stt service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
