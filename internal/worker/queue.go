package worker

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"prepstage/internal/speech"

	"github.com/google/uuid"
)

const (
	sttQueueKey = "stt_batch_queue"
	ttsQueueKey = "tts_batch_queue"
)

// ListQueue is the redis list surface the batch queues run on.
type ListQueue interface {
	RPush(ctx context.Context, key string, value interface{}) error
	LPopCount(ctx context.Context, key string, count int) ([]string, error)
}

type sttJob struct {
	ID       string `json:"id"`
	AudioHex string `json:"audio_bytes"`
	Key      string `json:"key"`
}

type ttsJob struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// Producer enqueues speech jobs for asynchronous batch processing. Results
// land in the same cache keys the synchronous clients use, so callers poll
// the cache.
type Producer struct {
	queue ListQueue
	cache speech.Cache
}

// NewProducer wires the producer.
func NewProducer(queue ListQueue, cache speech.Cache) *Producer {
	return &Producer{queue: queue, cache: cache}
}

// EnqueueTranscription queues audio for batch STT. When a transcript is
// already cached it is returned immediately with no queueing.
func (p *Producer) EnqueueTranscription(ctx context.Context, audio []byte) (string, string, error) {
	if len(audio) == 0 {
		return "", "", errors.New("audio payload is empty")
	}
	key := speech.TranscriptKey(audio)
	if cached, err := p.cache.Get(ctx, key); err == nil && cached != "" {
		return key, cached, nil
	}

	payload, err := json.Marshal(sttJob{
		ID:       uuid.NewString(),
		AudioHex: hex.EncodeToString(audio),
		Key:      key,
	})
	if err != nil {
		return "", "", fmt.Errorf("encode stt job: %w", err)
	}
	if err := p.queue.RPush(ctx, sttQueueKey, payload); err != nil {
		return "", "", fmt.Errorf("enqueue stt job: %w", err)
	}
	return key, "", nil
}

// EnqueueSynthesis queues question audio generation. Already-cached audio
// is not re-queued.
func (p *Producer) EnqueueSynthesis(ctx context.Context, questionID, text string) (string, error) {
	if questionID == "" || text == "" {
		return "", errors.New("question id and text are required")
	}
	key := speech.AudioKey(questionID)
	if cached, err := p.cache.GetBytes(ctx, key); err == nil && len(cached) > 0 {
		return key, nil
	}

	payload, err := json.Marshal(ttsJob{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		Text:       text,
	})
	if err != nil {
		return "", fmt.Errorf("encode tts job: %w", err)
	}
	if err := p.queue.RPush(ctx, ttsQueueKey, payload); err != nil {
		return "", fmt.Errorf("enqueue tts job: %w", err)
	}
	return key, nil
}
