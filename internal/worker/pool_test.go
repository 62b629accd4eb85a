package worker

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"prepstage/internal/config"
)

// memQueue is an in-memory redis list stand-in.
type memQueue struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newMemQueue() *memQueue {
	return &memQueue{lists: make(map[string][]string)}
}

func (q *memQueue) RPush(_ context.Context, key string, value interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		q.lists[key] = append(q.lists[key], string(v))
	case string:
		q.lists[key] = append(q.lists[key], v)
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
	return nil
}

func (q *memQueue) LPopCount(_ context.Context, key string, count int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.lists[key]
	if len(list) == 0 {
		return nil, nil
	}
	if count > len(list) {
		count = len(list)
	}
	out := list[:count]
	q.lists[key] = list[count:]
	return out, nil
}

func (q *memQueue) len(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[key])
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = v
	case string:
		m.data[key] = []byte(v)
	default:
		m.data[key] = []byte(fmt.Sprintf("%v", v))
	}
	return nil
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("miss")
	}
	return string(v), nil
}

func (m *memCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("miss")
	}
	return v, nil
}

type recordingTranscriber struct {
	mu    sync.Mutex
	seen  [][]byte
	cache *memCache
}

func (r *recordingTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	r.mu.Lock()
	r.seen = append(r.seen, audio)
	r.mu.Unlock()
	text := "transcript:" + string(audio)
	_ = r.cache.Set(ctx, "stt-done:"+string(audio), text, 0)
	return text, nil
}

type recordingSynthesizer struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingSynthesizer) Synthesize(_ context.Context, questionID, _ string) ([]byte, error) {
	r.mu.Lock()
	r.seen = append(r.seen, questionID)
	r.mu.Unlock()
	return []byte("audio"), nil
}

func workerConfig() *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{PoolSize: 2, BatchSize: 5},
	}
}

func TestProducerEnqueuesAndSkipsCached(t *testing.T) {
	queue := newMemQueue()
	cache := newMemCache()
	p := NewProducer(queue, cache)
	ctx := context.Background()

	key, cached, err := p.EnqueueTranscription(ctx, []byte("audio-1"))
	if err != nil {
		t.Fatalf("EnqueueTranscription: %v", err)
	}
	if cached != "" {
		t.Fatalf("expected no cached transcript yet")
	}
	if queue.len(sttQueueKey) != 1 {
		t.Fatalf("expected 1 queued stt job")
	}

	// Simulate a completed worker run, then re-enqueue the same audio.
	if err := cache.Set(ctx, key, "done", 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	_, cached, err = p.EnqueueTranscription(ctx, []byte("audio-1"))
	if err != nil {
		t.Fatalf("EnqueueTranscription (cached): %v", err)
	}
	if cached != "done" {
		t.Fatalf("expected cached transcript, got %q", cached)
	}
	if queue.len(sttQueueKey) != 1 {
		t.Fatalf("cached audio must not be re-queued")
	}
}

func TestProducerTTSSkipsCachedAudio(t *testing.T) {
	queue := newMemQueue()
	cache := newMemCache()
	p := NewProducer(queue, cache)
	ctx := context.Background()

	key, err := p.EnqueueSynthesis(ctx, "qid-1", "question text")
	if err != nil {
		t.Fatalf("EnqueueSynthesis: %v", err)
	}
	if queue.len(ttsQueueKey) != 1 {
		t.Fatalf("expected 1 queued tts job")
	}

	if err := cache.Set(ctx, key, []byte("mp3"), 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if _, err := p.EnqueueSynthesis(ctx, "qid-1", "question text"); err != nil {
		t.Fatalf("EnqueueSynthesis (cached): %v", err)
	}
	if queue.len(ttsQueueKey) != 1 {
		t.Fatalf("cached audio must not be re-queued")
	}
}

func TestPoolDrainsBothQueues(t *testing.T) {
	queue := newMemQueue()
	cache := newMemCache()
	tr := &recordingTranscriber{cache: cache}
	sy := &recordingSynthesizer{}
	pool := NewPool(workerConfig(), queue, tr, sy)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		payload, _ := json.Marshal(sttJob{
			ID:       fmt.Sprintf("job-%d", i),
			AudioHex: hex.EncodeToString([]byte(fmt.Sprintf("audio-%d", i))),
			Key:      fmt.Sprintf("stt:%d", i),
		})
		if err := queue.RPush(ctx, sttQueueKey, payload); err != nil {
			t.Fatalf("push stt: %v", err)
		}
	}
	payload, _ := json.Marshal(ttsJob{ID: "t1", QuestionID: "q1", Text: "hello"})
	if err := queue.RPush(ctx, ttsQueueKey, payload); err != nil {
		t.Fatalf("push tts: %v", err)
	}

	if got := pool.drainOnce(ctx); got != 4 {
		t.Fatalf("drainOnce processed %d jobs, want 4", got)
	}
	if len(tr.seen) != 3 {
		t.Fatalf("transcriber handled %d jobs, want 3", len(tr.seen))
	}
	if len(sy.seen) != 1 || sy.seen[0] != "q1" {
		t.Fatalf("synthesizer jobs: %v", sy.seen)
	}
	if queue.len(sttQueueKey) != 0 || queue.len(ttsQueueKey) != 0 {
		t.Fatalf("queues should be empty after drain")
	}
}

func TestPoolSkipsMalformedJobs(t *testing.T) {
	queue := newMemQueue()
	tr := &recordingTranscriber{cache: newMemCache()}
	pool := NewPool(workerConfig(), queue, tr, &recordingSynthesizer{})
	ctx := context.Background()

	if err := queue.RPush(ctx, sttQueueKey, "not json"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got := pool.drainOnce(ctx); got != 1 {
		t.Fatalf("drainOnce = %d, want 1", got)
	}
	if len(tr.seen) != 0 {
		t.Fatalf("malformed job should not reach transcriber")
	}
}

func TestPoolStartStop(t *testing.T) {
	pool := NewPool(workerConfig(), newMemQueue(), &recordingTranscriber{cache: newMemCache()}, &recordingSynthesizer{})
	pool.Start()
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("pool did not stop")
	}
}
