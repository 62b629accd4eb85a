package worker

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	"prepstage/internal/config"
	"prepstage/internal/speech"
)

const idleSleep = time.Second

// Pool drains the speech batch queues with a bounded set of goroutines.
// The transcriber and synthesizer cache their own results, so a completed
// job is visible to pollers under the job's cache key.
type Pool struct {
	queue       ListQueue
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	size        int
	batch       int

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// NewPool builds the pool from configuration.
func NewPool(cfg *config.Config, queue ListQueue, transcriber speech.Transcriber, synthesizer speech.Synthesizer) *Pool {
	size := cfg.Worker.PoolSize
	if size <= 0 {
		size = 4
	}
	batch := cfg.Worker.BatchSize
	if batch <= 0 {
		batch = 5
	}
	return &Pool{
		queue:       queue,
		transcriber: transcriber,
		synthesizer: synthesizer,
		size:        size,
		batch:       batch,
		stop:        make(chan struct{}),
	}
}

// Start launches the drain loop. It returns immediately.
func (p *Pool) Start() {
	p.wg.Add(1)
	go p.run()
	log.Printf("speech worker pool started: %d workers, batch %d", p.size, p.batch)
}

// Stop shuts the loop down and waits for in-flight jobs.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *Pool) run() {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		processed := p.drainOnce(ctx)
		if processed == 0 {
			select {
			case <-p.stop:
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// drainOnce pops one batch from each queue and processes it, returning the
// number of jobs handled.
func (p *Pool) drainOnce(ctx context.Context) int {
	total := 0

	sttItems, err := p.queue.LPopCount(ctx, sttQueueKey, p.batch)
	if err != nil {
		log.Printf("pop stt queue: %v", err)
	} else if len(sttItems) > 0 {
		total += len(sttItems)
		p.processBatch(sttItems, p.handleSTT)
	}

	ttsItems, err := p.queue.LPopCount(ctx, ttsQueueKey, p.batch)
	if err != nil {
		log.Printf("pop tts queue: %v", err)
	} else if len(ttsItems) > 0 {
		total += len(ttsItems)
		p.processBatch(ttsItems, p.handleTTS)
	}

	return total
}

func (p *Pool) processBatch(items []string, handle func(context.Context, string)) {
	sem := make(chan struct{}, p.size)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(payload string) {
			defer wg.Done()
			defer func() { <-sem }()
			handle(context.Background(), payload)
		}(item)
	}
	wg.Wait()
}

func (p *Pool) handleSTT(ctx context.Context, payload string) {
	var job sttJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Printf("decode stt job: %v", err)
		return
	}
	audio, err := hex.DecodeString(job.AudioHex)
	if err != nil {
		log.Printf("decode stt audio %s: %v", job.ID, err)
		return
	}
	if _, err := p.transcriber.Transcribe(ctx, audio); err != nil {
		log.Printf("stt job %s failed: %v", job.ID, err)
	}
}

func (p *Pool) handleTTS(ctx context.Context, payload string) {
	var job ttsJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Printf("decode tts job: %v", err)
		return
	}
	if _, err := p.synthesizer.Synthesize(ctx, job.QuestionID, job.Text); err != nil {
		log.Printf("tts job %s failed: %v", job.ID, err)
	}
}
