package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"prepstage/internal/llm"
	"prepstage/internal/models"
	"prepstage/internal/redis"
)

// fakeCache is an in-memory stand-in for the redis wrapper.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// fakeGenerator replies from a queue, or echoes a canned response.
type fakeGenerator struct {
	responses []string
	calls     []string
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "generated question", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeBank struct {
	entries []models.BankEntry
	err     error
}

func (f *fakeBank) Search(_ context.Context, _ string, _ int) ([]models.BankEntry, error) {
	return f.entries, f.err
}

type fakeResumeSearcher struct {
	chunks []string
}

func (f *fakeResumeSearcher) Search(_ context.Context, _ int64, _ string, _ int) ([]string, error) {
	return f.chunks, nil
}

type fakeResumeSource struct {
	text string
}

func (f *fakeResumeSource) ResumeText(_ context.Context, _ int64) (string, error) {
	return f.text, nil
}

func newTestEngine(gen *fakeGenerator, bank *fakeBank) (*Engine, *fakeCache) {
	cache := newFakeCache()
	contexts := NewContextStore(cache)
	evaluator := NewEvaluator(gen, cache)
	eng := NewEngine(contexts, gen, bank, &fakeResumeSearcher{}, &fakeResumeSource{text: "go developer"}, evaluator)
	eng.pick = func(n int) int { return 0 }
	return eng, cache
}

func TestEngineFullInterviewArc(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		"Tell me about yourself.",
		"What did you build at your last job?",
		"Which database did you use there?",
		"What is an index?", // technical rewrite
		"How do you handle deadlines?",
	}}
	bank := &fakeBank{entries: []models.BankEntry{
		{ID: 1, Question: "Explain database indexes and their trade-offs in detail.", Answer: "Indexes speed up reads."},
	}}
	eng, _ := newTestEngine(gen, bank)
	ctx := context.Background()

	if err := eng.Start(ctx, 1, 7); err != nil {
		t.Fatalf("Start: %v", err)
	}

	wantStages := []Stage{StageIntro, StageResume, StageResume, StageTechnical, StageHR}
	for i, want := range wantStages {
		res, err := eng.NextQuestion(ctx, 1, 7, "general")
		if err != nil {
			t.Fatalf("NextQuestion %d: %v", i+1, err)
		}
		if res.Done {
			t.Fatalf("question %d unexpectedly done: %s", i+1, res.Reason)
		}
		if res.Stage != want {
			t.Fatalf("question %d stage = %s, want %s", i+1, res.Stage, want)
		}
		if res.QuestionID != QuestionID(res.Question) {
			t.Fatalf("question id mismatch for %q", res.Question)
		}
		if want == StageTechnical && res.SampleAnswer != "Indexes speed up reads." {
			t.Fatalf("technical sample answer = %q", res.SampleAnswer)
		}
	}

	res, err := eng.NextQuestion(ctx, 1, 7, "general")
	if err != nil {
		t.Fatalf("NextQuestion after cap: %v", err)
	}
	if !res.Done {
		t.Fatalf("expected done after %d questions", MaxQuestions)
	}
}

func TestEngineTechnicalExcludesAskedQuestions(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"short version"}}
	bank := &fakeBank{entries: []models.BankEntry{
		{ID: 1, Question: "already asked", Answer: "a1"},
		{ID: 2, Question: "fresh question", Answer: "a2"},
	}}
	eng, _ := newTestEngine(gen, bank)
	ctx := context.Background()

	sc := NewSessionContext()
	sc.QuestionCount = 3
	sc.Questions = []string{"q1", "q2", "already asked"}
	sc.SampleAnswers = []string{"", "", ""}
	if err := eng.contexts.Save(ctx, 1, 8, sc); err != nil {
		t.Fatalf("seed context: %v", err)
	}

	res, err := eng.NextQuestion(ctx, 1, 8, "tech")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if res.Done {
		t.Fatalf("unexpected done: %s", res.Reason)
	}
	if res.Question != "short version" || res.SampleAnswer != "a2" {
		t.Fatalf("expected rewritten fresh question, got %q sample=%q", res.Question, res.SampleAnswer)
	}
}

func TestEngineTechnicalExhaustedEndsInterview(t *testing.T) {
	gen := &fakeGenerator{}
	bank := &fakeBank{entries: []models.BankEntry{{ID: 1, Question: "only one", Answer: "a"}}}
	eng, _ := newTestEngine(gen, bank)
	ctx := context.Background()

	sc := NewSessionContext()
	sc.QuestionCount = 3
	sc.Questions = []string{"x", "y", "only one"}
	sc.SampleAnswers = []string{"", "", ""}
	if err := eng.contexts.Save(ctx, 1, 9, sc); err != nil {
		t.Fatalf("seed context: %v", err)
	}

	res, err := eng.NextQuestion(ctx, 1, 9, "tech")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !res.Done {
		t.Fatalf("expected done when bank is exhausted")
	}
}

func TestEngineTechnicalRewriteFallsBackToBankText(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"   "}}
	bank := &fakeBank{entries: []models.BankEntry{{ID: 1, Question: "Explain ACID.", Answer: "a"}}}
	eng, _ := newTestEngine(gen, bank)
	ctx := context.Background()

	sc := NewSessionContext()
	sc.QuestionCount = 3
	sc.Questions = []string{"x", "y", "z"}
	sc.SampleAnswers = []string{"", "", ""}
	if err := eng.contexts.Save(ctx, 1, 10, sc); err != nil {
		t.Fatalf("seed context: %v", err)
	}

	res, err := eng.NextQuestion(ctx, 1, 10, "tech")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if res.Question != "Explain ACID." {
		t.Fatalf("expected verbatim bank question, got %q", res.Question)
	}
}

func TestSubmitAnswerWithoutQuestion(t *testing.T) {
	eng, _ := newTestEngine(&fakeGenerator{}, &fakeBank{})
	_, err := eng.SubmitAnswer(context.Background(), 1, 11, "qid", "hello")
	if !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("expected ErrNoQuestion, got %v", err)
	}
}

func TestSubmitAnswerFlagsScriptedAndCachesEvaluation(t *testing.T) {
	evalJSON := `{"technical_score": 7, "verdict": "Intermediate", "strengths": ["clear"], "weaknesses": [], "recommendations": ["practice"], "summary": "solid answer"}`
	gen := &fakeGenerator{responses: []string{evalJSON}}
	eng, cache := newTestEngine(gen, &fakeBank{})
	ctx := context.Background()

	sample := "a goroutine is a lightweight thread managed by the go runtime"
	sc := NewSessionContext()
	sc.QuestionCount = 1
	sc.Stage = StageIntro
	sc.Questions = []string{"What is a goroutine?"}
	sc.SampleAnswers = []string{sample}
	if err := eng.contexts.Save(ctx, 1, 12, sc); err != nil {
		t.Fatalf("seed context: %v", err)
	}

	qid := QuestionID("What is a goroutine?")
	res, err := eng.SubmitAnswer(ctx, 1, 12, qid, sample)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.FlaggedScript {
		t.Fatalf("verbatim sample answer should be flagged")
	}
	if res.Evaluation.Verdict == nil || *res.Evaluation.Verdict != "Intermediate" {
		t.Fatalf("unexpected evaluation: %+v", res.Evaluation)
	}

	key := fmt.Sprintf("evaluation:%d:%d:%s", 1, 12, qid)
	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatalf("expected cached evaluation at %s", key)
	}

	loaded, err := eng.contexts.Load(ctx, 1, 12)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Answers) != 1 || loaded.Answers[0].QuestionID != qid {
		t.Fatalf("answer not recorded: %+v", loaded.Answers)
	}
}

func TestSubmitAnswerKeepsUnparsableEvaluation(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"the model rambled instead of JSON"}}
	eng, _ := newTestEngine(gen, &fakeBank{})
	ctx := context.Background()

	sc := NewSessionContext()
	sc.QuestionCount = 1
	sc.Questions = []string{"q"}
	sc.SampleAnswers = []string{""}
	if err := eng.contexts.Save(ctx, 1, 13, sc); err != nil {
		t.Fatalf("seed context: %v", err)
	}

	res, err := eng.SubmitAnswer(ctx, 1, 13, QuestionID("q"), "my answer")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Evaluation.Verdict != nil {
		t.Fatalf("fallback evaluation should have null verdict")
	}
	if res.Evaluation.Summary != "the model rambled instead of JSON" {
		t.Fatalf("fallback should keep raw text, got %q", res.Evaluation.Summary)
	}
}

func TestContextStoreLoadDefaultsOnMiss(t *testing.T) {
	store := NewContextStore(newFakeCache())
	sc, err := store.Load(context.Background(), 5, 5)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.QuestionCount != 0 || sc.Stage != StageIntro || len(sc.Questions) != 0 {
		t.Fatalf("unexpected default context: %+v", sc)
	}
}

func TestEngineGenerationPoolExhaustedEndsInterview(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: 429 quota", llm.ErrExhausted)}
	eng, _ := newTestEngine(gen, &fakeBank{})

	ctx := context.Background()
	if err := eng.Start(ctx, 1, 9); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := eng.NextQuestion(ctx, 1, 9, "general")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !res.Done {
		t.Fatalf("expected interview to end when no credential is usable")
	}

	// A non-pool generation failure still surfaces as an error.
	gen.err = errors.New("connection reset")
	if _, err := eng.NextQuestion(ctx, 1, 9, "general"); err == nil {
		t.Fatalf("expected error for transport failure")
	}
}
