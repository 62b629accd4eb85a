package interview

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"prepstage/internal/llm"
	"prepstage/internal/models"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	scriptedThreshold = 0.85
	scriptCheckTTL    = time.Hour
)

// Evaluator scores answers and detects recitation of the sample answer.
type Evaluator struct {
	generator Generator
	cache     Cache
}

// NewEvaluator wires the evaluator.
func NewEvaluator(generator Generator, cache Cache) *Evaluator {
	return &Evaluator{generator: generator, cache: cache}
}

// Evaluate asks the model to score one answer. Responses that fail to
// parse are preserved as a fallback record carrying the raw text.
func (e *Evaluator) Evaluate(ctx context.Context, question, candidateAnswer, sampleAnswer string, stage Stage, resumeText string) (models.Evaluation, error) {
	prompt := llm.EvaluationPrompt(question, candidateAnswer, sampleAnswer, string(stage), resumeText)
	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("evaluate answer: %w", err)
	}

	cleaned := cleanJSONBlock(raw)
	var eval models.Evaluation
	if err := json.Unmarshal([]byte(cleaned), &eval); err != nil {
		fallback := models.DefaultEvaluation()
		fallback.Summary = strings.TrimSpace(raw)
		return fallback, nil
	}
	if eval.Strengths == nil {
		eval.Strengths = []string{}
	}
	if eval.Weaknesses == nil {
		eval.Weaknesses = []string{}
	}
	if eval.Recommendations == nil {
		eval.Recommendations = []string{}
	}
	return eval, nil
}

// IsScriptedAnswer reports whether the candidate answer is close enough to
// the sample answer to look memorized. Results are cached by content hash.
func (e *Evaluator) IsScriptedAnswer(ctx context.Context, candidateAnswer, sampleAnswer string) (bool, error) {
	if strings.TrimSpace(sampleAnswer) == "" {
		return false, nil
	}

	sum := md5.Sum([]byte(candidateAnswer + sampleAnswer))
	key := "script_check:" + hex.EncodeToString(sum[:])
	if cached, err := e.cache.Get(ctx, key); err == nil {
		return cached == "true", nil
	}

	ratio := similarityRatio(strings.ToLower(candidateAnswer), strings.ToLower(sampleAnswer))
	scripted := ratio >= scriptedThreshold

	verdict := "false"
	if scripted {
		verdict = "true"
	}
	if err := e.cache.Set(ctx, key, verdict, scriptCheckTTL); err != nil {
		return scripted, fmt.Errorf("cache script check: %w", err)
	}
	return scripted, nil
}

// similarityRatio computes 2*M / T over a character diff, where M is the
// number of matched characters and T the combined length.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	var common int
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			common += len(d.Text)
		}
	}
	return 2 * float64(common) / float64(len(a)+len(b))
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
