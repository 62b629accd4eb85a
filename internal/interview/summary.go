package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"prepstage/internal/llm"
	"prepstage/internal/models"
)

const (
	summaryMinWords = 21
	summaryMaxWords = 25
)

// SummaryResult pairs the per-question evaluations with the final report.
type SummaryResult struct {
	Evaluations []models.Evaluation  `json:"evaluations"`
	Summary     *models.FinalSummary `json:"summary"`
}

// Summarize assembles the final interview report: it recovers cached
// per-answer evaluations, pads whatever is missing, asks the model for the
// aggregate report, and clears the session's transient cache.
func (e *Engine) Summarize(ctx context.Context, userID, sessionID int64) (*SummaryResult, error) {
	sc, err := e.contexts.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	questions := capSlice(sc.Questions, MaxQuestions)
	sampleAnswers := capSlice(sc.SampleAnswers, MaxQuestions)
	answers := sc.Answers
	if len(answers) > MaxQuestions {
		answers = answers[:MaxQuestions]
	}
	for len(answers) < len(questions) {
		answers = append(answers, models.AnswerEntry{})
	}
	sc.Questions = questions
	sc.SampleAnswers = sampleAnswers
	sc.Answers = answers

	evaluations, err := e.orderedEvaluations(ctx, userID, sessionID, questions)
	if err != nil {
		return nil, err
	}
	sc.Evaluations = evaluations
	if err := e.contexts.Save(ctx, userID, sessionID, sc); err != nil {
		return nil, err
	}

	summary, err := e.generateSummary(ctx, questions, evaluations)
	if err != nil {
		return nil, err
	}
	summary.Summary = normalizeSummaryBand(summary.Summary)

	sc.FinalSummary = summary
	if err := e.contexts.Save(ctx, userID, sessionID, sc); err != nil {
		return nil, err
	}
	if err := e.contexts.SaveFinalSummary(ctx, userID, sessionID, summary); err != nil {
		return nil, err
	}
	if err := e.contexts.Cleanup(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	return &SummaryResult{Evaluations: evaluations, Summary: summary}, nil
}

// orderedEvaluations re-aligns cached evaluations with the question order
// and pads missing slots with empty records.
func (e *Engine) orderedEvaluations(ctx context.Context, userID, sessionID int64, questions []string) ([]models.Evaluation, error) {
	cached, err := e.contexts.CachedEvaluations(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	evaluations := make([]models.Evaluation, 0, len(questions))
	for _, q := range questions {
		if eval, ok := cached[QuestionID(q)]; ok {
			evaluations = append(evaluations, eval)
		} else {
			evaluations = append(evaluations, models.DefaultEvaluation())
		}
	}
	return evaluations, nil
}

func (e *Engine) generateSummary(ctx context.Context, questions []string, evaluations []models.Evaluation) (*models.FinalSummary, error) {
	raw, err := e.generator.Generate(ctx, llm.SummaryPrompt(questions, evaluations))
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}
	cleaned := cleanJSONBlock(raw)

	summary := &models.FinalSummary{}
	if err := json.Unmarshal([]byte(cleaned), summary); err != nil {
		return &models.FinalSummary{
			KeyStrengths:  []string{},
			KeyWeaknesses: []string{},
			Summary:       cleaned,
		}, nil
	}
	if summary.KeyStrengths == nil {
		summary.KeyStrengths = []string{}
	}
	if summary.KeyWeaknesses == nil {
		summary.KeyWeaknesses = []string{}
	}
	return summary, nil
}

// normalizeSummaryBand forces the overview into the 21-25 word band:
// longer text is truncated, shorter text is padded by repeating its last
// word. Empty text stays empty.
func normalizeSummaryBand(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) > summaryMaxWords {
		return strings.Join(words[:summaryMaxWords], " ")
	}
	if len(words) < summaryMinWords {
		last := words[len(words)-1]
		for len(words) < summaryMinWords {
			words = append(words, last)
		}
	}
	return strings.Join(words, " ")
}

func capSlice(s []string, max int) []string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
