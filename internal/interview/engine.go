package interview

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"prepstage/internal/llm"
	"prepstage/internal/models"
)

const (
	technicalSearchQuery = "technical"
	technicalSearchK     = 10
	resumeContextK       = 3
)

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// BankSearcher finds similar questions in the shared bank.
type BankSearcher interface {
	Search(ctx context.Context, query string, k int) ([]models.BankEntry, error)
}

// ResumeSearcher finds relevant chunks in a user's resume index.
type ResumeSearcher interface {
	Search(ctx context.Context, userID int64, query string, k int) ([]string, error)
}

// ResumeSource fetches the user's stored resume text.
type ResumeSource interface {
	ResumeText(ctx context.Context, userID int64) (string, error)
}

// ErrNoQuestion is returned when an answer arrives before any question was
// asked.
var ErrNoQuestion = errors.New("no question pending for this session")

// NextResult is the outcome of asking for the next question. When Done is
// set the interview is over and the remaining fields are empty.
type NextResult struct {
	Done         bool   `json:"done"`
	Reason       string `json:"message,omitempty"`
	QuestionID   string `json:"question_id,omitempty"`
	Question     string `json:"question,omitempty"`
	SampleAnswer string `json:"sample_answer,omitempty"`
	Stage        Stage  `json:"stage,omitempty"`
}

// AnswerResult is the outcome of submitting an answer.
type AnswerResult struct {
	Question      string
	Transcript    string
	FlaggedScript bool
	Evaluation    models.Evaluation
	Stage         Stage
}

// Engine drives the five-question interview flow. Sessions are single
// writer: callers must not run two operations on the same session
// concurrently.
type Engine struct {
	contexts  *ContextStore
	generator Generator
	bank      BankSearcher
	resumes   ResumeSearcher
	source    ResumeSource
	evaluator *Evaluator

	// pick selects an index in [0, n); replaced in tests.
	pick func(n int) int
}

// NewEngine wires the interview dependencies together.
func NewEngine(contexts *ContextStore, generator Generator, bank BankSearcher, resumes ResumeSearcher, source ResumeSource, evaluator *Evaluator) *Engine {
	return &Engine{
		contexts:  contexts,
		generator: generator,
		bank:      bank,
		resumes:   resumes,
		source:    source,
		evaluator: evaluator,
		pick:      rand.Intn,
	}
}

// QuestionID derives the stable identifier for a question text.
func QuestionID(question string) string {
	sum := md5.Sum([]byte(question))
	return hex.EncodeToString(sum[:])
}

// Start resets the session context for a new interview.
func (e *Engine) Start(ctx context.Context, userID, sessionID int64) error {
	return e.contexts.Save(ctx, userID, sessionID, NewSessionContext())
}

// NextQuestion advances the interview by one question. The updated context
// is persisted before the result is returned.
func (e *Engine) NextQuestion(ctx context.Context, userID, sessionID int64, topic string) (*NextResult, error) {
	sc, err := e.contexts.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sc.QuestionCount >= MaxQuestions {
		return &NextResult{Done: true, Reason: "Interview completed"}, nil
	}

	number := sc.QuestionCount + 1
	stage := StageFor(number)

	var question, sampleAnswer string
	if stage == StageTechnical {
		question, sampleAnswer, err = e.pickTechnical(ctx, sc)
		if err != nil {
			return nil, err
		}
		if question == "" {
			return &NextResult{Done: true, Reason: "No more questions available"}, nil
		}
	} else {
		question, err = e.generateConversational(ctx, userID, sc, number)
		if errors.Is(err, llm.ErrExhausted) {
			// Every credential is cooling down; end the interview instead
			// of failing the request.
			log.Printf("generation pool exhausted for session %d:%d: %v", userID, sessionID, err)
			return &NextResult{Done: true, Reason: "No more questions available"}, nil
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(question) == "" {
			return &NextResult{Done: true, Reason: "No more questions available"}, nil
		}
	}

	sc.Stage = stage
	sc.QuestionCount = number
	sc.Topics = append(sc.Topics, topic)
	sc.Questions = append(sc.Questions, question)
	sc.SampleAnswers = append(sc.SampleAnswers, sampleAnswer)
	if err := e.contexts.Save(ctx, userID, sessionID, sc); err != nil {
		return nil, err
	}

	return &NextResult{
		QuestionID:   QuestionID(question),
		Question:     question,
		SampleAnswer: sampleAnswer,
		Stage:        stage,
	}, nil
}

// pickTechnical draws an unasked bank question and shortens it. The bank
// text is used verbatim when the rewrite fails.
func (e *Engine) pickTechnical(ctx context.Context, sc *SessionContext) (string, string, error) {
	results, err := e.bank.Search(ctx, technicalSearchQuery, technicalSearchK)
	if err != nil {
		return "", "", fmt.Errorf("search question bank: %w", err)
	}
	asked := make(map[string]struct{}, len(sc.Questions))
	for _, q := range sc.Questions {
		asked[q] = struct{}{}
	}
	available := results[:0:0]
	for _, entry := range results {
		if _, dup := asked[entry.Question]; !dup {
			available = append(available, entry)
		}
	}
	if len(available) == 0 {
		return "", "", nil
	}

	selected := available[e.pick(len(available))]
	question := strings.TrimSpace(selected.Question)
	rewritten, err := e.generator.Generate(ctx, llm.RewritePrompt(question))
	if err != nil {
		log.Printf("technical rewrite failed, using bank text: %v", err)
	} else if trimmed := strings.TrimSpace(rewritten); trimmed != "" {
		question = trimmed
	}
	return question, strings.TrimSpace(selected.Answer), nil
}

// generateConversational builds the intro/resume/hr question from the
// conversation so far.
func (e *Engine) generateConversational(ctx context.Context, userID int64, sc *SessionContext, number int) (string, error) {
	resumeText, err := e.source.ResumeText(ctx, userID)
	if err != nil {
		log.Printf("resume text unavailable for user %d: %v", userID, err)
		resumeText = ""
	}

	// Resume-stage questions also see the most relevant resume chunks for
	// the candidate's last answer.
	if StageFor(number) == StageResume && len(sc.Answers) > 0 {
		last := sc.Answers[len(sc.Answers)-1].Answer
		chunks, err := e.resumes.Search(ctx, userID, last, resumeContextK)
		if err != nil {
			log.Printf("resume index search failed for user %d: %v", userID, err)
		} else if len(chunks) > 0 {
			resumeText = resumeText + "\n\nRelevant sections:\n" + strings.Join(chunks, "\n")
		}
	}

	prevAnswers := make([]string, 0, len(sc.Answers))
	for _, a := range sc.Answers {
		prevAnswers = append(prevAnswers, a.Answer)
	}
	var baseQuestion, sampleAnswer string
	if len(sc.Questions) > 0 {
		baseQuestion = sc.Questions[len(sc.Questions)-1]
	}
	if len(sc.SampleAnswers) > 0 {
		sampleAnswer = sc.SampleAnswers[len(sc.SampleAnswers)-1]
	}

	prompt := llm.QuestionPrompt(resumeText, sc.Questions, prevAnswers, baseQuestion, sampleAnswer, number)
	question, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate question: %w", err)
	}
	return strings.TrimSpace(question), nil
}

// SubmitAnswer records the transcript against the pending question,
// evaluates it, and flags answers recited from the sample.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, sessionID int64, questionID, transcript string) (*AnswerResult, error) {
	sc, err := e.contexts.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sc.Questions) == 0 {
		return nil, ErrNoQuestion
	}

	question := sc.Questions[len(sc.Questions)-1]
	var sampleAnswer string
	if len(sc.SampleAnswers) > 0 {
		sampleAnswer = sc.SampleAnswers[len(sc.SampleAnswers)-1]
	}
	stage := sc.Stage
	if stage == "" {
		stage = StageIntro
	}

	flagged, err := e.evaluator.IsScriptedAnswer(ctx, transcript, sampleAnswer)
	if err != nil {
		log.Printf("script check failed: %v", err)
		flagged = false
	}

	resumeText, err := e.source.ResumeText(ctx, userID)
	if err != nil {
		resumeText = ""
	}
	eval, err := e.evaluator.Evaluate(ctx, question, transcript, sampleAnswer, stage, resumeText)
	if err != nil {
		log.Printf("answer evaluation failed: %v", err)
		eval = models.DefaultEvaluation()
	} else {
		if err := e.contexts.CacheEvaluation(ctx, userID, sessionID, questionID, eval); err != nil {
			log.Printf("cache evaluation: %v", err)
		}
	}
	sc.Evaluations = append(sc.Evaluations, eval)

	sc.Answers = append(sc.Answers, models.AnswerEntry{
		QuestionID: questionID,
		Answer:     transcript,
		Flagged:    flagged,
	})
	if err := e.contexts.Save(ctx, userID, sessionID, sc); err != nil {
		return nil, err
	}

	return &AnswerResult{
		Question:      question,
		Transcript:    transcript,
		FlaggedScript: flagged,
		Evaluation:    eval,
		Stage:         stage,
	}, nil
}
