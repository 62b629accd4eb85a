package models

// AnswerEntry is one submitted answer inside the session context.
type AnswerEntry struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	Flagged    bool   `json:"flagged"`
}

// Evaluation is the structured per-answer score produced by the evaluator.
// Score fields are pointers because the model may decline to rate an axis.
type Evaluation struct {
	TechnicalScore      *float64 `json:"technical_score"`
	CompletenessScore   *float64 `json:"completeness_score"`
	CommunicationScore  *float64 `json:"communication_score"`
	DepthOfKnowledge    *float64 `json:"depth_of_knowledge"`
	ProblemSolvingScore *float64 `json:"problem_solving_score"`
	Verdict             *string  `json:"verdict"`
	Strengths           []string `json:"strengths"`
	Weaknesses          []string `json:"weaknesses"`
	Recommendations     []string `json:"recommendations"`
	Summary             string   `json:"summary"`
}

// DefaultEvaluation returns the fully-null placeholder used to pad missing
// evaluation slots.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}
}

// RecommendedActions splits follow-up advice into technical and soft-skill
// buckets.
type RecommendedActions struct {
	Technical  []string `json:"technical"`
	SoftSkills []string `json:"soft_skills"`
}

// StagePerformance is the three-stage narrative of the final report.
type StagePerformance struct {
	IntroductionResumeStage string `json:"introduction_resume_stage"`
	TechnicalStage          string `json:"technical_stage"`
	HRStage                 string `json:"hr_stage"`
}

// FinalSummary is the aggregated verdict for a whole session. Summary is
// normalized to 21-25 words after generation.
type FinalSummary struct {
	TechnicalLevel     *string            `json:"technical_level"`
	KeyStrengths       []string           `json:"key_strengths"`
	KeyWeaknesses      []string           `json:"key_weaknesses"`
	RecommendedActions RecommendedActions `json:"recommended_actions"`
	StagePerformance   StagePerformance   `json:"stage_performance"`
	Summary            string             `json:"summary"`
}

// BankEntry is one record of the static technical question bank.
type BankEntry struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
}
