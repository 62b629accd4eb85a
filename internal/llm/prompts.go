package llm

import (
	"encoding/json"
	"fmt"
)

const questionPromptTemplate = `Act as a skilled interviewer for service-based companies (TCS, Infosys, Wipro, Accenture) in a 5-stage mock interview:
1. Intro
2-3. Resume-based (follow-ups on last answer or resume)
4. Technical (from the question bank, 1-2 lines, no follow-up)
5. HR scenario

Rules:
- One question at a time.
- For Q1-Q3: Use detail from last answer or resume; if vague, ask for clarification or example.
- For Q4: Rephrase the bank question to max 2 lines, one concept only.
- For Q5: Ask about teamwork, deadlines, client handling, adaptability.
- Avoid repeats, placeholders, or "Stage X/5" text.
- Keep tone natural, as in a real conversation.

Context:
Resume: %s
Prev Qs: %s
Prev As: %s
Base Q: %s
Sample Ans: %s
Stage: %d/5

Return only the question text.`

const rewritePromptTemplate = `Rewrite the following technical interview question for a service-based company
so it is at most 1-2 lines, asks only ONE thing, and is clear.

Original Question: %s`

const evaluationPromptTemplate = `Evaluate 1 interview answer.

Q: %s
A: %s
Ref: %s
Stage: %s
Resume: %s

Rate: technical, completeness, communication, depth, problem-solving (0-10 or null).
Verdict: Needs to learn from scratch | Beginner | Intermediate | Good understanding | Advanced.
List strengths, weaknesses, 1-3 recommendations, and 1-sentence summary.

JSON only:
{
  "technical_score": number or null,
  "completeness_score": number or null,
  "communication_score": number or null,
  "depth_of_knowledge": number or null,
  "problem_solving_score": number or null,
  "verdict": string or null,
  "strengths": [string],
  "weaknesses": [string],
  "recommendations": [string],
  "summary": string
}`

const summaryPromptTemplate = `Prepare final interview report from:
Questions: %s
Evaluations: %s

JSON only:
{
  "technical_level": "Beginner"|"Intermediate"|"Good understanding"|"Advanced",
  "key_strengths": [string],
  "key_weaknesses": [string],
  "recommended_actions": {"technical":[string], "soft_skills":[string]},
  "stage_performance": {
    "introduction_resume_stage": string,
    "technical_stage": string,
    "hr_stage": string
  },
  "summary": "21-25 words overview"
}`

// QuestionPrompt assembles the question-generation prompt for the given
// interview state.
func QuestionPrompt(resumeText string, previousQuestions, previousAnswers []string, baseQuestion, sampleAnswer string, stage int) string {
	return fmt.Sprintf(questionPromptTemplate,
		resumeText,
		mustJSON(previousQuestions),
		mustJSON(previousAnswers),
		baseQuestion,
		sampleAnswer,
		stage,
	)
}

// RewritePrompt asks the model to shorten a bank question to at most two lines.
func RewritePrompt(question string) string {
	return fmt.Sprintf(rewritePromptTemplate, question)
}

// EvaluationPrompt assembles the single-answer evaluation prompt.
func EvaluationPrompt(question, candidateAnswer, sampleAnswer, stage, resumeText string) string {
	return fmt.Sprintf(evaluationPromptTemplate, question, candidateAnswer, sampleAnswer, stage, resumeText)
}

// SummaryPrompt assembles the final-report prompt from the asked questions
// and their evaluations.
func SummaryPrompt(questions []string, evaluations interface{}) string {
	return fmt.Sprintf(summaryPromptTemplate, mustJSON(questions), mustJSON(evaluations))
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}
