package interview

// Stage identifies the phase of the five-question interview arc.
type Stage string

const (
	StageIntro     Stage = "intro"
	StageResume    Stage = "resume"
	StageTechnical Stage = "technical"
	StageHR        Stage = "hr"
	StageClosing   Stage = "closing"
)

// MaxQuestions caps the interview at five questions.
const MaxQuestions = 5

// StageFor maps a 1-based question number to its stage. Numbers past the
// cap map to the terminal closing stage.
func StageFor(questionNumber int) Stage {
	switch {
	case questionNumber <= 1:
		return StageIntro
	case questionNumber <= 3:
		return StageResume
	case questionNumber == 4:
		return StageTechnical
	case questionNumber == 5:
		return StageHR
	default:
		return StageClosing
	}
}

// Terminal reports whether the stage ends the interview.
func (s Stage) Terminal() bool {
	return s == StageClosing
}
