package models

import "time"

// InterviewSession is one bounded 5-question interview run.
type InterviewSession struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// QuestionRecord is the write-once audit row persisted per submitted answer.
type QuestionRecord struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	Score         []byte    `json:"score,omitempty"` // raw evaluation JSON, nullable
	FlaggedScript bool      `json:"flagged_script"`
	CreatedAt     time.Time `json:"created_at"`
}
