package models

import "time"

// User is a registered candidate. ResumeText holds the extracted text of
// the most recently uploaded resume.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ResumeText   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
