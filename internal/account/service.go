package account

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"prepstage/internal/models"
)

const resumeCacheTTL = 24 * time.Hour

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Cache is the redis surface the account service uses for resume text.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Service handles user lifecycle, resume storage, and interview audit rows.
type Service struct {
	db    *sql.DB
	cache Cache
}

// NewService builds the account service. The cache may be nil; resume
// reads then always hit the database.
func NewService(db *sql.DB, cache Cache) *Service {
	return &Service{db: db, cache: cache}
}

// RegisterUser creates a user with the supplied credentials.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if username == "" || email == "" || password == "" {
		return nil, errors.New("username, email, and password are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, errors.New("invalid email address")
	}

	hash := hashPassword(password)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, hash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Username: username, Email: email, PasswordHash: hash, CreatedAt: now}, nil
}

// Login validates credentials and returns the user profile.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid credentials")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if user.PasswordHash != hashPassword(password) {
		return nil, errors.New("invalid credentials")
	}
	return &user, nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, errors.New("invalid user id")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, COALESCE(resume_text, ''), created_at FROM users WHERE id = ?`, id,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.ResumeText, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("user not found")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// SetResumeText stores the parsed resume and refreshes its cache entry.
func (s *Service) SetResumeText(ctx context.Context, userID int64, text string) error {
	if userID <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET resume_text = ? WHERE id = ?`, text, userID)
	if err != nil {
		return fmt.Errorf("store resume: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return errors.New("user not found")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, resumeKey(userID), text, resumeCacheTTL); err != nil {
			return fmt.Errorf("cache resume: %w", err)
		}
	}
	return nil
}

// ResumeText returns the user's resume, reading through the cache. A user
// without a resume yields an empty string.
func (s *Service) ResumeText(ctx context.Context, userID int64) (string, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, resumeKey(userID)); err == nil {
			return cached, nil
		}
	}

	var text sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT resume_text FROM users WHERE id = ?`, userID).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.New("user not found")
		}
		return "", fmt.Errorf("query resume: %w", err)
	}
	if !text.Valid {
		return "", nil
	}
	if s.cache != nil && text.String != "" {
		_ = s.cache.Set(ctx, resumeKey(userID), text.String, resumeCacheTTL)
	}
	return text.String, nil
}

// CreateInterviewSession opens a new session row for the user.
func (s *Service) CreateInterviewSession(ctx context.Context, userID int64) (*models.InterviewSession, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user id")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interview_sessions (user_id, started_at) VALUES (?, ?)`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create interview session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return &models.InterviewSession{ID: id, UserID: userID, StartedAt: now}, nil
}

// SessionBelongsToUser verifies session ownership.
func (s *Service) SessionBelongsToUser(ctx context.Context, sessionID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM interview_sessions WHERE id = ? AND user_id = ?)`,
		sessionID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("verify session: %w", err)
	}
	return exists, nil
}

// EndInterviewSession stamps the session as finished.
func (s *Service) EndInterviewSession(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE interview_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end interview session: %w", err)
	}
	return nil
}

// RecordAnswer appends a write-once audit row for an answered question.
func (s *Service) RecordAnswer(ctx context.Context, sessionID int64, question, answer string, score []byte, flagged bool) (*models.QuestionRecord, error) {
	if sessionID <= 0 {
		return nil, errors.New("invalid session id")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interview_questions (session_id, question, answer, score, flagged_script, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, question, answer, nullableBytes(score), flagged, now,
	)
	if err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("record id: %w", err)
	}
	return &models.QuestionRecord{
		ID:            id,
		SessionID:     sessionID,
		Question:      question,
		Answer:        answer,
		Score:         score,
		FlaggedScript: flagged,
		CreatedAt:     now,
	}, nil
}

// SessionAnswers lists the audit rows for a session in insertion order.
func (s *Service) SessionAnswers(ctx context.Context, sessionID int64) ([]models.QuestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, COALESCE(answer, ''), score, flagged_script, created_at
		 FROM interview_questions WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var records []models.QuestionRecord
	for rows.Next() {
		var rec models.QuestionRecord
		var score sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Question, &rec.Answer, &score, &rec.FlaggedScript, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if score.Valid {
			rec.Score = []byte(score.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func resumeKey(userID int64) string {
	return fmt.Sprintf("resume:%d", userID)
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func hashPassword(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
