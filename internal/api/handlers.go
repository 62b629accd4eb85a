package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"prepstage/internal/account"
	"prepstage/internal/auth"
	"prepstage/internal/document"
	"prepstage/internal/interview"
	"prepstage/internal/speech"
)

const maxResumeSize = 10 << 20 // 10 MB
const maxAudioSize = 25 << 20  // 25 MB

// InterviewEngine is the interview flow surface the handlers call.
type InterviewEngine interface {
	Start(ctx context.Context, userID, sessionID int64) error
	NextQuestion(ctx context.Context, userID, sessionID int64, topic string) (*interview.NextResult, error)
	SubmitAnswer(ctx context.Context, userID, sessionID int64, questionID, transcript string) (*interview.AnswerResult, error)
	Summarize(ctx context.Context, userID, sessionID int64) (*interview.SummaryResult, error)
}

// ResumeIndexer rebuilds a user's resume retrieval index.
type ResumeIndexer interface {
	Build(ctx context.Context, userID int64, resumeText string) error
}

// Handler wires HTTP routes to the interview services.
type Handler struct {
	accounts    *account.Service
	auth        *auth.Service
	engine      InterviewEngine
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	resumes     ResumeIndexer
}

// NewHandler constructs a Handler instance.
func NewHandler(accounts *account.Service, authService *auth.Service, engine InterviewEngine, transcriber speech.Transcriber, synthesizer speech.Synthesizer, resumes ResumeIndexer) *Handler {
	return &Handler{
		accounts:    accounts,
		auth:        authService,
		engine:      engine,
		transcriber: transcriber,
		synthesizer: synthesizer,
		resumes:     resumes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.loginUser)

	authed := api.Group("")
	authed.Use(h.auth.Middleware())
	authed.POST("/auth/logout", h.logoutUser)
	authed.POST("/interview/start", h.startInterview)
	authed.POST("/interview/ask", h.askQuestion)
	authed.POST("/interview/answer", h.submitAnswer)
	authed.POST("/interview/summary", h.getSummary)
	authed.POST("/interview/upload_resume", h.uploadResume)
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// ownedSession verifies the session belongs to the caller.
func (h *Handler) ownedSession(c *gin.Context, userID, sessionID int64) bool {
	if sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return false
	}
	ok, err := h.accounts.SessionBelongsToUser(c.Request.Context(), sessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return false
	}
	return true
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.RegisterUser(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) loginUser(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	token, ok := auth.AuthTokenFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	if err := h.auth.RevokeToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) startInterview(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	session, err := h.accounts.CreateInterviewSession(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.Start(c.Request.Context(), userID, session.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

type askRequest struct {
	SessionID int64  `json:"session_id"`
	Topic     string `json:"topic"`
}

func (h *Handler) askQuestion(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and topic are required"})
		return
	}
	if !h.ownedSession(c, userID, req.SessionID) {
		return
	}

	res, err := h.engine.NextQuestion(c.Request.Context(), userID, req.SessionID, req.Topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res.Done {
		c.JSON(http.StatusOK, gin.H{"done": true, "message": res.Reason})
		return
	}

	audio, err := h.synthesizer.Synthesize(c.Request.Context(), res.QuestionID, res.Question)
	if err != nil {
		log.Printf("question audio failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate audio"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id":   res.QuestionID,
		"question":      res.Question,
		"audio":         hex.EncodeToString(audio),
		"sample_answer": res.SampleAnswer,
		"stage":         res.Stage,
	})
}

func (h *Handler) submitAnswer(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	sessionID, err := parseFormInt64(c, "session_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id, question_id, and audio are required"})
		return
	}
	questionID := c.PostForm("question_id")
	file, err := c.FormFile("audio")
	if questionID == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id, question_id, and audio are required"})
		return
	}
	if file.Size > maxAudioSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file too large"})
		return
	}
	if !h.ownedSession(c, userID, sessionID) {
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read audio"})
		return
	}
	audio, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read audio"})
		return
	}

	transcript, err := h.transcriber.Transcribe(c.Request.Context(), audio)
	if err != nil {
		log.Printf("transcription failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transcribe audio"})
		return
	}
	if transcript == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transcribe audio: empty transcript"})
		return
	}

	res, err := h.engine.SubmitAnswer(c.Request.Context(), userID, sessionID, questionID, transcript)
	if err != nil {
		if errors.Is(err, interview.ErrNoQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	score, err := json.Marshal(res.Evaluation)
	if err != nil {
		score = nil
	}
	if _, err := h.accounts.RecordAnswer(c.Request.Context(), sessionID, res.Question, res.Transcript, score, res.FlaggedScript); err != nil {
		log.Printf("record answer failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"transcript":     res.Transcript,
		"flagged_script": res.FlaggedScript,
	})
}

type summaryRequest struct {
	SessionID int64 `json:"session_id"`
}

func (h *Handler) getSummary(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !h.ownedSession(c, userID, req.SessionID) {
		return
	}

	res, err := h.engine.Summarize(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.accounts.EndInterviewSession(c.Request.Context(), req.SessionID); err != nil {
		log.Printf("end interview session: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"evaluations": res.Evaluations,
		"summary":     res.Summary,
	})
}

func (h *Handler) uploadResume(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("resume")
	if err != nil || !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a valid PDF resume"})
		return
	}
	if file.Size > maxResumeSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resume file too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read resume"})
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read resume"})
		return
	}

	text, err := document.ExtractText(data)
	if err != nil {
		log.Printf("resume parsing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse PDF resume"})
		return
	}

	if err := h.accounts.SetResumeText(c.Request.Context(), userID, text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.resumes.Build(c.Request.Context(), userID, text); err != nil {
		log.Printf("resume indexing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to index resume"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Resume uploaded, parsed, and indexed successfully"})
}

func parseFormInt64(c *gin.Context, field string) (int64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return 0, errors.New(field + " is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid " + field)
	}
	return v, nil
}
