package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// API serves the JSON endpoints around grading, quizzes and the leaderboard.
type API struct {
	grading      *app.GradingService
	quizzes      *app.QuizService
	ranker       app.Ranker
	validate     *validator.Validate
	log          *zap.Logger
	defaultLimit int
	timeout      time.Duration
}

type APIConfig struct {
	DefaultLeaderboardLimit int
	RequestTimeout          time.Duration
}

func NewAPI(grading *app.GradingService, quizzes *app.QuizService, ranker app.Ranker, cfg APIConfig, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		grading:      grading,
		quizzes:      quizzes,
		ranker:       ranker,
		validate:     validator.New(),
		log:          log,
		defaultLimit: cfg.DefaultLeaderboardLimit,
		timeout:      cfg.RequestTimeout,
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.Handle("GET /leaderboard", a.wrap(a.leaderboard))
	mux.Handle("POST /quizzes", a.wrap(a.createQuiz))
	mux.Handle("GET /quizzes/{id}", a.wrap(a.getQuiz))
	mux.Handle("POST /quizzes/{id}/submissions", a.wrap(a.submit))
	mux.Handle("POST /quizzes/{id}/retry", a.wrap(a.retry))
	mux.Handle("GET /quizzes/{id}/questions/{questionId}/hint", a.wrap(a.hint))
	mux.Handle("GET /users/me/submissions", a.wrap(a.history))
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// wrap applies the request timeout, maps returned errors to status codes and
// logs every request.
func (a *API) wrap(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if a.timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if err := h(rec, r); err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				a.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
			}
			writeJSON(rec, status, errorBody{Error: publicMessage(err, status)})
		}
		a.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type leaderboardResponse struct {
	Filter  domain.LeaderboardFilter  `json:"filter"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := domain.LeaderboardFilter{Subject: q.Get("subject")}
	gradeLevel, err := optionalInt(q.Get("gradeLevel"), 0)
	if err != nil || gradeLevel < 0 {
		return domain.Validation("gradeLevel must be a non-negative integer")
	}
	filter.GradeLevel = gradeLevel
	limit, err := optionalInt(q.Get("limit"), a.defaultLimit)
	if err != nil || limit < 0 {
		return domain.Validation("limit must be a non-negative integer")
	}

	entries, err := a.ranker.Rank(r.Context(), filter, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Filter: filter, Entries: entries})
	return nil
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	var req app.CreateQuizRequest
	if err := a.decode(r, &req); err != nil {
		return err
	}
	req.UserID = userID

	view, err := a.quizzes.Create(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, view)
	return nil
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) error {
	quizID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	view, err := a.quizzes.Get(r.Context(), quizID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

type submitRequest struct {
	Answers []domain.AnswerSubmission `json:"answers" validate:"max=200,dive"`
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	quizID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req submitRequest
	if err := a.decode(r, &req); err != nil {
		return err
	}

	result, err := a.grading.Grade(r.Context(), quizID, userID, req.Answers)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, result)
	return nil
}

func (a *API) retry(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	quizID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	view, err := a.quizzes.Retry(r.Context(), quizID, userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

type hintResponse struct {
	QuestionID int64  `json:"questionId"`
	Hint       string `json:"hint"`
}

func (a *API) hint(w http.ResponseWriter, r *http.Request) error {
	quizID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	questionID, err := pathID(r, "questionId")
	if err != nil {
		return err
	}
	hint, err := a.quizzes.Hint(r.Context(), quizID, questionID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, hintResponse{QuestionID: questionID, Hint: hint})
	return nil
}

func (a *API) history(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	q := r.URL.Query()
	limit, err := optionalInt(q.Get("limit"), 20)
	if err != nil {
		return domain.Validation("limit must be an integer")
	}
	offset, err := optionalInt(q.Get("offset"), 0)
	if err != nil {
		return domain.Validation("offset must be an integer")
	}

	records, err := a.quizzes.History(r.Context(), userID, limit, offset)
	if err != nil {
		return err
	}
	if records == nil {
		records = []domain.SubmissionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
	return nil
}

// decode strictly decodes the request body into v and validates it.
func (a *API) decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validation("invalid request body: %v", err)
	}
	if err := a.validate.Struct(v); err != nil {
		return domain.Validation("%v", err)
	}
	return nil
}

// userIDFrom reads the pre-authenticated caller id.
func userIDFrom(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if raw == "" {
		raw = r.URL.Query().Get("userId")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("missing or invalid user id")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("invalid %s", name)
	}
	return id, nil
}

func optionalInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal causes from clients.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return domain.ErrInternal.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
