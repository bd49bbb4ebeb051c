package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/generator"
	"assessment-service/internal/infra/memory"
)

type testEnv struct {
	store  *memory.Store
	quiz   domain.Quiz
	user   domain.User
	hub    *app.LeaderboardHub
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	user := store.AddUser(domain.User{Username: "alice"})
	quiz := store.AddQuiz(sampleQuiz())

	gen := generator.WithFallback(nil, app.DefaultDifficultyConfig(), nil)
	ranker := app.NewLeaderboard(store)
	hub := app.NewLeaderboardHub(ranker)
	grading := app.NewGradingService(store, gen, app.WithNotifiers(hub))
	estimator := app.NewPerformanceEstimator(store, app.DefaultPerformanceConfig())
	adapter := app.NewDifficultyAdapter(estimator, app.DefaultDifficultyConfig())
	quizzes := app.NewQuizService(store, gen, estimator, adapter, nil)

	api := NewAPI(grading, quizzes, ranker, APIConfig{DefaultLeaderboardLimit: 10, RequestTimeout: 5 * time.Second}, nil)
	server := httptest.NewServer(NewRouter(api, NewWSHandler(grading, hub, nil)))
	t.Cleanup(server.Close)
	return &testEnv{store: store, quiz: quiz, user: user, hub: hub, server: server}
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) correctSubmission() map[string]interface{} {
	q := e.quiz.Questions[0]
	correct, _ := q.CorrectAnswer()
	return map[string]interface{}{
		"answers": []map[string]int64{{"questionId": q.ID, "answerId": correct.ID}},
	}
}

func TestSubmitGradesAndUpdatesLeaderboard(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/quizzes/"+strconv.FormatInt(env.quiz.ID, 10)+"/submissions", env.user.ID, env.correctSubmission())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result domain.GradingResult
	decodeBody(t, resp, &result)
	if result.Score != 2 || result.TotalPoints != 2 || result.Percentage != 100 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0] != generator.FallbackSuggestion {
		t.Fatalf("expected fallback suggestion, got %q", result.Suggestions)
	}

	resp = env.do(t, http.MethodGet, "/leaderboard?subject=math", 0, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var lb leaderboardResponse
	decodeBody(t, resp, &lb)
	if len(lb.Entries) != 1 || lb.Entries[0].Username != "alice" || lb.Entries[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
}

func TestSubmitUnknownQuizIs404(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/quizzes/9999/submissions", env.user.ID, map[string]interface{}{"answers": []interface{}{}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if env.store.SubmissionCount() != 0 {
		t.Fatalf("expected no submission written")
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	path := "/quizzes/" + strconv.FormatInt(env.quiz.ID, 10) + "/submissions"

	if resp := env.do(t, http.MethodPost, path, 0, env.correctSubmission()); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without user id, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, path, env.user.ID, map[string]interface{}{"answers": []interface{}{}, "bogus": true}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestGetQuizHidesCorrectness(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/quizzes/"+strconv.FormatInt(env.quiz.ID, 10), 0, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.Contains(strings.ToLower(raw.String()), "correct") {
		t.Fatalf("client view leaks correctness: %s", raw.String())
	}
}

func TestCreateQuizFallsBackWhenGeneratorUnavailable(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]interface{}{"subject": "science", "gradeLevel": 5, "count": 3}
	resp := env.do(t, http.MethodPost, "/quizzes", env.user.ID, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var view domain.QuizView
	decodeBody(t, resp, &view)
	if view.ID == 0 || len(view.Questions) != 3 || view.Subject != "science" {
		t.Fatalf("unexpected quiz view %+v", view)
	}

	if resp := env.do(t, http.MethodPost, "/quizzes", env.user.ID, map[string]interface{}{"subject": "science", "gradeLevel": 13, "count": 3}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for grade 13, got %d", resp.StatusCode)
	}
}

func TestHintAndHistory(t *testing.T) {
	env := newTestEnv(t)
	quizPath := "/quizzes/" + strconv.FormatInt(env.quiz.ID, 10)

	resp := env.do(t, http.MethodGet, quizPath+"/questions/"+strconv.FormatInt(env.quiz.Questions[0].ID, 10)+"/hint", 0, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var hint hintResponse
	decodeBody(t, resp, &hint)
	if hint.Hint != "Count on your fingers." {
		t.Fatalf("expected stored hint, got %q", hint.Hint)
	}
	if resp := env.do(t, http.MethodGet, quizPath+"/questions/9999/hint", 0, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown question, got %d", resp.StatusCode)
	}

	env.do(t, http.MethodPost, quizPath+"/submissions", env.user.ID, env.correctSubmission())
	resp = env.do(t, http.MethodGet, "/users/me/submissions?limit=5", env.user.ID, nil)
	var records []domain.SubmissionRecord
	decodeBody(t, resp, &records)
	if len(records) != 1 || records[0].QuizID != env.quiz.ID {
		t.Fatalf("unexpected history %+v", records)
	}
	if resp := env.do(t, http.MethodGet, "/users/me/submissions?limit=-1", env.user.ID, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", resp.StatusCode)
	}
}

func TestLeaderboardRejectsNegativeLimit(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.do(t, http.MethodGet, "/leaderboard?limit=-2", 0, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title:      "Arithmetic",
		Subject:    "math",
		GradeLevel: 3,
		Questions: []domain.Question{
			{
				Text:       "What is 2 + 2?",
				Hint:       "Count on your fingers.",
				Difficulty: domain.DifficultyMedium,
				Points:     2,
				Answers: []domain.Answer{
					{Text: "3", Correct: false},
					{Text: "4", Correct: true},
					{Text: "5", Correct: false},
				},
			},
		},
	}
}
