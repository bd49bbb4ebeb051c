package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

func replyWith(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url, APIKey: "secret", Model: "test"}, nil)
}

func TestGenerateQuizDecodesPayload(t *testing.T) {
	srv := replyWith(t, "```json\n"+`{"title":"Fractions","questions":[`+
		`{"text":"1/2 + 1/2?","difficulty":"easy","answers":[{"text":"1","correct":true},{"text":"2","correct":false}]},`+
		`{"text":"1/3 of 9?","answers":[{"text":"3","correct":true},{"text":"6","correct":false}]}]}`+"\n```")
	defer srv.Close()

	quiz, err := newTestClient(srv.URL).GenerateQuiz(context.Background(), app.QuizRequest{Subject: "math", GradeLevel: 4, Count: 2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if quiz.Title != "Fractions" || len(quiz.Questions) != 2 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if quiz.Questions[0].Difficulty != domain.DifficultyEasy || quiz.Questions[0].Points != 1 {
		t.Fatalf("expected easy question worth 1, got %+v", quiz.Questions[0])
	}
	if quiz.Questions[1].Difficulty != domain.DifficultyMedium || quiz.Questions[1].Points != 2 {
		t.Fatalf("expected default medium question worth 2, got %+v", quiz.Questions[1])
	}
}

func TestGenerateQuizRejectsUnknownFields(t *testing.T) {
	srv := replyWith(t, `{"title":"x","extra":1,"questions":[{"text":"q","answers":[{"text":"a","correct":true},{"text":"b","correct":false}]}]}`)
	defer srv.Close()

	if _, err := newTestClient(srv.URL).GenerateQuiz(context.Background(), app.QuizRequest{Subject: "math"}); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestGenerateQuizRequiresExactlyOneCorrectAnswer(t *testing.T) {
	srv := replyWith(t, `{"title":"x","questions":[{"text":"q","answers":[{"text":"a","correct":true},{"text":"b","correct":true}]}]}`)
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateQuiz(context.Background(), app.QuizRequest{Subject: "math"})
	if err == nil || !strings.Contains(err.Error(), "onecorrect") {
		t.Fatalf("expected onecorrect validation error, got %v", err)
	}
}

func TestGenerateSuggestions(t *testing.T) {
	srv := replyWith(t, `{"suggestions":["  Practice fractions ","Review decimals"]}`)
	defer srv.Close()

	got, err := newTestClient(srv.URL).GenerateSuggestions(context.Background(), domain.Quiz{Subject: "math"}, domain.Submission{})
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(got) != 2 || got[0] != "Practice fractions" {
		t.Fatalf("unexpected suggestions %q", got)
	}
}

func TestChatReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateHint(context.Background(), domain.Question{Text: "q"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestChatRejectsOversizedResponse(t *testing.T) {
	srv := replyWith(t, `{"hint":"`+strings.Repeat("x", maxResponseBytes)+`"}`)
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateHint(context.Background(), domain.Question{Text: "q"})
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestStripFence(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"  ```\n{\"a\":1}```  ":    `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFence(in); got != want {
			t.Fatalf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}
