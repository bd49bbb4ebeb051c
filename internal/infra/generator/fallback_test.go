package generator

import (
	"context"
	"errors"
	"testing"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

type stubGenerator struct {
	quiz        domain.Quiz
	hint        string
	suggestions []string
	err         error
}

func (s stubGenerator) GenerateQuiz(context.Context, app.QuizRequest) (domain.Quiz, error) {
	return s.quiz, s.err
}

func (s stubGenerator) GenerateHint(context.Context, domain.Question) (string, error) {
	return s.hint, s.err
}

func (s stubGenerator) GenerateSuggestions(context.Context, domain.Quiz, domain.Submission) ([]string, error) {
	return s.suggestions, s.err
}

func TestFallbackPassesThroughSuccess(t *testing.T) {
	f := WithFallback(stubGenerator{hint: "think", suggestions: []string{"a"}}, app.DefaultDifficultyConfig(), nil)

	hint, err := f.GenerateHint(context.Background(), domain.Question{})
	if err != nil || hint != "think" {
		t.Fatalf("expected pass-through hint, got %q, %v", hint, err)
	}
	got, err := f.GenerateSuggestions(context.Background(), domain.Quiz{}, domain.Submission{})
	if err != nil || len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected pass-through suggestions, got %q, %v", got, err)
	}
}

func TestFallbackReplacesFailures(t *testing.T) {
	f := WithFallback(stubGenerator{err: errors.New("boom")}, app.DefaultDifficultyConfig(), nil)

	hint, err := f.GenerateHint(context.Background(), domain.Question{})
	if err != nil || hint != FallbackHint {
		t.Fatalf("expected fallback hint, got %q, %v", hint, err)
	}
	got, err := f.GenerateSuggestions(context.Background(), domain.Quiz{}, domain.Submission{})
	if err != nil || len(got) != 1 || got[0] != FallbackSuggestion {
		t.Fatalf("expected fallback suggestion, got %q, %v", got, err)
	}

	quiz, err := f.GenerateQuiz(context.Background(), app.QuizRequest{
		Subject:    "science",
		GradeLevel: 6,
		Count:      3,
		Signal:     domain.PerformanceSignal{AveragePercentage: 85},
	})
	if err != nil {
		t.Fatalf("generate quiz: %v", err)
	}
	if quiz.Title != "science practice quiz (grade 6)" || len(quiz.Questions) != 3 {
		t.Fatalf("unexpected fallback quiz %+v", quiz)
	}
	for _, q := range quiz.Questions {
		if q.Difficulty != domain.DifficultyHard || q.Points != 3 {
			t.Fatalf("expected hard questions worth 3, got %+v", q)
		}
		if correct, ok := q.CorrectAnswer(); !ok || correct.Text != "Option A" {
			t.Fatalf("expected first option correct, got %+v", q.Answers)
		}
	}
}

func TestFallbackReplacesEmptyOutput(t *testing.T) {
	f := WithFallback(stubGenerator{}, app.DefaultDifficultyConfig(), nil)
	got, err := f.GenerateSuggestions(context.Background(), domain.Quiz{}, domain.Submission{})
	if err != nil || len(got) != 1 || got[0] != FallbackSuggestion {
		t.Fatalf("expected fallback for empty output, got %q, %v", got, err)
	}
}

func TestFallbackPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := WithFallback(stubGenerator{err: context.Canceled}, app.DefaultDifficultyConfig(), nil)

	if _, err := f.GenerateSuggestions(ctx, domain.Quiz{}, domain.Submission{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := f.GenerateQuiz(ctx, app.QuizRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFallbackWithNilGeneratorServesPlaceholders(t *testing.T) {
	f := WithFallback(nil, app.DefaultDifficultyConfig(), nil)
	quiz, err := f.GenerateQuiz(context.Background(), app.QuizRequest{Subject: "math", GradeLevel: 2})
	if err != nil || len(quiz.Questions) != 1 || quiz.Questions[0].Difficulty != domain.DifficultyEasy {
		t.Fatalf("expected one easy placeholder question, got %+v, %v", quiz, err)
	}
}
