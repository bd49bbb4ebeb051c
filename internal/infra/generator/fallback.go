package generator

import (
	"context"
	"errors"
	"fmt"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/metrics"
	"go.uber.org/zap"
)

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("content generator disabled")

// Disabled is a generator that always fails, so a Fallback around it serves
// placeholder content only.
type Disabled struct{}

func (Disabled) GenerateQuiz(context.Context, app.QuizRequest) (domain.Quiz, error) {
	return domain.Quiz{}, ErrDisabled
}

func (Disabled) GenerateHint(context.Context, domain.Question) (string, error) {
	return "", ErrDisabled
}

func (Disabled) GenerateSuggestions(context.Context, domain.Quiz, domain.Submission) ([]string, error) {
	return nil, ErrDisabled
}

const (
	FallbackHint       = "Re-read the question carefully and rule out the options you know are wrong."
	FallbackSuggestion = "Review the questions you missed and try the quiz again."
)

// Fallback wraps a generator and replaces any failure with deterministic
// placeholder content. Cancellation and deadline errors from ctx are not
// replaced: they are returned so the caller's transaction rolls back.
type Fallback struct {
	next       app.ContentGenerator
	difficulty app.DifficultyConfig
	log        *zap.Logger
}

func WithFallback(next app.ContentGenerator, difficulty app.DifficultyConfig, log *zap.Logger) *Fallback {
	if next == nil {
		next = Disabled{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{next: next, difficulty: difficulty, log: log}
}

func (f *Fallback) GenerateQuiz(ctx context.Context, req app.QuizRequest) (domain.Quiz, error) {
	quiz, err := f.next.GenerateQuiz(ctx, req)
	if err == nil {
		return quiz, nil
	}
	if ctx.Err() != nil {
		return domain.Quiz{}, ctx.Err()
	}
	f.recovered("quiz", err)
	return FallbackQuiz(req, f.difficulty.Tier(req.Signal.AveragePercentage)), nil
}

func (f *Fallback) GenerateHint(ctx context.Context, question domain.Question) (string, error) {
	hint, err := f.next.GenerateHint(ctx, question)
	if err == nil && hint != "" {
		return hint, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	f.recovered("hint", err)
	return FallbackHint, nil
}

func (f *Fallback) GenerateSuggestions(ctx context.Context, quiz domain.Quiz, submission domain.Submission) ([]string, error) {
	suggestions, err := f.next.GenerateSuggestions(ctx, quiz, submission)
	if err == nil && len(suggestions) > 0 {
		return suggestions, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.recovered("suggestions", err)
	return []string{FallbackSuggestion}, nil
}

func (f *Fallback) recovered(operation string, err error) {
	metrics.GeneratorFallbacks.WithLabelValues(operation).Inc()
	if err == nil {
		err = errors.New("empty generator output")
	}
	f.log.Warn("generator failed, serving fallback content", zap.String("operation", operation), zap.Error(err))
}

// FallbackQuiz builds a content-free placeholder quiz of req.Count questions
// at the given tier. Each question has four options and the first is correct.
func FallbackQuiz(req app.QuizRequest, tier domain.Difficulty) domain.Quiz {
	count := req.Count
	if count <= 0 {
		count = 1
	}
	quiz := domain.Quiz{
		Title:           fmt.Sprintf("%s practice quiz (grade %d)", req.Subject, req.GradeLevel),
		Description:     "Placeholder quiz served while the content generator is unavailable.",
		Subject:         req.Subject,
		GradeLevel:      req.GradeLevel,
		DurationMinutes: count * 2,
		Questions:       make([]domain.Question, 0, count),
	}
	for i := 1; i <= count; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			Text:       fmt.Sprintf("Placeholder question %d for %s", i, req.Subject),
			Hint:       FallbackHint,
			Difficulty: tier,
			Points:     tier.Weight(),
			Answers: []domain.Answer{
				{Text: "Option A", Correct: true},
				{Text: "Option B"},
				{Text: "Option C"},
				{Text: "Option D"},
			},
		})
	}
	return quiz
}
