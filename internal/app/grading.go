package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"assessment-service/internal/domain"
	"assessment-service/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("assessment-service/app")

// notifyTimeout bounds the post-commit notifier chain.
const notifyTimeout = 5 * time.Second

// GradingService grades answer sets and persists the result as one submission.
type GradingService struct {
	store     Store
	generator ContentGenerator
	notifiers []GradeNotifier
	log       *zap.Logger
	now       func() time.Time
}

// GradingOption customizes a GradingService.
type GradingOption func(*GradingService)

// WithNotifiers registers notifiers run in order after each commit.
func WithNotifiers(n ...GradeNotifier) GradingOption {
	return func(s *GradingService) { s.notifiers = append(s.notifiers, n...) }
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) GradingOption {
	return func(s *GradingService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) GradingOption {
	return func(s *GradingService) { s.now = now }
}

func NewGradingService(store Store, generator ContentGenerator, opts ...GradingOption) *GradingService {
	s := &GradingService{
		store:     store,
		generator: generator,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grade scores answers against quizID for userID and persists the submission.
// Either the submission, its answer rows and its score all commit, or nothing does.
func (s *GradingService) Grade(ctx context.Context, quizID, userID int64, answers []domain.AnswerSubmission) (domain.GradingResult, error) {
	ctx, span := tracer.Start(ctx, "GradingService.Grade")
	defer span.End()
	span.SetAttributes(attribute.Int64("quiz.id", quizID), attribute.Int64("user.id", userID))

	start := time.Now()
	defer func() { metrics.GradingDuration.Observe(time.Since(start).Seconds()) }()

	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		outcome := "failed"
		if errors.Is(err, domain.ErrNotFound) {
			outcome = "not_found"
		}
		metrics.GradingsTotal.WithLabelValues(outcome).Inc()
		return domain.GradingResult{}, domain.Internal(err, "load quiz")
	}

	var result domain.GradingResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now()
		submission := &domain.Submission{
			UserID:    userID,
			QuizID:    quiz.ID,
			StartedAt: now,
		}
		if err := tx.CreateSubmission(ctx, submission); err != nil {
			return err
		}

		graded := gradeAnswers(quiz, answers)
		for i := range graded.answers {
			graded.answers[i].SubmissionID = submission.ID
		}
		if err := tx.CreateSubmissionAnswers(ctx, graded.answers); err != nil {
			return err
		}

		submission.Answers = graded.answers
		submission.Score = graded.score
		submission.TotalPoints = quiz.TotalPoints()
		submission.Percentage = percentage(submission.Score, submission.TotalPoints)
		submission.CompletedAt = &now
		if err := tx.CompleteSubmission(ctx, submission); err != nil {
			return err
		}

		suggestions, err := s.generator.GenerateSuggestions(ctx, quiz, *submission)
		if err != nil {
			return err
		}
		submission.Suggestion = strings.Join(suggestions, "\n")
		if err := tx.SetSuggestion(ctx, submission.ID, submission.Suggestion); err != nil {
			return err
		}

		result = domain.GradingResult{
			SubmissionID: submission.ID,
			QuizID:       quiz.ID,
			UserID:       userID,
			Score:        submission.Score,
			TotalPoints:  submission.TotalPoints,
			Percentage:   submission.Percentage,
			CompletedAt:  now,
			Suggestions:  suggestions,
			Breakdown:    graded.breakdown,
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.GradingsTotal.WithLabelValues("failed").Inc()
		s.log.Error("grading rolled back",
			zap.Int64("quizId", quizID),
			zap.Int64("userId", userID),
			zap.Error(err),
		)
		return domain.GradingResult{}, domain.TxFailure(err, "grade submission")
	}

	metrics.GradingsTotal.WithLabelValues("graded").Inc()
	s.log.Info("submission graded",
		zap.Int64("submissionId", result.SubmissionID),
		zap.Int64("quizId", quizID),
		zap.Int64("userId", userID),
		zap.Int("score", result.Score),
		zap.Int("totalPoints", result.TotalPoints),
	)

	// The submission is committed, so the caller going away must not stop the notifiers.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	for _, n := range s.notifiers {
		if err := n.SubmissionGraded(notifyCtx, quiz, result); err != nil {
			s.log.Warn("grade notifier failed", zap.Int64("submissionId", result.SubmissionID), zap.Error(err))
		}
	}
	return result, nil
}

type gradedAnswers struct {
	answers   []domain.SubmissionAnswer
	breakdown []domain.QuestionResult
	score     int
}

// gradeAnswers scores each submitted pair against quiz content. Pairs naming a
// question outside the quiz, or a question already graded, are skipped.
func gradeAnswers(quiz domain.Quiz, submitted []domain.AnswerSubmission) gradedAnswers {
	questions := make(map[int64]*domain.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	out := gradedAnswers{
		answers:   make([]domain.SubmissionAnswer, 0, len(submitted)),
		breakdown: make([]domain.QuestionResult, 0, len(submitted)),
	}
	seen := make(map[int64]struct{}, len(submitted))
	for _, pair := range submitted {
		question, ok := questions[pair.QuestionID]
		if !ok {
			continue
		}
		if _, dup := seen[question.ID]; dup {
			continue
		}
		seen[question.ID] = struct{}{}

		var selected *domain.Answer
		if pair.AnswerID != nil {
			for i := range question.Answers {
				if question.Answers[i].ID == *pair.AnswerID {
					selected = &question.Answers[i]
					break
				}
			}
		}

		correct := selected != nil && selected.Correct
		earned := 0
		if correct {
			earned = question.Points
		}
		out.score += earned

		row := domain.SubmissionAnswer{
			QuestionID:   question.ID,
			Correct:      correct,
			PointsEarned: earned,
		}
		res := domain.QuestionResult{
			QuestionID:   question.ID,
			QuestionText: question.Text,
			Correct:      correct,
			PointsEarned: earned,
		}
		if right, ok := question.CorrectAnswer(); ok {
			res.CorrectAnswer = right.Text
		}
		if selected != nil {
			id := selected.ID
			text := selected.Text
			row.SelectedAnswerID = &id
			res.SelectedAnswer = &text
		}
		out.answers = append(out.answers, row)
		out.breakdown = append(out.breakdown, res)
	}
	return out
}

// percentage is score/total*100, clamped to [0,100], and 0 when total is 0.
func percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(score) / float64(total) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
