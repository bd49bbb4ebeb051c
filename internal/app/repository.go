package app

import (
	"context"

	"assessment-service/internal/domain"
)

// QuizRepository loads a quiz with its questions and answers.
// Implementations return domain.ErrQuizNotFound for unknown ids.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// HistoryRepository reads committed, completed submissions.
type HistoryRepository interface {
	CompletedSubmissions(ctx context.Context, query domain.HistoryQuery) ([]domain.SubmissionRecord, error)
}

// Tx is the write side of the entity store, valid only inside RunInTx.
type Tx interface {
	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	UpdateQuestionScoring(ctx context.Context, questions []domain.Question) error
	CreateSubmission(ctx context.Context, submission *domain.Submission) error
	CreateSubmissionAnswers(ctx context.Context, answers []domain.SubmissionAnswer) error
	CompleteSubmission(ctx context.Context, submission *domain.Submission) error
	SetSuggestion(ctx context.Context, submissionID int64, suggestion string) error
}

// Store abstracts the entity store (in-memory, Postgres).
// RunInTx commits when fn returns nil and rolls back otherwise; writes made
// through tx are invisible to readers until commit.
type Store interface {
	QuizRepository
	HistoryRepository
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ContentGenerator produces quiz content, hints and improvement suggestions.
type ContentGenerator interface {
	GenerateQuiz(ctx context.Context, req QuizRequest) (domain.Quiz, error)
	GenerateHint(ctx context.Context, question domain.Question) (string, error)
	GenerateSuggestions(ctx context.Context, quiz domain.Quiz, submission domain.Submission) ([]string, error)
}

// QuizRequest is what the generator needs to build a quiz.
type QuizRequest struct {
	Subject    string
	GradeLevel int
	Count      int
	Topics     []string
	Signal     domain.PerformanceSignal
}

// Ranker produces a ranked leaderboard. topN <= 0 is uncapped.
type Ranker interface {
	Rank(ctx context.Context, filter domain.LeaderboardFilter, topN int) ([]domain.LeaderboardEntry, error)
}

// GradeNotifier is told about every committed grading.
type GradeNotifier interface {
	SubmissionGraded(ctx context.Context, quiz domain.Quiz, result domain.GradingResult) error
}
