package app

import (
	"context"
	"strings"
	"time"

	"assessment-service/internal/domain"
	"go.uber.org/zap"
)

// QuizService contains the quiz-facing use cases around the grading engine:
// creating quizzes from the generator, serving them, retrying with adapted
// difficulty, hints and submission history.
type QuizService struct {
	store     Store
	generator ContentGenerator
	estimator *PerformanceEstimator
	adapter   *DifficultyAdapter
	log       *zap.Logger
	now       func() time.Time
}

func NewQuizService(store Store, generator ContentGenerator, estimator *PerformanceEstimator, adapter *DifficultyAdapter, log *zap.Logger) *QuizService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{
		store:     store,
		generator: generator,
		estimator: estimator,
		adapter:   adapter,
		log:       log,
		now:       time.Now,
	}
}

// CreateQuizRequest asks for a freshly generated quiz.
type CreateQuizRequest struct {
	UserID          int64    `json:"-"`
	Subject         string   `json:"subject" validate:"required,max=100"`
	GradeLevel      int      `json:"gradeLevel" validate:"required,min=1,max=12"`
	Count           int      `json:"count" validate:"required,min=1,max=50"`
	Topics          []string `json:"topics,omitempty" validate:"omitempty,dive,max=100"`
	DurationMinutes int      `json:"durationMinutes" validate:"omitempty,min=1,max=600"`
}

// Create generates a quiz tuned to the user's current performance and persists it.
func (s *QuizService) Create(ctx context.Context, req CreateQuizRequest) (domain.QuizView, error) {
	signal, err := s.estimator.Estimate(ctx, req.UserID, req.Subject, req.GradeLevel)
	if err != nil {
		return domain.QuizView{}, err
	}

	quiz, err := s.generator.GenerateQuiz(ctx, QuizRequest{
		Subject:    req.Subject,
		GradeLevel: req.GradeLevel,
		Count:      req.Count,
		Topics:     req.Topics,
		Signal:     signal,
	})
	if err != nil {
		return domain.QuizView{}, domain.Internal(err, "generate quiz")
	}
	quiz.Subject = req.Subject
	quiz.GradeLevel = req.GradeLevel
	if req.DurationMinutes > 0 {
		quiz.DurationMinutes = req.DurationMinutes
	}
	quiz.CreatedAt = s.now()
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if !q.Difficulty.Valid() {
			s.log.Warn("generated question has unknown difficulty, storing as medium",
				zap.String("difficulty", string(q.Difficulty)))
			q.Difficulty = domain.DifficultyMedium
			q.Points = q.Difficulty.Weight()
		}
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateQuiz(ctx, &quiz)
	})
	if err != nil {
		return domain.QuizView{}, domain.TxFailure(err, "persist quiz")
	}

	s.log.Info("quiz created",
		zap.Int64("quizId", quiz.ID),
		zap.String("subject", quiz.Subject),
		zap.Int("gradeLevel", quiz.GradeLevel),
		zap.Int("questions", len(quiz.Questions)),
		zap.Float64("signalAverage", signal.AveragePercentage),
	)
	return quiz.ClientView(), nil
}

// Get returns the client-facing view of a quiz.
func (s *QuizService) Get(ctx context.Context, quizID int64) (domain.QuizView, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizView{}, domain.Internal(err, "load quiz")
	}
	return quiz.ClientView(), nil
}

// Retry retags the quiz's difficulty and points for userID and serves it again.
func (s *QuizService) Retry(ctx context.Context, quizID, userID int64) (domain.QuizView, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizView{}, domain.Internal(err, "load quiz")
	}

	questions, err := s.adapter.Adapt(ctx, quiz.Questions, userID, quiz.Subject, quiz.GradeLevel)
	if err != nil {
		return domain.QuizView{}, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateQuestionScoring(ctx, questions)
	})
	if err != nil {
		return domain.QuizView{}, domain.Internal(err, "update question scoring")
	}
	quiz.Questions = questions

	tier := domain.DifficultyEasy
	if len(questions) > 0 {
		tier = questions[0].Difficulty
	}
	s.log.Info("quiz retagged for retry",
		zap.Int64("quizId", quizID),
		zap.Int64("userId", userID),
		zap.String("difficulty", string(tier)),
	)
	return quiz.ClientView(), nil
}

// Hint returns the stored hint for a question, or asks the generator for one.
func (s *QuizService) Hint(ctx context.Context, quizID, questionID int64) (string, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return "", domain.Internal(err, "load quiz")
	}
	for _, q := range quiz.Questions {
		if q.ID != questionID {
			continue
		}
		if strings.TrimSpace(q.Hint) != "" {
			return q.Hint, nil
		}
		hint, err := s.generator.GenerateHint(ctx, q)
		if err != nil {
			return "", domain.Internal(err, "generate hint")
		}
		return hint, nil
	}
	return "", domain.ErrQuestionNotFound
}

// History lists a user's completed submissions, newest first.
func (s *QuizService) History(ctx context.Context, userID int64, limit, offset int) ([]domain.SubmissionRecord, error) {
	if limit < 0 || offset < 0 {
		return nil, domain.Validation("limit and offset must not be negative")
	}
	records, err := s.store.CompletedSubmissions(ctx, domain.HistoryQuery{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, domain.Internal(err, "load history")
	}
	return records, nil
}
