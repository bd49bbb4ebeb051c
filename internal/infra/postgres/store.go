package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

// Store is the Postgres entity store. Writes go through bun inside a
// read-committed transaction; history reads go through the pgx pool.
type Store struct {
	db      *bun.DB
	history *HistoryReader
}

func NewStore(db *bun.DB, history *HistoryReader) *Store {
	return &Store{db: db, history: history}
}

// GetQuiz loads a quiz with its questions (in position order) and answers.
func (s *Store) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz := new(quizModel)
	err := s.db.NewSelect().
		Model(quiz).
		Relation("Questions", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("question.position ASC", "question.id ASC")
		}).
		Where("quiz.id = ?", quizID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	if len(quiz.Questions) > 0 {
		ids := make([]int64, 0, len(quiz.Questions))
		byID := make(map[int64]*questionModel, len(quiz.Questions))
		for _, q := range quiz.Questions {
			ids = append(ids, q.ID)
			byID[q.ID] = q
		}
		var answers []*answerModel
		err := s.db.NewSelect().
			Model(&answers).
			Where("answer.question_id IN (?)", bun.In(ids)).
			Order("answer.id ASC").
			Scan(ctx)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("load answers: %w", err)
		}
		for _, a := range answers {
			if q, ok := byID[a.QuestionID]; ok {
				q.Answers = append(q.Answers, a)
			}
		}
	}
	return quiz.toDomain(), nil
}

func (s *Store) CompletedSubmissions(ctx context.Context, query domain.HistoryQuery) ([]domain.SubmissionRecord, error) {
	return s.history.CompletedSubmissions(ctx, query)
}

// CreateUser inserts a user. Credentials are stored as given.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m := &userModel{Username: user.Username, Email: user.Email, Credential: user.Credential}
	if _, err := s.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	user.ID = m.ID
	return user, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx bun.Tx
}

func (t *txStore) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	m := &quizModel{
		Title:           quiz.Title,
		Description:     quiz.Description,
		Subject:         quiz.Subject,
		GradeLevel:      quiz.GradeLevel,
		DurationMinutes: quiz.DurationMinutes,
		CreatedAt:       quiz.CreatedAt,
	}
	if _, err := t.tx.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	quiz.ID = m.ID
	if len(quiz.Questions) == 0 {
		return nil
	}

	questions := make([]*questionModel, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions = append(questions, &questionModel{
			QuizID:     m.ID,
			Position:   i,
			Text:       q.Text,
			Hint:       q.Hint,
			Difficulty: string(q.Difficulty),
			Points:     q.Points,
		})
	}
	if _, err := t.tx.NewInsert().Model(&questions).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	var answers []*answerModel
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		q.ID = questions[i].ID
		q.QuizID = m.ID
		for _, a := range q.Answers {
			answers = append(answers, &answerModel{QuestionID: q.ID, Text: a.Text, Correct: a.Correct})
		}
	}
	if len(answers) == 0 {
		return nil
	}
	if _, err := t.tx.NewInsert().Model(&answers).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}
	n := 0
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		for j := range q.Answers {
			q.Answers[j].ID = answers[n].ID
			q.Answers[j].QuestionID = q.ID
			n++
		}
	}
	return nil
}

func (t *txStore) UpdateQuestionScoring(ctx context.Context, questions []domain.Question) error {
	for _, q := range questions {
		m := &questionModel{ID: q.ID, Difficulty: string(q.Difficulty), Points: q.Points}
		res, err := t.tx.NewUpdate().
			Model(m).
			Column("difficulty", "points").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update question %d: %w", q.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update question %d: %w", q.ID, domain.ErrQuestionNotFound)
		}
	}
	return nil
}

func (t *txStore) CreateSubmission(ctx context.Context, submission *domain.Submission) error {
	m := &submissionModel{
		UserID:    submission.UserID,
		QuizID:    submission.QuizID,
		StartedAt: submission.StartedAt,
	}
	if _, err := t.tx.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	submission.ID = m.ID
	return nil
}

func (t *txStore) CreateSubmissionAnswers(ctx context.Context, answers []domain.SubmissionAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([]*submissionAnswerModel, 0, len(answers))
	for _, a := range answers {
		rows = append(rows, &submissionAnswerModel{
			SubmissionID:     a.SubmissionID,
			QuestionID:       a.QuestionID,
			SelectedAnswerID: a.SelectedAnswerID,
			Correct:          a.Correct,
			PointsEarned:     a.PointsEarned,
		})
	}
	if _, err := t.tx.NewInsert().Model(&rows).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert submission answers: %w", err)
	}
	for i := range answers {
		answers[i].ID = rows[i].ID
	}
	return nil
}

func (t *txStore) CompleteSubmission(ctx context.Context, submission *domain.Submission) error {
	m := &submissionModel{
		ID:          submission.ID,
		CompletedAt: submission.CompletedAt,
		Score:       submission.Score,
		TotalPoints: submission.TotalPoints,
		Percentage:  submission.Percentage,
	}
	_, err := t.tx.NewUpdate().
		Model(m).
		Column("completed_at", "score", "total_points", "percentage").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete submission %d: %w", submission.ID, err)
	}
	return nil
}

func (t *txStore) SetSuggestion(ctx context.Context, submissionID int64, suggestion string) error {
	_, err := t.tx.NewUpdate().
		Model((*submissionModel)(nil)).
		Set("suggestion = ?", suggestion).
		Where("id = ?", submissionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set suggestion %d: %w", submissionID, err)
	}
	return nil
}
