package postgres

import (
	"time"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64  `bun:"id,pk,autoincrement"`
	Username   string `bun:"username,notnull"`
	Email      string `bun:"email,notnull"`
	Credential string `bun:"credential,notnull"`
}

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:quiz"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Title           string    `bun:"title,notnull"`
	Description     string    `bun:"description,notnull"`
	Subject         string    `bun:"subject,notnull"`
	GradeLevel      int       `bun:"grade_level,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`

	Questions []*questionModel `bun:"rel:has-many,join:id=quiz_id"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:question"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuizID     int64  `bun:"quiz_id,notnull"`
	Position   int    `bun:"position,notnull"`
	Text       string `bun:"text,notnull"`
	Hint       string `bun:"hint,notnull"`
	Difficulty string `bun:"difficulty,notnull"`
	Points     int    `bun:"points,notnull"`

	Answers []*answerModel `bun:"rel:has-many,join:id=question_id"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:answers,alias:answer"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Text       string `bun:"text,notnull"`
	Correct    bool   `bun:"correct,notnull"`
}

type submissionModel struct {
	bun.BaseModel `bun:"table:quiz_submissions,alias:sub"`

	ID          int64      `bun:"id,pk,autoincrement"`
	UserID      int64      `bun:"user_id,notnull"`
	QuizID      int64      `bun:"quiz_id,notnull"`
	StartedAt   time.Time  `bun:"started_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
	Score       int        `bun:"score,notnull"`
	TotalPoints int        `bun:"total_points,notnull"`
	Percentage  float64    `bun:"percentage,notnull"`
	Suggestion  string     `bun:"suggestion,notnull"`
}

type submissionAnswerModel struct {
	bun.BaseModel `bun:"table:submission_answers,alias:sa"`

	ID               int64  `bun:"id,pk,autoincrement"`
	SubmissionID     int64  `bun:"submission_id,notnull"`
	QuestionID       int64  `bun:"question_id,notnull"`
	SelectedAnswerID *int64 `bun:"selected_answer_id"`
	Correct          bool   `bun:"correct,notnull"`
	PointsEarned     int    `bun:"points_earned,notnull"`
}

func (m *quizModel) toDomain() domain.Quiz {
	quiz := domain.Quiz{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Subject:         m.Subject,
		GradeLevel:      m.GradeLevel,
		DurationMinutes: m.DurationMinutes,
		CreatedAt:       m.CreatedAt,
		Questions:       make([]domain.Question, 0, len(m.Questions)),
	}
	for _, q := range m.Questions {
		question := domain.Question{
			ID:         q.ID,
			QuizID:     q.QuizID,
			Text:       q.Text,
			Hint:       q.Hint,
			Difficulty: domain.Difficulty(q.Difficulty),
			Points:     q.Points,
			Answers:    make([]domain.Answer, 0, len(q.Answers)),
		}
		for _, a := range q.Answers {
			question.Answers = append(question.Answers, domain.Answer{
				ID:         a.ID,
				QuestionID: a.QuestionID,
				Text:       a.Text,
				Correct:    a.Correct,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}
