package domain

import "time"

// AnswerView is what a quiz taker sees of an answer. It has no correctness field.
type AnswerView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the client-facing projection of a question. Hints are
// served one at a time through QuizService.Hint.
type QuestionView struct {
	ID         int64        `json:"id"`
	Text       string       `json:"text"`
	Difficulty Difficulty   `json:"difficulty"`
	Points     int          `json:"points"`
	Answers    []AnswerView `json:"answers"`
}

// QuizView is the client-facing projection of a quiz.
type QuizView struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Subject         string         `json:"subject"`
	GradeLevel      int            `json:"gradeLevel"`
	DurationMinutes int            `json:"durationMinutes"`
	CreatedAt       time.Time      `json:"createdAt"`
	TotalPoints     int            `json:"totalPoints"`
	Questions       []QuestionView `json:"questions"`
}

// ClientView projects q for a quiz taker.
func (q Quiz) ClientView() QuizView {
	questions := make([]QuestionView, 0, len(q.Questions))
	for _, question := range q.Questions {
		answers := make([]AnswerView, 0, len(question.Answers))
		for _, a := range question.Answers {
			answers = append(answers, AnswerView{ID: a.ID, Text: a.Text})
		}
		questions = append(questions, QuestionView{
			ID:         question.ID,
			Text:       question.Text,
			Difficulty: question.Difficulty,
			Points:     question.Points,
			Answers:    answers,
		})
	}
	return QuizView{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		Subject:         q.Subject,
		GradeLevel:      q.GradeLevel,
		DurationMinutes: q.DurationMinutes,
		CreatedAt:       q.CreatedAt,
		TotalPoints:     q.TotalPoints(),
		Questions:       questions,
	}
}
