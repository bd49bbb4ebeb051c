package generator

import (
	"assessment-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// quizPayload is the only shape a generated quiz may take. Optional fields
// are pointers so "absent" and "zero" stay distinguishable.
type quizPayload struct {
	Title           string            `json:"title" validate:"required,max=200"`
	Description     *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	DurationMinutes *int              `json:"durationMinutes,omitempty" validate:"omitempty,min=1,max=600"`
	Questions       []questionPayload `json:"questions" validate:"required,min=1,max=50,dive"`
}

type questionPayload struct {
	Text       string          `json:"text" validate:"required"`
	Hint       *string         `json:"hint,omitempty"`
	Difficulty *string         `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Answers    []answerPayload `json:"answers" validate:"required,min=2,max=6,dive"`
}

type answerPayload struct {
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"correct"`
}

type hintPayload struct {
	Hint string `json:"hint" validate:"required"`
}

type suggestionsPayload struct {
	Suggestions []string `json:"suggestions" validate:"required,min=1,max=5,dive,required"`
}

// exactlyOneCorrect rejects generated questions with zero or several correct answers.
func exactlyOneCorrect(sl validator.StructLevel) {
	q := sl.Current().Interface().(questionPayload)
	correct := 0
	for _, a := range q.Answers {
		if a.Correct {
			correct++
		}
	}
	if correct != 1 {
		sl.ReportError(q.Answers, "Answers", "answers", "onecorrect", "")
	}
}

func (p quizPayload) toDomain() domain.Quiz {
	quiz := domain.Quiz{
		Title:     p.Title,
		Questions: make([]domain.Question, 0, len(p.Questions)),
	}
	if p.Description != nil {
		quiz.Description = *p.Description
	}
	if p.DurationMinutes != nil {
		quiz.DurationMinutes = *p.DurationMinutes
	}
	for _, q := range p.Questions {
		difficulty := domain.DifficultyMedium
		if q.Difficulty != nil {
			difficulty = domain.Difficulty(*q.Difficulty)
		}
		question := domain.Question{
			Text:       q.Text,
			Difficulty: difficulty,
			Points:     difficulty.Weight(),
			Answers:    make([]domain.Answer, 0, len(q.Answers)),
		}
		if q.Hint != nil {
			question.Hint = *q.Hint
		}
		for _, a := range q.Answers {
			question.Answers = append(question.Answers, domain.Answer{Text: a.Text, Correct: a.Correct})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}
