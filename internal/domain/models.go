package domain

import (
	"strconv"
	"time"
)

// Difficulty is the tier a question is served at.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Weight is the point value a question carries at this tier.
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyHard:
		return 3
	case DifficultyMedium:
		return 2
	default:
		return 1
	}
}

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Answer is one selectable option of a question.
type Answer struct {
	ID         int64
	QuestionID int64
	Text       string
	Correct    bool
}

// Question is an MCQ question that belongs to exactly one quiz.
type Question struct {
	ID         int64
	QuizID     int64
	Text       string
	Hint       string
	Difficulty Difficulty
	Points     int
	Answers    []Answer
}

// CorrectAnswer returns the first answer flagged correct.
func (q Question) CorrectAnswer() (Answer, bool) {
	for _, a := range q.Answers {
		if a.Correct {
			return a, true
		}
	}
	return Answer{}, false
}

// Quiz is the grading-internal view of a quiz: answer correctness is visible.
// Use ClientView before handing a quiz to a quiz taker.
type Quiz struct {
	ID              int64
	Title           string
	Description     string
	Subject         string
	GradeLevel      int
	DurationMinutes int
	CreatedAt       time.Time
	Questions       []Question
}

// TotalPoints sums the point value of every question in the quiz.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// User owns a history of submissions. Credential is opaque to the engine.
type User struct {
	ID         int64
	Username   string
	Email      string
	Credential string
}

// Submission is one graded attempt at a quiz.
type Submission struct {
	ID          int64
	UserID      int64
	QuizID      int64
	StartedAt   time.Time
	CompletedAt *time.Time
	Score       int
	TotalPoints int
	Percentage  float64
	Suggestion  string
	Answers     []SubmissionAnswer
}

// Completed reports whether the submission counts toward history and rankings.
func (s Submission) Completed() bool {
	return s.CompletedAt != nil
}

// SubmissionAnswer is the graded outcome of a single question within a submission.
// SelectedAnswerID is nil when the question was left unanswered.
type SubmissionAnswer struct {
	ID               int64
	SubmissionID     int64
	QuestionID       int64
	SelectedAnswerID *int64
	Correct          bool
	PointsEarned     int
}

// AnswerSubmission is one (question, selected answer) pair sent by a quiz taker.
type AnswerSubmission struct {
	QuestionID int64  `json:"questionId" validate:"required,gt=0"`
	AnswerID   *int64 `json:"answerId,omitempty" validate:"omitempty,gt=0"`
}

// QuestionResult is the per-question breakdown returned after grading.
type QuestionResult struct {
	QuestionID     int64   `json:"questionId"`
	QuestionText   string  `json:"questionText"`
	Correct        bool    `json:"correct"`
	PointsEarned   int     `json:"pointsEarned"`
	CorrectAnswer  string  `json:"correctAnswer"`
	SelectedAnswer *string `json:"selectedAnswer,omitempty"`
}

// GradingResult summarizes a persisted submission.
type GradingResult struct {
	SubmissionID int64            `json:"submissionId"`
	QuizID       int64            `json:"quizId"`
	UserID       int64            `json:"userId"`
	Score        int              `json:"score"`
	TotalPoints  int              `json:"totalPoints"`
	Percentage   float64          `json:"percentage"`
	CompletedAt  time.Time        `json:"completedAt"`
	Suggestions  []string         `json:"suggestions"`
	Breakdown    []QuestionResult `json:"breakdown"`
}

// PerformanceSignal is the rolling performance of a user for one subject and grade.
type PerformanceSignal struct {
	AveragePercentage float64 `json:"averagePercentage"`
	CompletedCount    int     `json:"completedCount"`
}

// SubmissionRecord is a completed submission joined with its quiz and user,
// as read back from history.
type SubmissionRecord struct {
	SubmissionID int64     `json:"submissionId"`
	UserID       int64     `json:"userId"`
	Username     string    `json:"username"`
	QuizID       int64     `json:"quizId"`
	QuizTitle    string    `json:"quizTitle"`
	Subject      string    `json:"subject"`
	GradeLevel   int       `json:"gradeLevel"`
	Score        int       `json:"score"`
	TotalPoints  int       `json:"totalPoints"`
	Percentage   float64   `json:"percentage"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt"`
}

// HistoryQuery selects completed submissions, newest first. Zero-valued
// fields do not filter; Limit <= 0 is uncapped.
type HistoryQuery struct {
	UserID     int64
	Subject    string
	GradeLevel int
	Limit      int
	Offset     int
}

// LeaderboardFilter narrows the leaderboard to a subject and/or grade level.
// Empty subject or zero grade level means "any".
type LeaderboardFilter struct {
	Subject    string `json:"subject,omitempty"`
	GradeLevel int    `json:"gradeLevel,omitempty" validate:"gte=0"`
}

// Matches reports whether a quiz with the given subject and grade falls under f.
func (f LeaderboardFilter) Matches(subject string, gradeLevel int) bool {
	if f.Subject != "" && f.Subject != subject {
		return false
	}
	if f.GradeLevel != 0 && f.GradeLevel != gradeLevel {
		return false
	}
	return true
}

// Key is a stable string form of f, usable as a cache key.
func (f LeaderboardFilter) Key() string {
	return "subject=" + f.Subject + ":grade=" + strconv.Itoa(f.GradeLevel)
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank              int     `json:"rank"`
	UserID            int64   `json:"userId"`
	Username          string  `json:"username"`
	TotalScore        int     `json:"totalScore"`
	AveragePercentage float64 `json:"averagePercentage"`
	QuizzesCompleted  int     `json:"quizzesCompleted"`
}

// Leaderboard is a ranked snapshot for one filter.
type Leaderboard struct {
	Filter    LeaderboardFilter  `json:"filter"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
