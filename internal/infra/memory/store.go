package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Writes made inside
// RunInTx are staged and applied under a single lock on commit, so readers
// only ever see committed state.
type Store struct {
	nextID atomic.Int64

	mu          sync.RWMutex
	quizzes     map[int64]domain.Quiz
	users       map[int64]domain.User
	submissions map[int64]domain.Submission
}

func NewStore() *Store {
	return &Store{
		quizzes:     make(map[int64]domain.Quiz),
		users:       make(map[int64]domain.User),
		submissions: make(map[int64]domain.Submission),
	}
}

func (s *Store) newID() int64 {
	return s.nextID.Add(1)
}

// AddUser seeds a user, assigning an id when u.ID is zero.
func (s *Store) AddUser(u domain.User) domain.User {
	if u.ID == 0 {
		u.ID = s.newID()
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

// AddQuiz seeds a quiz, assigning ids to the quiz, its questions and answers.
func (s *Store) AddQuiz(q domain.Quiz) domain.Quiz {
	s.assignQuizIDs(&q)
	s.mu.Lock()
	s.quizzes[q.ID] = cloneQuiz(q)
	s.mu.Unlock()
	return q
}

// AddSubmission seeds an already graded submission.
func (s *Store) AddSubmission(sub domain.Submission) domain.Submission {
	if sub.ID == 0 {
		sub.ID = s.newID()
	}
	s.mu.Lock()
	s.submissions[sub.ID] = cloneSubmission(sub)
	s.mu.Unlock()
	return sub
}

// Submission returns a committed submission.
func (s *Store) Submission(id int64) (domain.Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	return cloneSubmission(sub), ok
}

// SubmissionCount reports how many submissions are committed.
func (s *Store) SubmissionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.submissions)
}

func (s *Store) GetQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) CompletedSubmissions(_ context.Context, query domain.HistoryQuery) ([]domain.SubmissionRecord, error) {
	s.mu.RLock()
	records := make([]domain.SubmissionRecord, 0)
	for _, sub := range s.submissions {
		if !sub.Completed() {
			continue
		}
		if query.UserID != 0 && sub.UserID != query.UserID {
			continue
		}
		quiz, ok := s.quizzes[sub.QuizID]
		if !ok {
			continue
		}
		if query.Subject != "" && quiz.Subject != query.Subject {
			continue
		}
		if query.GradeLevel != 0 && quiz.GradeLevel != query.GradeLevel {
			continue
		}
		records = append(records, domain.SubmissionRecord{
			SubmissionID: sub.ID,
			UserID:       sub.UserID,
			Username:     s.users[sub.UserID].Username,
			QuizID:       quiz.ID,
			QuizTitle:    quiz.Title,
			Subject:      quiz.Subject,
			GradeLevel:   quiz.GradeLevel,
			Score:        sub.Score,
			TotalPoints:  sub.TotalPoints,
			Percentage:   sub.Percentage,
			StartedAt:    sub.StartedAt,
			CompletedAt:  *sub.CompletedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CompletedAt.Equal(records[j].CompletedAt) {
			return records[i].CompletedAt.After(records[j].CompletedAt)
		}
		return records[i].SubmissionID > records[j].SubmissionID
	})

	if query.Offset > 0 {
		if query.Offset >= len(records) {
			return []domain.SubmissionRecord{}, nil
		}
		records = records[query.Offset:]
	}
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return records, nil
}

// RunInTx stages every write made through tx and applies them atomically
// when fn succeeds and ctx is still live.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	t := &tx{
		store:       s,
		submissions: make(map[int64]*domain.Submission),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range t.quizzes {
		s.quizzes[q.ID] = q
	}
	for _, update := range t.scoring {
		quiz := s.quizzes[update.QuizID]
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == update.ID {
				quiz.Questions[i].Difficulty = update.Difficulty
				quiz.Questions[i].Points = update.Points
			}
		}
		s.quizzes[quiz.ID] = quiz
	}
	for id, sub := range t.submissions {
		s.submissions[id] = *sub
	}
}

func (s *Store) assignQuizIDs(q *domain.Quiz) {
	if q.ID == 0 {
		q.ID = s.newID()
	}
	for i := range q.Questions {
		question := &q.Questions[i]
		if question.ID == 0 {
			question.ID = s.newID()
		}
		question.QuizID = q.ID
		for j := range question.Answers {
			if question.Answers[j].ID == 0 {
				question.Answers[j].ID = s.newID()
			}
			question.Answers[j].QuestionID = question.ID
		}
	}
}

type tx struct {
	store       *Store
	quizzes     []domain.Quiz
	scoring     []domain.Question
	submissions map[int64]*domain.Submission
}

func (t *tx) CreateQuiz(_ context.Context, quiz *domain.Quiz) error {
	t.store.assignQuizIDs(quiz)
	t.quizzes = append(t.quizzes, cloneQuiz(*quiz))
	return nil
}

func (t *tx) UpdateQuestionScoring(_ context.Context, questions []domain.Question) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, q := range questions {
		quiz, ok := t.store.quizzes[q.QuizID]
		if !ok || !hasQuestion(quiz, q.ID) {
			return fmt.Errorf("update question %d: %w", q.ID, domain.ErrQuestionNotFound)
		}
		t.scoring = append(t.scoring, q)
	}
	return nil
}

func (t *tx) CreateSubmission(_ context.Context, submission *domain.Submission) error {
	submission.ID = t.store.newID()
	staged := cloneSubmission(*submission)
	t.submissions[submission.ID] = &staged
	return nil
}

func (t *tx) CreateSubmissionAnswers(_ context.Context, answers []domain.SubmissionAnswer) error {
	for i := range answers {
		sub, err := t.staged(answers[i].SubmissionID)
		if err != nil {
			return err
		}
		answers[i].ID = t.store.newID()
		sub.Answers = append(sub.Answers, answers[i])
	}
	return nil
}

func (t *tx) CompleteSubmission(_ context.Context, submission *domain.Submission) error {
	sub, err := t.staged(submission.ID)
	if err != nil {
		return err
	}
	completed := *submission.CompletedAt
	sub.Score = submission.Score
	sub.TotalPoints = submission.TotalPoints
	sub.Percentage = submission.Percentage
	sub.CompletedAt = &completed
	return nil
}

func (t *tx) SetSuggestion(_ context.Context, submissionID int64, suggestion string) error {
	sub, err := t.staged(submissionID)
	if err != nil {
		return err
	}
	sub.Suggestion = suggestion
	return nil
}

// staged returns the transaction's copy of a submission, pulling a committed
// one into the transaction on first touch.
func (t *tx) staged(id int64) (*domain.Submission, error) {
	if sub, ok := t.submissions[id]; ok {
		return sub, nil
	}
	t.store.mu.RLock()
	committed, ok := t.store.submissions[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("submission %d: %w", id, domain.ErrNotFound)
	}
	sub := cloneSubmission(committed)
	t.submissions[id] = &sub
	return &sub, nil
}

func hasQuestion(quiz domain.Quiz, questionID int64) bool {
	for _, q := range quiz.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Answers = append([]domain.Answer(nil), question.Answers...)
		questions[i] = question
	}
	q.Questions = questions
	return q
}

func cloneSubmission(s domain.Submission) domain.Submission {
	s.Answers = append([]domain.SubmissionAnswer(nil), s.Answers...)
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		s.CompletedAt = &completed
	}
	return s
}
