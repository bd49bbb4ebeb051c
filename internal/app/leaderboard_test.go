package app_test

import (
	"context"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func addGraded(store *memory.Store, userID, quizID int64, score int, pct float64) {
	completed := fixedNow.Add(time.Duration(store.SubmissionCount()) * time.Minute)
	store.AddSubmission(domain.Submission{
		UserID:      userID,
		QuizID:      quizID,
		StartedAt:   completed,
		CompletedAt: &completed,
		Score:       score,
		TotalPoints: 300,
		Percentage:  pct,
	})
}

func TestRankBreaksAverageTiesByTotalScore(t *testing.T) {
	store := memory.NewStore()
	a := store.AddUser(domain.User{Username: "a"})
	b := store.AddUser(domain.User{Username: "b"})
	quiz := store.AddQuiz(threeQuestionQuiz())
	addGraded(store, a.ID, quiz.ID, 100, 95)
	addGraded(store, a.ID, quiz.ID, 100, 95)
	addGraded(store, b.ID, quiz.ID, 150, 95)
	addGraded(store, b.ID, quiz.ID, 100, 95)

	entries, err := app.NewLeaderboard(store).Rank(context.Background(), domain.LeaderboardFilter{}, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].UserID != b.ID || entries[0].Rank != 1 || entries[0].TotalScore != 250 {
		t.Fatalf("expected b first with 250, got %+v", entries[0])
	}
	if entries[1].UserID != a.ID || entries[1].Rank != 2 || entries[1].QuizzesCompleted != 2 {
		t.Fatalf("expected a second, got %+v", entries[1])
	}
}

func TestRankEmptyFilterReturnsEmptyList(t *testing.T) {
	store := memory.NewStore()
	quiz := store.AddQuiz(threeQuestionQuiz())
	addGraded(store, 1, quiz.ID, 10, 10)

	entries, err := app.NewLeaderboard(store).Rank(context.Background(), domain.LeaderboardFilter{Subject: "history"}, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", entries)
	}
}

func TestRankRoundsAndTruncates(t *testing.T) {
	store := memory.NewStore()
	quiz := store.AddQuiz(threeQuestionQuiz())
	addGraded(store, 1, quiz.ID, 1, 100)
	addGraded(store, 1, quiz.ID, 1, 33.333)
	addGraded(store, 1, quiz.ID, 1, 33.333)
	addGraded(store, 2, quiz.ID, 1, 10)
	addGraded(store, 3, quiz.ID, 1, 20)

	entries, err := app.NewLeaderboard(store).Rank(context.Background(), domain.LeaderboardFilter{Subject: "math", GradeLevel: 4}, 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected topN=2 entries, got %d", len(entries))
	}
	if entries[0].AveragePercentage != 55.56 {
		t.Fatalf("expected 55.56, got %v", entries[0].AveragePercentage)
	}
	if entries[1].UserID != 3 || entries[1].Rank != 2 {
		t.Fatalf("expected user 3 second, got %+v", entries[1])
	}
}

func TestRankFullTieOrdersByUserID(t *testing.T) {
	store := memory.NewStore()
	quiz := store.AddQuiz(threeQuestionQuiz())
	addGraded(store, 9, quiz.ID, 50, 50)
	addGraded(store, 4, quiz.ID, 50, 50)
	addGraded(store, 7, quiz.ID, 50, 50)

	entries, err := app.NewLeaderboard(store).Rank(context.Background(), domain.LeaderboardFilter{}, 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	want := []int64{4, 7, 9}
	for i, e := range entries {
		if e.UserID != want[i] || e.Rank != i+1 {
			t.Fatalf("position %d: expected user %d rank %d, got %+v", i, want[i], i+1, e)
		}
	}
}

func TestHubPushesAfterMatchingGrading(t *testing.T) {
	store := memory.NewStore()
	user := store.AddUser(domain.User{Username: "alice"})
	quiz := store.AddQuiz(threeQuestionQuiz())
	hub := app.NewLeaderboardHubWithClock(app.NewLeaderboard(store), func() time.Time { return fixedNow })
	grading := newGrading(store, &stubGenerator{suggestions: []string{"ok"}}, hub)

	math, cancelMath, err := hub.Subscribe(context.Background(), domain.LeaderboardFilter{Subject: "math"}, 5)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelMath()
	science, cancelScience, err := hub.Subscribe(context.Background(), domain.LeaderboardFilter{Subject: "science"}, 5)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelScience()

	if initial := <-math; len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial)
	}
	<-science

	if _, err := grading.Grade(context.Background(), quiz.ID, user.ID, []domain.AnswerSubmission{pick(quiz.Questions[2], true)}); err != nil {
		t.Fatalf("grade: %v", err)
	}

	select {
	case lb := <-math:
		if len(lb.Entries) != 1 || lb.Entries[0].Username != "alice" || lb.Entries[0].TotalScore != 3 {
			t.Fatalf("unexpected pushed leaderboard %+v", lb)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a push for the math subscriber")
	}
	select {
	case lb := <-science:
		t.Fatalf("science subscriber should not be notified, got %+v", lb)
	default:
	}
}

func TestHubDropsOldestForSlowSubscribers(t *testing.T) {
	store := memory.NewStore()
	quiz := store.AddQuiz(threeQuestionQuiz())
	hub := app.NewLeaderboardHub(app.NewLeaderboard(store))

	updates, cancel, err := hub.Subscribe(context.Background(), domain.LeaderboardFilter{}, 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := 0; i < 20; i++ {
		addGraded(store, int64(i+1), quiz.ID, 1, 1)
		if err := hub.SubmissionGraded(context.Background(), quiz, domain.GradingResult{}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	var last domain.Leaderboard
	count := 0
	for len(updates) > 0 {
		last = <-updates
		count++
	}
	if count != 8 || len(last.Entries) != 20 {
		t.Fatalf("expected 8 buffered updates ending with 20 entries, got %d and %d", count, len(last.Entries))
	}

	cancel()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected subscription removed")
	}
	if _, ok := <-updates; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

// gradingDuringRank runs hook once, after its first ranking, to land a
// grading between a subscriber's registration and its initial snapshot.
type gradingDuringRank struct {
	app.Ranker
	hook  func()
	fired bool
}

func (r *gradingDuringRank) Rank(ctx context.Context, filter domain.LeaderboardFilter, topN int) ([]domain.LeaderboardEntry, error) {
	entries, err := r.Ranker.Rank(ctx, filter, topN)
	if !r.fired {
		r.fired = true
		r.hook()
	}
	return entries, err
}

func TestHubSubscribeSeesGradingDuringInitialRank(t *testing.T) {
	store := memory.NewStore()
	quiz := store.AddQuiz(threeQuestionQuiz())
	ranker := &gradingDuringRank{Ranker: app.NewLeaderboard(store)}
	hub := app.NewLeaderboardHub(ranker)
	ranker.hook = func() {
		addGraded(store, 1, quiz.ID, 3, 100)
		if err := hub.SubmissionGraded(context.Background(), quiz, domain.GradingResult{}); err != nil {
			t.Errorf("notify: %v", err)
		}
	}

	updates, cancel, err := hub.Subscribe(context.Background(), domain.LeaderboardFilter{}, 10)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	var last domain.Leaderboard
	for len(updates) > 0 {
		last = <-updates
	}
	if len(last.Entries) != 1 || last.Entries[0].UserID != 1 {
		t.Fatalf("expected the concurrent grading in the latest leaderboard, got %+v", last)
	}
}

func TestHubSubscribeRankErrorLeavesNoSubscription(t *testing.T) {
	hub := app.NewLeaderboardHub(app.NewLeaderboard(failingHistory{}))
	if _, _, err := hub.Subscribe(context.Background(), domain.LeaderboardFilter{}, 10); err == nil {
		t.Fatalf("expected rank error")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected failed subscription removed, got %d", hub.Subscribers())
	}
}
