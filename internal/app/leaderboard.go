package app

import (
	"context"
	"math"
	"sort"

	"assessment-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Leaderboard ranks users by their completed-submission history.
type Leaderboard struct {
	history HistoryRepository
}

func NewLeaderboard(history HistoryRepository) *Leaderboard {
	return &Leaderboard{history: history}
}

// Rank groups completed submissions matching filter by user and returns at most topN entries.
func (l *Leaderboard) Rank(ctx context.Context, filter domain.LeaderboardFilter, topN int) ([]domain.LeaderboardEntry, error) {
	ctx, span := tracer.Start(ctx, "Leaderboard.Rank")
	defer span.End()
	span.SetAttributes(
		attribute.String("filter.subject", filter.Subject),
		attribute.Int("filter.grade_level", filter.GradeLevel),
		attribute.Int("top_n", topN),
	)

	records, err := l.history.CompletedSubmissions(ctx, domain.HistoryQuery{
		Subject:    filter.Subject,
		GradeLevel: filter.GradeLevel,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, domain.Internal(err, "load leaderboard history")
	}
	return rankRecords(records, topN), nil
}

type userTotals struct {
	userID     int64
	username   string
	totalScore int
	pctSum     float64
	count      int
}

// rankRecords orders users by average percentage desc, then total score desc,
// then user id asc. Ranks are 1-based positions; ties do not share a rank.
func rankRecords(records []domain.SubmissionRecord, topN int) []domain.LeaderboardEntry {
	byUser := make(map[int64]*userTotals)
	for _, r := range records {
		t, ok := byUser[r.UserID]
		if !ok {
			t = &userTotals{userID: r.UserID, username: r.Username}
			byUser[r.UserID] = t
		}
		t.totalScore += r.Score
		t.pctSum += r.Percentage
		t.count++
	}

	entries := make([]domain.LeaderboardEntry, 0, len(byUser))
	for _, t := range byUser {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:            t.userID,
			Username:          t.username,
			TotalScore:        t.totalScore,
			AveragePercentage: round2(t.pctSum / float64(t.count)),
			QuizzesCompleted:  t.count,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AveragePercentage != entries[j].AveragePercentage {
			return entries[i].AveragePercentage > entries[j].AveragePercentage
		}
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return TopN(entries, topN)
}

// TopN returns a copy of the first n ranked entries, or all of them when n <= 0.
func TopN(entries []domain.LeaderboardEntry, n int) []domain.LeaderboardEntry {
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return append([]domain.LeaderboardEntry{}, entries...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
