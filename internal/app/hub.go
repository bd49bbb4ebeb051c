package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// LeaderboardHub pushes re-ranked leaderboards to subscribers after each
// committed grading that affects their filter.
type LeaderboardHub struct {
	ranker Ranker
	now    func() time.Time

	mu          sync.Mutex
	subscribers map[*subscription]struct{}
}

type subscription struct {
	filter domain.LeaderboardFilter
	topN   int
	ch     chan domain.Leaderboard
	// delivered is set once any leaderboard has been queued. Guarded by hub mu.
	delivered bool
}

type subscriptionKey struct {
	filter domain.LeaderboardFilter
	topN   int
}

func NewLeaderboardHub(ranker Ranker) *LeaderboardHub {
	return NewLeaderboardHubWithClock(ranker, time.Now)
}

// NewLeaderboardHubWithClock allows deterministic timestamps in tests.
func NewLeaderboardHubWithClock(ranker Ranker, now func() time.Time) *LeaderboardHub {
	return &LeaderboardHub{
		ranker:      ranker,
		now:         now,
		subscribers: make(map[*subscription]struct{}),
	}
}

// Subscribe returns a channel that receives the current ranking for filter
// and then every update. The subscription is registered before the initial
// ranking is taken, so a grading that commits meanwhile is still pushed.
// The caller must invoke cancel to avoid leaks.
func (h *LeaderboardHub) Subscribe(ctx context.Context, filter domain.LeaderboardFilter, topN int) (<-chan domain.Leaderboard, func(), error) {
	sub := &subscription{filter: filter, topN: topN, ch: make(chan domain.Leaderboard, 8)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[sub]; ok {
			delete(h.subscribers, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}

	entries, err := h.ranker.Rank(ctx, filter, topN)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	h.mu.Lock()
	// A push queued meanwhile was ranked after registration, and any later
	// grading pushes on its own, so the snapshot adds nothing.
	if !sub.delivered {
		if _, ok := h.subscribers[sub]; ok {
			publishLocked(sub, h.snapshot(filter, entries))
		}
	}
	h.mu.Unlock()
	return sub.ch, cancel, nil
}

// Subscribers reports how many subscriptions are open.
func (h *LeaderboardHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// SubmissionGraded re-ranks once per affected (filter, topN) and fans out.
func (h *LeaderboardHub) SubmissionGraded(ctx context.Context, quiz domain.Quiz, _ domain.GradingResult) error {
	h.mu.Lock()
	groups := make(map[subscriptionKey][]*subscription)
	for sub := range h.subscribers {
		if !sub.filter.Matches(quiz.Subject, quiz.GradeLevel) {
			continue
		}
		key := subscriptionKey{filter: sub.filter, topN: sub.topN}
		groups[key] = append(groups[key], sub)
	}
	h.mu.Unlock()

	var errs []error
	for key, subs := range groups {
		entries, err := h.ranker.Rank(ctx, key.filter, key.topN)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lb := h.snapshot(key.filter, entries)

		h.mu.Lock()
		for _, sub := range subs {
			if _, ok := h.subscribers[sub]; !ok {
				continue
			}
			publishLocked(sub, lb)
		}
		h.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (h *LeaderboardHub) snapshot(filter domain.LeaderboardFilter, entries []domain.LeaderboardEntry) domain.Leaderboard {
	return domain.Leaderboard{Filter: filter, Entries: entries, UpdatedAt: h.now()}
}

// publishLocked drops the oldest queued update when a subscriber is slow,
// so a stalled client never blocks grading.
func publishLocked(sub *subscription, lb domain.Leaderboard) {
	sub.delivered = true
	ch := sub.ch
	select {
	case ch <- lb:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- lb
	}
}
