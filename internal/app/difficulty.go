package app

import (
	"context"

	"assessment-service/internal/domain"
)

// DifficultyConfig holds the thresholds that map performance to a tier.
// An average at or above HardThreshold is Hard, at or above MediumThreshold
// is Medium, anything lower is Easy.
type DifficultyConfig struct {
	HardThreshold   float64
	MediumThreshold float64
}

func DefaultDifficultyConfig() DifficultyConfig {
	return DifficultyConfig{HardThreshold: 80, MediumThreshold: 60}
}

// DifficultyAdapter retags questions before a quiz is served again.
type DifficultyAdapter struct {
	estimator *PerformanceEstimator
	cfg       DifficultyConfig
}

func NewDifficultyAdapter(estimator *PerformanceEstimator, cfg DifficultyConfig) *DifficultyAdapter {
	return &DifficultyAdapter{estimator: estimator, cfg: cfg}
}

// Tier maps an average percentage to a tier; the first matching threshold wins.
func (c DifficultyConfig) Tier(average float64) domain.Difficulty {
	switch {
	case average >= c.HardThreshold:
		return domain.DifficultyHard
	case average >= c.MediumThreshold:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyEasy
	}
}

// TierFor maps an average percentage to a tier using the adapter's thresholds.
func (a *DifficultyAdapter) TierFor(average float64) domain.Difficulty {
	return a.cfg.Tier(average)
}

// Apply returns a copy of questions with every question set to the tier
// implied by signal and its points set to that tier's weight.
func (a *DifficultyAdapter) Apply(questions []domain.Question, signal domain.PerformanceSignal) []domain.Question {
	tier := a.TierFor(signal.AveragePercentage)
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.Difficulty = tier
		q.Points = tier.Weight()
		out[i] = q
	}
	return out
}

// Adapt estimates the user's performance and applies it to questions.
// The only error is the estimator's.
func (a *DifficultyAdapter) Adapt(ctx context.Context, questions []domain.Question, userID int64, subject string, gradeLevel int) ([]domain.Question, error) {
	signal, err := a.estimator.Estimate(ctx, userID, subject, gradeLevel)
	if err != nil {
		return nil, err
	}
	return a.Apply(questions, signal), nil
}
