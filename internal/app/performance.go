package app

import (
	"context"

	"assessment-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PerformanceConfig controls the rolling performance window.
type PerformanceConfig struct {
	// Window is how many of the most recent completed submissions are averaged.
	Window int
	// DefaultAverage is the assumed starting skill when there is no history.
	DefaultAverage float64
}

// DefaultPerformanceConfig averages the last 5 submissions and assumes 50% with no history.
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{Window: 5, DefaultAverage: 50}
}

// PerformanceEstimator computes a user's rolling performance for a subject and grade.
type PerformanceEstimator struct {
	history HistoryRepository
	cfg     PerformanceConfig
}

func NewPerformanceEstimator(history HistoryRepository, cfg PerformanceConfig) *PerformanceEstimator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultPerformanceConfig().Window
	}
	return &PerformanceEstimator{history: history, cfg: cfg}
}

// Estimate averages the percentage of the user's most recent completed
// submissions on quizzes matching subject and gradeLevel.
func (e *PerformanceEstimator) Estimate(ctx context.Context, userID int64, subject string, gradeLevel int) (domain.PerformanceSignal, error) {
	ctx, span := tracer.Start(ctx, "PerformanceEstimator.Estimate")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("quiz.subject", subject),
		attribute.Int("quiz.grade_level", gradeLevel),
	)

	records, err := e.history.CompletedSubmissions(ctx, domain.HistoryQuery{
		UserID:     userID,
		Subject:    subject,
		GradeLevel: gradeLevel,
		Limit:      e.cfg.Window,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.PerformanceSignal{}, domain.Internal(err, "load performance history")
	}
	return summarize(records, e.cfg), nil
}

func summarize(records []domain.SubmissionRecord, cfg PerformanceConfig) domain.PerformanceSignal {
	if len(records) > cfg.Window {
		records = records[:cfg.Window]
	}
	if len(records) == 0 {
		return domain.PerformanceSignal{AveragePercentage: cfg.DefaultAverage, CompletedCount: 0}
	}
	sum := 0.0
	for _, r := range records {
		sum += r.Percentage
	}
	return domain.PerformanceSignal{
		AveragePercentage: sum / float64(len(records)),
		CompletedCount:    len(records),
	}
}
