package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// HistoryReader reads committed, completed submissions joined with their
// quiz and user straight off the pgx pool.
type HistoryReader struct {
	pool *pgxpool.Pool
}

func NewHistoryReader(pool *pgxpool.Pool) *HistoryReader {
	return &HistoryReader{pool: pool}
}

func (r *HistoryReader) CompletedSubmissions(ctx context.Context, query domain.HistoryQuery) ([]domain.SubmissionRecord, error) {
	sql, args := buildHistoryQuery(query)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.SubmissionRecord, 0)
	for rows.Next() {
		var rec domain.SubmissionRecord
		if err := rows.Scan(
			&rec.SubmissionID,
			&rec.UserID,
			&rec.Username,
			&rec.QuizID,
			&rec.QuizTitle,
			&rec.Subject,
			&rec.GradeLevel,
			&rec.Score,
			&rec.TotalPoints,
			&rec.Percentage,
			&rec.StartedAt,
			&rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

func buildHistoryQuery(query domain.HistoryQuery) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, 5)
	placeholder := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	b.WriteString(`SELECT s.id, s.user_id, COALESCE(u.username, ''), s.quiz_id, q.title, q.subject, q.grade_level,
       s.score, s.total_points, s.percentage, s.started_at, s.completed_at
FROM quiz_submissions s
JOIN quizzes q ON q.id = s.quiz_id
LEFT JOIN users u ON u.id = s.user_id
WHERE s.completed_at IS NOT NULL`)
	if query.UserID != 0 {
		b.WriteString(" AND s.user_id = " + placeholder(query.UserID))
	}
	if query.Subject != "" {
		b.WriteString(" AND q.subject = " + placeholder(query.Subject))
	}
	if query.GradeLevel != 0 {
		b.WriteString(" AND q.grade_level = " + placeholder(query.GradeLevel))
	}
	b.WriteString(" ORDER BY s.completed_at DESC, s.id DESC")
	if query.Limit > 0 {
		b.WriteString(" LIMIT " + placeholder(query.Limit))
	}
	if query.Offset > 0 {
		b.WriteString(" OFFSET " + placeholder(query.Offset))
	}
	return b.String(), args
}
