package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("assessment-service/generator")

const maxResponseBytes = 1 << 20

// Config points the client at an OpenAI-compatible chat completions API.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client generates content through a chat completions endpoint. Replies are
// decoded into strict payload types; anything that does not fit is an error
// for the caller (usually Fallback) to handle.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	validate *validator.Validate
	log      *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	validate := validator.New()
	validate.RegisterStructValidation(exactlyOneCorrect, questionPayload{})
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, burst),
		validate: validate,
		log:      log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You are an assessment author for school students. Reply with JSON only, no prose and no markdown."

func (c *Client) GenerateQuiz(ctx context.Context, req app.QuizRequest) (domain.Quiz, error) {
	count := req.Count
	if count <= 0 {
		count = 5
	}
	var topics string
	if len(req.Topics) > 0 {
		topics = " Cover these topics: " + strings.Join(req.Topics, ", ") + "."
	}
	prompt := fmt.Sprintf(
		"Write a %s quiz for grade %d with exactly %d multiple-choice questions.%s "+
			"The student's recent average is %.0f%% over %d quizzes; pitch difficulty accordingly. "+
			`Schema: {"title": string, "description"?: string, "durationMinutes"?: int, `+
			`"questions": [{"text": string, "hint"?: string, "difficulty"?: "easy"|"medium"|"hard", `+
			`"answers": [{"text": string, "correct": bool}]}]}. Each question has 2-6 answers and exactly one correct answer.`,
		req.Subject, req.GradeLevel, count, topics, req.Signal.AveragePercentage, req.Signal.CompletedCount,
	)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return domain.Quiz{}, err
	}
	var payload quizPayload
	if err := c.decode(content, &payload); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}
	return payload.toDomain(), nil
}

func (c *Client) GenerateHint(ctx context.Context, question domain.Question) (string, error) {
	options := make([]string, 0, len(question.Answers))
	for _, a := range question.Answers {
		options = append(options, a.Text)
	}
	prompt := fmt.Sprintf(
		`Give one short hint for this question without revealing the answer. Question: %q. Options: %q. Schema: {"hint": string}.`,
		question.Text, options,
	)
	content, err := c.chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	var payload hintPayload
	if err := c.decode(content, &payload); err != nil {
		return "", fmt.Errorf("decode hint: %w", err)
	}
	return strings.TrimSpace(payload.Hint), nil
}

func (c *Client) GenerateSuggestions(ctx context.Context, quiz domain.Quiz, submission domain.Submission) ([]string, error) {
	missed := make([]string, 0)
	questions := make(map[int64]string, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions[q.ID] = q.Text
	}
	for _, a := range submission.Answers {
		if !a.Correct {
			missed = append(missed, questions[a.QuestionID])
		}
	}
	prompt := fmt.Sprintf(
		"A grade %d student scored %d/%d (%.0f%%) on a %s quiz titled %q. Questions missed: %q. "+
			`Suggest 1-5 concrete next steps. Schema: {"suggestions": [string]}.`,
		quiz.GradeLevel, submission.Score, submission.TotalPoints, submission.Percentage, quiz.Subject, quiz.Title, missed,
	)
	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var payload suggestionsPayload
	if err := c.decode(content, &payload); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	out := make([]string, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func (c *Client) chat(ctx context.Context, prompt string) (content string, err error) {
	ctx, span := tracer.Start(ctx, "generator.chat", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("generator.model", c.cfg.Model))

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", err
	}
	if len(raw) > maxResponseBytes {
		return "", fmt.Errorf("generator response exceeds %d bytes", maxResponseBytes)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.Debug("generator call", zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator API error (status %d): %s", resp.StatusCode, truncateBody(raw))
	}

	var result chatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("generator API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("generator returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// decode strictly unmarshals content into v and validates it. Unknown fields
// are rejected.
func (c *Client) decode(content string, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(stripFence(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return c.validate.Struct(v)
}

// stripFence removes a surrounding ```json fence some models add anyway.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
