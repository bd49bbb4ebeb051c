package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler serves the live channel: quiz takers submit answers and follow
// a leaderboard that is pushed again after every matching grading.
type WSHandler struct {
	grading  *app.GradingService
	hub      *app.LeaderboardHub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(grading *app.GradingService, hub *app.LeaderboardHub, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		grading: grading,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	QuizID  int64                     `json:"quizId"`
	Answers []domain.AnswerSubmission `json:"answers"`
}

type subscribePayload struct {
	Subject    string `json:"subject"`
	GradeLevel int    `json:"gradeLevel"`
	Limit      int    `json:"limit"`
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       int64  `json:"userId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// connection owns the single writer goroutine and the current leaderboard
// subscription of one websocket.
type connection struct {
	id     string
	userID int64
	send   chan outboundMessage[any]
	done   chan struct{}
	stop   sync.Once

	mu          sync.Mutex
	unsubscribe func()
	forwarders  sync.WaitGroup
}

// push queues msg for the writer. It reports false once the writer is gone.
func (c *connection) push(msg outboundMessage[any]) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *connection) close() {
	c.stop.Do(func() { close(c.done) })
}

func (c *connection) pushError(err error) {
	status := statusFor(err)
	c.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: publicMessage(err, status)}})
}

// ServeWS upgrades HTTP requests to websockets and wires them into grading
// and the leaderboard hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		http.Error(w, "missing or invalid userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &connection{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan outboundMessage[any], 16),
		done:   make(chan struct{}),
	}
	log := h.log.With(zap.String("connectionId", c.id), zap.Int64("userId", userID))
	log.Info("ws connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Warn("ws write error", zap.Error(err))
					c.close()
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	c.push(outboundMessage[any]{Type: "connected", Payload: connectedPayload{ConnectionID: c.id, UserID: userID}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			h.handleSubmit(ctx, c, inbound.Payload, log)
		case "subscribe":
			h.handleSubscribe(ctx, c, inbound.Payload)
		case "unsubscribe":
			c.replaceSubscription(nil)
		default:
			c.pushError(domain.Validation("unsupported message type %q", inbound.Type))
		}
	}

	c.replaceSubscription(nil)
	c.forwarders.Wait()
	c.close()
	<-writerDone
	log.Info("ws disconnected")
}

func (h *WSHandler) handleSubmit(ctx context.Context, c *connection, raw json.RawMessage, log *zap.Logger) {
	var payload submitPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.QuizID <= 0 {
		c.pushError(domain.Validation("invalid submit payload"))
		return
	}
	result, err := h.grading.Grade(ctx, payload.QuizID, c.userID, payload.Answers)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			log.Error("ws grading failed", zap.Int64("quizId", payload.QuizID), zap.Error(err))
		}
		c.pushError(err)
		return
	}
	c.push(outboundMessage[any]{Type: "gradingResult", Payload: result})
}

func (h *WSHandler) handleSubscribe(ctx context.Context, c *connection, raw json.RawMessage) {
	var payload subscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.pushError(domain.Validation("invalid subscribe payload"))
			return
		}
	}
	if payload.GradeLevel < 0 || payload.Limit < 0 {
		c.pushError(domain.Validation("gradeLevel and limit must not be negative"))
		return
	}

	filter := domain.LeaderboardFilter{Subject: payload.Subject, GradeLevel: payload.GradeLevel}
	updates, unsubscribe, err := h.hub.Subscribe(ctx, filter, payload.Limit)
	if err != nil {
		c.pushError(err)
		return
	}
	c.replaceSubscription(unsubscribe)

	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for lb := range updates {
			if !c.push(outboundMessage[any]{Type: "leaderboard", Payload: lb}) {
				return
			}
		}
	}()
}

// replaceSubscription cancels the current subscription, if any, and keeps next.
// Cancelling closes the update channel, which ends its forwarder.
func (c *connection) replaceSubscription(next func()) {
	c.mu.Lock()
	prev := c.unsubscribe
	c.unsubscribe = next
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
}
