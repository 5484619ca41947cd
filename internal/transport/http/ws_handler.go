package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler runs one attempt session per websocket connection. The timer
// is server-pushed: a per-connection ticker observes the state machine
// every second and the expiry auto-submit happens here, not on a client
// poll.
type WSHandler struct {
	quizzes  *app.QuizService
	attempts *app.AttemptService
	registry app.AttemptRegistry
	upgrader websocket.Upgrader
	tick     time.Duration
	clock    func() time.Time
}

func NewWSHandler(quizzes *app.QuizService, attempts *app.AttemptService, registry app.AttemptRegistry) *WSHandler {
	return NewWSHandlerWithClock(quizzes, attempts, registry, time.Second, time.Now)
}

// NewWSHandlerWithClock is test-only for deterministic timers.
func NewWSHandlerWithClock(quizzes *app.QuizService, attempts *app.AttemptService, registry app.AttemptRegistry, tick time.Duration, clock func() time.Time) *WSHandler {
	return &WSHandler{
		quizzes:  quizzes,
		attempts: attempts,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick:  tick,
		clock: clock,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type startPayload struct {
	QuizID int    `json:"quiz_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type answerPayload struct {
	Question int `json:"question"`
	Option   int `json:"option"`
}

type startedPayload struct {
	Quiz     studentQuizView `json:"quiz"`
	TimeLeft domain.TimeLeft `json:"time_left"`
}

// ServeWS upgrades the connection and wires it into the attempt use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	attempt := app.NewAttemptWithClock(h.clock)
	h.registry.Put(sessionID, attempt)
	defer h.registry.Delete(sessionID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		for {
			select {
			case <-closeSignals:
				return
			case <-ticker.C:
				h.observe(r, attempt, send, closeSignals)
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			h.handleStart(r, attempt, inbound.Payload, send)
		case "answer":
			h.handleAnswer(attempt, inbound.Payload, send)
		case "submit":
			h.handleSubmit(r, attempt, send)
		case "acknowledge":
			if err := attempt.Acknowledge(); err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "idle"}
		default:
			send <- errorMessage(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone
}

// observe pushes a tick and performs the one-shot auto-submit at expiry.
func (h *WSHandler) observe(r *http.Request, attempt *app.Attempt, send chan outboundMessage[any], closeSignals chan struct{}) {
	state := attempt.State()
	if state != app.StateActive && state != app.StateExpiredPending {
		return
	}

	left, pending := attempt.Observe()
	if !trySend(send, outboundMessage[any]{Type: "tick", Payload: left}, closeSignals) {
		return
	}
	if !pending {
		return
	}

	record, err := h.attempts.Submit(r.Context(), attempt, true)
	if err != nil && !errors.Is(err, domain.ErrPersistFailed) {
		// another observation won the race; nothing to push
		return
	}
	if errors.Is(err, domain.ErrPersistFailed) {
		log.Printf("auto submit record: %v", err)
	}
	trySend(send, outboundMessage[any]{Type: "expired", Payload: left}, closeSignals)
	trySend(send, outboundMessage[any]{Type: "result", Payload: record}, closeSignals)
}

func (h *WSHandler) handleStart(r *http.Request, attempt *app.Attempt, payload json.RawMessage, send chan outboundMessage[any]) {
	var req startPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		send <- errorMessage(errors.New("invalid start payload"))
		return
	}
	quiz, err := h.quizzes.Get(r.Context(), req.QuizID)
	if err != nil {
		send <- errorMessage(err)
		return
	}
	if err := attempt.Start(quiz, req.Name, req.Email); err != nil {
		send <- errorMessage(err)
		return
	}
	left, _ := attempt.Observe()
	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		Quiz:     newStudentQuizView(quiz),
		TimeLeft: left,
	}}
}

func (h *WSHandler) handleAnswer(attempt *app.Attempt, payload json.RawMessage, send chan outboundMessage[any]) {
	var req answerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		send <- errorMessage(errors.New("invalid answer payload"))
		return
	}
	if err := attempt.SelectAnswer(req.Question, req.Option); err != nil {
		send <- errorMessage(err)
		return
	}
	send <- outboundMessage[any]{Type: "answer_saved", Payload: req}
}

func (h *WSHandler) handleSubmit(r *http.Request, attempt *app.Attempt, send chan outboundMessage[any]) {
	record, err := h.attempts.Submit(r.Context(), attempt, false)
	if err != nil && !errors.Is(err, domain.ErrPersistFailed) {
		send <- errorMessage(err)
		return
	}
	if errors.Is(err, domain.ErrPersistFailed) {
		log.Printf("submit record: %v", err)
	}
	send <- outboundMessage[any]{Type: "result", Payload: record}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

func trySend(send chan outboundMessage[any], msg outboundMessage[any], closeSignals chan struct{}) bool {
	select {
	case send <- msg:
		return true
	case <-closeSignals:
		return false
	}
}
