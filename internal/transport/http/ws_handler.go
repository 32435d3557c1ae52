package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/autosave"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

// ConnectionObserver is notified when websocket sessions open and close.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

// WSOption configures a WSHandler.
type WSOption func(*WSHandler)

func WithWSLogger(logger *slog.Logger) WSOption {
	return func(h *WSHandler) { h.logger = logger }
}

// WithAutosaveDelays sets the debounce windows for option picks and typed numbers.
func WithAutosaveDelays(selection, typing time.Duration) WSOption {
	return func(h *WSHandler) {
		h.selectionDelay = selection
		h.typingDelay = typing
	}
}

func WithAutosaveClock(clock autosave.Clock) WSOption {
	return func(h *WSHandler) { h.clock = clock }
}

func WithSaveObserver(o autosave.Observer) WSOption {
	return func(h *WSHandler) { h.observer = o }
}

func WithConnectionObserver(o ConnectionObserver) WSOption {
	return func(h *WSHandler) { h.conns = o }
}

// WSHandler runs one auto-saving prediction session per websocket.
type WSHandler struct {
	service  *app.LeagueService
	upgrader websocket.Upgrader
	logger   *slog.Logger

	selectionDelay time.Duration
	typingDelay    time.Duration
	flushTimeout   time.Duration
	clock          autosave.Clock
	observer       autosave.Observer
	conns          ConnectionObserver
}

func NewWSHandler(service *app.LeagueService, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		selectionDelay: 500 * time.Millisecond,
		typingDelay:    3 * time.Second,
		flushTimeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string        `json:"questionId"`
	Value      domain.Answer `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type joinedPayload struct {
	Participant domain.Participant `json:"participant"`
	Questions   []domain.Question  `json:"questions"`
}

type saveStatusPayload struct {
	State string `json:"state"`
	Scope string `json:"scope,omitempty"`
	Error string `json:"error,omitempty"`
}

// saveScope separates option picks from typed numbers; each scope has its
// own coordinator and only ever writes its own questions.
type saveScope int

const (
	scopeSelection saveScope = iota
	scopeTyping
)

func (s saveScope) String() string {
	if s == scopeSelection {
		return "selection"
	}
	return "typing"
}

func scopeFor(q domain.Question) saveScope {
	if q.Type == domain.QuestionRadio {
		return scopeSelection
	}
	return scopeTyping
}

// ServeWS upgrades HTTP requests to websockets. Query: leagueId plus either
// participantId (resume) or team (join).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	leagueID := r.URL.Query().Get("leagueId")
	participantID := r.URL.Query().Get("participantId")
	team := r.URL.Query().Get("team")
	if leagueID == "" || (participantID == "" && team == "") {
		http.Error(w, "missing leagueId and participantId or team", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	if h.conns != nil {
		h.conns.ConnectionOpened()
		defer h.conns.ConnectionClosed()
	}

	ctx := r.Context()
	var p domain.Participant
	if participantID != "" {
		p, err = h.service.GetParticipant(ctx, leagueID, participantID)
	} else {
		p, err = h.service.Join(ctx, leagueID, team)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	qs, err := h.service.Questions(ctx, leagueID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, leagueID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	// The writer keeps draining after a write error so emitters never block
	// while the session shuts down.
	go func() {
		defer close(writerDone)
		broken := false
		for {
			select {
			case msg := <-send:
				if broken {
					continue
				}
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("ws write error", slog.Any("error", err))
					broken = true
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				emit(outboundMessage[any]{Type: "leaderboard", Payload: update})
			case <-closeSignals:
				return
			}
		}
	}()

	s := h.newSession(leagueID, p.ID, qs, emit)
	logger := h.logger.With(slog.String("league_id", leagueID), slog.String("participant_id", p.ID))
	logger.InfoContext(ctx, "ws session started")

	emit(outboundMessage[any]{Type: "joined", Payload: joinedPayload{Participant: p, Questions: qs}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(errorMessage("invalid answer payload"))
				continue
			}
			if err := s.answer(payload); err != nil {
				emit(errorMessage(err.Error()))
			}
		case "submit":
			if err := s.flushAll(ctx); err != nil {
				emit(errorMessage(err.Error()))
				continue
			}
			if _, err := h.service.Submit(ctx, leagueID, p.ID); err != nil {
				emit(errorMessage(err.Error()))
				continue
			}
			emit(outboundMessage[any]{Type: "saveStatus", Payload: saveStatusPayload{State: "submitted"}})
		case "discard":
			s.discard()
			current, err := h.service.GetParticipant(ctx, leagueID, p.ID)
			if err != nil {
				emit(errorMessage(err.Error()))
				continue
			}
			emit(outboundMessage[any]{Type: "saveStatus", Payload: saveStatusPayload{State: "discarded"}})
			emit(outboundMessage[any]{Type: "participant", Payload: current})
		default:
			emit(errorMessage("unsupported message type"))
		}
	}

	s.close(logger)
	logger.InfoContext(ctx, "ws session ended")

	close(closeSignals)
	<-updatesDone
	<-writerDone
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// session holds the unsaved edits of one participant.
type session struct {
	service       *app.LeagueService
	leagueID      string
	participantID string
	questions     map[string]domain.Question
	coords        [2]*autosave.Coordinator
	emit          func(outboundMessage[any])
	flushTimeout  time.Duration
	stop          context.CancelFunc

	mu      sync.Mutex
	pending [2]domain.Answers
}

func (h *WSHandler) newSession(leagueID, participantID string, qs []domain.Question, emit func(outboundMessage[any])) *session {
	ctx, stop := context.WithCancel(context.Background())
	s := &session{
		service:       h.service,
		leagueID:      leagueID,
		participantID: participantID,
		questions:     indexQuestions(qs),
		emit:          emit,
		flushTimeout:  h.flushTimeout,
		stop:          stop,
		pending:       [2]domain.Answers{{}, {}},
	}
	for scope, delay := range [2]time.Duration{h.selectionDelay, h.typingDelay} {
		scope := saveScope(scope)
		opts := []autosave.Option{
			autosave.WithContext(ctx),
			autosave.WithLogger(h.logger),
			autosave.WithSettledHook(func(_ string, err error) { s.settled(scope, err) }),
		}
		if h.clock != nil {
			opts = append(opts, autosave.WithClock(h.clock))
		}
		if h.observer != nil {
			opts = append(opts, autosave.WithObserver(h.observer))
		}
		s.coords[scope] = autosave.New(delay, opts...)
	}
	return s
}

func (s *session) answer(p answerPayload) error {
	q, ok := s.questions[p.QuestionID]
	if !ok {
		return errors.New("unknown question " + p.QuestionID)
	}
	a, err := resolveAnswer(q, p.Value)
	if err != nil {
		return err
	}
	scope := scopeFor(q)
	s.mu.Lock()
	s.pending[scope][q.ID] = a
	s.mu.Unlock()

	s.coords[scope].ScheduleSave(s.participantID, s.saver(scope))
	s.emit(outboundMessage[any]{Type: "saveStatus", Payload: saveStatusPayload{State: "pending", Scope: scope.String()}})
	return nil
}

// saver returns the SaveFunc for scope. It takes whatever edits are pending
// when it runs; failed edits go back to pending unless a newer edit replaced them.
func (s *session) saver(scope saveScope) autosave.SaveFunc {
	return func(ctx context.Context) error {
		s.mu.Lock()
		edits := s.pending[scope]
		s.pending[scope] = domain.Answers{}
		s.mu.Unlock()
		if len(edits) == 0 {
			return nil
		}

		_, err := s.service.SavePredictions(ctx, s.leagueID, s.participantID, edits)
		if err != nil {
			s.mu.Lock()
			for id, a := range edits {
				if _, newer := s.pending[scope][id]; !newer {
					s.pending[scope][id] = a
				}
			}
			s.mu.Unlock()
		}
		return err
	}
}

func (s *session) settled(scope saveScope, err error) {
	status := saveStatusPayload{State: "saved", Scope: scope.String()}
	if err != nil {
		status.State = "error"
		status.Error = err.Error()
	}
	s.emit(outboundMessage[any]{Type: "saveStatus", Payload: status})
}

// flushAll writes both scopes now, selection first.
func (s *session) flushAll(ctx context.Context) error {
	var errs []error
	for scope, c := range s.coords {
		// A nil SaveFunc still waits for an in-flight save and returns its error.
		var fn autosave.SaveFunc
		if s.hasPending(saveScope(scope)) {
			fn = s.saver(saveScope(scope))
		}
		if err := c.Flush(ctx, s.participantID, fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *session) hasPending(scope saveScope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[scope]) > 0
}

func (s *session) discard() {
	for _, c := range s.coords {
		c.Cancel(s.participantID)
	}
	s.mu.Lock()
	s.pending = [2]domain.Answers{{}, {}}
	s.mu.Unlock()
}

// close flushes edits still waiting on a timer, then stops every timer.
func (s *session) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
	defer cancel()
	if err := s.flushAll(ctx); err != nil {
		logger.Warn("final flush failed", slog.Any("error", err))
	}
	for _, c := range s.coords {
		c.CancelAll()
	}
	s.stop()
}
