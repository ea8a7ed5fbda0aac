package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/nota-agent/internal/app/conversation"
	"github.com/PabloGalante/nota-agent/internal/app/legislation"
	"github.com/PabloGalante/nota-agent/internal/app/notes"
	"github.com/PabloGalante/nota-agent/internal/app/planner"
	"github.com/PabloGalante/nota-agent/internal/app/session"
	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

type Deps struct {
	Chats       *conversation.Service
	Planner     *planner.Service
	Notes       *notes.Service
	Legislation *legislation.Catalog
	Monitor     *session.Monitor
	// Sessions is optional; without it the sign-in and sign-out routes
	// answer 501.
	Sessions domain.SessionWriter
}

type Server struct {
	Deps
	now func() time.Time
}

func NewServer(deps Deps) http.Handler {
	s := &Server{Deps: deps, now: time.Now}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/session/signin", s.handleSignIn)
	mux.HandleFunc("/session/signout", s.handleSignOut)
	mux.HandleFunc("/legislation", s.handleLegislation)

	// /chats → list (GET), create (POST)
	mux.HandleFunc("/chats", s.requireUser(s.handleChats))

	// /chats/{id}          → GET: chat + messages
	// /chats/{id}/messages → POST: send message
	mux.HandleFunc("/chats/", s.requireUser(s.handleChatWithID))

	mux.HandleFunc("/timeline", s.requireUser(s.handleTimeline))
	mux.HandleFunc("/timeline/generate", s.requireUser(s.handleGenerate))
	mux.HandleFunc("/timeline.ics", s.requireUser(s.handleTimelineICS))
	mux.HandleFunc("/notes", s.requireUser(s.handleNotes))

	return chainMiddlewares(mux, withRequestID, withLogging, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sessionResponse struct {
	State string           `json:"state"`
	View  string           `json:"view"`
	User  *domain.Identity `json:"user,omitempty"`
}

type signInRequest struct {
	Email string `json:"email"`
}

type createChatRequest struct {
	Title string `json:"title,omitempty"`
}

type chatResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type createChatResponse struct {
	Chat    chatResponse    `json:"chat"`
	Welcome messageResponse `json:"welcome_message"`
}

type messageResponse struct {
	ID        string    `json:"id,omitempty"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage  messageResponse         `json:"user_message"`
	ModelMessage messageResponse         `json:"model_message"`
	Grounding    []domain.GroundingChunk `json:"grounding,omitempty"`
	Fallback     bool                    `json:"fallback"`
}

type getChatResponse struct {
	Chat     chatResponse      `json:"chat"`
	Messages []messageResponse `json:"messages"`
	Busy     bool              `json:"busy"`
}

type eventResponse struct {
	domain.PlannedEvent
	CalendarURL string `json:"calendar_url"`
}

type timelineResponse struct {
	Events []eventResponse `json:"events"`
	Busy   bool            `json:"busy"`
}

type generateRequest struct {
	Topic string `json:"topic"`
}

type generateResponse struct {
	Added  int             `json:"added"`
	Events []eventResponse `json:"events"`
	Reason string          `json:"reason,omitempty"`
}

type addNoteRequest struct {
	Content string `json:"content"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ─────────────────────────────────────────────
// Session gate
// ─────────────────────────────────────────────

type userHandler func(w http.ResponseWriter, r *http.Request, user domain.Identity)

// requireUser serves h only while the monitor reports a signed-in user.
func (s *Server) requireUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := s.Monitor.Current()
		if !current.Present() {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		h(w, r, *current.Identity)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionView())
}

// handleSignIn starts a session for the posted email. Providers that
// announce changes asynchronously may still report the previous state.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.Sessions == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "sign-in is not available"})
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if !strings.Contains(req.Email, "@") {
		badRequest(w, "a valid email is required")
		return
	}

	if err := s.Sessions.SignIn(r.Context(), session.LocalIdentity(req.Email)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView())
}

// handleSignOut ends the current session. Signing out while signed out is
// not an error.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.Sessions == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "sign-out is not available"})
		return
	}

	if err := s.Sessions.SignOut(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) sessionView() sessionResponse {
	return sessionResponse{
		State: string(s.Monitor.State()),
		View:  string(s.Monitor.View()),
		User:  s.Monitor.Current().Identity,
	}
}

func (s *Server) handleLegislation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	priority, _ := strconv.ParseBool(r.URL.Query().Get("priority"))
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Legislation.List(priority)})
}

// ─────────────────────────────────────────────
// Chats
// ─────────────────────────────────────────────

// /chats
func (s *Server) handleChats(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		chats, err := s.Chats.ListChats(r.Context(), user.UserID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]chatResponse, 0, len(chats))
		for _, c := range chats {
			out = append(out, toChatResponse(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": out})

	case http.MethodPost:
		var req createChatRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				badRequest(w, "invalid JSON body")
				return
			}
		}

		chat, err := s.Chats.StartChat(r.Context(), conversation.StartChatInput{
			UserID: user.UserID,
			Title:  req.Title,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, createChatResponse{
			Chat: toChatResponse(chat),
			Welcome: messageResponse{
				ChatID:    string(chat.ID),
				Role:      string(domain.RoleModel),
				Text:      conversation.WelcomeText,
				CreatedAt: chat.CreatedAt,
			},
		})

	default:
		methodNotAllowed(w)
	}
}

// /chats/{id} or /chats/{id}/messages
func (s *Server) handleChatWithID(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/chats/")
	parts := strings.Split(path, "/")
	id := domain.ChatID(parts[0])

	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleGetChat(w, r, user, id)

	case len(parts) == 2 && parts[1] == "messages":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleSendMessage(w, r, user, id)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request, user domain.Identity, id domain.ChatID) {
	chat, msgs, busy, err := s.Chats.GetChat(r.Context(), id, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}

	writeJSON(w, http.StatusOK, getChatResponse{
		Chat:     toChatResponse(chat),
		Messages: out,
		Busy:     busy,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, user domain.Identity, id domain.ChatID) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	res, err := s.Chats.SendMessage(r.Context(), conversation.SendMessageInput{
		ChatID: id,
		UserID: user.UserID,
		Text:   req.Text,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		UserMessage:  toMessageResponse(res.UserMessage),
		ModelMessage: toMessageResponse(res.ModelMessage),
		Grounding:    res.Grounding,
		Fallback:     res.GenerationErr != nil,
	})
}

// ─────────────────────────────────────────────
// Timeline
// ─────────────────────────────────────────────

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tl, busy, err := s.Planner.Timeline(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse{Events: toEventsResponse(tl), Busy: busy})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	res, err := s.Planner.Generate(r.Context(), user.UserID, req.Topic)
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case errors.Is(res.Reason, planner.ErrEmptyTopic):
		badRequest(w, "topic is required")
		return
	case errors.Is(res.Reason, planner.ErrGenerationInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "plan generation already in progress"})
		return
	}

	resp := generateResponse{
		Added:  res.Added(),
		Events: toEventsResponse(res.Timeline),
	}
	if res.Reason != nil {
		resp.Reason = failureReason(res.Reason)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTimelineICS(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tl, _, err := s.Planner.Timeline(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="nota-timeline.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(planner.ExportICS(user.UserID, tl, s.now())))
}

// ─────────────────────────────────────────────
// Notes
// ─────────────────────────────────────────────

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := s.Notes.ListNotes(r.Context(), user.UserID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]noteResponse, 0, len(list))
		for _, n := range list {
			out = append(out, toNoteResponse(n))
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": out})

	case http.MethodPost:
		var req addNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		note, err := s.Notes.AddNote(r.Context(), user.UserID, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toNoteResponse(note))

	default:
		methodNotAllowed(w)
	}
}

// ─────────────────────────────────────────────
// Mapping helpers
// ─────────────────────────────────────────────

func toChatResponse(c *domain.Chat) chatResponse {
	return chatResponse{
		ID:        string(c.ID),
		UserID:    string(c.UserID),
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toMessageResponse(m domain.Message) messageResponse {
	resp := messageResponse{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		Role:      string(m.Role),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
	if m.Role == domain.RoleModel {
		resp.HTML = renderMarkdown(m.Text)
	}
	return resp
}

func toEventsResponse(tl domain.EventTimeline) []eventResponse {
	out := make([]eventResponse, 0, len(tl))
	for _, ev := range tl {
		out = append(out, eventResponse{PlannedEvent: ev, CalendarURL: planner.GoogleCalendarLink(ev)})
	}
	return out
}

func toNoteResponse(n *domain.Note) noteResponse {
	return noteResponse{
		ID:        string(n.ID),
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, planner.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, planner.ErrSchemaViolation):
		return "schema_violation"
	}
	if kind := domain.GenerationErrorKindOf(err); kind != "" {
		return string(kind)
	}
	return "generation_failed"
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "sign in required"
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrChatNotFound):
		status, msg = http.StatusNotFound, "chat not found"
	case errors.Is(err, domain.ErrEmptyNote):
		status, msg = http.StatusBadRequest, "content is required"
	case errors.Is(err, conversation.ErrEmptyTurn):
		status, msg = http.StatusBadRequest, "text is required"
	case errors.Is(err, conversation.ErrTurnInFlight):
		status, msg = http.StatusConflict, "a reply is still being generated"
	default:
		observability.Logger().Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
