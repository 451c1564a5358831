package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	pollengine "bobbot/contexts/chat-moderation/poll-engine"
	pollerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	pollhttp "bobbot/contexts/chat-moderation/poll-engine/transport/http"
)

// Server is the operator read API. All moderation writes flow through the
// chat transport; this surface only inspects poll state.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	polls  pollengine.Module
}

func New(polls pollengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		polls:  polls,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/voters", s.handleListVoters)
	s.mux.HandleFunc("GET /api/v1/chats/{chat_id}/polls", s.handleListOpenPolls)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("poll_id")
	resp, err := s.polls.OpsHandler.GetPollHandler(r.Context(), pollID)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVoters(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("poll_id")
	choice := r.URL.Query().Get("choice")
	resp, err := s.polls.OpsHandler.ListVotersHandler(r.Context(), pollID, choice)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOpenPolls(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.PathValue("chat_id"), 10, 64)
	if err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_chat_id", "chat_id must be an integer")
		return
	}
	resp, err := s.polls.OpsHandler.ListOpenPollsHandler(r.Context(), chatID)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pollerrors.ErrPollNotFound):
		writePollError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, pollerrors.ErrVoteNotFound):
		writePollError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidChoice):
		writePollError(w, http.StatusBadRequest, "invalid_choice", err.Error())
	case errors.Is(err, pollerrors.ErrPollEnded):
		writePollError(w, http.StatusConflict, "poll_ended", err.Error())
	case pollerrors.IsPollLimitReached(err):
		writePollError(w, http.StatusTooManyRequests, "poll_limit_reached", err.Error())
	default:
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
