// Package api provides HTTP handlers for MenuFlow endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/menuflow/menuflow/internal/messaging"
	"github.com/menuflow/menuflow/internal/models"
)

// twilioWebhookHandler accepts Twilio's inbound message webhook. Twilio posts
// application/x-www-form-urlencoded with From and Body; interactive replies
// carry the selected option in ButtonPayload, which wins over Body.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.twilioWebhookHandler: processing webhook", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: failed to parse form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form payload"))
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if payload := r.PostFormValue("ButtonPayload"); payload != "" {
		body = payload
	}
	if from == "" {
		slog.Warn("Server.twilioWebhookHandler: missing From field")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing From field"))
		return
	}

	s.injectResponse(w, models.Response{From: from, Body: body, Time: time.Now().Unix()})
}

// responseHandler accepts a JSON-encoded inbound message for manual
// injection, mirroring what the channel would deliver.
func (s *Server) responseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.responseHandler: processing response", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var resp models.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		slog.Warn("Server.responseHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if resp.From == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing from field"))
		return
	}
	if resp.Time == 0 {
		resp.Time = time.Now().Unix()
	}

	s.injectResponse(w, resp)
}

// injectResponse validates the sender and pushes the inbound message into
// the messaging service's responses channel.
func (s *Server) injectResponse(w http.ResponseWriter, resp models.Response) {
	canonicalFrom, err := s.msgService.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("Server.injectResponse: sender validation failed", "error", err, "from", resp.From)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	resp.From = canonicalFrom

	injector, ok := s.msgService.(messaging.ResponseInjector)
	if !ok {
		slog.Error("Server.injectResponse: messaging service does not accept injected responses")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Inbound injection not supported for this messaging backend"))
		return
	}
	if err := injector.InjectResponse(resp); err != nil {
		slog.Error("Server.injectResponse: injection failed", "error", err, "from", resp.From)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Failed to accept message"))
		return
	}

	slog.Info("Server.injectResponse: inbound message accepted", "from", resp.From)
	writeJSONResponse(w, http.StatusCreated, models.Recorded("Message accepted"))
}

// sessionsHandler serves read-only session state. With a user query
// parameter it peeks the live in-memory session; without one it lists
// persisted session snapshots.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		if s.st == nil {
			writeJSONResponse(w, http.StatusOK, models.Success([]models.SessionRecord{}))
			return
		}
		recs, err := s.st.ListSessions()
		if err != nil {
			slog.Error("Server.sessionsHandler: failed to list sessions", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(recs))
		return
	}

	canonicalID, err := s.msgService.ValidateAndCanonicalizeRecipient(userID)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	sess, ok := s.engine.Sessions().Peek(canonicalID)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No session for user"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// messagesHandler serves the persisted message log for a user.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.messagesHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Message log not configured"))
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user query parameter"))
		return
	}
	canonicalID, err := s.msgService.ValidateAndCanonicalizeRecipient(userID)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	recs, err := s.st.GetMessages(canonicalID)
	if err != nil {
		slog.Error("Server.messagesHandler: failed to get messages", "error", err, "userID", canonicalID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

// receiptsHandler serves the persisted delivery status events for a user.
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.receiptsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Receipt log not configured"))
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user query parameter"))
		return
	}
	canonicalID, err := s.msgService.ValidateAndCanonicalizeRecipient(userID)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	recs, err := s.st.GetReceipts(canonicalID)
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to get receipts", "error", err, "userID", canonicalID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get receipts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

// flowSummary describes the loaded flow definition.
type flowSummary struct {
	Name    string   `json:"name"`
	Start   string   `json:"start"`
	Steps   []string `json:"steps"`
	Intents []string `json:"intents"`
}

// flowHandler serves a summary of the loaded flow definition.
func (s *Server) flowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	f := s.engine.Flow()
	writeJSONResponse(w, http.StatusOK, models.Success(flowSummary{
		Name:    f.Name(),
		Start:   f.StartStepID(),
		Steps:   f.StepIDs(),
		Intents: f.Intents(),
	}))
}

// healthHandler reports liveness and the number of active sessions.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"sessions": s.engine.Sessions().Count(),
	}))
}
