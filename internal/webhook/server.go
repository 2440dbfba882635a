// ABOUTME: HTTP surface for the webhook gateway: handshake, delivery, health
// ABOUTME: Authenticates with per-app HMAC signatures before any parsing or state access

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/chatfront/waba-gateway/internal/auth"
	"github.com/chatfront/waba-gateway/internal/conversation"
	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
	"github.com/chatfront/waba-gateway/internal/vertical"
)

// maxBodyBytes caps delivery payload size. Provider payloads are small;
// anything near this limit is not a legitimate delivery.
const maxBodyBytes = 1 << 20

// Conversations is what the server needs from the conversation layer.
type Conversations interface {
	ProcessInbound(ctx context.Context, biz *registry.BusinessProfile, ev *conversation.InboundEvent) (*conversation.Outbound, error)
}

// Server handles the provider-facing webhook endpoints. One instance
// serves all registered apps; the app ID in the path selects credentials.
type Server struct {
	registry      registry.Registry
	conversations Conversations
	logger        *slog.Logger
}

// NewServer creates a webhook server over the given registry and
// conversation layer.
func NewServer(reg registry.Registry, conv Conversations, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:      reg,
		conversations: conv,
		logger:        logger.With("component", "webhook"),
	}
}

// Routes returns the mux with all webhook endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /webhook/{appID}", s.handleVerify)
	mux.HandleFunc("POST /webhook/{appID}", s.handleDelivery)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// handleVerify answers the provider's subscription handshake: echo the
// challenge when the mode and verify token match, reject otherwise.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("appID")

	app, err := s.registry.GetApp(r.Context(), appID)
	if err != nil {
		s.logger.Warn("handshake for unknown app", "app_id", appID)
		http.Error(w, "unknown app", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != app.VerifyToken {
		s.logger.Warn("handshake rejected", "app_id", appID, "mode", mode)
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	s.logger.Info("handshake verified", "app_id", appID)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// handleDelivery processes one provider POST. Order matters: resolve the
// app, verify the signature over the exact raw bytes, and only then parse
// and touch conversation state.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("appID")

	app, err := s.registry.GetApp(r.Context(), appID)
	if err != nil {
		s.logger.Warn("delivery for unknown app", "app_id", appID)
		http.Error(w, "unknown app", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	verifier := auth.NewSignatureVerifier([]byte(app.AppSecret))
	if err := verifier.Verify(body, r.Header.Get(auth.SignatureHeader)); err != nil {
		s.logger.Warn("delivery rejected", "app_id", appID, "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	payload, err := ParsePayload(body)
	if err != nil {
		s.logger.Warn("malformed delivery", "app_id", appID, "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	for _, d := range payload.Deliveries() {
		if err := s.process(r.Context(), d); err != nil {
			s.fail(w, appID, d, err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "EVENT_RECEIVED")
}

// process routes one normalized message to its business's conversation.
func (s *Server) process(ctx context.Context, d Delivery) error {
	biz, err := s.registry.GetBusinessByPhoneNumberID(ctx, d.PhoneNumberID)
	if err != nil {
		return err
	}

	_, err = s.conversations.ProcessInbound(ctx, biz, d.Event)
	return err
}

// fail maps a processing error onto the response status. 5xx statuses
// tell the provider to redeliver; 4xx statuses are final.
func (s *Server) fail(w http.ResponseWriter, appID string, d Delivery, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrBusinessNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vertical.ErrUnsupportedVertical):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrLeaseTimeout),
		errors.Is(err, session.ErrVersionConflict):
		// Transient contention: let the provider redeliver.
		status = http.StatusServiceUnavailable
	}

	s.logger.Error("delivery processing failed",
		"app_id", appID,
		"phone_number_id", d.PhoneNumberID,
		"message_id", d.Event.MessageID,
		"status", status,
		"error", err)
	http.Error(w, http.StatusText(status), status)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
