// ABOUTME: ConversationService orchestrates one webhook delivery end to end
// ABOUTME: Lease, load, dedupe replay, flow transition, render, version-guarded save

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatfront/waba-gateway/internal/flow"
	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/render"
	"github.com/chatfront/waba-gateway/internal/session"
	"github.com/chatfront/waba-gateway/internal/vertical"
)

// InboundEvent is the normalized, conversation-relevant form of one
// provider webhook message.
type InboundEvent struct {
	MessageID string
	From      string // customer phone number
	Kind      flow.EventKind
	Value     string
}

// SessionStore defines what the service needs from session storage
type SessionStore interface {
	Load(ctx context.Context, key session.Key) (*session.Session, error)
	Acquire(ctx context.Context, key session.Key, timeout time.Duration) (release func(), err error)
	Save(ctx context.Context, s *session.Session, expectedVersion int64) error
}

// Sender delivers rendered text to the customer via the provider's send
// API. Delivery itself is outside this core; failures are logged, never
// surfaced as webhook errors.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// LoggingSender is the default Sender: it logs outbound replies instead
// of calling a provider send API. Useful for development and for
// deployments where delivery is handled out of band.
type LoggingSender struct {
	logger *slog.Logger
}

// NewLoggingSender creates a sender that logs replies at info level.
func NewLoggingSender(logger *slog.Logger) *LoggingSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSender{logger: logger.With("component", "sender")}
}

func (l *LoggingSender) Send(ctx context.Context, to, text string) error {
	l.logger.Info("outbound reply", "to", to, "chars", len(text))
	return nil
}

// Config tunes session expiry and concurrency behavior
type Config struct {
	IdleTimeout  time.Duration
	LeaseTimeout time.Duration
	DedupeWindow int
}

// Outbound is the result of processing one delivery: the text to send and
// who to send it to.
type Outbound struct {
	To       string
	Text     string
	State    session.State
	Replayed bool // true when a redelivery replayed the stored reply
}

// Service is the conversation layer: every authenticated, routed webhook
// message flows through ProcessInbound exactly once per conversation key
// at a time.
type Service struct {
	sessions   SessionStore
	engine     *flow.Engine
	dispatcher *vertical.Dispatcher
	sender     Sender
	cfg        Config
	logger     *slog.Logger
}

// New creates a ConversationService. sender may be nil, in which case
// replies are only returned to the caller.
func New(sessions SessionStore, engine *flow.Engine, dispatcher *vertical.Dispatcher, sender Sender, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:   sessions,
		engine:     engine,
		dispatcher: dispatcher,
		sender:     sender,
		cfg:        cfg,
		logger:     logger.With("component", "conversation"),
	}
}

// ProcessInbound applies one inbound event to the customer's session and
// returns the reply. Transitions for the same key are serialized under the
// store's lease; the lease is released on every exit path.
//
// Key principle: authenticate and route before touching state, dedupe
// before transitioning. A redelivered message ID replays the stored reply
// and never mutates the cart a second time.
func (s *Service) ProcessInbound(ctx context.Context, biz *registry.BusinessProfile, ev *InboundEvent) (*Outbound, error) {
	voc, err := s.dispatcher.Dispatch(biz.BusinessType)
	if err != nil {
		return nil, fmt.Errorf("dispatching business %s: %w", biz.BusinessID, err)
	}

	key := session.Key{BusinessID: biz.BusinessID, Customer: ev.From}

	release, err := s.sessions.Acquire(ctx, key, s.cfg.LeaseTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquiring session lease for %s: %w", key, err)
	}
	defer release()

	// One in-lease retry on version conflict: a conflict under the lease
	// means a crashed holder's write landed between our load and save, so
	// a reload sees the final state.
	out, err := s.transition(ctx, voc, biz, key, ev)
	if errors.Is(err, session.ErrVersionConflict) {
		s.logger.Warn("version conflict under lease, retrying once",
			"key", key.String(), "message_id", ev.MessageID)
		out, err = s.transition(ctx, voc, biz, key, ev)
	}
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, out)
	return out, nil
}

// transition runs load -> dedupe -> advance -> save for one event
func (s *Service) transition(ctx context.Context, voc *flow.Vocabulary, biz *registry.BusinessProfile, key session.Key, ev *InboundEvent) (*Outbound, error) {
	sess, expectedVersion, err := s.loadOrStart(ctx, key)
	if err != nil {
		return nil, err
	}

	// Redelivery: replay the stored reply, compute nothing
	if reply, seen := sess.ReplayFor(ev.MessageID); seen {
		s.logger.Debug("replaying reply for redelivered message",
			"key", key.String(), "message_id", ev.MessageID)
		return &Outbound{To: ev.From, Text: reply, State: sess.State, Replayed: true}, nil
	}

	desc := s.engine.Advance(ctx, voc, sess, flow.Event{
		MessageID: ev.MessageID,
		Kind:      ev.Kind,
		Value:     ev.Value,
	})
	text := render.Render(desc, voc, biz)

	sess.RememberReply(ev.MessageID, text, s.cfg.DedupeWindow)
	sess.LastActivityAt = time.Now()

	if err := s.sessions.Save(ctx, sess, expectedVersion); err != nil {
		return nil, fmt.Errorf("saving session %s: %w", key, err)
	}

	s.logger.Debug("conversation advanced",
		"key", key.String(),
		"message_id", ev.MessageID,
		"state", sess.State,
		"cart_lines", len(sess.Cart))

	return &Outbound{To: ev.From, Text: text, State: sess.State}, nil
}

// loadOrStart loads the open session for a key, starting a fresh one when
// none exists or the stored one is terminal or idle-expired. The returned
// version is what Save must be guarded with.
func (s *Service) loadOrStart(ctx context.Context, key session.Key) (*session.Session, int64, error) {
	sess, err := s.sessions.Load(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(key), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading session %s: %w", key, err)
	}

	if sess.State.Terminal() {
		// The row stays for the version guard; a fresh session takes it over
		return session.New(key), sess.Version, nil
	}

	if sess.IdleExpired(time.Now(), s.cfg.IdleTimeout) {
		// Persist the expired state so the row records how the prior
		// conversation ended; the fresh session then takes over at the
		// bumped version.
		expired := sess.Clone()
		expired.State = session.StateExpired
		if err := s.sessions.Save(ctx, expired, sess.Version); err != nil {
			return nil, 0, fmt.Errorf("expiring session %s: %w", key, err)
		}
		s.logger.Info("session idle-expired, starting fresh",
			"key", key.String(),
			"idle_since", sess.LastActivityAt,
			"previous_state", sess.State)
		return session.New(key), expired.Version, nil
	}

	return sess, sess.Version, nil
}

// deliver hands the reply to the messaging gateway, if one is wired
func (s *Service) deliver(ctx context.Context, out *Outbound) {
	if s.sender == nil {
		return
	}
	if err := s.sender.Send(ctx, out.To, out.Text); err != nil {
		s.logger.Error("outbound delivery failed",
			"error", err,
			"to", out.To)
	}
}
