// ABOUTME: Order session model for one customer conversation with one business
// ABOUTME: Defines Key, State, CartItem, and the per-session dedupe window

package session

import (
	"time"

	"github.com/google/uuid"
)

// Key identifies at most one open conversation: a customer talking to a
// business. No two open sessions may share a key.
type Key struct {
	BusinessID string
	Customer   string
}

// String returns the canonical storage form of the key
func (k Key) String() string {
	return k.BusinessID + "/" + k.Customer
}

// State is the position of a conversation in the ordering flow
type State string

// Non-terminal states
const (
	StateIdle                        State = "idle"
	StateBrowsingCatalog             State = "browsing_catalog"
	StateAwaitingItemSelection       State = "awaiting_item_selection"
	StateAwaitingQuantity            State = "awaiting_quantity"
	StateAwaitingDeliveryDetails     State = "awaiting_delivery_details"
	StateAwaitingShowtime            State = "awaiting_showtime"
	StateAwaitingSpecialInstructions State = "awaiting_special_instructions"
	StateAwaitingPaymentConfirmation State = "awaiting_payment_confirmation"
)

// Terminal states
const (
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Terminal reports whether the state ends the session. A terminal session's
// cart is immutable.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateExpired:
		return true
	}
	return false
}

// CartItem is one ordered line. UnitPriceMinor is snapshotted when the item
// is added and never changes with later catalog updates.
type CartItem struct {
	ProductRef     string `json:"product_ref"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Instructions   string `json:"instructions,omitempty"`
}

// Recent records one recently processed inbound message and the reply it
// produced, so redeliveries can replay the reply instead of transitioning.
type Recent struct {
	MessageID string `json:"message_id"`
	Reply     string `json:"reply"`
}

// PresentedItem is one choice last shown to the customer. Both the ref
// and the display name are kept so selection accepts either and prompts
// never leak internal refs.
type PresentedItem struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

// Session is the conversational state for one key. It is only mutated under
// a held lease and persisted with a version-guarded save.
type Session struct {
	ID    string
	Key   Key
	State State
	Cart  []CartItem

	// PendingRef is the item selected but not yet quantified
	PendingRef string
	// PendingName is the display name of the pending item, for prompts
	PendingName string
	// Presented holds the choices last shown, for selection validation
	Presented []PresentedItem
	// Details is the details-step answer: a delivery contact number for
	// restaurants, a chosen showtime for cinemas
	Details string
	// Instructions is the order-level note collected before confirmation
	Instructions string

	Recent         []Recent
	LastActivityAt time.Time
	Version        int64
}

// New creates a fresh, unsaved session for a key
func New(key Key) *Session {
	return &Session{
		ID:             uuid.New().String(),
		Key:            key,
		State:          StateIdle,
		LastActivityAt: time.Now(),
	}
}

// IdleExpired reports whether the session has been idle past the window.
// Expiry is evaluated lazily on load; there is no background sweeper.
func (s *Session) IdleExpired(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastActivityAt) > window
}

// ReplayFor returns the stored reply for a message ID seen before.
func (s *Session) ReplayFor(messageID string) (string, bool) {
	for _, r := range s.Recent {
		if r.MessageID == messageID {
			return r.Reply, true
		}
	}
	return "", false
}

// RememberReply records a processed message ID and its reply in the dedupe
// window, evicting the oldest entry once the window is full.
func (s *Session) RememberReply(messageID, reply string, window int) {
	for i, r := range s.Recent {
		if r.MessageID == messageID {
			s.Recent[i].Reply = reply
			return
		}
	}

	s.Recent = append(s.Recent, Recent{MessageID: messageID, Reply: reply})
	if window > 0 && len(s.Recent) > window {
		s.Recent = s.Recent[len(s.Recent)-window:]
	}
}

// Clone returns a deep copy, so stores can hand out sessions without
// sharing mutable slices with callers.
func (s *Session) Clone() *Session {
	c := *s
	c.Cart = append([]CartItem(nil), s.Cart...)
	c.Presented = append([]PresentedItem(nil), s.Presented...)
	c.Recent = append([]Recent(nil), s.Recent...)
	return &c
}
