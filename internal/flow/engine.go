// ABOUTME: The conversation state machine: current state + validated event -> next state
// ABOUTME: Validation failures re-prompt without advancing; cancel works from any open state

package flow

import (
	"context"
	"errors"
	"strings"

	"github.com/chatfront/waba-gateway/internal/cart"
	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
)

// Event is the conversation-relevant view of one inbound message
type Event struct {
	MessageID string
	Kind      EventKind
	Value     string
}

// EventKind distinguishes free text from interactive replies
type EventKind string

// Event kinds
const (
	EventText        EventKind = "text"
	EventButtonReply EventKind = "button_reply"
	EventListReply   EventKind = "list_reply"
)

// Kind identifies the outbound message a transition produced
type Kind string

// Descriptor kinds
const (
	KindCatalog      Kind = "catalog"
	KindSelectItem   Kind = "select_item"
	KindQuantity     Kind = "quantity"
	KindDetails      Kind = "details"
	KindInstructions Kind = "instructions"
	KindSummary      Kind = "summary"
	KindCompleted    Kind = "completed"
	KindCancelled    Kind = "cancelled"
)

// Descriptor is the abstract outbound message a transition produced. The
// renderer turns it into vertical- and locale-specific text.
type Descriptor struct {
	Kind       Kind
	Items      []*registry.CatalogItem
	Options    []string
	ItemName   string
	Cart       []session.CartItem
	TotalMinor int64
	Details    string
	// Invalid carries the validation reason when the transition was a
	// re-prompt; empty on a normal advance
	Invalid string
}

// Engine drives the shared state machine. Given the session's current
// state and an event it mutates the working session copy and returns the
// outbound descriptor. The mechanics are deterministic; the catalog is the
// only collaborator that can block.
type Engine struct {
	catalog cart.Catalog
	carts   *cart.Manager
}

// NewEngine creates an engine over the given catalog
func NewEngine(catalog cart.Catalog) *Engine {
	return &Engine{
		catalog: catalog,
		carts:   cart.NewManager(catalog),
	}
}

// Advance applies one inbound event to the session under the vertical's
// vocabulary. The session must be non-terminal and held under a lease by
// the caller. On a validation failure the session is left untouched and
// the same state's prompt is re-emitted with the reason.
func (e *Engine) Advance(ctx context.Context, voc *Vocabulary, sess *session.Session, ev Event) Descriptor {
	if isCancel(ev.Value) {
		sess.State = session.StateCancelled
		return Descriptor{Kind: KindCancelled}
	}

	switch sess.State {
	case session.StateIdle:
		return e.presentCatalog(ctx, sess)

	case session.StateBrowsingCatalog:
		return e.browseCatalog(ctx, voc, sess, ev)

	case session.StateAwaitingItemSelection:
		return e.selectItem(voc, sess, ev)

	case session.StateAwaitingQuantity:
		return e.setQuantity(ctx, voc, sess, ev)

	case voc.Details.State:
		return e.collectDetails(voc, sess, ev)

	case session.StateAwaitingSpecialInstructions:
		return e.collectInstructions(sess, ev)

	case session.StateAwaitingPaymentConfirmation:
		return e.confirmPayment(sess, ev)
	}

	// Unknown or terminal state: restart the conversation from the catalog
	return e.presentCatalog(ctx, sess)
}

// presentCatalog shows the catalog and moves to browsing
func (e *Engine) presentCatalog(ctx context.Context, sess *session.Session) Descriptor {
	items, err := e.catalog.ListCatalogItems(ctx, sess.Key.BusinessID)
	if err != nil || len(items) == 0 {
		// Recoverable: stay put, apologize, the next message retries
		return Descriptor{Kind: KindCatalog, Invalid: "our catalog is temporarily unavailable, please try again in a moment"}
	}

	sess.State = session.StateBrowsingCatalog
	sess.Presented = presentedOf(items)
	return Descriptor{Kind: KindCatalog, Items: items}
}

// browseCatalog waits for the customer to start ordering
func (e *Engine) browseCatalog(ctx context.Context, voc *Vocabulary, sess *session.Session, ev Event) Descriptor {
	if isOrderIntent(ev.Value, voc.OrderVerb) {
		return e.presentSelection(ctx, sess)
	}

	// Anything else re-shows the catalog without advancing
	items, err := e.catalog.ListCatalogItems(ctx, sess.Key.BusinessID)
	if err != nil {
		return Descriptor{Kind: KindCatalog, Invalid: "our catalog is temporarily unavailable, please try again in a moment"}
	}
	return Descriptor{Kind: KindCatalog, Items: items, Invalid: "reply \"" + voc.OrderVerb + "\" when you're ready"}
}

// presentSelection shows the numbered item list and awaits a pick
func (e *Engine) presentSelection(ctx context.Context, sess *session.Session) Descriptor {
	items, err := e.catalog.ListCatalogItems(ctx, sess.Key.BusinessID)
	if err != nil || len(items) == 0 {
		return Descriptor{Kind: KindCatalog, Invalid: "our catalog is temporarily unavailable, please try again in a moment"}
	}

	sess.State = session.StateAwaitingItemSelection
	sess.Presented = presentedOf(items)
	return Descriptor{Kind: KindSelectItem, Items: items}
}

// selectItem validates membership in the presented set. Prompts carry the
// display name; the ref stays internal.
func (e *Engine) selectItem(voc *Vocabulary, sess *session.Session, ev Event) Descriptor {
	item, verr := validateItemSelection(voc.ItemNoun, ev.Value, sess.Presented)
	if verr != nil {
		return Descriptor{Kind: KindSelectItem, Invalid: verr.Reason}
	}

	sess.PendingRef = item.Ref
	sess.PendingName = item.Name
	sess.State = session.StateAwaitingQuantity
	return Descriptor{Kind: KindQuantity, ItemName: item.Name}
}

// setQuantity validates the quantity and applies the cart delta
func (e *Engine) setQuantity(ctx context.Context, voc *Vocabulary, sess *session.Session, ev Event) Descriptor {
	qty, verr := validateQuantity(ev.Value)
	if verr != nil {
		return Descriptor{Kind: KindQuantity, ItemName: sess.PendingName, Invalid: verr.Reason}
	}

	updated, err := e.carts.Add(ctx, sess.Cart, sess.Key.BusinessID, sess.PendingRef, qty)
	if errors.Is(err, cart.ErrCatalogUnavailable) || errors.Is(err, registry.ErrItemNotFound) {
		// Recoverable: cart and state unchanged, customer retries
		return Descriptor{Kind: KindQuantity, ItemName: sess.PendingName, Invalid: "we couldn't reach the catalog just now, please send the quantity again"}
	}
	if err != nil {
		return Descriptor{Kind: KindQuantity, ItemName: sess.PendingName, Invalid: "quantity must be at least 1"}
	}

	sess.Cart = updated
	sess.PendingRef = ""
	sess.PendingName = ""
	sess.State = voc.Details.State
	return Descriptor{Kind: KindDetails, Options: voc.Details.Options}
}

// collectDetails validates the vertical's details answer
func (e *Engine) collectDetails(voc *Vocabulary, sess *session.Session, ev Event) Descriptor {
	var (
		value string
		verr  *ValidationError
	)
	switch voc.Details.Expect {
	case ExpectContact:
		value, verr = validateContact(ev.Value)
	case ExpectOption:
		value, verr = validateSelection(voc.Details.Label, ev.Value, voc.Details.Options)
	default:
		value = ev.Value
	}
	if verr != nil {
		return Descriptor{Kind: KindDetails, Options: voc.Details.Options, Invalid: verr.Reason}
	}

	sess.Details = value
	if voc.HasInstructions {
		sess.State = session.StateAwaitingSpecialInstructions
		return Descriptor{Kind: KindInstructions}
	}
	return e.presentSummary(sess)
}

// collectInstructions stores the optional order note
func (e *Engine) collectInstructions(sess *session.Session, ev Event) Descriptor {
	text, verr := validateInstructions(ev.Value)
	if verr != nil {
		return Descriptor{Kind: KindInstructions, Invalid: verr.Reason}
	}

	sess.Instructions = text
	return e.presentSummary(sess)
}

// presentSummary moves to payment confirmation with the order summary
func (e *Engine) presentSummary(sess *session.Session) Descriptor {
	sess.State = session.StateAwaitingPaymentConfirmation
	return Descriptor{
		Kind:       KindSummary,
		Cart:       sess.Cart,
		TotalMinor: cart.Total(sess.Cart),
		Details:    sess.Details,
	}
}

// confirmPayment closes the order
func (e *Engine) confirmPayment(sess *session.Session, ev Event) Descriptor {
	confirmed, verr := validateConfirmation(ev.Value)
	if verr != nil {
		return Descriptor{
			Kind:       KindSummary,
			Cart:       sess.Cart,
			TotalMinor: cart.Total(sess.Cart),
			Details:    sess.Details,
			Invalid:    verr.Reason,
		}
	}

	if !confirmed {
		sess.State = session.StateCancelled
		return Descriptor{Kind: KindCancelled}
	}

	sess.State = session.StateCompleted
	return Descriptor{
		Kind:       KindCompleted,
		Cart:       sess.Cart,
		TotalMinor: cart.Total(sess.Cart),
		Details:    sess.Details,
	}
}

// isOrderIntent matches the vertical's order verb ("order", "book")
func isOrderIntent(value, orderVerb string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == strings.ToLower(orderVerb) || v == "order"
}

// presentedOf captures the shown choices (ref + display name) in
// presentation order
func presentedOf(items []*registry.CatalogItem) []session.PresentedItem {
	presented := make([]session.PresentedItem, len(items))
	for i, item := range items {
		presented[i] = session.PresentedItem{Ref: item.Ref, Name: item.Name}
	}
	return presented
}
