// ABOUTME: Tests for the conversation state machine.
// ABOUTME: Walks full restaurant and cinema orders, re-prompts, and cancel paths.

package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
)

// restaurantVoc mirrors the restaurant vertical for engine tests
func restaurantVoc() *Vocabulary {
	return &Vocabulary{
		BusinessType: registry.BusinessTypeRestaurant,
		CatalogTitle: "Today's menu",
		ItemNoun:     "dish",
		OrderVerb:    "order",
		Details: DetailsSpec{
			State:  session.StateAwaitingDeliveryDetails,
			Expect: ExpectContact,
			Label:  "delivery contact number",
		},
		HasInstructions: true,
	}
}

// cinemaVoc mirrors the cinema vertical for engine tests
func cinemaVoc() *Vocabulary {
	return &Vocabulary{
		BusinessType: registry.BusinessTypeCinema,
		CatalogTitle: "Now showing",
		ItemNoun:     "movie",
		OrderVerb:    "book",
		Details: DetailsSpec{
			State:   session.StateAwaitingShowtime,
			Expect:  ExpectOption,
			Label:   "showtime",
			Options: []string{"7:00 PM", "9:30 PM"},
		},
	}
}

// brokenCatalog fails every call
type brokenCatalog struct{}

func (brokenCatalog) GetCatalogItem(ctx context.Context, businessID, ref string) (*registry.CatalogItem, error) {
	return nil, errors.New("catalog down")
}

func (brokenCatalog) ListCatalogItems(ctx context.Context, businessID string) ([]*registry.CatalogItem, error) {
	return nil, errors.New("catalog down")
}

func newTestEngine() (*Engine, *registry.MemoryRegistry) {
	r := registry.NewMemoryRegistry()
	r.AddCatalogItem(&registry.CatalogItem{BusinessID: "biz", Ref: "pizza", Name: "Pizza", PriceMinor: 1250})
	r.AddCatalogItem(&registry.CatalogItem{BusinessID: "biz", Ref: "pasta", Name: "Pasta", PriceMinor: 1100})
	return NewEngine(r), r
}

func textEvent(value string) Event {
	return Event{MessageID: "msg", Kind: EventText, Value: value}
}

func TestAdvance_IdlePresentsCatalog(t *testing.T) {
	e, _ := newTestEngine()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	desc := e.Advance(context.Background(), restaurantVoc(), sess, textEvent("hi"))

	assert.Equal(t, session.StateBrowsingCatalog, sess.State)
	assert.Equal(t, KindCatalog, desc.Kind)
	require.Len(t, desc.Items, 2)
	assert.Equal(t, []session.PresentedItem{{Ref: "pasta", Name: "Pasta"}, {Ref: "pizza", Name: "Pizza"}}, sess.Presented)
	assert.Empty(t, desc.Invalid)
}

func TestAdvance_FullRestaurantOrder(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hello"))
	require.Equal(t, session.StateBrowsingCatalog, sess.State)

	desc := e.Advance(ctx, voc, sess, textEvent("order"))
	require.Equal(t, session.StateAwaitingItemSelection, sess.State)
	assert.Equal(t, KindSelectItem, desc.Kind)

	desc = e.Advance(ctx, voc, sess, textEvent("2")) // pizza, second in ref order
	require.Equal(t, session.StateAwaitingQuantity, sess.State)
	assert.Equal(t, "pizza", sess.PendingRef)
	assert.Equal(t, "Pizza", sess.PendingName)
	assert.Equal(t, KindQuantity, desc.Kind)
	assert.Equal(t, "Pizza", desc.ItemName)

	desc = e.Advance(ctx, voc, sess, textEvent("3"))
	require.Equal(t, session.StateAwaitingDeliveryDetails, sess.State)
	require.Len(t, sess.Cart, 1)
	assert.Equal(t, 3, sess.Cart[0].Quantity)
	assert.EqualValues(t, 1250, sess.Cart[0].UnitPriceMinor)
	assert.Empty(t, sess.PendingRef)
	assert.Equal(t, KindDetails, desc.Kind)

	desc = e.Advance(ctx, voc, sess, textEvent("+1 555 123 4567"))
	require.Equal(t, session.StateAwaitingSpecialInstructions, sess.State)
	assert.Equal(t, "+15551234567", sess.Details)
	assert.Equal(t, KindInstructions, desc.Kind)

	desc = e.Advance(ctx, voc, sess, textEvent("ring the bell twice"))
	require.Equal(t, session.StateAwaitingPaymentConfirmation, sess.State)
	assert.Equal(t, KindSummary, desc.Kind)
	assert.EqualValues(t, 3750, desc.TotalMinor)

	desc = e.Advance(ctx, voc, sess, textEvent("yes"))
	assert.Equal(t, session.StateCompleted, sess.State)
	assert.Equal(t, KindCompleted, desc.Kind)
	assert.EqualValues(t, 3750, desc.TotalMinor)
}

func TestAdvance_FullCinemaBooking(t *testing.T) {
	e, r := newTestEngine()
	r.AddCatalogItem(&registry.CatalogItem{BusinessID: "cine", Ref: "galaxy", Name: "Galaxy Quest II", PriceMinor: 1500})
	voc := cinemaVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "cine", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hi"))
	e.Advance(ctx, voc, sess, textEvent("book"))
	require.Equal(t, session.StateAwaitingItemSelection, sess.State)

	e.Advance(ctx, voc, sess, textEvent("1"))
	require.Equal(t, session.StateAwaitingQuantity, sess.State)

	desc := e.Advance(ctx, voc, sess, textEvent("2"))
	require.Equal(t, session.StateAwaitingShowtime, sess.State)
	assert.Equal(t, KindDetails, desc.Kind)
	assert.Equal(t, voc.Details.Options, desc.Options)

	// Cinema has no instructions step: showtime goes straight to summary
	desc = e.Advance(ctx, voc, sess, textEvent("2"))
	require.Equal(t, session.StateAwaitingPaymentConfirmation, sess.State)
	assert.Equal(t, "9:30 PM", sess.Details)
	assert.Equal(t, KindSummary, desc.Kind)
	assert.EqualValues(t, 3000, desc.TotalMinor)

	e.Advance(ctx, voc, sess, textEvent("confirm"))
	assert.Equal(t, session.StateCompleted, sess.State)
}

func TestAdvance_ValidationFailureDoesNotAdvance(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hi"))
	e.Advance(ctx, voc, sess, textEvent("order"))
	e.Advance(ctx, voc, sess, textEvent("1"))
	require.Equal(t, session.StateAwaitingQuantity, sess.State)

	cartBefore := append([]session.CartItem(nil), sess.Cart...)

	desc := e.Advance(ctx, voc, sess, textEvent("0"))

	// Same state, same cart, only a re-prompt with the reason
	assert.Equal(t, session.StateAwaitingQuantity, sess.State)
	assert.Equal(t, cartBefore, sess.Cart)
	assert.Equal(t, KindQuantity, desc.Kind)
	assert.NotEmpty(t, desc.Invalid)

	// Re-prompting is idempotent: a second bad input produces the same result
	desc2 := e.Advance(ctx, voc, sess, textEvent("0"))
	assert.Equal(t, desc, desc2)
}

func TestAdvance_SelectionMustBePresented(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hi"))
	e.Advance(ctx, voc, sess, textEvent("order"))

	desc := e.Advance(ctx, voc, sess, textEvent("sushi"))
	assert.Equal(t, session.StateAwaitingItemSelection, sess.State)
	assert.NotEmpty(t, desc.Invalid)
}

func TestAdvance_SelectionAcceptsDisplayName(t *testing.T) {
	e, r := newTestEngine()
	r.AddCatalogItem(&registry.CatalogItem{BusinessID: "trat", Ref: "marg-01", Name: "Margherita Pizza", PriceMinor: 1250})
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "trat", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hi"))
	e.Advance(ctx, voc, sess, textEvent("order"))
	require.Equal(t, session.StateAwaitingItemSelection, sess.State)

	// Typing the name shown in the list works, not just the index or ref
	desc := e.Advance(ctx, voc, sess, textEvent("margherita pizza"))
	require.Equal(t, session.StateAwaitingQuantity, sess.State)
	assert.Equal(t, "marg-01", sess.PendingRef)
	assert.Equal(t, "Margherita Pizza", desc.ItemName)

	// The quantity re-prompt carries the display name, never the ref
	desc = e.Advance(ctx, voc, sess, textEvent("lots"))
	assert.Equal(t, session.StateAwaitingQuantity, sess.State)
	assert.Equal(t, "Margherita Pizza", desc.ItemName)
	assert.NotEmpty(t, desc.Invalid)
}

func TestAdvance_CancelFromAnyOpenState(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()

	steps := [][]string{
		{"hi"},
		{"hi", "order"},
		{"hi", "order", "1"},
		{"hi", "order", "1", "2"},
		{"hi", "order", "1", "2", "+15551234567"},
		{"hi", "order", "1", "2", "+15551234567", "none"},
	}

	for _, inputs := range steps {
		sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})
		for _, in := range inputs {
			e.Advance(ctx, voc, sess, textEvent(in))
		}

		desc := e.Advance(ctx, voc, sess, textEvent("cancel"))
		assert.Equal(t, session.StateCancelled, sess.State, "after %v", inputs)
		assert.Equal(t, KindCancelled, desc.Kind)
	}
}

func TestAdvance_DeclineAtConfirmationCancels(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	for _, in := range []string{"hi", "order", "1", "2", "+15551234567", "none"} {
		e.Advance(ctx, voc, sess, textEvent(in))
	}
	require.Equal(t, session.StateAwaitingPaymentConfirmation, sess.State)

	e.Advance(ctx, voc, sess, textEvent("no"))
	assert.Equal(t, session.StateCancelled, sess.State)
}

func TestAdvance_CatalogUnavailableIsRecoverable(t *testing.T) {
	e := NewEngine(brokenCatalog{})
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	desc := e.Advance(ctx, voc, sess, textEvent("hi"))

	// Session survives, no advance, customer is told to retry
	assert.Equal(t, session.StateIdle, sess.State)
	assert.Equal(t, KindCatalog, desc.Kind)
	assert.NotEmpty(t, desc.Invalid)
}

func TestAdvance_CatalogUnavailableAtQuantityKeepsCart(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hi"))
	e.Advance(ctx, voc, sess, textEvent("order"))
	e.Advance(ctx, voc, sess, textEvent("1"))
	require.Equal(t, session.StateAwaitingQuantity, sess.State)

	// Simulate the catalog disappearing between selection and quantity
	broken := NewEngine(brokenCatalog{})
	desc := broken.Advance(ctx, voc, sess, textEvent("2"))

	assert.Equal(t, session.StateAwaitingQuantity, sess.State)
	assert.Empty(t, sess.Cart)
	assert.NotEmpty(t, desc.Invalid)

	// And the retry succeeds once the catalog is back
	desc = e.Advance(ctx, voc, sess, textEvent("2"))
	assert.Equal(t, session.StateAwaitingDeliveryDetails, sess.State)
	require.Len(t, sess.Cart, 1)
	assert.Empty(t, desc.Invalid)
}

func TestAdvance_BrowsingChatterReShowsCatalog(t *testing.T) {
	e, _ := newTestEngine()
	voc := restaurantVoc()
	ctx := context.Background()
	sess := session.New(session.Key{BusinessID: "biz", Customer: "c"})

	e.Advance(ctx, voc, sess, textEvent("hi"))
	desc := e.Advance(ctx, voc, sess, textEvent("what do you have?"))

	assert.Equal(t, session.StateBrowsingCatalog, sess.State)
	assert.Equal(t, KindCatalog, desc.Kind)
	assert.Len(t, desc.Items, 2)
}
