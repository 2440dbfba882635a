// ABOUTME: Closed registry of vertical vocabularies keyed by business type
// ABOUTME: Selects the conversation vocabulary once per inbound event

package vertical

import (
	"errors"

	"github.com/chatfront/waba-gateway/internal/flow"
	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
)

// ErrUnsupportedVertical is returned when a business type has no registered
// vocabulary. This is explicit, never a silent no-op.
var ErrUnsupportedVertical = errors.New("unsupported vertical")

// Dispatcher maps business types to their conversation vocabularies.
// The set is closed at construction; there is no runtime registration.
type Dispatcher struct {
	vocabularies map[registry.BusinessType]*flow.Vocabulary
}

// NewDispatcher creates a dispatcher with all supported verticals
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		vocabularies: map[registry.BusinessType]*flow.Vocabulary{
			registry.BusinessTypeRestaurant: Restaurant(),
			registry.BusinessTypeCinema:     Cinema(),
		},
	}
}

// Dispatch selects the vocabulary for a business type
func (d *Dispatcher) Dispatch(businessType registry.BusinessType) (*flow.Vocabulary, error) {
	voc, ok := d.vocabularies[businessType]
	if !ok {
		return nil, ErrUnsupportedVertical
	}
	return voc, nil
}

// Restaurant is the food-ordering vocabulary: menu browsing, delivery
// contact collection, and kitchen notes before confirmation.
func Restaurant() *flow.Vocabulary {
	return &flow.Vocabulary{
		BusinessType: registry.BusinessTypeRestaurant,
		CatalogTitle: "Today's menu",
		CatalogEmoji: "🍽️",
		ItemNoun:     "dish",
		UnitNoun:     "item(s)",
		OrderVerb:    "order",
		Details: flow.DetailsSpec{
			State:  session.StateAwaitingDeliveryDetails,
			Expect: flow.ExpectContact,
			Label:  "delivery contact number",
		},
		HasInstructions: true,
	}
}

// Cinema is the ticket-booking vocabulary: listings, a showtime pick, no
// special-instructions step.
func Cinema() *flow.Vocabulary {
	return &flow.Vocabulary{
		BusinessType: registry.BusinessTypeCinema,
		CatalogTitle: "Now showing",
		CatalogEmoji: "🎬",
		ItemNoun:     "movie",
		UnitNoun:     "ticket(s)",
		OrderVerb:    "book",
		Details: flow.DetailsSpec{
			State:   session.StateAwaitingShowtime,
			Expect:  flow.ExpectOption,
			Label:   "showtime",
			Options: []string{"2:00 PM", "7:00 PM", "9:30 PM"},
		},
		HasInstructions: false,
	}
}
