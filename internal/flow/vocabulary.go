// ABOUTME: Vertical vocabulary: the words, states, and options a business type converses with
// ABOUTME: The engine mechanics are shared; only the vocabulary varies per vertical

package flow

import (
	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
)

// DetailsSpec describes the vertical's details step: delivery contact for
// restaurants, showtime selection for cinemas.
type DetailsSpec struct {
	State  session.State
	Expect Expect
	Label  string
	// Options is the closed choice set for ExpectOption details steps
	Options []string
}

// Vocabulary is everything vertical-specific the engine and renderer need.
// It is selected once, at dispatch time.
type Vocabulary struct {
	BusinessType registry.BusinessType

	CatalogTitle string // "Today's menu", "Now showing"
	CatalogEmoji string
	ItemNoun     string // "dish", "movie"
	UnitNoun     string // "item(s)", "ticket(s)"
	OrderVerb    string // "order", "book"

	Details DetailsSpec

	// HasInstructions enables the special-instructions step
	HasInstructions bool
}
