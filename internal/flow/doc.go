// Package flow implements the conversation state machine shared by all
// verticals.
//
// The ordering flow is a linear chain of states:
//
//	idle -> browsing_catalog -> awaiting_item_selection -> awaiting_quantity
//	     -> details step (delivery details or showtime, per vocabulary)
//	     -> awaiting_special_instructions (restaurants only)
//	     -> awaiting_payment_confirmation -> completed
//
// An explicit cancel is accepted from any non-terminal state. Validation
// failures never advance the state or touch the cart; they re-emit the
// current prompt with the reason, so a redelivered or repeated bad input
// is idempotent. Everything vertical-specific lives in the Vocabulary the
// dispatcher selects at routing time.
package flow
