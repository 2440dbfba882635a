// Package conversation is the central layer between the webhook surface
// and the order state machine.
//
// ProcessInbound handles one provider delivery: it selects the vertical's
// vocabulary, serializes on the session lease, replays stored replies for
// redelivered message IDs, advances the flow, renders the reply, and saves
// the session under its version guard. Authentication and routing happen
// before this layer; outbound delivery happens after it, behind the Sender
// interface.
//
// Concurrency: deliveries for different conversation keys run fully in
// parallel. Deliveries for the same key are strictly serialized by the
// store lease, so at most one transition per conversation is ever in
// flight and no interleaved cart mutation is observable.
package conversation
