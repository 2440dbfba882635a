// Package webhook is the provider-facing HTTP surface of the gateway.
//
// It serves three endpoints: the GET subscription handshake, the POST
// delivery endpoint, and a health probe. Deliveries are authenticated by
// HMAC-SHA256 signature over the exact raw request bytes before any JSON
// parsing or state access. Authenticated payloads are normalized into
// inbound events and handed to the conversation layer one message at a
// time.
//
// Response statuses drive provider retry behavior: 2xx acknowledges, 4xx
// is final, and 5xx (lease contention, storage conflicts) asks for
// redelivery. Redelivery is safe because the conversation layer replays
// already-seen message IDs instead of reprocessing them.
package webhook
