// ABOUTME: WhatsApp Cloud API webhook envelope types and normalization
// ABOUTME: Parses raw delivery JSON into per-message inbound events keyed by phone number ID

package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatfront/waba-gateway/internal/conversation"
	"github.com/chatfront/waba-gateway/internal/flow"
)

// ErrMalformedPayload is returned when a delivery body is not a valid
// webhook envelope. The signature is always checked first, so this only
// fires for authenticated senders.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// expectedObject is the envelope object type for business account webhooks.
const expectedObject = "whatsapp_business_account"

// Payload is the outer webhook envelope the provider POSTs.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account's batch of changes.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field update within an entry. Only "messages" changes
// carry conversational traffic.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the routing metadata and the messages themselves.
type ChangeValue struct {
	Metadata Metadata  `json:"metadata"`
	Messages []Message `json:"messages"`
	// Statuses (sent/delivered/read receipts) are acknowledged but not
	// processed.
	Statuses []json.RawMessage `json:"statuses"`
}

// Metadata identifies which business phone number received the messages.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Message is one inbound customer message.
type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

// Text is the body of a plain text message.
type Text struct {
	Body string `json:"body"`
}

// Interactive carries a button or list reply.
type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
	ListReply   *Reply `json:"list_reply,omitempty"`
}

// Reply is the selected option of an interactive message.
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Delivery is one normalized message ready for the conversation layer,
// paired with the phone number ID that routes it to a business.
type Delivery struct {
	PhoneNumberID string
	Event         *conversation.InboundEvent
}

// ParsePayload decodes body into the webhook envelope. It rejects JSON
// that does not parse, does not carry the business account object type,
// or carries messages without the routing phone number ID.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Object != expectedObject {
		return nil, fmt.Errorf("%w: unexpected object %q", ErrMalformedPayload, p.Object)
	}

	// Messages are unroutable without phone_number_id
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" || len(change.Value.Messages) == 0 {
				continue
			}
			if change.Value.Metadata.PhoneNumberID == "" {
				return nil, fmt.Errorf("%w: messages without metadata.phone_number_id", ErrMalformedPayload)
			}
		}
	}

	return &p, nil
}

// Deliveries flattens the envelope into processable messages. Status
// receipts, non-message changes, and unsupported message types are
// dropped; a payload with none left is a valid, empty delivery.
func (p *Payload) Deliveries() []Delivery {
	var out []Delivery
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				ev, ok := normalize(&msg)
				if !ok {
					continue
				}
				out = append(out, Delivery{
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					Event:         ev,
				})
			}
		}
	}
	return out
}

// normalize maps one provider message onto a flow event. Media and other
// unsupported types return ok=false.
func normalize(msg *Message) (*conversation.InboundEvent, bool) {
	ev := &conversation.InboundEvent{
		MessageID: msg.ID,
		From:      msg.From,
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return nil, false
		}
		ev.Kind = flow.EventText
		ev.Value = msg.Text.Body
	case "interactive":
		if msg.Interactive == nil {
			return nil, false
		}
		switch {
		case msg.Interactive.ButtonReply != nil:
			ev.Kind = flow.EventButtonReply
			ev.Value = msg.Interactive.ButtonReply.ID
		case msg.Interactive.ListReply != nil:
			ev.Kind = flow.EventListReply
			ev.Value = msg.Interactive.ListReply.ID
		default:
			return nil, false
		}
	default:
		return nil, false
	}

	if ev.MessageID == "" || ev.From == "" {
		return nil, false
	}
	return ev, true
}
