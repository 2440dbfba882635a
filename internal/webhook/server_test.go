// ABOUTME: Tests for the webhook HTTP surface.
// ABOUTME: Covers the handshake, signature enforcement, status mapping, and payload normalization.

package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatfront/waba-gateway/internal/auth"
	"github.com/chatfront/waba-gateway/internal/conversation"
	"github.com/chatfront/waba-gateway/internal/flow"
	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
	"github.com/chatfront/waba-gateway/internal/vertical"
)

const (
	testAppID    = "test-app"
	testSecret   = "test-app-secret"
	testToken    = "test-verify-token"
	testPhoneID  = "15550001111"
	testCustomer = "15551234567"
	floristPhone = "15550003333"
	testBizID    = "biz"
	floristBizID = "florist-biz"
)

type webhookFixture struct {
	ts    *httptest.Server
	store *session.MemoryStore
}

func newWebhookFixture(t *testing.T, convCfg conversation.Config) *webhookFixture {
	t.Helper()

	reg := registry.NewMemoryRegistry()
	reg.AddApp(&registry.AppConfig{AppID: testAppID, VerifyToken: testToken, AppSecret: testSecret})
	reg.AddBusiness(&registry.BusinessProfile{
		BusinessID:    testBizID,
		PhoneNumberID: testPhoneID,
		BusinessType:  registry.BusinessTypeRestaurant,
		DisplayName:   "Testaurant",
		Currency:      "USD",
	})
	reg.AddBusiness(&registry.BusinessProfile{
		BusinessID:    floristBizID,
		PhoneNumberID: floristPhone,
		BusinessType:  registry.BusinessType("florist"),
		DisplayName:   "Petal Pushers",
		Currency:      "USD",
	})
	reg.AddCatalogItem(&registry.CatalogItem{BusinessID: testBizID, Ref: "pizza", Name: "Pizza", PriceMinor: 1250})

	if convCfg.IdleTimeout == 0 {
		convCfg.IdleTimeout = 30 * time.Minute
	}
	if convCfg.LeaseTimeout == 0 {
		convCfg.LeaseTimeout = time.Second
	}
	if convCfg.DedupeWindow == 0 {
		convCfg.DedupeWindow = 20
	}

	store := session.NewMemoryStore()
	conv := conversation.New(store, flow.NewEngine(reg), vertical.NewDispatcher(), nil, convCfg, nil)
	ts := httptest.NewServer(NewServer(reg, conv, nil).Routes())
	t.Cleanup(ts.Close)

	return &webhookFixture{ts: ts, store: store}
}

// textPayload builds a minimal signed-ready text delivery body.
func textPayload(phoneNumberID, from, messageID, body string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": %q},
					"messages": [{
						"id": %q,
						"from": %q,
						"type": "text",
						"text": {"body": %q}
					}]
				}
			}]
		}]
	}`, phoneNumberID, messageID, from, body)
}

func (f *webhookFixture) deliver(t *testing.T, body, signature string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/webhook/"+testAppID, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(auth.SignatureHeader, signature)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func signed(body string) string {
	return auth.Sign([]byte(body), []byte(testSecret))
}

func TestHandshake_Success(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	u := f.ts.URL + "/webhook/" + testAppID + "?" + url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {testToken},
		"hub.challenge":    {"challenge-1234"},
	}.Encode()

	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	assert.Equal(t, "challenge-1234", string(buf[:n]))
}

func TestHandshake_WrongToken(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	u := f.ts.URL + "/webhook/" + testAppID + "?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=c"
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandshake_UnknownApp(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	u := f.ts.URL + "/webhook/no-such-app?hub.mode=subscribe&hub.verify_token=" + testToken + "&hub.challenge=c"
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelivery_ValidMessageStartsConversation(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	body := textPayload(testPhoneID, testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err := f.store.Load(context.Background(), session.Key{BusinessID: testBizID, Customer: testCustomer})
	require.NoError(t, err)
	assert.Equal(t, session.StateBrowsingCatalog, sess.State)
}

func TestDelivery_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	body := textPayload(testPhoneID, testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, auth.Sign([]byte(body), []byte("wrong-secret")))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// State was never touched
	_, err := f.store.Load(context.Background(), session.Key{BusinessID: testBizID, Customer: testCustomer})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDelivery_MissingSignature(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	body := textPayload(testPhoneID, testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDelivery_MalformedPayload(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	// Correctly signed garbage: signature passes, parsing fails
	body := `{"object": "something_else"}`
	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = `not json at all`
	resp = f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDelivery_MissingPhoneNumberID(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	// Messages with no routing metadata are malformed, not "unknown business"
	body := fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messages": [{
						"id": "wamid.1",
						"from": %q,
						"type": "text",
						"text": {"body": "hi"}
					}]
				}
			}]
		}]
	}`, testCustomer)

	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDelivery_UnknownPhoneNumberID(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	body := textPayload("19990000000", testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelivery_UnsupportedVertical(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	body := textPayload(floristPhone, testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDelivery_LeaseContention(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{LeaseTimeout: 50 * time.Millisecond})

	release, err := f.store.Acquire(context.Background(),
		session.Key{BusinessID: testBizID, Customer: testCustomer}, time.Second)
	require.NoError(t, err)
	defer release()

	body := textPayload(testPhoneID, testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDelivery_RedeliverySameMessageID(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})
	key := session.Key{BusinessID: testBizID, Customer: testCustomer}

	body := textPayload(testPhoneID, testCustomer, "wamid.1", "hi")
	resp := f.deliver(t, body, signed(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err := f.store.Load(context.Background(), key)
	require.NoError(t, err)
	versionAfter := sess.Version

	// Provider redelivers the identical payload
	resp = f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err = f.store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, versionAfter, sess.Version)
}

func TestDelivery_StatusOnlyPayloadAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	body := fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": %q},
					"statuses": [{"id": "wamid.1", "status": "delivered"}]
				}
			}]
		}]
	}`, testPhoneID)

	resp := f.deliver(t, body, signed(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newWebhookFixture(t, conversation.Config{})

	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParsePayload_InteractiveReplies(t *testing.T) {
	body := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": "15550001111"},
					"messages": [
						{
							"id": "wamid.b", "from": "15551234567", "type": "interactive",
							"interactive": {"type": "button_reply", "button_reply": {"id": "order", "title": "Order"}}
						},
						{
							"id": "wamid.l", "from": "15551234567", "type": "interactive",
							"interactive": {"type": "list_reply", "list_reply": {"id": "pizza", "title": "Pizza"}}
						},
						{
							"id": "wamid.img", "from": "15551234567", "type": "image"
						}
					]
				}
			}]
		}]
	}`

	p, err := ParsePayload([]byte(body))
	require.NoError(t, err)

	deliveries := p.Deliveries()
	require.Len(t, deliveries, 2) // image message dropped

	assert.Equal(t, flow.EventButtonReply, deliveries[0].Event.Kind)
	assert.Equal(t, "order", deliveries[0].Event.Value)
	assert.Equal(t, flow.EventListReply, deliveries[1].Event.Kind)
	assert.Equal(t, "pizza", deliveries[1].Event.Value)
	assert.Equal(t, "15550001111", deliveries[0].PhoneNumberID)
}
