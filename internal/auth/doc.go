// Package auth verifies the provider's webhook payload signatures.
//
// Every delivery carries an HMAC-SHA256 digest of the raw request body in
// the X-Hub-Signature-256 header, keyed with the app secret issued at
// webhook registration. Verification must happen before the body is parsed
// so that unauthenticated payloads never reach routing or session state.
package auth
