package banking

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Webhook event payloads as delivered by the provider.
type Event struct {
	EventID     string      `json:"event_id"`
	EventType   string      `json:"event_type"`
	EventObject EventObject `json:"event_object"`
}

type EventObject struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	State             string `json:"state"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	CustomerID        string `json:"customer_id"`
	OnBehalfOf        string `json:"on_behalf_of"`
	DestinationTxHash string `json:"destination_tx_hash"`
}

// SignatureWindow bounds how old a webhook timestamp may be.
const SignatureWindow = 10 * time.Minute

var (
	ErrMalformedSignature = errors.New("banking webhook: malformed signature header")
	ErrInvalidSignature   = errors.New("banking webhook: invalid signature")

	signatureHeaderPattern = regexp.MustCompile(`^t=(\d+),v0=(.*)$`)
)

// WebhookVerifier checks provider signatures on incoming webhook deliveries.
type WebhookVerifier struct {
	publicKey *rsa.PublicKey
	now       func() time.Time
}

// NewWebhookVerifier parses the provider's PEM-encoded RSA public key.
func NewWebhookVerifier(publicKeyPEM string) (*WebhookVerifier, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("banking webhook: public key is not PEM encoded")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("banking webhook: parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("banking webhook: public key is not RSA")
	}
	return &WebhookVerifier{publicKey: key, now: time.Now}, nil
}

// Verify validates the `t=<ms>,v0=<base64>` signature header against the raw
// request body. The signed message is SHA-256 of "<timestamp>.<body>", and
// deliveries older than SignatureWindow are rejected.
func (v *WebhookVerifier) Verify(body []byte, signatureHeader string) error {
	match := signatureHeaderPattern.FindStringSubmatch(signatureHeader)
	if match == nil {
		return ErrMalformedSignature
	}
	timestamp, signature := match[1], match[2]

	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	if time.UnixMilli(ms).Before(v.now().Add(-SignatureWindow)) {
		return ErrInvalidSignature
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	inner := sha256.Sum256([]byte(timestamp + "." + string(body)))
	digest := sha256.Sum256(inner[:])
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
