// Package payment talks to the payment gateway and verifies its confirmations.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"storefront/internal/model"
)

// Verifier checks gateway confirmation signatures.
// The signature is hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)).
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the gateway key secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway would send for the pair.
func (v *Verifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify fails closed: any missing field, undecodable signature or mismatch is ErrInvalidSignature.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	if len(v.secret) == 0 || gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return model.ErrInvalidSignature
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return model.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return model.ErrInvalidSignature
	}
	return nil
}

// VerifyConfirmation verifies a client-submitted confirmation.
func (v *Verifier) VerifyConfirmation(c model.PaymentConfirmation) error {
	return v.Verify(c.GatewayOrderID, c.GatewayPaymentID, c.Signature)
}

// AmountsMatch reports whether the authorised session amount equals the recomputed total.
func AmountsMatch(session *model.PaymentSession, total model.Money) bool {
	return session != nil && session.AmountMinor == model.ToMinorUnits(total)
}
