package webhookledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

// VerifySignature checks the HMAC-SHA256 hex signature of a raw webhook body
// against the per-source shared secret. An empty secret or signature fails
// closed.
func VerifySignature(source models.WebhookSource, payload []byte, signatureHeader string) bool {
	return verifyHMACSHA256(payload, signatureHeader, sourceSecret(source))
}

func sourceSecret(source models.WebhookSource) string {
	switch source {
	case models.WebhookSourceRegistrar:
		return env.GetEnv("REGISTRAR_WEBHOOK_SECRET", "")
	case models.WebhookSourcePayment:
		return env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
	default:
		return ""
	}
}

func verifyHMACSHA256(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	sec := strings.TrimSpace(secret)
	if sig == "" || sec == "" {
		return false
	}

	// Some senders prefix the scheme, e.g. "sha256=<hex>".
	if idx := strings.IndexByte(sig, '='); idx >= 0 && strings.EqualFold(sig[:idx], "sha256") {
		sig = sig[idx+1:]
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(sec))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
