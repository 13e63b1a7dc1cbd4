package ratelimit

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

// ClientIP resolves the real client address for rate-limit scoping. The
// X-Forwarded-For header is only honored when the direct peer is the
// configured trusted proxy; otherwise a spoofed header could rotate the
// caller out of its own limit bucket.
func ClientIP(c *fiber.Ctx) string {
	trustedProxy := env.GetEnv("TRUSTED_PROXY_IP", "")
	remoteIP := c.IP()

	if trustedProxy == "" || remoteIP != trustedProxy {
		return remoteIP
	}

	forwarded := c.Get(fiber.HeaderXForwardedFor)
	if forwarded == "" {
		return remoteIP
	}
	// Left-most entry is the originating client.
	first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
	if first == "" {
		return remoteIP
	}
	return first
}
