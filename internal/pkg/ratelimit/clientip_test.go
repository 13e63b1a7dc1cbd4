package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

func resolveIP(t *testing.T, forwardedFor string) string {
	t.Helper()
	app := fiber.New()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = ClientIP(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	if forwardedFor != "" {
		req.Header.Set(fiber.HeaderXForwardedFor, forwardedFor)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return got
}

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	prev := env.Env
	env.Env = map[string]string{key: value}
	t.Cleanup(func() { env.Env = prev })
}

func TestClientIPIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	withEnv(t, "TRUSTED_PROXY_IP", "203.0.113.10")

	// The direct peer in fiber's test transport is 0.0.0.0, which does not
	// match the trusted proxy, so the header must be ignored.
	got := resolveIP(t, "198.51.100.7")
	assert.Equal(t, "0.0.0.0", got)
}

func TestClientIPUsesForwardedForFromTrustedProxy(t *testing.T) {
	withEnv(t, "TRUSTED_PROXY_IP", "0.0.0.0")

	got := resolveIP(t, "198.51.100.7, 203.0.113.10")
	assert.Equal(t, "198.51.100.7", got)
}

func TestClientIPFallsBackWithoutHeader(t *testing.T) {
	withEnv(t, "TRUSTED_PROXY_IP", "0.0.0.0")

	got := resolveIP(t, "")
	assert.Equal(t, "0.0.0.0", got)
}
