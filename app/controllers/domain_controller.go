package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/ratelimit"
)

// HandleDomainSearch checks a domain's availability, enriched with pricing.
// The endpoint fronts a metered registrar API, so it sits behind the layered
// search rate limit.
func HandleDomainSearch(c *fiber.Ctx) error {
	projectID, ok := projectIDFromRequest(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "X-Project-ID header missing"})
	}
	domain := strings.ToLower(strings.TrimSpace(c.Query("domain")))
	if domain == "" || !strings.Contains(domain, ".") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "domain query parameter missing or invalid"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	decision := deps.Limiter.CheckSearch(ctx, ratelimit.ClientIP(c), projectID)
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "rate_limited",
			"scope": decision.Scope,
		})
	}

	availability, err := deps.Registrar.CheckAvailability(ctx, domain)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "registrar_unavailable"})
	}

	response := fiber.Map{
		"domain":    availability.Domain,
		"available": availability.Available,
		"premium":   availability.Premium,
	}
	if availability.Available {
		tld := domain[strings.LastIndexByte(domain, '.')+1:]
		if pricing, perr := deps.Pricing.GetPricing(ctx, tld); perr == nil {
			response["pricing"] = pricing
		}
	}
	return c.JSON(response)
}

func writeRateLimitHeaders(c *fiber.Ctx, d ratelimit.Decision) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		retryAfter := int(d.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set("Retry-After", strconv.Itoa(retryAfter))
	}
}
