package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/registrar"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/transfers"
)

// HandleTransferEligibility answers whether a domain can be transferred in.
// Read-only; never creates state.
func HandleTransferEligibility(c *fiber.Ctx) error {
	domain := strings.TrimSpace(c.Query("domain"))
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "domain query parameter missing"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := deps.Transfers.CheckEligibility(ctx, domain)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "registrar_unavailable"})
	}
	return c.JSON(result)
}

type createTransferRequest struct {
	DomainName string            `json:"domain_name"`
	Contact    registrar.Contact `json:"contact"`
}

// HandleTransferCreate starts a transfer: eligibility check, pricing and a
// payment intent. The authorization code is not part of this request.
func HandleTransferCreate(c *fiber.Ctx) error {
	projectID, ok := projectIDFromRequest(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "X-Project-ID header missing"})
	}

	var req createTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid json body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := deps.Transfers.CreateIntent(ctx, transfers.CreateIntentInput{
		ProjectID:  projectID,
		DomainName: req.DomainName,
		Contact:    req.Contact,
	})
	if err != nil {
		if errors.Is(err, transfers.ErrNotEligible) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "not_eligible"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	status := fiber.StatusCreated
	if result.Resumed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"transfer":              result.Transfer,
		"payment_client_secret": result.PaymentClientSecret,
		"resumed":               result.Resumed,
	})
}

// HandleTransferPayment returns (or recreates) the transfer's payment
// intent so an abandoned checkout can be resumed.
func HandleTransferPayment(c *fiber.Ctx) error {
	transfer, errResp := loadProjectTransfer(c)
	if transfer == nil {
		return errResp
	}

	ctx, cancel := requestContext()
	defer cancel()

	payment, err := deps.Transfers.CreateOrReusePayment(ctx, transfer)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment_provider_unavailable"})
	}
	return c.JSON(fiber.Map{
		"payment_ref":           payment.ID,
		"payment_status":        payment.Status,
		"payment_client_secret": payment.ClientSecret,
	})
}

type confirmTransferRequest struct {
	AuthCode string `json:"auth_code"`
}

// HandleTransferConfirm accepts the authorization code once the payment
// verifies and submits the registrar order.
func HandleTransferConfirm(c *fiber.Ctx) error {
	transfer, errResp := loadProjectTransfer(c)
	if transfer == nil {
		return errResp
	}

	var req confirmTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid json body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	updated, err := deps.Transfers.ConfirmWithAuthCode(ctx, transfer.PublicID, req.AuthCode)
	switch {
	case err == nil:
		return c.JSON(updated)
	case errors.Is(err, transfers.ErrPaymentNotVerified):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "payment_not_verified"})
	case errors.Is(err, registrar.ErrRejected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "registrar_rejected", "transfer": updated})
	case errors.Is(err, transfers.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_state", "message": err.Error()})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "transfer_confirm_failed", "message": err.Error()})
	}
}

// HandleTransferPoll refreshes the transfer from the registrar order status.
func HandleTransferPoll(c *fiber.Ctx) error {
	transfer, errResp := loadProjectTransfer(c)
	if transfer == nil {
		return errResp
	}

	ctx, cancel := requestContext()
	defer cancel()

	updated, err := deps.Transfers.PollStatus(ctx, transfer.PublicID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "registrar_unavailable"})
	}
	return c.JSON(updated)
}

// HandleTransferCancel aborts a transfer that has not reached the registry.
func HandleTransferCancel(c *fiber.Ctx) error {
	transfer, errResp := loadProjectTransfer(c)
	if transfer == nil {
		return errResp
	}

	ctx, cancel := requestContext()
	defer cancel()

	updated, err := deps.Transfers.Cancel(ctx, transfer.PublicID)
	if err != nil {
		if errors.Is(err, transfers.ErrNotCancellable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not_cancellable"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cancel_failed"})
	}
	return c.JSON(updated)
}

// HandleTransferGet returns a single transfer.
func HandleTransferGet(c *fiber.Ctx) error {
	transfer, errResp := loadProjectTransfer(c)
	if transfer == nil {
		return errResp
	}
	return c.JSON(transfer)
}

// HandleTransferList returns the project's transfers, newest first.
func HandleTransferList(c *fiber.Ctx) error {
	projectID, ok := projectIDFromRequest(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "X-Project-ID header missing"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	list, err := deps.Transfers.List(ctx, projectID, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"transfers": list})
}

// loadProjectTransfer resolves the :id route param to a transfer owned by
// the acting project. A nil transfer means the response has already been
// written. A transfer belonging to someone else reads as not found so
// existence never leaks.
func loadProjectTransfer(c *fiber.Ctx) (*models.DomainTransfer, error) {
	projectID, ok := projectIDFromRequest(c)
	if !ok {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "X-Project-ID header missing"})
	}
	publicID := strings.TrimSpace(c.Params("id"))
	if publicID == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "transfer id missing"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	transfer, err := deps.Transfers.Get(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}
	if transfer.ProjectID != projectID {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	return transfer, nil
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 25*time.Second)
}
