package api

import (
	"context"

	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/mspace"

	"github.com/gofiber/fiber/v2"
)

// Airtime handles POST /v1/airtime.
func (h *Handlers) Airtime(c *fiber.Ctx) error {
	var req airtimeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	switch req.Action {
	case ActionSendAirtime:
		return h.sendAirtime(c, &req)
	case ActionGetHistory:
		return h.getAirtimeHistory(c)
	default:
		return fail(c, fiber.StatusBadRequest, invalidActionError)
	}
}

func (h *Handlers) sendAirtime(c *fiber.Ctx, req *airtimeRequest) error {
	account, err := auth.AccountFromContext(c)
	if err != nil {
		return dispatchError(c, err)
	}

	if done, err := h.replayIdempotent(c, account); done {
		return err
	}

	if req.PhoneNumber == "" {
		return fail(c, fiber.StatusBadRequest, "phone_number is required")
	}

	reference := req.Reference
	if reference == "" {
		reference = defaultAirtimeRef
	}

	dreq := &dispatch.Request{
		Channel:    dispatch.ChannelAirtime,
		AccountID:  account.ID,
		Recipients: []string{req.PhoneNumber},
		Amount:     req.Amount,
		Network:    req.Network,
		Reference:  reference,
	}

	report, err := h.runDispatch(c.Context(), dreq, func(ctx context.Context, recipient string) mspace.SendOutcome {
		return h.provider.SendAirtime(ctx, mspace.AirtimeTransfer{
			Recipient: recipient,
			Amount:    req.Amount,
			Network:   req.Network,
			Reference: reference,
		})
	})
	if err != nil {
		return dispatchError(c, err)
	}

	// Airtime is a single-recipient transfer; a failed result fails the
	// whole request, as the console expects.
	result := report.Results[0]
	if !result.Success {
		return fail(c, fiber.StatusBadRequest, result.Error)
	}

	env := Envelope{
		Success: true,
		Message: "Airtime sent successfully",
		Data: fiber.Map{
			"transaction_id": result.ProviderID,
			"status":         "completed",
			"amount":         req.Amount,
			"phone_number":   req.PhoneNumber,
			"network":        req.Network,
			"cost":           report.TotalCost,
		},
	}
	h.cacheIdempotent(c, account, env)
	return c.JSON(env)
}

func (h *Handlers) getAirtimeHistory(c *fiber.Ctx) error {
	transactions, err := h.provider.AirtimeHistory(c.Context())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "transactions": transactions})
}
