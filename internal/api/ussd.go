package api

import (
	"context"

	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/mspace"

	"github.com/gofiber/fiber/v2"
)

// USSD handles POST /v1/ussd.
func (h *Handlers) USSD(c *fiber.Ctx) error {
	var req ussdRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	switch req.Action {
	case ActionSendUSSD:
		return h.sendUSSD(c, &req)
	case ActionGetSessions:
		return h.getSessions(c)
	default:
		return fail(c, fiber.StatusBadRequest, invalidActionError)
	}
}

func (h *Handlers) sendUSSD(c *fiber.Ctx, req *ussdRequest) error {
	account, err := auth.AccountFromContext(c)
	if err != nil {
		return dispatchError(c, err)
	}

	if done, err := h.replayIdempotent(c, account); done {
		return err
	}

	serviceCode := req.ServiceCode
	if serviceCode == "" {
		serviceCode = defaultServiceCode
	}

	dreq := &dispatch.Request{
		Channel:     dispatch.ChannelUSSD,
		AccountID:   account.ID,
		Recipients:  req.Recipients,
		Message:     req.Message,
		ServiceCode: serviceCode,
	}

	report, err := h.runDispatch(c.Context(), dreq, func(ctx context.Context, recipient string) mspace.SendOutcome {
		return h.provider.SendUSSD(ctx, mspace.USSDMessage{
			Recipient:   recipient,
			Message:     req.Message,
			ServiceCode: serviceCode,
		})
	})
	if err != nil {
		return dispatchError(c, err)
	}

	env := Envelope{
		Success: true,
		Message: "USSD sending completed",
		Data: fiber.Map{
			"results":      report.Results,
			"cost":         report.TotalCost,
			"sent_count":   report.SentCount,
			"failed_count": report.FailedCount,
		},
	}
	h.cacheIdempotent(c, account, env)
	return c.JSON(env)
}

func (h *Handlers) getSessions(c *fiber.Ctx) error {
	sessions, err := h.provider.Sessions(c.Context())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "sessions": sessions})
}
