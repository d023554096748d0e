package api

import (
	"context"

	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/mspace"

	"github.com/gofiber/fiber/v2"
)

// SMS handles POST /v1/sms, demultiplexing the action field.
func (h *Handlers) SMS(c *fiber.Ctx) error {
	var req smsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	switch req.Action {
	case ActionSendSMS:
		return h.sendSMS(c, &req)
	case ActionCheckBalance:
		return h.checkBalance(c)
	case ActionGetDeliveryReports:
		return h.getDeliveryReports(c, req.MessageIDs)
	case ActionSendUSSD, ActionGetSessions, ActionMakeCall, ActionGetCallHistory, ActionSendAirtime, ActionGetHistory:
		return fail(c, fiber.StatusBadRequest, invalidActionError)
	default:
		return fail(c, fiber.StatusBadRequest, invalidActionError)
	}
}

func (h *Handlers) sendSMS(c *fiber.Ctx, req *smsRequest) error {
	account, err := auth.AccountFromContext(c)
	if err != nil {
		return dispatchError(c, err)
	}

	if done, err := h.replayIdempotent(c, account); done {
		return err
	}

	senderID := req.SenderID
	if senderID == "" {
		senderID = defaultSenderID
	}

	dreq := &dispatch.Request{
		Channel:      dispatch.ChannelSMS,
		AccountID:    account.ID,
		Recipients:   req.Recipients,
		Message:      req.Message,
		SenderID:     senderID,
		CampaignID:   req.CampaignID,
		ScheduleTime: req.ScheduledTime,
	}

	report, err := h.runDispatch(c.Context(), dreq, func(ctx context.Context, recipient string) mspace.SendOutcome {
		return h.provider.SendSMS(ctx, mspace.SMSMessage{
			Recipient:    recipient,
			Message:      req.Message,
			SenderID:     senderID,
			ScheduleTime: req.ScheduledTime,
		})
	})
	if err != nil {
		return dispatchError(c, err)
	}

	env := Envelope{
		Success: true,
		Message: "SMS sending completed",
		Data: fiber.Map{
			"results":      report.Results,
			"cost":         report.TotalCost,
			"sent_count":   report.SentCount,
			"failed_count": report.FailedCount,
			"message_ids":  report.ProviderIDs(),
		},
	}
	h.cacheIdempotent(c, account, env)
	return c.JSON(env)
}

func (h *Handlers) checkBalance(c *fiber.Ctx) error {
	balance, err := h.provider.CheckBalance(c.Context())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return ok(c, "", balance)
}

func (h *Handlers) getDeliveryReports(c *fiber.Ctx, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return fail(c, fiber.StatusBadRequest, "message_ids is required")
	}

	reports := h.reconciler.Reconcile(c.Context(), messageIDs)
	return c.JSON(fiber.Map{"success": true, "reports": reports})
}
