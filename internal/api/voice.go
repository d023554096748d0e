package api

import (
	"context"

	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/mspace"

	"github.com/gofiber/fiber/v2"
)

// Voice handles POST /v1/voice.
func (h *Handlers) Voice(c *fiber.Ctx) error {
	var req voiceRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	switch req.Action {
	case ActionMakeCall:
		return h.makeCall(c, &req)
	case ActionGetCallHistory:
		return h.getCallHistory(c)
	default:
		return fail(c, fiber.StatusBadRequest, invalidActionError)
	}
}

func (h *Handlers) makeCall(c *fiber.Ctx, req *voiceRequest) error {
	account, err := auth.AccountFromContext(c)
	if err != nil {
		return dispatchError(c, err)
	}

	if done, err := h.replayIdempotent(c, account); done {
		return err
	}

	dreq := &dispatch.Request{
		Channel:      dispatch.ChannelVoice,
		AccountID:    account.ID,
		Recipients:   req.Recipients,
		TextToSpeech: req.TextToSpeech,
		VoiceFileURL: req.VoiceFileURL,
	}

	report, err := h.runDispatch(c.Context(), dreq, func(ctx context.Context, recipient string) mspace.SendOutcome {
		return h.provider.MakeCall(ctx, mspace.VoiceCall{
			Recipient:    recipient,
			VoiceFileURL: req.VoiceFileURL,
			TextToSpeech: req.TextToSpeech,
		})
	})
	if err != nil {
		return dispatchError(c, err)
	}

	env := Envelope{
		Success: true,
		Message: "Voice calls completed",
		Data: fiber.Map{
			"results":      report.Results,
			"call_ids":     report.ProviderIDs(),
			"cost":         report.TotalCost,
			"sent_count":   report.SentCount,
			"failed_count": report.FailedCount,
		},
	}
	h.cacheIdempotent(c, account, env)
	return c.JSON(env)
}

func (h *Handlers) getCallHistory(c *fiber.Ctx) error {
	calls, err := h.provider.CallHistory(c.Context())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "calls": calls})
}
