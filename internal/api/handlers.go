package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/credits"
	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/history"
	"mspace-gateway/internal/idempotency"
	"mspace-gateway/internal/mspace"
	"mspace-gateway/internal/reports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultSenderID    = "SENDER"
	defaultServiceCode = "*144#"
	defaultAirtimeRef  = "Airtime top-up"
)

type Handlers struct {
	logger      *zap.Logger
	provider    *mspace.Client
	ledger      *credits.Ledger
	dispatcher  *dispatch.Dispatcher
	reconciler  *reports.Reconciler
	store       *history.Store
	idempotency *idempotency.Store
	pricing     dispatch.Pricing
}

func NewHandlers(
	logger *zap.Logger,
	provider *mspace.Client,
	ledger *credits.Ledger,
	dispatcher *dispatch.Dispatcher,
	reconciler *reports.Reconciler,
	store *history.Store,
	idem *idempotency.Store,
	pricing dispatch.Pricing,
) *Handlers {
	return &Handlers{
		logger:      logger,
		provider:    provider,
		ledger:      ledger,
		dispatcher:  dispatcher,
		reconciler:  reconciler,
		store:       store,
		idempotency: idem,
		pricing:     pricing,
	}
}

// runDispatch is the shared gate → dispatch → settle sequence. Validation
// and authorization failures abort before any provider call; per-recipient
// provider failures surface only inside the report.
func (h *Handlers) runDispatch(ctx context.Context, req *dispatch.Request, send dispatch.SendFunc) (*dispatch.Report, error) {
	if err := req.Validate(h.pricing); err != nil {
		return nil, err
	}

	estimate := h.pricing.Estimate(req)
	if err := h.ledger.Reserve(ctx, req.AccountID, estimate); err != nil {
		return nil, err
	}

	req.Price(h.pricing)
	report := h.dispatcher.Dispatch(ctx, req, send)

	if err := h.ledger.Settle(ctx, req.AccountID, estimate, report.TotalCost); err != nil {
		// The dispatch already happened; settlement failure means the
		// reservation stays debited, which errs on the safe side of the
		// non-negative balance invariant.
		h.logger.Error("credit settlement failed",
			zap.String("account", req.AccountID.String()), zap.Error(err))
	}

	return report, nil
}

// dispatchError maps gate failures onto the envelope.
func dispatchError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, credits.ErrInsufficientCredits):
		return fail(c, fiber.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, auth.ErrUnauthenticated):
		return fail(c, fiber.StatusUnauthorized, "User not authenticated")
	default:
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
}

// replayIdempotent returns the cached envelope for a repeated
// Idempotency-Key, if any.
func (h *Handlers) replayIdempotent(c *fiber.Ctx, account *auth.Account) (bool, error) {
	key := c.Get("Idempotency-Key")
	if key == "" {
		return false, nil
	}
	cached, hit := h.idempotency.GetResponse(c.Context(), account.ID, key)
	if !hit {
		return false, nil
	}
	c.Set("Content-Type", "application/json")
	return true, c.Send(cached)
}

func (h *Handlers) cacheIdempotent(c *fiber.Ctx, account *auth.Account, env Envelope) {
	key := c.Get("Idempotency-Key")
	if key == "" {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.idempotency.StoreResponse(c.Context(), account.ID, key, payload)
}

// Health handles GET /healthz.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Unix()})
}

// Ready handles GET /readyz.
func (h *Handlers) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Health(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
