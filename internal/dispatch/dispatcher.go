package dispatch

import (
	"context"
	"sync"
	"time"

	"mspace-gateway/internal/mspace"
	"mspace-gateway/internal/observability"

	"go.uber.org/zap"
)

// SendFunc performs one provider call for one recipient. Handlers bind the
// channel-specific payload into a closure over the mspace client.
type SendFunc func(ctx context.Context, recipient string) mspace.SendOutcome

// Recorder persists one outcome per recipient as it is produced. Failures
// inside Record must not surface into the batch.
type Recorder interface {
	Record(ctx context.Context, req *Request, res *Result)
}

// Dispatcher fans a recipient list out over a bounded worker pool. One
// recipient's failure never touches the others, and the report's result
// order always matches request order.
type Dispatcher struct {
	concurrency int
	recorder    Recorder
	metrics     *observability.Metrics
	logger      *zap.Logger
}

func NewDispatcher(concurrency int, recorder Recorder, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		concurrency: concurrency,
		recorder:    recorder,
		metrics:     metrics,
		logger:      logger,
	}
}

// Dispatch runs the batch and aggregates the report. The request must
// already be validated and priced; req.unitCost is set here from pricing
// by the caller via Price.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, send SendFunc) *Report {
	start := time.Now()
	results := make([]Result, len(req.Recipients))

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i, recipient := range req.Recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, to string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = d.sendOne(ctx, req, to, send)
		}(i, recipient)
	}
	wg.Wait()

	report := &Report{Results: results}
	for _, res := range results {
		if res.Success {
			report.SentCount++
			report.TotalCost += res.Cost
		} else {
			report.FailedCount++
		}
	}

	if d.metrics != nil {
		d.metrics.DispatchDuration.WithLabelValues(string(req.Channel)).Observe(time.Since(start).Seconds())
	}

	d.logger.Info("dispatch completed",
		zap.String("channel", string(req.Channel)),
		zap.Int("sent", report.SentCount),
		zap.Int("failed", report.FailedCount),
		zap.Float64("cost", report.TotalCost),
		zap.Duration("duration", time.Since(start)))

	return report
}

func (d *Dispatcher) sendOne(ctx context.Context, req *Request, recipient string, send SendFunc) Result {
	res := Result{Recipient: recipient}

	// Panics and transport errors stay confined to this recipient.
	func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("dispatch panic isolated",
					zap.String("recipient", recipient), zap.Any("panic", r))
				res.Success = false
				res.Error = "internal dispatch error"
			}
		}()

		out := send(ctx, recipient)
		res.Success = out.Success
		if out.Success {
			res.ProviderID = out.ProviderID
			res.Cost = req.unitCost
			if out.CostHint > 0 {
				res.Cost = out.CostHint
			}
		} else {
			res.Error = out.Message
		}
	}()

	if d.metrics != nil {
		status := "failed"
		if res.Success {
			status = "sent"
		}
		d.metrics.DispatchesTotal.WithLabelValues(string(req.Channel), status).Inc()
	}

	if d.recorder != nil {
		d.recorder.Record(ctx, req, &res)
	}
	return res
}

// Price fixes the request's per-unit cost before dispatch.
func (r *Request) Price(p Pricing) {
	r.unitCost = p.UnitCost(r)
}
