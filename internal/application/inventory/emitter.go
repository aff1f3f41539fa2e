package inventory

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
)

const publishPeer = "outbox"

// emitter wraps the fact publisher with a timeout and external-call metrics.
// Facts are idempotent downstream, so publishing the same fact again on a
// redelivery is harmless.
type emitter struct {
	publisher    domoutbox.Publisher
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func newEmitter(publisher domoutbox.Publisher, metrics observability.Metrics) *emitter {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &emitter{
		publisher:    publisher,
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (e *emitter) publish(ctx context.Context, event domoutbox.Event) error {
	if e.publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := e.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	e.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
		observability.L("outcome", outcome),
	)
	e.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
	)

	return err
}
