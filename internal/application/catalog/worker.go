package catalog

import (
	"context"
	"fmt"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
)

const workerService = "catalog_worker"

// Worker binds the mirror sync use case to catalog-change events.
type Worker struct {
	subscriber domoutbox.Subscriber
	sync       *SyncItemUseCase

	log        observability.Logger
	reqCounter observability.Counter
}

func NewWorker(subscriber domoutbox.Subscriber, sync *SyncItemUseCase, tel observability.Observability) *Worker {
	baseLogger := observability.NopLogger()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLogger = tel.Logger()
		metricsProvider = tel.Metrics()
	}
	return &Worker{
		subscriber: subscriber,
		sync:       sync,
		log:        baseLogger.With(observability.F("service", workerService)),
		reqCounter: metricsProvider.Counter(observability.MUsecaseRequests),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.sync == nil {
		return
	}
	w.subscriber.Subscribe(domcatalog.ItemChangedEvent{}.EventName(), w.handleItemChanged)
}

func (w *Worker) handleItemChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcatalog.ItemChangedEvent)
	if !ok {
		w.reqCounter.Add(1,
			observability.L("use_case", "catalog.worker.item_changed"),
			observability.L("outcome", "ignored"),
		)
		return nil
	}
	if err := w.sync.Execute(ctx, evt); err != nil {
		return fmt.Errorf("worker: catalog item changed: %w", err)
	}
	return nil
}
