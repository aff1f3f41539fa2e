package inventory

import (
	"context"
	"fmt"

	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
)

const workerService = "inventory_worker"

// Worker binds the grant/subtract use cases to the command transport.
type Worker struct {
	subscriber domoutbox.Subscriber
	grant      *GrantItemsUseCase
	subtract   *SubtractItemsUseCase

	log        observability.Logger
	reqCounter observability.Counter
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	grant *GrantItemsUseCase,
	subtract *SubtractItemsUseCase,
	tel observability.Observability,
) *Worker {
	baseLogger := observability.NopLogger()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLogger = tel.Logger()
		metricsProvider = tel.Metrics()
	}
	return &Worker{
		subscriber: subscriber,
		grant:      grant,
		subtract:   subtract,
		log:        baseLogger.With(observability.F("service", workerService)),
		reqCounter: metricsProvider.Counter(observability.MUsecaseRequests),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	if w.grant != nil {
		w.subscriber.Subscribe(dominv.GrantItemsCommand{}.EventName(), w.handleGrantItems)
	}
	if w.subtract != nil {
		w.subscriber.Subscribe(dominv.SubtractItemsCommand{}.EventName(), w.handleSubtractItems)
	}
}

func (w *Worker) handleGrantItems(ctx context.Context, e domoutbox.Event) error {
	cmd, ok := e.(dominv.GrantItemsCommand)
	if !ok {
		w.count("inventory.worker.grant_items", "ignored")
		return nil
	}
	if _, err := w.grant.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("worker: grant items: %w", err)
	}
	return nil
}

func (w *Worker) handleSubtractItems(ctx context.Context, e domoutbox.Event) error {
	cmd, ok := e.(dominv.SubtractItemsCommand)
	if !ok {
		w.count("inventory.worker.subtract_items", "ignored")
		return nil
	}
	if _, err := w.subtract.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("worker: subtract items: %w", err)
	}
	return nil
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
