package inventory

import (
	"context"
	"fmt"
	"time"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseSubtract  = "inventory.subtract_items"
	subtractSpanName = "SubtractItems"
)

// SubtractResult exposes the outcome of a subtract command.
type SubtractResult struct {
	Quantity  int64
	Mutated   bool
	Duplicate bool
}

type SubtractItemsUseCase struct {
	ledger  dominv.Repository
	catalog domcatalog.Repository
	keys    *KeyLock
	emitter *emitter
	dedup   Deduplicator

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewSubtractItemsUseCase(
	ledger dominv.Repository,
	catalog domcatalog.Repository,
	keys *KeyLock,
	publisher domoutbox.Publisher,
	dedup Deduplicator,
	tel observability.Observability,
) *SubtractItemsUseCase {
	baseLog := observability.NopLogger().With(observability.F("service", ledgerService))
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger().With(observability.F("service", ledgerService))
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}
	if keys == nil {
		keys = NewKeyLock()
	}

	return &SubtractItemsUseCase{
		ledger:       ledger,
		catalog:      catalog,
		keys:         keys,
		emitter:      newEmitter(publisher, metricsProvider),
		dedup:        dedup,
		log:          baseLog,
		tracer:       tracer,
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

// Execute applies a SubtractItems compensation at most once. The compensating
// step always completes from the saga's viewpoint: ItemsSubtracted is
// published even when there is no record to subtract from.
func (uc *SubtractItemsUseCase) Execute(ctx context.Context, cmd dominv.SubtractItemsCommand) (_ *SubtractResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseSubtract),
		observability.F("user_id", cmd.UserID),
		observability.F("catalog_item_id", cmd.CatalogItemID),
		observability.F("quantity", cmd.Quantity),
		observability.F("correlation_id", cmd.CorrelationID),
		observability.F("command_id", cmd.CommandID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+subtractSpanName,
		attribute.String("use_case", useCaseSubtract),
		attribute.String("user.id", cmd.UserID),
		attribute.String("catalog_item.id", cmd.CatalogItemID),
		attribute.Int64("command.quantity", cmd.Quantity),
		attribute.String("command.id", cmd.CommandID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseSubtract),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency, observability.L("use_case", useCaseSubtract))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.Quantity <= 0 {
		outcome, statusText = "error", "INVALID_QUANTITY"
		return nil, domoutbox.Permanent(fmt.Errorf("subtract %q: %w", cmd.CommandID, dominv.ErrInvalidQuantity))
	}
	if cmd.CommandID == "" {
		outcome, statusText = "error", "MISSING_COMMAND_ID"
		return nil, domoutbox.Permanent(dominv.ErrCommandID)
	}

	uc.keys.lock(ledgerKey(cmd.UserID, cmd.CatalogItemID))
	defer uc.keys.unlock(ledgerKey(cmd.UserID, cmd.CatalogItemID))

	if dup, dedupErr := uc.alreadyApplied(ctx, cmd.CommandID); dedupErr != nil {
		logger.Warn("dedup_lookup_failed", observability.F("error", dedupErr.Error()))
	} else if dup {
		outcome, statusText = "duplicate", "DUPLICATE"
		if err = uc.emitter.publish(ctx, dominv.NewItemsSubtractedEvent(cmd.CorrelationID)); err != nil {
			outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
			return nil, fmt.Errorf("subtract: republish subtracted: %w", err)
		}
		return &SubtractResult{Duplicate: true}, nil
	}

	exists, err := uc.catalog.Exists(ctx, cmd.CatalogItemID)
	if err != nil {
		outcome, statusText = "error", "CATALOG_LOOKUP_FAILED"
		return nil, fmt.Errorf("subtract: catalog lookup: %w", err)
	}
	if !exists {
		outcome, statusText = "error", "UNKNOWN_ITEM"
		return nil, domoutbox.Permanent(fmt.Errorf("subtract item %q: %w", cmd.CatalogItemID, domcatalog.ErrUnknownItem))
	}

	record, err := uc.ledger.FindByUserAndItem(ctx, cmd.UserID, cmd.CatalogItemID)
	if err != nil {
		outcome, statusText = "error", "LEDGER_LOOKUP_FAILED"
		return nil, fmt.Errorf("subtract: ledger lookup: %w", err)
	}

	result := &SubtractResult{}

	switch {
	case record == nil:
		// Nothing to reverse; the compensation still completes.
		outcome, statusText = "noop", "NO_RECORD"

	case record.Applied(cmd.CommandID):
		outcome, statusText = "duplicate", "DUPLICATE"
		result.Quantity = record.Quantity
		result.Duplicate = true

	default:
		if err = record.Apply(cmd.CommandID, -cmd.Quantity); err != nil {
			outcome, statusText = "error", "APPLY_FAILED"
			return nil, fmt.Errorf("subtract: apply delta: %w", err)
		}
		if err = uc.ledger.Update(ctx, record); err != nil {
			outcome, statusText = "error", "LEDGER_UPDATE_FAILED"
			return nil, fmt.Errorf("subtract: update record: %w", err)
		}
		if record.Quantity < 0 {
			// Allowed by policy: negative quantity is a transient debt state.
			logger.Warn("ledger_quantity_negative",
				observability.F("quantity", record.Quantity),
			)
		}
		result.Quantity = record.Quantity
		result.Mutated = true

		if err = uc.emitter.publish(ctx, dominv.NewInventoryUpdatedEvent(cmd.UserID, cmd.CatalogItemID, record.Quantity)); err != nil {
			outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
			return nil, fmt.Errorf("subtract: publish updated: %w", err)
		}
	}

	// Always the final step, whether or not a mutation occurred.
	if err = uc.emitter.publish(ctx, dominv.NewItemsSubtractedEvent(cmd.CorrelationID)); err != nil {
		outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
		return nil, fmt.Errorf("subtract: publish subtracted: %w", err)
	}

	if result.Mutated {
		uc.markApplied(ctx, cmd.CommandID, logger)
	}

	return result, nil
}

func (uc *SubtractItemsUseCase) alreadyApplied(ctx context.Context, commandID string) (bool, error) {
	if uc.dedup == nil {
		return false, nil
	}
	return uc.dedup.AlreadyApplied(ctx, commandID)
}

func (uc *SubtractItemsUseCase) markApplied(ctx context.Context, commandID string, logger observability.Logger) {
	if uc.dedup == nil {
		return
	}
	if err := uc.dedup.MarkApplied(ctx, commandID); err != nil {
		logger.Warn("dedup_mark_failed", observability.F("error", err.Error()))
	}
}
