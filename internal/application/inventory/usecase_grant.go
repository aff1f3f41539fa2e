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
	ledgerService  = "inventory-ledger"
	useCaseGrant   = "inventory.grant_items"
	spanPrefix     = "UC."
	grantSpanName  = "GrantItems"
	publishTimeout = 300 * time.Millisecond
)

// GrantResult exposes the outcome of a grant command.
type GrantResult struct {
	Quantity  int64
	Duplicate bool
}

type GrantItemsUseCase struct {
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

func NewGrantItemsUseCase(
	ledger dominv.Repository,
	catalog domcatalog.Repository,
	keys *KeyLock,
	publisher domoutbox.Publisher,
	dedup Deduplicator,
	tel observability.Observability,
) *GrantItemsUseCase {
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

	return &GrantItemsUseCase{
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

// Execute applies a GrantItems command at most once. Redeliveries of an
// already applied command skip the mutation and re-publish the success fact so
// the saga can make progress even when its ack was lost.
func (uc *GrantItemsUseCase) Execute(ctx context.Context, cmd dominv.GrantItemsCommand) (_ *GrantResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseGrant),
		observability.F("user_id", cmd.UserID),
		observability.F("catalog_item_id", cmd.CatalogItemID),
		observability.F("quantity", cmd.Quantity),
		observability.F("correlation_id", cmd.CorrelationID),
		observability.F("command_id", cmd.CommandID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+grantSpanName,
		attribute.String("use_case", useCaseGrant),
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
			observability.L("use_case", useCaseGrant),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency, observability.L("use_case", useCaseGrant))

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
		return nil, domoutbox.Permanent(fmt.Errorf("grant %q: %w", cmd.CommandID, dominv.ErrInvalidQuantity))
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
		if err = uc.emitter.publish(ctx, dominv.NewItemsGrantedEvent(cmd.CorrelationID)); err != nil {
			outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
			return nil, fmt.Errorf("grant: republish granted: %w", err)
		}
		return &GrantResult{Duplicate: true}, nil
	}

	exists, err := uc.catalog.Exists(ctx, cmd.CatalogItemID)
	if err != nil {
		outcome, statusText = "error", "CATALOG_LOOKUP_FAILED"
		return nil, fmt.Errorf("grant: catalog lookup: %w", err)
	}
	if !exists {
		outcome, statusText = "error", "UNKNOWN_ITEM"
		return nil, domoutbox.Permanent(fmt.Errorf("grant item %q: %w", cmd.CatalogItemID, domcatalog.ErrUnknownItem))
	}

	record, err := uc.ledger.FindByUserAndItem(ctx, cmd.UserID, cmd.CatalogItemID)
	if err != nil {
		outcome, statusText = "error", "LEDGER_LOOKUP_FAILED"
		return nil, fmt.Errorf("grant: ledger lookup: %w", err)
	}

	switch {
	case record == nil:
		record, err = dominv.NewRecord(cmd.UserID, cmd.CatalogItemID, cmd.Quantity, cmd.CommandID)
		if err != nil {
			outcome, statusText = "error", "INVALID_COMMAND"
			return nil, domoutbox.Permanent(err)
		}
		if err = uc.ledger.Create(ctx, record); err != nil {
			outcome, statusText = "error", "LEDGER_CREATE_FAILED"
			return nil, fmt.Errorf("grant: create record: %w", err)
		}

	case record.Applied(cmd.CommandID):
		outcome, statusText = "duplicate", "DUPLICATE"
		if err = uc.emitter.publish(ctx, dominv.NewItemsGrantedEvent(cmd.CorrelationID)); err != nil {
			outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
			return nil, fmt.Errorf("grant: republish granted: %w", err)
		}
		return &GrantResult{Quantity: record.Quantity, Duplicate: true}, nil

	default:
		if err = record.Apply(cmd.CommandID, cmd.Quantity); err != nil {
			outcome, statusText = "error", "APPLY_FAILED"
			return nil, fmt.Errorf("grant: apply delta: %w", err)
		}
		if err = uc.ledger.Update(ctx, record); err != nil {
			outcome, statusText = "error", "LEDGER_UPDATE_FAILED"
			return nil, fmt.Errorf("grant: update record: %w", err)
		}
	}

	span.AddEvent("inventory.items_granted",
		trace.WithAttributes(
			attribute.String("user.id", cmd.UserID),
			attribute.String("catalog_item.id", cmd.CatalogItemID),
			attribute.Int64("inventory.quantity", record.Quantity),
		),
	)

	if err = uc.emitter.publish(ctx, dominv.NewItemsGrantedEvent(cmd.CorrelationID)); err != nil {
		outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
		return nil, fmt.Errorf("grant: publish granted: %w", err)
	}
	if err = uc.emitter.publish(ctx, dominv.NewInventoryUpdatedEvent(cmd.UserID, cmd.CatalogItemID, record.Quantity)); err != nil {
		outcome, statusText = "error", "EVENT_PUBLISH_FAILED"
		return nil, fmt.Errorf("grant: publish updated: %w", err)
	}

	uc.markApplied(ctx, cmd.CommandID, logger)

	return &GrantResult{Quantity: record.Quantity}, nil
}

func (uc *GrantItemsUseCase) alreadyApplied(ctx context.Context, commandID string) (bool, error) {
	if uc.dedup == nil {
		return false, nil
	}
	return uc.dedup.AlreadyApplied(ctx, commandID)
}

func (uc *GrantItemsUseCase) markApplied(ctx context.Context, commandID string, logger observability.Logger) {
	if uc.dedup == nil {
		return
	}
	// Best effort: the record-embedded applied set stays authoritative.
	if err := uc.dedup.MarkApplied(ctx, commandID); err != nil {
		logger.Warn("dedup_mark_failed", observability.F("error", err.Error()))
	}
}
