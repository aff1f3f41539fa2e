package catalog

import (
	"context"
	"fmt"
	"time"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	mirrorService = "catalog-mirror"
	useCaseSync   = "catalog.sync_item"
	syncSpanName  = "UC.CatalogItemChanged"
)

// SyncItemUseCase mirrors catalog-change facts into the local read replica.
// Upserts are last-write-wins, so concurrent redeliveries are naturally
// idempotent.
type SyncItemUseCase struct {
	mirror domcatalog.Repository

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewSyncItemUseCase(mirror domcatalog.Repository, tel observability.Observability) *SyncItemUseCase {
	baseLog := observability.NopLogger().With(observability.F("service", mirrorService))
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger().With(observability.F("service", mirrorService))
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}
	return &SyncItemUseCase{
		mirror:       mirror,
		log:          baseLog,
		tracer:       tracer,
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *SyncItemUseCase) Execute(ctx context.Context, e domcatalog.ItemChangedEvent) (err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseSync),
		observability.F("catalog_item_id", e.ItemID),
	)

	ctx, span := uc.tracer.Start(ctx, syncSpanName,
		attribute.String("use_case", useCaseSync),
		attribute.String("catalog_item.id", e.ItemID),
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
			observability.L("use_case", useCaseSync),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency, observability.L("use_case", useCaseSync))

		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		)
	}()

	err = uc.mirror.Upsert(ctx, &domcatalog.Item{
		ID:          e.ItemID,
		Name:        e.Name,
		Description: e.Description,
	})
	if err != nil {
		outcome, statusText = "error", "MIRROR_UPSERT_FAILED"
		return fmt.Errorf("catalog sync: upsert %q: %w", e.ItemID, err)
	}
	return nil
}
