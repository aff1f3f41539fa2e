package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	appcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/application/catalog"
	appinventory "github.com/Zhima-Mochi/inventory-ledger/internal/application/inventory"
	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/id"
	kafkatransport "github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/memory"
	mysqlstore "github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/mysql"
	infraobs "github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/outbox"
	redisstore "github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
	httppresentation "github.com/Zhima-Mochi/inventory-ledger/internal/presentation/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "inventory-ledger")
	env := getenvDefault("ENV", "dev")

	logger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)
	defer syncLogger(logger)

	registry := prometrics.New("", serviceName)
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests:  registry.Counter(string(observability.MUsecaseRequests), "Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests:     registry.Counter(string(observability.MHTTPRequests), "Total number of HTTP requests.", "method", "route", "status"),
		observability.MExternalRequests: registry.Counter(string(observability.MExternalRequests), "Total number of outbound calls.", "peer", "endpoint", "outcome"),
		observability.MDeadLetters:      registry.Counter(string(observability.MDeadLetters), "Count of dead-lettered messages.", "event"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration:         registry.Histogram(string(observability.MUsecaseDuration), "Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration:     registry.Histogram(string(observability.MHTTPRequestDuration), "Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
		observability.MExternalRequestDuration: registry.Histogram(string(observability.MExternalRequestDuration), "Duration of outbound calls in seconds.", nil, "peer", "endpoint"),
	}
	tel := infraobs.New(oteltrace.New(serviceName), logger, counters, histograms)

	ledgerRepo, catalogRepo := buildRepositories(logger)
	dedup := buildDeduplicator(logger)
	idGenerator := id.NewUUIDGenerator()

	bus := outbox.NewBus(logger, tel)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	// Grant and subtract share one key lock so concurrent deliveries for the
	// same (user, item) serialize across both paths.
	keys := appinventory.NewKeyLock()
	grantUC := appinventory.NewGrantItemsUseCase(ledgerRepo, catalogRepo, keys, bus, dedup, tel)
	subtractUC := appinventory.NewSubtractItemsUseCase(ledgerRepo, catalogRepo, keys, bus, dedup, tel)
	syncUC := appcatalog.NewSyncItemUseCase(catalogRepo, tel)
	inventoryService := appinventory.NewService(ledgerRepo, catalogRepo, grantUC, idGenerator)

	inventoryWorker := appinventory.NewWorker(bus, grantUC, subtractUC, tel)
	catalogWorker := appcatalog.NewWorker(bus, syncUC, tel)
	inventoryWorker.Start()
	catalogWorker.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startKafka(ctx, logger, tel, bus, grantUC, subtractUC, syncUC)

	handler := httppresentation.NewHandler(inventoryService, logger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("HTTP_ADDR", ":8080"),
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.F("error", err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.F("error", err),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}

// buildRepositories wires MySQL when MYSQL_DSN is set and falls back to the
// in-memory stores otherwise.
func buildRepositories(logger observability.Logger) (dominv.Repository, domcatalog.Repository) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		logger.Info("ledger_store_memory")
		return memory.NewInventoryRepository(), memory.NewCatalogRepository()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		logger.Error("mysql_open_failed", observability.F("error", err))
		os.Exit(1)
	}
	db.SetMaxOpenConns(32)
	db.SetConnMaxLifetime(5 * time.Minute)
	logger.Info("ledger_store_mysql")
	return mysqlstore.NewInventoryRepository(db), mysqlstore.NewCatalogRepository(db)
}

func buildDeduplicator(logger observability.Logger) appinventory.Deduplicator {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	logger.Info("command_dedup_redis", observability.F("addr", addr))
	return redisstore.NewDeduplicator(client)
}

// startKafka attaches the external transport when KAFKA_BROKERS is set: the
// ingress feeds commands straight into the use cases, the egress forwards
// facts from the bus to the outbound topic.
func startKafka(
	ctx context.Context,
	logger observability.Logger,
	tel observability.Observability,
	bus *outbox.Bus,
	grantUC *appinventory.GrantItemsUseCase,
	subtractUC *appinventory.SubtractItemsUseCase,
	syncUC *appcatalog.SyncItemUseCase,
) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: strings.Split(brokers, ","),
		GroupID: getenvDefault("KAFKA_GROUP_ID", "inventory-ledger"),
		Topic:   getenvDefault("KAFKA_COMMANDS_TOPIC", "inventory-commands"),
	})
	dlqWriter := &kafkago.Writer{
		Addr:  kafkago.TCP(strings.Split(brokers, ",")...),
		Topic: getenvDefault("KAFKA_DLQ_TOPIC", "inventory-commands-dlq"),
	}
	factsWriter := &kafkago.Writer{
		Addr:  kafkago.TCP(strings.Split(brokers, ",")...),
		Topic: getenvDefault("KAFKA_FACTS_TOPIC", "inventory-facts"),
	}

	ingress := kafkatransport.NewIngress(reader, dlqWriter, logger, tel)
	ingressWorker := appinventory.NewWorker(ingress, grantUC, subtractUC, tel)
	ingressCatalogWorker := appcatalog.NewWorker(ingress, syncUC, tel)
	ingressWorker.Start()
	ingressCatalogWorker.Start()

	egress := kafkatransport.NewEgress(factsWriter, logger)
	egress.Attach(bus)

	go func() {
		if err := ingress.Run(ctx); err != nil {
			logger.Error("kafka_ingress_error", observability.F("error", err))
		}
		_ = reader.Close()
		_ = dlqWriter.Close()
		_ = factsWriter.Close()
	}()

	logger.Info("kafka_transport_started", observability.F("brokers", brokers))
}

func syncLogger(logger observability.Logger) {
	if s, ok := logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
