package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/inventory-ledger/internal/presentation/worker"
	"github.com/jpillora/backoff"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

const componentIngress = "kafka_ingress"

// Reader is the subset of kafka-go's Reader used by the ingress.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer is the subset of kafka-go's Writer used for dead-lettering and fact
// egress.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Ingress consumes command messages from Kafka and delivers them to the
// subscribed handlers. It implements the same Subscriber port as the
// in-memory bus, so workers bind to it unchanged. A message is committed only
// after its handlers finished or it was dead-lettered; transient handler
// failures are retried in place with backoff, permanent ones go to the
// dead-letter topic.
type Ingress struct {
	reader Reader
	dlq    Writer

	mu   sync.RWMutex
	subs map[string][]domoutbox.Handler

	maxAttempts int
	log         observability.Logger
	deadCounter observability.Counter
}

func NewIngress(reader Reader, dlq Writer, logger observability.Logger, tel observability.Observability) *Ingress {
	if logger == nil {
		logger = observability.NopLogger()
	}
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		metricsProvider = tel.Metrics()
	}
	return &Ingress{
		reader:      reader,
		dlq:         dlq,
		subs:        make(map[string][]domoutbox.Handler),
		maxAttempts: 5,
		log:         logger.With(observability.F("component", componentIngress)),
		deadCounter: metricsProvider.Counter(observability.MDeadLetters),
	}
}

func (i *Ingress) Subscribe(eventName string, h domoutbox.Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.subs[eventName] = append(i.subs[eventName], h)
}

// Run blocks until ctx is canceled.
func (i *Ingress) Run(ctx context.Context) error {
	i.log.Info("kafka_ingress_started")

	for {
		msg, err := i.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				i.log.Info("kafka_ingress_stopped")
				return nil
			}
			i.log.Error("kafka_fetch_failed", observability.F("error", err))
			continue
		}

		i.handle(ctx, msg)

		if err := i.reader.CommitMessages(ctx, msg); err != nil {
			// The message will be redelivered; the idempotency guard makes
			// that safe.
			i.log.Warn("kafka_commit_failed",
				observability.F("error", err),
				observability.F("offset", msg.Offset),
			)
		}
	}
}

func (i *Ingress) handle(ctx context.Context, msg kafkago.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		i.deadLetter(ctx, msg, fmt.Errorf("malformed envelope: %w", err))
		return
	}
	if env.MessageID == "" {
		env.MessageID = deliveryID(msg)
	}

	event, err := decodeCommand(env)
	if err != nil {
		i.deadLetter(ctx, msg, err)
		return
	}

	i.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), i.subs[event.EventName()]...)
	i.mu.RUnlock()

	if len(handlers) == 0 {
		i.log.Debug("message_dropped_no_subscriber",
			observability.F("event", event.EventName()),
		)
		return
	}

	sc := trace.SpanContextFromContext(ctx)
	ctx = workerpresentation.WithEventContext(ctx, i.log, nil, sc.TraceID(), sc.SpanID(), map[string]string{
		"event":    event.EventName(),
		"event_id": env.MessageID,
		"topic":    msg.Topic,
	})

	for _, h := range handlers {
		if err := i.deliver(ctx, event, h); err != nil {
			i.deadLetter(ctx, msg, err)
			return
		}
	}
}

func (i *Ingress) deliver(ctx context.Context, e domoutbox.Event, h domoutbox.Handler) error {
	boff := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; ; attempt++ {
		err := h(ctx, e)
		if err == nil {
			return nil
		}
		if domoutbox.IsPermanent(err) {
			return err
		}
		if attempt >= i.maxAttempts {
			return fmt.Errorf("retry budget exhausted: %w", err)
		}

		delay := boff.Duration()
		i.log.Warn("message_handler_retry",
			observability.F("event", e.EventName()),
			observability.F("attempt", attempt),
			observability.F("backoff", delay.String()),
			observability.F("error", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (i *Ingress) deadLetter(ctx context.Context, msg kafkago.Message, cause error) {
	i.log.Error("message_dead_lettered",
		observability.F("topic", msg.Topic),
		observability.F("offset", msg.Offset),
		observability.F("error", cause),
	)
	i.deadCounter.Add(1, observability.L("event", "kafka"))

	if i.dlq == nil {
		return
	}
	dead := kafkago.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafkago.Header{
			Key:   "x-dead-letter-reason",
			Value: []byte(cause.Error()),
		}),
	}
	if err := i.dlq.WriteMessages(ctx, dead); err != nil {
		i.log.Error("dead_letter_write_failed", observability.F("error", err))
	}
}

// deliveryID derives a stable physical delivery identifier when the producer
// did not stamp one: redeliveries of the same committed message share
// topic/partition/offset.
func deliveryID(msg kafkago.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "message-id" {
			return string(h.Value)
		}
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}
