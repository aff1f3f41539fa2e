package kafka

import (
	"context"
	"fmt"

	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const componentEgress = "kafka_egress"

// Egress forwards the ledger's facts from the in-process bus to a Kafka
// topic so saga orchestrators outside this process observe them. Forwarding
// errors surface to the bus, whose redelivery gives the at-least-once
// guarantee downstream consumers expect.
type Egress struct {
	writer Writer
	log    observability.Logger
}

func NewEgress(writer Writer, logger observability.Logger) *Egress {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Egress{
		writer: writer,
		log:    logger.With(observability.F("component", componentEgress)),
	}
}

// Attach subscribes the egress to every fact the ledger publishes.
func (e *Egress) Attach(sub domoutbox.Subscriber) {
	sub.Subscribe(dominv.ItemsGrantedEvent{}.EventName(), e.forward)
	sub.Subscribe(dominv.ItemsSubtractedEvent{}.EventName(), e.forward)
	sub.Subscribe(dominv.InventoryUpdatedEvent{}.EventName(), e.forward)
}

func (e *Egress) forward(ctx context.Context, event domoutbox.Event) error {
	value, err := encodeFact(event)
	if err != nil {
		return domoutbox.Permanent(err)
	}
	msg := kafkago.Message{
		Key:   []byte(event.EventName()),
		Value: value,
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka egress %s: %w", event.EventName(), err)
	}
	e.log.Debug("fact_forwarded", observability.F("event", event.EventName()))
	return nil
}
