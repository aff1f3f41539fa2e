package kafka

import (
	"encoding/json"
	"fmt"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
)

// envelope is the wire shape for commands and facts. Type selects the decoder
// and MessageID is the transport-assigned delivery identifier used for
// deduplication; the saga correlation id travels inside Data.
type envelope struct {
	Type      string          `json:"type"`
	MessageID string          `json:"messageId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

type grantItemsPayload struct {
	UserID        string `json:"userId"`
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int64  `json:"quantity"`
	CorrelationID string `json:"correlationId"`
}

type subtractItemsPayload struct {
	UserID        string `json:"userId"`
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int64  `json:"quantity"`
	CorrelationID string `json:"correlationId"`
}

type catalogItemChangedPayload struct {
	ItemID      string `json:"itemId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// decodeCommand turns a wire envelope into a domain event. The messageID
// becomes the command id so redeliveries of the same physical message carry
// the same identifier.
func decodeCommand(env envelope) (domoutbox.Event, error) {
	switch env.Type {
	case dominv.GrantItemsCommand{}.EventName():
		var p grantItemsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return dominv.GrantItemsCommand{
			UserID:        p.UserID,
			CatalogItemID: p.CatalogItemID,
			Quantity:      p.Quantity,
			CorrelationID: p.CorrelationID,
			CommandID:     env.MessageID,
		}, nil

	case dominv.SubtractItemsCommand{}.EventName():
		var p subtractItemsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return dominv.SubtractItemsCommand{
			UserID:        p.UserID,
			CatalogItemID: p.CatalogItemID,
			Quantity:      p.Quantity,
			CorrelationID: p.CorrelationID,
			CommandID:     env.MessageID,
		}, nil

	case domcatalog.ItemChangedEvent{}.EventName():
		var p catalogItemChangedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return domcatalog.NewItemChangedEvent(p.ItemID, p.Name, p.Description), nil

	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// encodeFact serializes an outbound fact into the wire envelope.
func encodeFact(e domoutbox.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventName(), err)
	}
	return json.Marshal(envelope{
		Type: e.EventName(),
		Data: data,
	})
}
