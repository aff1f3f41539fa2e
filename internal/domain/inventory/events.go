package inventory

import "time"

// ItemsGrantedEvent tells the saga orchestrator that a grant step completed.
// It is re-published on duplicate deliveries so a lost ack never stalls the saga.
type ItemsGrantedEvent struct {
	CorrelationID string    `json:"correlationId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (ItemsGrantedEvent) EventName() string { return "inventory.items_granted" }

func NewItemsGrantedEvent(correlationID string) ItemsGrantedEvent {
	return ItemsGrantedEvent{CorrelationID: correlationID, OccurredAt: time.Now().UTC()}
}

// ItemsSubtractedEvent tells the orchestrator that a compensation completed,
// including the no-op case where there was nothing to subtract from.
type ItemsSubtractedEvent struct {
	CorrelationID string    `json:"correlationId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (ItemsSubtractedEvent) EventName() string { return "inventory.items_subtracted" }

func NewItemsSubtractedEvent(correlationID string) ItemsSubtractedEvent {
	return ItemsSubtractedEvent{CorrelationID: correlationID, OccurredAt: time.Now().UTC()}
}

// InventoryUpdatedEvent reports the ledger quantity after a mutation.
// Published only when a mutation actually occurred.
type InventoryUpdatedEvent struct {
	UserID        string    `json:"userId"`
	CatalogItemID string    `json:"catalogItemId"`
	Quantity      int64     `json:"quantity"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (InventoryUpdatedEvent) EventName() string { return "inventory.updated" }

func NewInventoryUpdatedEvent(userID, catalogItemID string, quantity int64) InventoryUpdatedEvent {
	return InventoryUpdatedEvent{
		UserID:        userID,
		CatalogItemID: catalogItemID,
		Quantity:      quantity,
		OccurredAt:    time.Now().UTC(),
	}
}
