package catalog

import "time"

// ItemChangedEvent mirrors a created or updated catalog entry into the local
// read replica. Consumed only; this service never publishes it.
type ItemChangedEvent struct {
	ItemID      string
	Name        string
	Description string
	OccurredAt  time.Time
}

func (ItemChangedEvent) EventName() string { return "catalog.item_changed" }

func NewItemChangedEvent(itemID, name, description string) ItemChangedEvent {
	return ItemChangedEvent{
		ItemID:      itemID,
		Name:        name,
		Description: description,
		OccurredAt:  time.Now().UTC(),
	}
}
