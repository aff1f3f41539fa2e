package inventory

// GrantItemsCommand asks the ledger to add quantity to a (user, item) key.
// CommandID identifies the physical delivery and deduplicates redelivery;
// CorrelationID threads the logical saga step across services.
type GrantItemsCommand struct {
	UserID        string
	CatalogItemID string
	Quantity      int64
	CorrelationID string
	CommandID     string
}

func (GrantItemsCommand) EventName() string { return "inventory.grant_items" }

// SubtractItemsCommand is the compensating counterpart of GrantItemsCommand.
type SubtractItemsCommand struct {
	UserID        string
	CatalogItemID string
	Quantity      int64
	CorrelationID string
	CommandID     string
}

func (SubtractItemsCommand) EventName() string { return "inventory.subtract_items" }
