package catalog

import "errors"

// ErrUnknownItem marks a reference to a catalog item that has never been
// mirrored. Retrying cannot resolve it until the catalog publishes the item.
var ErrUnknownItem = errors.New("catalog: unknown item")

// Item is the local read-only mirror of a catalog entry. It is created and
// overwritten by catalog-change events and never deleted here.
type Item struct {
	ID          string
	Name        string
	Description string
}
