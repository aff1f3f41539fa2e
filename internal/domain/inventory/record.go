package inventory

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity  = errors.New("inventory: quantity must be greater than zero")
	ErrCommandID        = errors.New("inventory: command id must not be empty")
	ErrCommandReapplied = errors.New("inventory: command already applied")
)

// Record is the per-(user, catalog item) ledger entry. Quantity is a pure fold
// of the deltas of the commands in AppliedCommands, each applied at most once.
// It may go negative under Subtract; callers treat that as a debt state rather
// than clamping.
type Record struct {
	UserID          string
	CatalogItemID   string
	Quantity        int64
	AcquiredAt      time.Time
	AppliedCommands map[string]struct{}
	Version         int64
}

// NewRecord creates the first ledger entry for a key, seeded by the grant that
// brought it into existence.
func NewRecord(userID, catalogItemID string, quantity int64, commandID string) (*Record, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if commandID == "" {
		return nil, ErrCommandID
	}
	return &Record{
		UserID:          userID,
		CatalogItemID:   catalogItemID,
		Quantity:        quantity,
		AcquiredAt:      time.Now().UTC(),
		AppliedCommands: map[string]struct{}{commandID: {}},
	}, nil
}

// Applied reports whether the command has already contributed its delta.
func (r *Record) Applied(commandID string) bool {
	_, ok := r.AppliedCommands[commandID]
	return ok
}

// Apply folds a delta into the quantity and remembers the command id.
// A command id is accepted at most once for the lifetime of the record.
func (r *Record) Apply(commandID string, delta int64) error {
	if commandID == "" {
		return ErrCommandID
	}
	if r.Applied(commandID) {
		return ErrCommandReapplied
	}
	if r.AppliedCommands == nil {
		r.AppliedCommands = make(map[string]struct{})
	}
	r.Quantity += delta
	r.AppliedCommands[commandID] = struct{}{}
	return nil
}

// Clone returns a deep copy so repository callers cannot alias stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.AppliedCommands = make(map[string]struct{}, len(r.AppliedCommands))
	for id := range r.AppliedCommands {
		clone.AppliedCommands[id] = struct{}{}
	}
	return &clone
}
