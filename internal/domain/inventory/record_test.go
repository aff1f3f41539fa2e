package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	record, err := NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), record.Quantity)
	assert.False(t, record.AcquiredAt.IsZero())
	assert.True(t, record.Applied("cmd-1"))
	assert.False(t, record.Applied("cmd-2"))
}

func TestNewRecord_InvalidQuantity(t *testing.T) {
	_, err := NewRecord("user-1", "item-1", 0, "cmd-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewRecord("user-1", "item-1", -3, "cmd-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNewRecord_MissingCommandID(t *testing.T) {
	_, err := NewRecord("user-1", "item-1", 5, "")
	assert.ErrorIs(t, err, ErrCommandID)
}

func TestApply_FoldsDeltas(t *testing.T) {
	record, err := NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)

	require.NoError(t, record.Apply("cmd-2", 3))
	require.NoError(t, record.Apply("cmd-3", -6))

	assert.Equal(t, int64(2), record.Quantity)
	assert.Len(t, record.AppliedCommands, 3)
}

func TestApply_RejectsDuplicateCommand(t *testing.T) {
	record, err := NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)

	err = record.Apply("cmd-1", 5)
	assert.ErrorIs(t, err, ErrCommandReapplied)
	assert.Equal(t, int64(5), record.Quantity)
}

func TestApply_AllowsNegativeQuantity(t *testing.T) {
	record, err := NewRecord("user-1", "item-1", 2, "cmd-1")
	require.NoError(t, err)

	require.NoError(t, record.Apply("cmd-2", -5))
	assert.Equal(t, int64(-3), record.Quantity)
}

func TestClone_Isolates(t *testing.T) {
	record, err := NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)

	clone := record.Clone()
	require.NoError(t, clone.Apply("cmd-2", 1))

	assert.Equal(t, int64(5), record.Quantity)
	assert.False(t, record.Applied("cmd-2"))
	assert.Equal(t, int64(6), clone.Quantity)
}
