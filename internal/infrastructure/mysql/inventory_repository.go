package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
)

// ErrOptimisticLock signals that a concurrent writer updated the record
// between our read and write. Callers treat it as transient and retry.
var ErrOptimisticLock = errors.New("mysql: optimistic lock conflict")

// InventoryRepository persists ledger records in MySQL. The applied-command
// set lives in its own table; the record row carries a version column so
// Update can detect lost races across processes, where the in-process key
// lock cannot reach.
type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) FindByUserAndItem(ctx context.Context, userID, catalogItemID string) (*domain.Record, error) {
	var record domain.Record
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, catalog_item_id, quantity, acquired_at, version
		FROM inventory_records
		WHERE user_id = ? AND catalog_item_id = ?`,
		userID, catalogItemID,
	).Scan(&record.UserID, &record.CatalogItemID, &record.Quantity, &record.AcquiredAt, &record.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}

	record.AppliedCommands, err = r.appliedCommands(ctx, userID, catalogItemID)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *InventoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, catalog_item_id, quantity, acquired_at, version
		FROM inventory_records
		WHERE user_id = ?
		ORDER BY catalog_item_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		var record domain.Record
		if err := rows.Scan(&record.UserID, &record.CatalogItemID, &record.Quantity, &record.AcquiredAt, &record.Version); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	for _, record := range records {
		record.AppliedCommands, err = r.appliedCommands(ctx, record.UserID, record.CatalogItemID)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (r *InventoryRepository) Create(ctx context.Context, record *domain.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_records (user_id, catalog_item_id, quantity, acquired_at, version)
		VALUES (?, ?, ?, ?, 1)`,
		record.UserID, record.CatalogItemID, record.Quantity, record.AcquiredAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if err := insertCommands(ctx, tx, record); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *InventoryRepository) Update(ctx context.Context, record *domain.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory_records
		SET quantity = ?, version = version + 1
		WHERE user_id = ? AND catalog_item_id = ? AND version = ?`,
		record.Quantity, record.UserID, record.CatalogItemID, record.Version,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}

	if err := insertCommands(ctx, tx, record); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	record.Version++
	return nil
}

func (r *InventoryRepository) appliedCommands(ctx context.Context, userID, catalogItemID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT command_id
		FROM inventory_applied_commands
		WHERE user_id = ? AND catalog_item_id = ?`,
		userID, catalogItemID)
	if err != nil {
		return nil, fmt.Errorf("query applied commands: %w", err)
	}
	defer rows.Close()

	commands := make(map[string]struct{})
	for rows.Next() {
		var commandID string
		if err := rows.Scan(&commandID); err != nil {
			return nil, fmt.Errorf("scan command id: %w", err)
		}
		commands[commandID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate command ids: %w", err)
	}
	return commands, nil
}

func insertCommands(ctx context.Context, tx *sql.Tx, record *domain.Record) error {
	for commandID := range record.AppliedCommands {
		_, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO inventory_applied_commands (user_id, catalog_item_id, command_id)
			VALUES (?, ?, ?)`,
			record.UserID, record.CatalogItemID, commandID,
		)
		if err != nil {
			return fmt.Errorf("insert command id: %w", err)
		}
	}
	return nil
}
