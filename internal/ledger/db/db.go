package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/models"
)

// DB is the bun-backed ledger Store. Every Commit runs in one transaction.
type DB struct {
	Bun *bun.DB
}

var tables = []any{
	(*models.Event)(nil),
	(*models.Ticket)(nil),
	(*models.Organizer)(nil),
	(*models.Account)(nil),
	(*models.LedgerState)(nil),
	(*models.Entry)(nil),
}

// CreateSchema creates missing tables from the models. Postgres deployments
// use the migration runner instead.
func (d *DB) CreateSchema(ctx context.Context) error {
	for _, model := range tables {
		if _, err := d.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

func (d *DB) Commit(ctx context.Context, cs *ledger.Changeset) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(cs.Events) > 0 {
			if _, err := tx.NewInsert().Model(&cs.Events).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
				return fmt.Errorf("failed to upsert events: %w", err)
			}
		}
		if len(cs.Tickets) > 0 {
			if _, err := tx.NewInsert().Model(&cs.Tickets).On("CONFLICT (token_id) DO UPDATE").Exec(ctx); err != nil {
				return fmt.Errorf("failed to upsert tickets: %w", err)
			}
		}
		if len(cs.Organizers) > 0 {
			if _, err := tx.NewInsert().Model(&cs.Organizers).On("CONFLICT (address) DO UPDATE").Exec(ctx); err != nil {
				return fmt.Errorf("failed to upsert organizers: %w", err)
			}
		}
		if len(cs.Accounts) > 0 {
			if _, err := tx.NewInsert().Model(&cs.Accounts).On("CONFLICT (address) DO UPDATE").Exec(ctx); err != nil {
				return fmt.Errorf("failed to upsert accounts: %w", err)
			}
		}
		if cs.State != nil {
			if _, err := tx.NewInsert().Model(cs.State).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
				return fmt.Errorf("failed to upsert ledger state: %w", err)
			}
		}
		if len(cs.Entries) > 0 {
			// Entries are append-only; a seq conflict aborts the whole commit.
			if _, err := tx.NewInsert().Model(&cs.Entries).Exec(ctx); err != nil {
				return fmt.Errorf("failed to append journal entries: %w", err)
			}
		}
		return nil
	})
}

func (d *DB) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{}

	if err := d.Bun.NewSelect().Model(&snap.Events).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if err := d.Bun.NewSelect().Model(&snap.Tickets).Order("token_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	if err := d.Bun.NewSelect().Model(&snap.Organizers).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load organizers: %w", err)
	}
	if err := d.Bun.NewSelect().Model(&snap.Accounts).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	err := d.Bun.NewSelect().Model(&snap.State).Where("id = ?", 1).Limit(1).Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}

	entries, err := d.Entries(ctx, 1)
	if err != nil {
		return nil, err
	}
	snap.Entries = entries
	return snap, nil
}

// Entries reads the journal from seq onwards in order.
func (d *DB) Entries(ctx context.Context, from uint64) ([]models.Entry, error) {
	var entries []models.Entry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("seq >= ?", from).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entries: %w", err)
	}
	return entries, nil
}
