package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/platform/persistence"
)

const (
	selectEntryQuery = `SELECT handle, hash, data, meta, state, actions, created_at, updated_at
		FROM bridge_entries
		WHERE side = $1 AND handle = $2`

	insertEntryQuery = `INSERT INTO bridge_entries (side, handle, hash, data, meta, state, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (side, handle) DO NOTHING`

	updateEntryQuery = `UPDATE bridge_entries
		SET hash = $3, data = $4, meta = $5, state = $6, actions = $7, updated_at = $8
		WHERE side = $1 AND handle = $2`
)

// EntryRepository implements entry.Repository for PostgreSQL. Rows are
// scoped by side so both bridge instances can share one database.
type EntryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	side    shared.Side
}

// NewEntryRepository creates a new PostgreSQL entry repository
func NewEntryRepository(logger *slog.Logger, db *persistence.PostgresDB, side shared.Side) entry.Repository {
	return &EntryRepository{
		querier: db.Querier(),
		logger:  logger,
		side:    side,
	}
}

// Get loads an entry by handle
func (r *EntryRepository) Get(ctx context.Context, handle string) (*entry.Entry, error) {
	var (
		e                   entry.Entry
		state               string
		data, meta, actions []byte
	)
	err := r.querier.QueryRow(ctx, selectEntryQuery, r.side.String(), handle).Scan(
		&e.Handle,
		&e.Hash,
		&data,
		&meta,
		&state,
		&actions,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entry.ErrEntryNotFound{Handle: handle}
		}
		r.logger.Error("Failed to get entry", "handle", handle, "error", err)
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	e.State = entry.State(state)
	e.Data = json.RawMessage(data)
	e.Meta = json.RawMessage(meta)
	e.Actions = make(map[entry.Action]*entry.ActionRecord)
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &e.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode entry actions: %w", err)
		}
	}

	return &e, nil
}

// Create inserts a new entry, failing with ErrDuplicateHandle when the handle exists
func (r *EntryRepository) Create(ctx context.Context, e *entry.Entry) error {
	actions, err := encodeActions(e)
	if err != nil {
		return err
	}

	tag, err := r.querier.Exec(ctx, insertEntryQuery,
		r.side.String(),
		e.Handle,
		e.Hash,
		nullableJSON(e.Data),
		nullableJSON(e.Meta),
		string(e.State),
		actions,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create entry", "handle", e.Handle, "error", err)
		return fmt.Errorf("failed to create entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entry.ErrDuplicateHandle{Handle: e.Handle}
	}

	return nil
}

// Update replaces the mutable fields of an existing entry
func (r *EntryRepository) Update(ctx context.Context, e *entry.Entry) error {
	actions, err := encodeActions(e)
	if err != nil {
		return err
	}

	tag, err := r.querier.Exec(ctx, updateEntryQuery,
		r.side.String(),
		e.Handle,
		e.Hash,
		nullableJSON(e.Data),
		nullableJSON(e.Meta),
		string(e.State),
		actions,
		e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update entry", "handle", e.Handle, "error", err)
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entry.ErrEntryNotFound{Handle: e.Handle}
	}

	return nil
}

func encodeActions(e *entry.Entry) ([]byte, error) {
	if e.Actions == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(e.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry actions: %w", err)
	}
	return b, nil
}

// nullableJSON maps an empty payload to SQL NULL
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
