package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/ledger-rail-bridge/internal/domain/intent"
	"github.com/ledger-rail-bridge/internal/platform/persistence"
)

const (
	upsertIntentQuery = `INSERT INTO bridge_intents (handle, hash, data, meta, status, record, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (handle) DO UPDATE
		SET hash = EXCLUDED.hash, data = EXCLUDED.data, meta = EXCLUDED.meta,
			status = EXCLUDED.status, record = EXCLUDED.record, received_at = EXCLUDED.received_at`

	selectIntentQuery = `SELECT handle, hash, data, meta, status, record, received_at
		FROM bridge_intents
		WHERE handle = $1`
)

// IntentRepository implements intent.Repository for PostgreSQL
type IntentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIntentRepository creates a new PostgreSQL intent repository
func NewIntentRepository(logger *slog.Logger, db *persistence.PostgresDB) intent.Repository {
	return &IntentRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

func (r *IntentRepository) Upsert(ctx context.Context, in *intent.Intent) error {
	_, err := r.querier.Exec(ctx, upsertIntentQuery,
		in.Handle,
		in.Hash,
		nullableJSON(in.Data),
		nullableJSON(in.Meta),
		in.Status,
		nullableJSON(in.Record),
		in.ReceivedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert intent", "handle", in.Handle, "error", err)
		return fmt.Errorf("failed to upsert intent: %w", err)
	}
	return nil
}

func (r *IntentRepository) Get(ctx context.Context, handle string) (*intent.Intent, error) {
	var (
		in                 intent.Intent
		data, meta, record []byte
	)
	err := r.querier.QueryRow(ctx, selectIntentQuery, handle).Scan(
		&in.Handle,
		&in.Hash,
		&data,
		&meta,
		&in.Status,
		&record,
		&in.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, intent.ErrIntentNotFound{Handle: handle}
		}
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	in.Data = data
	in.Meta = meta
	in.Record = record
	return &in, nil
}
