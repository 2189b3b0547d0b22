package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/shared"
)

const (
	// EntryCollectionName is the name of the entry collection in MongoDB
	EntryCollectionName = "bridge_entries"
)

// entryDocument is the stored shape of an entry. Opaque payloads are kept
// as JSON text so they decode back byte for byte.
type entryDocument struct {
	Side      string                    `bson:"side"`
	Handle    string                    `bson:"handle"`
	Hash      string                    `bson:"hash,omitempty"`
	Data      string                    `bson:"data,omitempty"`
	Meta      string                    `bson:"meta,omitempty"`
	State     string                    `bson:"state"`
	Actions   map[string]actionDocument `bson:"actions"`
	CreatedAt time.Time                 `bson:"created_at"`
	UpdatedAt time.Time                 `bson:"updated_at"`
}

type actionDocument struct {
	Action string             `bson:"action"`
	Hash   string             `bson:"hash,omitempty"`
	Data   string             `bson:"data,omitempty"`
	Meta   string             `bson:"meta,omitempty"`
	State  string             `bson:"state"`
	Error  *entry.ActionError `bson:"error,omitempty"`
	CoreID string             `bson:"core_id,omitempty"`
}

func toEntryDocument(side shared.Side, e *entry.Entry) entryDocument {
	doc := entryDocument{
		Side:      side.String(),
		Handle:    e.Handle,
		Hash:      e.Hash,
		Data:      string(e.Data),
		Meta:      string(e.Meta),
		State:     string(e.State),
		Actions:   make(map[string]actionDocument, len(e.Actions)),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	for name, r := range e.Actions {
		if r == nil {
			continue
		}
		doc.Actions[string(name)] = actionDocument{
			Action: string(r.Action),
			Hash:   r.Hash,
			Data:   string(r.Data),
			Meta:   string(r.Meta),
			State:  string(r.State),
			Error:  r.Error,
			CoreID: r.CoreID,
		}
	}
	return doc
}

func fromEntryDocument(doc entryDocument) *entry.Entry {
	e := &entry.Entry{
		Handle:    doc.Handle,
		Hash:      doc.Hash,
		Data:      rawOrNil(doc.Data),
		Meta:      rawOrNil(doc.Meta),
		State:     entry.State(doc.State),
		Actions:   make(map[entry.Action]*entry.ActionRecord, len(doc.Actions)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for name, a := range doc.Actions {
		e.Actions[entry.Action(name)] = &entry.ActionRecord{
			Action: entry.Action(a.Action),
			Hash:   a.Hash,
			Data:   rawOrNil(a.Data),
			Meta:   rawOrNil(a.Meta),
			State:  entry.State(a.State),
			Error:  a.Error,
			CoreID: a.CoreID,
		}
	}
	return e
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

// EntryRepository implements entry.Repository for MongoDB
type EntryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
	side   shared.Side
}

// NewEntryRepository creates a new MongoDB entry repository
func NewEntryRepository(logger *slog.Logger, db *mongo.Database, side shared.Side) *EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: logger,
		side:   side,
	}
}

// EnsureIndexes creates the unique (side, handle) index Create relies on
// for duplicate detection.
func (r *EntryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(EntryCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "side", Value: 1}, {Key: "handle", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("side_handle_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create entry indexes: %w", err)
	}
	return nil
}

func (r *EntryRepository) filter(handle string) bson.M {
	return bson.M{"side": r.side.String(), "handle": handle}
}

// Get retrieves an entry by handle.
// Returns ErrEntryNotFound if no entry exists for the given handle.
func (r *EntryRepository) Get(ctx context.Context, handle string) (*entry.Entry, error) {
	var doc entryDocument
	err := r.db.Collection(EntryCollectionName).FindOne(ctx, r.filter(handle)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entry.ErrEntryNotFound{Handle: handle}
		}
		r.logger.Error("Failed to get entry", "handle", handle, "error", err)
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return fromEntryDocument(doc), nil
}

// Create stores a new entry. The unique index turns a concurrent second
// create into ErrDuplicateHandle.
func (r *EntryRepository) Create(ctx context.Context, e *entry.Entry) error {
	_, err := r.db.Collection(EntryCollectionName).InsertOne(ctx, toEntryDocument(r.side, e))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entry.ErrDuplicateHandle{Handle: e.Handle}
		}
		r.logger.Error("Failed to create entry", "handle", e.Handle, "error", err)
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

// Update replaces a stored entry.
// Returns ErrEntryNotFound if the handle is unknown.
func (r *EntryRepository) Update(ctx context.Context, e *entry.Entry) error {
	result, err := r.db.Collection(EntryCollectionName).ReplaceOne(ctx, r.filter(e.Handle), toEntryDocument(r.side, e))
	if err != nil {
		r.logger.Error("Failed to update entry", "handle", e.Handle, "error", err)
		return fmt.Errorf("failed to update entry: %w", err)
	}

	if result.MatchedCount == 0 {
		return entry.ErrEntryNotFound{Handle: e.Handle}
	}

	return nil
}

var _ entry.Repository = (*EntryRepository)(nil)
