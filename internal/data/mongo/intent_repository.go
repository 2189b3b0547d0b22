package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ledger-rail-bridge/internal/domain/intent"
)

const (
	// IntentCollectionName is the name of the intent collection in MongoDB
	IntentCollectionName = "bridge_intents"
)

type intentDocument struct {
	Handle     string    `bson:"handle"`
	Hash       string    `bson:"hash,omitempty"`
	Data       string    `bson:"data,omitempty"`
	Meta       string    `bson:"meta,omitempty"`
	Status     string    `bson:"status,omitempty"`
	Record     string    `bson:"record,omitempty"`
	ReceivedAt time.Time `bson:"received_at"`
}

// IntentRepository implements intent.Repository for MongoDB
type IntentRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewIntentRepository creates a new MongoDB intent repository
func NewIntentRepository(logger *slog.Logger, db *mongo.Database) intent.Repository {
	return &IntentRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces the stored intent for the handle, inserting it if absent
func (r *IntentRepository) Upsert(ctx context.Context, in *intent.Intent) error {
	doc := intentDocument{
		Handle:     in.Handle,
		Hash:       in.Hash,
		Data:       string(in.Data),
		Meta:       string(in.Meta),
		Status:     in.Status,
		Record:     string(in.Record),
		ReceivedAt: in.ReceivedAt,
	}
	_, err := r.db.Collection(IntentCollectionName).ReplaceOne(ctx,
		bson.M{"handle": in.Handle},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error("Failed to upsert intent", "handle", in.Handle, "error", err)
		return fmt.Errorf("failed to upsert intent: %w", err)
	}
	return nil
}

// Get retrieves the latest intent received for handle
func (r *IntentRepository) Get(ctx context.Context, handle string) (*intent.Intent, error) {
	var doc intentDocument
	err := r.db.Collection(IntentCollectionName).FindOne(ctx, bson.M{"handle": handle}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, intent.ErrIntentNotFound{Handle: handle}
		}
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}

	return &intent.Intent{
		Handle:     doc.Handle,
		Hash:       doc.Hash,
		Data:       rawOrNil(doc.Data),
		Meta:       rawOrNil(doc.Meta),
		Status:     doc.Status,
		Record:     rawOrNil(doc.Record),
		ReceivedAt: doc.ReceivedAt,
	}, nil
}
