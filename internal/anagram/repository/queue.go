package repository

import (
	"context"
	"fmt"
	"time"

	"anagrambot/internal/anagram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoQueueRepository is the MongoDB implementation of QueueRepository.
type MongoQueueRepository struct {
	queue *mongo.Collection
	db    *mongo.Database
}

// NewMongoQueueRepository creates a queue repository.
func NewMongoQueueRepository(db *mongo.Database) *MongoQueueRepository {
	return &MongoQueueRepository{
		queue: db.Collection("match_queue"),
		db:    db,
	}
}

// EnsureIndexes creates the partial unique index on pending entries. The
// application still pre-checks before enqueueing for a friendlier error, but
// this closes the check-then-insert race at the storage layer.
func (r *MongoQueueRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "match_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": models.QueueStatusPending}),
	}

	if _, err := r.queue.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create queue indexes: %w", err)
	}
	return nil
}

// Enqueue inserts a new pending entry for a match.
func (r *MongoQueueRepository) Enqueue(ctx context.Context, matchID int64, orderAsShown bool) (*models.QueueEntry, error) {
	id, err := nextSequence(ctx, r.db, "match_queue")
	if err != nil {
		return nil, err
	}

	entry := &models.QueueEntry{
		ID:           id,
		MatchID:      matchID,
		OrderAsShown: orderAsShown,
		Status:       models.QueueStatusPending,
		DateQueued:   time.Now(),
	}

	if _, err := r.queue.InsertOne(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue match %d: %w", matchID, err)
	}
	return entry, nil
}

// CountPendingForMatch counts pending entries for one match.
func (r *MongoQueueRepository) CountPendingForMatch(ctx context.Context, matchID int64) (int64, error) {
	count, err := r.queue.CountDocuments(ctx, bson.M{
		"status":   models.QueueStatusPending,
		"match_id": matchID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries for match %d: %w", matchID, err)
	}
	return count, nil
}

// DequeueNextEligible returns the oldest pending entry whose match has
// exactly one pending entry. Matches with duplicate pending entries are
// skipped until the duplicate is resolved by hand.
func (r *MongoQueueRepository) DequeueNextEligible(ctx context.Context) (*models.QueueEntry, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"status": models.QueueStatusPending}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "date_queued", Value: 1}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$match_id",
			"entry": bson.M{"$first": "$$ROOT"},
			"count": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$match", Value: bson.M{"count": 1}}},
		bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$entry"}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "date_queued", Value: 1}}}},
		bson.D{{Key: "$limit", Value: 1}},
	}

	cursor, err := r.queue.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue next eligible entry: %w", err)
	}

	var entries []models.QueueEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode dequeued entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// MarkPosted transitions an entry to posted.
func (r *MongoQueueRepository) MarkPosted(ctx context.Context, entryID int64) error {
	update := bson.M{
		"$set": bson.M{
			"status":      models.QueueStatusPosted,
			"date_posted": time.Now(),
		},
	}
	return r.updateEntry(ctx, entryID, update, "mark posted")
}

// MarkError transitions an entry to error with the failure message.
func (r *MongoQueueRepository) MarkError(ctx context.Context, entryID int64, message string) error {
	update := bson.M{
		"$set": bson.M{
			"status":     models.QueueStatusError,
			"message":    message,
			"date_error": time.Now(),
		},
	}
	return r.updateEntry(ctx, entryID, update, "mark error")
}

// MarkRemoved transitions an entry to removed.
func (r *MongoQueueRepository) MarkRemoved(ctx context.Context, entryID int64) error {
	update := bson.M{
		"$set": bson.M{"status": models.QueueStatusRemoved},
	}
	return r.updateEntry(ctx, entryID, update, "mark removed")
}

// MarkErrorObserved acknowledges an errored entry.
func (r *MongoQueueRepository) MarkErrorObserved(ctx context.Context, entryID int64) error {
	update := bson.M{
		"$set": bson.M{"status": models.QueueStatusErrorObserved},
	}
	return r.updateEntry(ctx, entryID, update, "mark error observed")
}

// CountByStatus counts entries with the given status.
func (r *MongoQueueRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	count, err := r.queue.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s queue entries: %w", status, err)
	}
	return count, nil
}

// EntriesByStatus lists entries with the given status, oldest first.
func (r *MongoQueueRepository) EntriesByStatus(ctx context.Context, status string) ([]models.QueueEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date_queued", Value: 1}})

	cursor, err := r.queue.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s queue entries: %w", status, err)
	}

	var entries []models.QueueEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s queue entries: %w", status, err)
	}
	return entries, nil
}

// updateEntry runs one conditional update expected to hit exactly one entry.
func (r *MongoQueueRepository) updateEntry(ctx context.Context, entryID int64, update bson.M, op string) error {
	result, err := r.queue.UpdateOne(ctx, bson.M{"_id": entryID}, update)
	if err != nil {
		return fmt.Errorf("failed to %s queue entry %d: %w", op, entryID, err)
	}
	if result.MatchedCount != 1 {
		return fmt.Errorf("%s queue entry %d matched %d documents: %w", op, entryID, result.MatchedCount, ErrUnexpectedRowCount)
	}
	return nil
}
