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

// MongoTweetRepository is the MongoDB implementation of TweetRepository.
type MongoTweetRepository struct {
	tweets  *mongo.Collection
	matches *mongo.Collection
}

// NewMongoTweetRepository creates a tweet repository.
func NewMongoTweetRepository(db *mongo.Database) *MongoTweetRepository {
	return &MongoTweetRepository{
		tweets:  db.Collection("tweets"),
		matches: db.Collection("anagram_matches"),
	}
}

// OldestCheckableTweets returns up to limit tweets not referenced by any
// unreviewed match, least recently existence-checked first. Tweets in a
// still-reviewable match are exempt from pruning: deleting one would take
// the match off the review list before a human ever saw it.
func (r *MongoTweetRepository) OldestCheckableTweets(ctx context.Context, limit int) ([]models.Tweet, error) {
	unreviewedFilter := bson.M{
		"attempted_approval": false,
		"date_retweeted":     bson.M{"$exists": false},
		"date_posted_tumblr": bson.M{"$exists": false},
	}

	cursor, err := r.matches.Find(ctx, unreviewedFilter,
		options.Find().SetProjection(bson.M{"tweet1_id": 1, "tweet2_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find unreviewed matches: %w", err)
	}

	var refs []struct {
		Tweet1ID string `bson:"tweet1_id"`
		Tweet2ID string `bson:"tweet2_id"`
	}
	if err := cursor.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("failed to decode unreviewed match tweet ids: %w", err)
	}

	protected := make([]string, 0, len(refs)*2)
	for _, ref := range refs {
		protected = append(protected, ref.Tweet1ID, ref.Tweet2ID)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date_existence_last_checked", Value: 1}}).
		SetLimit(int64(limit))

	tweetCursor, err := r.tweets.Find(ctx, bson.M{"_id": bson.M{"$nin": protected}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkable tweets: %w", err)
	}

	var tweets []models.Tweet
	if err := tweetCursor.All(ctx, &tweets); err != nil {
		return nil, fmt.Errorf("failed to decode checkable tweets: %w", err)
	}
	return tweets, nil
}

// TouchExistenceChecked stamps the existence check time on all given tweets.
// Matching fewer documents than ids is an integrity error.
func (r *MongoTweetRepository) TouchExistenceChecked(ctx context.Context, tweetIDs []string) error {
	if len(tweetIDs) == 0 {
		return nil
	}

	update := bson.M{
		"$set": bson.M{"date_existence_last_checked": time.Now()},
	}

	result, err := r.tweets.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": tweetIDs}}, update)
	if err != nil {
		return fmt.Errorf("failed to touch existence check on tweets: %w", err)
	}
	if result.MatchedCount != int64(len(tweetIDs)) {
		return fmt.Errorf("touch existence check matched %d of %d tweets: %w",
			result.MatchedCount, len(tweetIDs), ErrUnexpectedRowCount)
	}
	return nil
}

// DeleteTweets removes tweets confirmed gone upstream. Deleting fewer
// documents than ids is an integrity error.
func (r *MongoTweetRepository) DeleteTweets(ctx context.Context, tweetIDs []string) error {
	if len(tweetIDs) == 0 {
		return nil
	}

	result, err := r.tweets.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": tweetIDs}})
	if err != nil {
		return fmt.Errorf("failed to delete tweets: %w", err)
	}
	if result.DeletedCount != int64(len(tweetIDs)) {
		return fmt.Errorf("deleted %d of %d tweets: %w", result.DeletedCount, len(tweetIDs), ErrUnexpectedRowCount)
	}
	return nil
}
