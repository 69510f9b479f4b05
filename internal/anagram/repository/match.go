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

const maxMatchLimit = 50

// MongoMatchRepository is the MongoDB implementation of MatchRepository.
// Joins against tweets and the queue are done application-side.
type MongoMatchRepository struct {
	matches *mongo.Collection
	tweets  *mongo.Collection
	queue   *mongo.Collection
}

// NewMongoMatchRepository creates a match repository.
func NewMongoMatchRepository(db *mongo.Database) *MongoMatchRepository {
	return &MongoMatchRepository{
		matches: db.Collection("anagram_matches"),
		tweets:  db.Collection("tweets"),
		queue:   db.Collection("match_queue"),
	}
}

// GetMatch returns one match by id.
func (r *MongoMatchRepository) GetMatch(ctx context.Context, matchID int64) (*models.Match, error) {
	var match models.Match
	err := r.matches.FindOne(ctx, bson.M{"_id": matchID}).Decode(&match)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("match %d: %w", matchID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return &match, nil
}

// GetTweetsForMatch returns both source tweets of a match.
func (r *MongoMatchRepository) GetTweetsForMatch(ctx context.Context, matchID int64) (*models.Tweet, *models.Tweet, error) {
	match, err := r.GetMatch(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}

	tweet1, err := r.getTweet(ctx, match.Tweet1ID)
	if err != nil {
		return nil, nil, err
	}
	tweet2, err := r.getTweet(ctx, match.Tweet2ID)
	if err != nil {
		return nil, nil, err
	}
	return tweet1, tweet2, nil
}

func (r *MongoMatchRepository) getTweet(ctx context.Context, tweetID string) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.tweets.FindOne(ctx, bson.M{"_id": tweetID}).Decode(&tweet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("tweet %s: %w", tweetID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tweet %s: %w", tweetID, err)
	}
	return &tweet, nil
}

// RejectMatch marks a match rejected.
func (r *MongoMatchRepository) RejectMatch(ctx context.Context, matchID int64, autoRejected bool) error {
	update := bson.M{
		"$set": bson.M{
			"rejected":      true,
			"auto_rejected": autoRejected,
			"date_rejected": time.Now(),
		},
	}
	return r.updateMatch(ctx, matchID, update, "reject")
}

// UnrejectMatch clears all rejection fields.
func (r *MongoMatchRepository) UnrejectMatch(ctx context.Context, matchID int64) error {
	update := bson.M{
		"$set":   bson.M{"rejected": false, "auto_rejected": false},
		"$unset": bson.M{"date_rejected": ""},
	}
	return r.updateMatch(ctx, matchID, update, "unreject")
}

// MarkAttemptedApproval flags that a human asked to approve or enqueue.
func (r *MongoMatchRepository) MarkAttemptedApproval(ctx context.Context, matchID int64) error {
	update := bson.M{
		"$set": bson.M{"attempted_approval": true},
	}
	return r.updateMatch(ctx, matchID, update, "mark attempted approval on")
}

// RecordRetweets stores both retweet ids together with the amplification
// time. A previous unretweet marker is cleared so re-amplification is a
// clean state.
func (r *MongoMatchRepository) RecordRetweets(ctx context.Context, matchID int64, tweet1RetweetID, tweet2RetweetID string, orderAsShown bool) error {
	update := bson.M{
		"$set": bson.M{
			"tweet1_retweet_id":      tweet1RetweetID,
			"tweet2_retweet_id":      tweet2RetweetID,
			"date_retweeted":         time.Now(),
			"posted_in_order":        orderAsShown,
			"unretweeted_by_cleanup": false,
		},
		"$unset": bson.M{"date_unretweeted": ""},
	}
	return r.updateMatch(ctx, matchID, update, "record retweets on")
}

// RecordTumblrPost stores the mirror post id and time.
func (r *MongoMatchRepository) RecordTumblrPost(ctx context.Context, matchID int64, tumblrPostID int64, orderAsShown bool) error {
	update := bson.M{
		"$set": bson.M{
			"tumblr_post_id":     tumblrPostID,
			"date_posted_tumblr": time.Now(),
			"posted_in_order":    orderAsShown,
		},
		"$unset": bson.M{"date_unposted_tumblr": ""},
	}
	return r.updateMatch(ctx, matchID, update, "record tumblr post on")
}

// ClearRetweets nulls both retweet ids and the amplification date together.
func (r *MongoMatchRepository) ClearRetweets(ctx context.Context, matchID int64, alsoClearTumblr bool) error {
	return r.clearRetweets(ctx, matchID, alsoClearTumblr, false)
}

// MarkUnretweetedFromCleanup is the reconciliation sweep's unwind: same as
// ClearRetweets but flagged so it is distinguishable from a manual one.
func (r *MongoMatchRepository) MarkUnretweetedFromCleanup(ctx context.Context, matchID int64) error {
	return r.clearRetweets(ctx, matchID, false, true)
}

func (r *MongoMatchRepository) clearRetweets(ctx context.Context, matchID int64, alsoClearTumblr, byCleanup bool) error {
	unset := bson.M{
		"date_retweeted":    "",
		"tweet1_retweet_id": "",
		"tweet2_retweet_id": "",
	}
	set := bson.M{
		"date_unretweeted":       time.Now(),
		"unretweeted_by_cleanup": byCleanup,
	}
	if alsoClearTumblr {
		unset["tumblr_post_id"] = ""
		unset["date_posted_tumblr"] = ""
		set["date_unposted_tumblr"] = set["date_unretweeted"]
	}

	update := bson.M{"$set": set, "$unset": unset}
	return r.updateMatch(ctx, matchID, update, "clear retweets on")
}

// ClearTumblrOnly clears the mirror fields and leaves amplification alone.
func (r *MongoMatchRepository) ClearTumblrOnly(ctx context.Context, matchID int64) error {
	update := bson.M{
		"$set":   bson.M{"date_unposted_tumblr": time.Now()},
		"$unset": bson.M{"tumblr_post_id": "", "date_posted_tumblr": ""},
	}
	return r.updateMatch(ctx, matchID, update, "clear tumblr post on")
}

// CountOtherRetweetedMatchesSharingTweets counts currently amplified matches,
// other than matchID, that contain either of matchID's tweets.
//
// This is a point-in-time count with no locking; two near-simultaneous
// approvals of overlapping matches can both read zero. See DESIGN.md.
func (r *MongoMatchRepository) CountOtherRetweetedMatchesSharingTweets(ctx context.Context, matchID int64) (int64, error) {
	match, err := r.GetMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}

	tweetIDs := []string{match.Tweet1ID, match.Tweet2ID}
	filter := bson.M{
		"_id":            bson.M{"$ne": matchID},
		"date_retweeted": bson.M{"$exists": true},
		"$or": []bson.M{
			{"tweet1_id": bson.M{"$in": tweetIDs}},
			{"tweet2_id": bson.M{"$in": tweetIDs}},
		},
	}

	count, err := r.matches.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count retweeted matches sharing tweets with %d: %w", matchID, err)
	}
	return count, nil
}

// FindMatches returns reviewable matches for the given query type: not
// rejected, not amplified, not mirrored and not pending in the queue.
func (r *MongoMatchRepository) FindMatches(ctx context.Context, queryType string, limit int, interestingFactorCutoff float64) ([]MatchSummary, error) {
	if limit <= 0 || limit > maxMatchLimit {
		limit = maxMatchLimit
	}
	interestingFactorCutoff = clamp(interestingFactorCutoff, 0.0, 1.0)

	var sort bson.D
	switch queryType {
	case QueryTopMatches:
		sort = bson.D{{Key: "interesting_factor", Value: -1}}
	case QueryOldestTopMatches:
		sort = bson.D{{Key: "date_created", Value: 1}}
	case QueryMostRecent:
		sort = bson.D{{Key: "date_created", Value: -1}}
	default:
		return nil, fmt.Errorf("query type %q is invalid", queryType)
	}

	pendingMatchIDs, err := r.queue.Distinct(ctx, "match_id", bson.M{"status": models.QueueStatusPending})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue match ids: %w", err)
	}

	filter := bson.M{
		"rejected":       false,
		"date_retweeted": bson.M{"$exists": false},
		"tumblr_post_id": bson.M{"$exists": false},
		"_id":            bson.M{"$nin": pendingMatchIDs},
	}
	if queryType == QueryOldestTopMatches {
		filter["interesting_factor"] = bson.M{"$gt": interestingFactorCutoff}
	}

	opts := options.Find().SetSort(sort).SetLimit(int64(limit))
	cursor, err := r.matches.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find matches: %w", err)
	}

	var matches []models.Match
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}

	return r.summarize(ctx, matches)
}

// summarize joins matches with their tweets.
func (r *MongoMatchRepository) summarize(ctx context.Context, matches []models.Match) ([]MatchSummary, error) {
	if len(matches) == 0 {
		return []MatchSummary{}, nil
	}

	tweetByID, err := r.tweetsByID(ctx, matches)
	if err != nil {
		return nil, err
	}

	summaries := make([]MatchSummary, 0, len(matches))
	for _, match := range matches {
		tweet1, ok1 := tweetByID[match.Tweet1ID]
		tweet2, ok2 := tweetByID[match.Tweet2ID]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("match %d references missing tweets: %w", match.ID, ErrNotFound)
		}
		summaries = append(summaries, MatchSummary{
			ID:             match.ID,
			Interesting:    match.InterestingFactor,
			Tweet1Text:     tweet1.OriginalText,
			Tweet2Text:     tweet2.OriginalText,
			Tweet1UserName: tweet1.UserName,
			Tweet2UserName: tweet2.UserName,
			Tweet1StatusID: tweet1.StatusID,
			Tweet2StatusID: tweet2.StatusID,
		})
	}
	return summaries, nil
}

func (r *MongoMatchRepository) tweetsByID(ctx context.Context, matches []models.Match) (map[string]models.Tweet, error) {
	ids := make([]string, 0, len(matches)*2)
	for _, match := range matches {
		ids = append(ids, match.Tweet1ID, match.Tweet2ID)
	}

	cursor, err := r.tweets.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find tweets for matches: %w", err)
	}

	var tweets []models.Tweet
	if err := cursor.All(ctx, &tweets); err != nil {
		return nil, fmt.Errorf("failed to decode tweets for matches: %w", err)
	}

	byID := make(map[string]models.Tweet, len(tweets))
	for _, tweet := range tweets {
		byID[tweet.ID] = tweet
	}
	return byID, nil
}

// RetweetedStatusIDs returns the most recently amplified matches with both
// status ids, newest first.
func (r *MongoMatchRepository) RetweetedStatusIDs(ctx context.Context, limit int) ([]RetweetedPair, error) {
	filter := bson.M{"date_retweeted": bson.M{"$exists": true}}
	opts := options.Find().
		SetSort(bson.D{{Key: "date_retweeted", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.matches.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find retweeted matches: %w", err)
	}

	var matches []models.Match
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode retweeted matches: %w", err)
	}

	tweetByID, err := r.tweetsByID(ctx, matches)
	if err != nil {
		return nil, err
	}

	pairs := make([]RetweetedPair, 0, len(matches))
	for _, match := range matches {
		tweet1, ok1 := tweetByID[match.Tweet1ID]
		tweet2, ok2 := tweetByID[match.Tweet2ID]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("match %d references missing tweets: %w", match.ID, ErrNotFound)
		}
		pairs = append(pairs, RetweetedPair{
			MatchID:        match.ID,
			Tweet1StatusID: tweet1.StatusID,
			Tweet2StatusID: tweet2.StatusID,
		})
	}
	return pairs, nil
}

// MatchesMissingTumblrPost returns amplified, not unretweeted matches with no
// mirror post, oldest amplification first.
func (r *MongoMatchRepository) MatchesMissingTumblrPost(ctx context.Context, limit int) ([]MissingMirror, error) {
	filter := bson.M{
		"date_retweeted":   bson.M{"$exists": true},
		"date_unretweeted": bson.M{"$exists": false},
		"tumblr_post_id":   bson.M{"$exists": false},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date_retweeted", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.matches.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find matches missing tumblr posts: %w", err)
	}

	var matches []models.Match
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches missing tumblr posts: %w", err)
	}

	tweetByID, err := r.tweetsByID(ctx, matches)
	if err != nil {
		return nil, err
	}

	missing := make([]MissingMirror, 0, len(matches))
	for _, match := range matches {
		tweet1, ok1 := tweetByID[match.Tweet1ID]
		tweet2, ok2 := tweetByID[match.Tweet2ID]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("match %d references missing tweets: %w", match.ID, ErrNotFound)
		}
		missing = append(missing, MissingMirror{
			MatchID:        match.ID,
			Tweet1StatusID: tweet1.StatusID,
			Tweet2StatusID: tweet2.StatusID,
			PostedInOrder:  match.PostedInOrder,
		})
	}
	return missing, nil
}

// DeleteMatchesReferencingTweets cascade-deletes matches containing any of
// the given tweet ids.
func (r *MongoMatchRepository) DeleteMatchesReferencingTweets(ctx context.Context, tweetIDs []string) (int64, error) {
	if len(tweetIDs) == 0 {
		return 0, nil
	}

	filter := bson.M{
		"$or": []bson.M{
			{"tweet1_id": bson.M{"$in": tweetIDs}},
			{"tweet2_id": bson.M{"$in": tweetIDs}},
		},
	}

	result, err := r.matches.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matches referencing tweets: %w", err)
	}
	return result.DeletedCount, nil
}

// updateMatch runs one conditional update expected to hit exactly one match.
func (r *MongoMatchRepository) updateMatch(ctx context.Context, matchID int64, update bson.M, op string) error {
	result, err := r.matches.UpdateOne(ctx, bson.M{"_id": matchID}, update)
	if err != nil {
		return fmt.Errorf("failed to %s match %d: %w", op, matchID, err)
	}
	if result.MatchedCount != 1 {
		return fmt.Errorf("%s match %d matched %d documents: %w", op, matchID, result.MatchedCount, ErrUnexpectedRowCount)
	}
	return nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
