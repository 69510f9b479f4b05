package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func matchNamespace(mt *mtest.T) string {
	return mt.DB.Name() + ".anagram_matches"
}

func TestMongoMatchRepositoryGetMatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewMongoMatchRepository(mt.DB)
		retweeted := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			matchNamespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: int64(42)},
				{Key: "tweet1_id", Value: "t1"},
				{Key: "tweet2_id", Value: "t2"},
				{Key: "interesting_factor", Value: 0.91},
				{Key: "rejected", Value: false},
				{Key: "date_retweeted", Value: retweeted},
				{Key: "tweet1_retweet_id", Value: "901"},
				{Key: "tweet2_retweet_id", Value: "902"},
			},
		))

		match, err := repo.GetMatch(context.Background(), 42)
		if err != nil {
			t.Fatalf("GetMatch failed: %v", err)
		}
		if match.ID != 42 || match.Tweet1ID != "t1" || match.Tweet2ID != "t2" {
			t.Fatalf("unexpected match: %+v", match)
		}
		if !match.IsRetweeted() {
			t.Fatal("expected match to report as retweeted")
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewMongoMatchRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, matchNamespace(mt), mtest.FirstBatch))

		_, err := repo.GetMatch(context.Background(), 404)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMongoMatchRepositoryRejectMatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewMongoMatchRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		if err := repo.RejectMatch(context.Background(), 42, true); err != nil {
			t.Fatalf("RejectMatch failed: %v", err)
		}
	})

	mt.Run("missing match", func(mt *mtest.T) {
		repo := NewMongoMatchRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.RejectMatch(context.Background(), 404, false)
		if !errors.Is(err, ErrUnexpectedRowCount) {
			t.Fatalf("expected ErrUnexpectedRowCount, got %v", err)
		}
	})
}

func TestFindMatchesRejectsUnknownQueryType(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("invalid query type", func(mt *mtest.T) {
		repo := NewMongoMatchRepository(mt.DB)

		if _, err := repo.FindMatches(context.Background(), "allofthem", 10, 0.5); err == nil {
			t.Fatal("expected error for unknown query type")
		}
	})
}

func TestFindMatchesFiltersOnInterestingFactorCutoff(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("oldest top matches apply the cutoff", func(mt *mtest.T) {
		repo := NewMongoMatchRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "values", Value: bson.A{int64(9)}}),
			mtest.CreateCursorResponse(0, matchNamespace(mt), mtest.FirstBatch),
		)

		matches, err := repo.FindMatches(context.Background(), QueryOldestTopMatches, 10, 0.5)
		if err != nil {
			mt.Fatalf("FindMatches failed: %v", err)
		}
		if len(matches) != 0 {
			mt.Fatalf("expected no matches from the empty cursor, got %+v", matches)
		}

		distinct := mt.GetStartedEvent()
		if distinct == nil || distinct.CommandName != "distinct" {
			mt.Fatalf("expected a distinct command first, got %+v", distinct)
		}

		find := mt.GetStartedEvent()
		if find == nil || find.CommandName != "find" {
			mt.Fatalf("expected a find command, got %+v", find)
		}

		// A 0.40 factor must be filtered out while 0.55 and 0.70 pass, so
		// the cutoff has to reach the database as a strict lower bound.
		gt, ok := find.Command.Lookup("filter", "interesting_factor", "$gt").DoubleOK()
		if !ok || gt != 0.5 {
			mt.Fatalf("expected interesting_factor $gt 0.5 in the filter, got %v", find.Command)
		}
		if rejected, ok := find.Command.Lookup("filter", "rejected").BooleanOK(); !ok || rejected {
			mt.Fatalf("expected rejected=false in the filter, got %v", find.Command)
		}
		excluded, err := find.Command.Lookup("filter", "_id", "$nin").Array().Values()
		if err != nil || len(excluded) != 1 {
			mt.Fatalf("expected the pending match id excluded, got %v (%v)", excluded, err)
		}
		if id, ok := excluded[0].Int64OK(); !ok || id != 9 {
			mt.Fatalf("expected pending match 9 excluded, got %v", excluded[0])
		}
	})
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below range", -0.5, 0},
		{"in range", 0.85, 0.85},
		{"above range", 1.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clamp(tt.in, 0, 1); got != tt.want {
				t.Fatalf("clamp(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
