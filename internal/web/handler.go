package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"anagrambot/internal/anagram/models"
	"anagrambot/internal/anagram/repository"
	"anagrambot/internal/anagram/service"
)

const defaultBulkMirrorLimit = 20

// Handler exposes the review surface as a JSON API.
type Handler struct {
	svc     *service.Service
	matches repository.MatchRepository
	queue   repository.QueueRepository
}

func NewHandler(svc *service.Service, matches repository.MatchRepository, queue repository.QueueRepository) *Handler {
	return &Handler{svc: svc, matches: matches, queue: queue}
}

type decisionReq struct {
	OrderAsShown bool `json:"orderAsShown"`
}

type unretweetReq struct {
	Unretweet        bool `json:"unretweet"`
	DeleteFromTumblr bool `json:"deleteFromTumblr"`
}

// ListMatches returns reviewable matches for one of the query types, e.g.
// GET /anagrams/more/topmatches?cutoff=0.85&limit=20.
func (h *Handler) ListMatches(c *gin.Context) {
	queryType := c.Param("queryType")
	switch queryType {
	case repository.QueryTopMatches, repository.QueryOldestTopMatches, repository.QueryMostRecent:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown query type"})
		return
	}

	cutoff, err := strconv.ParseFloat(c.DefaultQuery("cutoff", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cutoff"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	matches, err := h.matches.FindMatches(c.Request.Context(), queryType, limit, cutoff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if matches == nil {
		matches = []repository.MatchSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"anagrams": matches})
}

// Approve amplifies and mirrors a match right now.
func (h *Handler) Approve(c *gin.Context) {
	matchID, ok := pathID(c)
	if !ok {
		return
	}
	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	writeOutcome(c, h.svc.ApproveNow(c.Request.Context(), matchID, req.OrderAsShown))
}

// Enqueue defers a match's approval to the posting queue.
func (h *Handler) Enqueue(c *gin.Context) {
	matchID, ok := pathID(c)
	if !ok {
		return
	}
	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	writeOutcome(c, h.svc.Enqueue(c.Request.Context(), matchID, req.OrderAsShown))
}

// Reject marks a match rejected by the reviewer.
func (h *Handler) Reject(c *gin.Context) {
	matchID, ok := pathID(c)
	if !ok {
		return
	}
	writeOutcome(c, h.svc.Reject(c.Request.Context(), matchID))
}

// Unreject brings a rejected match back into review.
func (h *Handler) Unreject(c *gin.Context) {
	matchID, ok := pathID(c)
	if !ok {
		return
	}
	writeOutcome(c, h.svc.Unreject(c.Request.Context(), matchID))
}

// Unretweet manually unwinds an amplified match, its mirror post or both.
func (h *Handler) Unretweet(c *gin.Context) {
	matchID, ok := pathID(c)
	if !ok {
		return
	}
	var req unretweetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !req.Unretweet && !req.DeleteFromTumblr {
		c.JSON(http.StatusBadRequest, gin.H{"error": "neither unretweet nor deleteFromTumblr was set"})
		return
	}

	writeOutcome(c, h.svc.UnretweetMatch(c.Request.Context(), matchID, req.Unretweet, req.DeleteFromTumblr))
}

// QueueStatus reports queue counts plus the pending and errored entries.
func (h *Handler) QueueStatus(c *gin.Context) {
	ctx := c.Request.Context()

	counts := make(map[string]int64)
	for _, status := range []string{
		models.QueueStatusPending,
		models.QueueStatusPosted,
		models.QueueStatusError,
		models.QueueStatusErrorObserved,
		models.QueueStatusRemoved,
	} {
		count, err := h.queue.CountByStatus(ctx, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		counts[status] = count
	}

	pending, err := h.queue.EntriesByStatus(ctx, models.QueueStatusPending)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	errored, err := h.queue.EntriesByStatus(ctx, models.QueueStatusError)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"counts":  counts,
		"pending": queueEntriesJSON(pending),
		"errored": queueEntriesJSON(errored),
	})
}

// RemoveQueueEntry takes a queued approval out of circulation.
func (h *Handler) RemoveQueueEntry(c *gin.Context) {
	entryID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveQueueEntry(c.Request.Context(), entryID); err != nil {
		writeRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

// AcknowledgeQueueError marks an errored entry as seen.
func (h *Handler) AcknowledgeQueueError(c *gin.Context) {
	entryID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.AcknowledgeQueueError(c.Request.Context(), entryID); err != nil {
		writeRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "acknowledged"})
}

// BulkPostMissingTumblrPosts backfills mirror posts for amplified matches
// that never got one.
func (h *Handler) BulkPostMissingTumblrPosts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultBulkMirrorLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	attempted, err := h.svc.BulkPostMissingTumblrPosts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"attempted": attempted, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempted": attempted})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeOutcome maps an engine outcome onto the response. Partial-failure
// details travel in the body so the reviewer sees exactly what state the
// match was left in.
func writeOutcome(c *gin.Context, outcome service.Outcome) {
	body := gin.H{"remove": outcome.Remove}
	if outcome.SuccessMessage != "" {
		body["message"] = outcome.SuccessMessage
	}
	if outcome.Error != "" {
		body["error"] = outcome.Error
	}
	if outcome.SystemResponse != "" {
		body["systemResponse"] = outcome.SystemResponse
	}
	if outcome.TumblrError != "" {
		body["tumblrError"] = outcome.TumblrError
	}
	if outcome.RecoveryError {
		body["recoveryError"] = true
	}
	if outcome.EnqueuedMatchContainsRetweets {
		body["enqueuedMatchContainsRetweets"] = true
	}

	if outcome.Failed() {
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func writeRepositoryError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, repository.ErrUnexpectedRowCount) || errors.Is(err, repository.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type queueEntryJSON struct {
	ID           int64  `json:"id"`
	MatchID      int64  `json:"matchId"`
	OrderAsShown bool   `json:"orderAsShown"`
	Status       string `json:"status"`
	DateQueued   string `json:"dateQueued"`
	Message      string `json:"message,omitempty"`
}

func queueEntriesJSON(entries []models.QueueEntry) []queueEntryJSON {
	out := make([]queueEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, queueEntryJSON{
			ID:           e.ID,
			MatchID:      e.MatchID,
			OrderAsShown: e.OrderAsShown,
			Status:       e.Status,
			DateQueued:   e.DateQueued.UTC().Format(time.RFC3339),
			Message:      e.Message,
		})
	}
	return out
}
