package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"anagrambot/internal/logger"
)

// requestLog tags every request with an id and logs its outcome.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		logger.L().WithFields(map[string]interface{}{
			"request_id": requestID,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// NewRouter wires the review API, health check and metrics endpoints.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	anagrams := r.Group("/anagrams")
	{
		anagrams.GET("/more/:queryType", h.ListMatches)
		anagrams.POST("/approve/:id", h.Approve)
		anagrams.POST("/enqueue/:id", h.Enqueue)
		anagrams.POST("/reject/:id", h.Reject)
		anagrams.POST("/unreject/:id", h.Unreject)
		anagrams.POST("/unretweet/:id", h.Unretweet)
		anagrams.POST("/bulkpostmissingtumblrposts", h.BulkPostMissingTumblrPosts)
	}

	queue := r.Group("/anagrams/queue")
	{
		queue.GET("/status", h.QueueStatus)
		queue.POST("/remove/:id", h.RemoveQueueEntry)
		queue.POST("/markerrorok/:id", h.AcknowledgeQueueError)
	}

	return r
}
