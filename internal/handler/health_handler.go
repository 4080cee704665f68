package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/config"
)

const healthTimeout = 3 * time.Second

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// QueueDepth reports the backlog of each worker queue.
type QueueDepth func(ctx context.Context) (map[string]int64, error)

// RedisQueueDepth reads every worker queue length in one pipeline.
func RedisQueueDepth(rdb *redis.Client) QueueDepth {
	return func(ctx context.Context) (map[string]int64, error) {
		pipe := rdb.Pipeline()
		draftsCmd := pipe.LLen(ctx, config.WorkerKey.PersistDraftsQueue)
		resultsCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		return map[string]int64{
			config.WorkerKey.PersistDraftsQueue:  draftsCmd.Val(),
			config.WorkerKey.PersistResultsQueue: resultsCmd.Val(),
		}, nil
	}
}

// HealthHandler reports dependency status and queue backlog.
type HealthHandler struct {
	checks map[string]HealthCheck
	queues QueueDepth
	log    zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. queues may be nil.
func NewHealthHandler(checks map[string]HealthCheck, queues QueueDepth, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		queues: queues,
		log:    log.With().Str("component", "health_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Returns 503 when any dependency check fails.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	body := gin.H{
		"status":       http.StatusText(status),
		"dependencies": deps,
	}
	if h.queues != nil {
		if depth, err := h.queues(ctx); err == nil {
			body["queues"] = depth
		}
	}

	c.JSON(status, body)
}
