package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
)

type SystemHandler struct {
	db        *storage.PostgresStore
	snapshots *storage.SnapshotStore
	producer  *queue.Producer
}

func NewSystemHandler(db *storage.PostgresStore, snapshots *storage.SnapshotStore, producer *queue.Producer) *SystemHandler {
	return &SystemHandler{db: db, snapshots: snapshots, producer: producer}
}

// Healthz reports process liveness.
func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports readiness of every backing service.
func (h *SystemHandler) Readyz(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := h.db.Ping(c.Request.Context()); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.snapshots.Ping(c.Request.Context()); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	if err := h.producer.Ping(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, checks)
}
