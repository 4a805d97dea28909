package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/auth"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/internal/verify"
	"github.com/your-org/presence/pkg/dto"
)

// maxProbeBytes caps uploaded probe images at 8 MiB.
const maxProbeBytes = 8 << 20

// AttendanceHandler exposes the verification engine over HTTP. It parses
// transport concerns (multipart forms, headers, snapshots) and leaves every
// accept/reject decision to the engine.
type AttendanceHandler struct {
	pipeline  *verify.Pipeline
	snapshots *storage.SnapshotStore
}

func NewAttendanceHandler(pipeline *verify.Pipeline, snapshots *storage.SnapshotStore) *AttendanceHandler {
	return &AttendanceHandler{pipeline: pipeline, snapshots: snapshots}
}

// ClockIn handles POST /v1/attendance/clock-in.
func (h *AttendanceHandler) ClockIn(c *gin.Context) {
	h.clock(c, models.ActionIn)
}

// ClockOut handles POST /v1/attendance/clock-out.
func (h *AttendanceHandler) ClockOut(c *gin.Context) {
	h.clock(c, models.ActionOut)
}

func (h *AttendanceHandler) clock(c *gin.Context, action models.Action) {
	user := auth.IdentityFrom(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	image, ok := h.readProbe(c)
	if !ok {
		return
	}

	req, ok := h.buildRequest(c, action)
	if !ok {
		return
	}
	req.Identity = user
	req.Image = image
	req.SnapshotKey = h.saveSnapshot(c.Request.Context(), image, c.ContentType())

	res, err := h.pipeline.Verify(c.Request.Context(), req)
	respond(c, res, err)
}

// ManualIn handles POST /v1/attendance/manual-in.
func (h *AttendanceHandler) ManualIn(c *gin.Context) {
	h.manual(c, models.ActionIn)
}

// ManualOut handles POST /v1/attendance/manual-out.
func (h *AttendanceHandler) ManualOut(c *gin.Context) {
	h.manual(c, models.ActionOut)
}

func (h *AttendanceHandler) manual(c *gin.Context, action models.Action) {
	user := auth.IdentityFrom(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	req, ok := h.buildRequest(c, action)
	if !ok {
		return
	}
	req.Identity = user

	res, err := h.pipeline.VerifyManual(c.Request.Context(), req)
	respond(c, res, err)
}

// AnonymousClock handles POST /v1/attendance/anonymous-clock: no credential,
// the identity comes from the probe itself. The requested direction travels
// in the "action" form field.
func (h *AttendanceHandler) AnonymousClock(c *gin.Context) {
	action := models.Action(c.PostForm("action"))

	image, ok := h.readProbe(c)
	if !ok {
		return
	}

	req, ok := h.buildRequest(c, action)
	if !ok {
		return
	}
	req.Image = image
	req.SnapshotKey = h.saveSnapshot(c.Request.Context(), image, c.ContentType())

	res, err := h.pipeline.VerifyAnonymous(c.Request.Context(), req)
	respond(c, res, err)
}

// buildRequest parses the shared location form fields and request metadata.
func (h *AttendanceHandler) buildRequest(c *gin.Context, action models.Action) (*verify.Request, bool) {
	lat, err := strconv.ParseFloat(c.PostForm("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat"})
		return nil, false
	}
	lng, err := strconv.ParseFloat(c.PostForm("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lng"})
		return nil, false
	}

	var accuracy *float64
	if raw := c.PostForm("accuracy"); raw != "" {
		acc, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accuracy"})
			return nil, false
		}
		accuracy = &acc
	}

	ip := c.ClientIP()
	ua := c.Request.UserAgent()

	req := &verify.Request{
		Action:   action,
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
		ClientIP: &ip,
	}
	if ua != "" {
		req.UserAgent = &ua
	}
	return req, true
}

func (h *AttendanceHandler) readProbe(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing probe image"})
		return nil, false
	}
	if fh.Size > maxProbeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "probe image too large"})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read probe image"})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxProbeBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read probe image"})
		return nil, false
	}
	return data, true
}

// saveSnapshot stores the probe for the audit trail. Best-effort: a storage
// failure never blocks verification, the attempt just has no snapshot key.
func (h *AttendanceHandler) saveSnapshot(ctx context.Context, image []byte, contentType string) *string {
	if h.snapshots == nil || len(image) == 0 {
		return nil
	}
	key, err := h.snapshots.SaveSnapshot(ctx, time.Now(), image, contentType)
	if err != nil {
		slog.Warn("save probe snapshot", "error", err)
		return nil
	}
	return &key
}

// respond maps an engine outcome to the wire: accepted events to 200,
// rejections to their taxonomy status, everything else to 500.
func respond(c *gin.Context, res *verify.Result, err error) {
	if err != nil {
		var rej *verify.Rejection
		if errors.As(err, &rej) {
			c.JSON(rej.Code.HTTPStatus(), dto.RejectionResponse{
				Error:     rej.Detail,
				Reason:    string(rej.Code),
				Retryable: rej.Retryable(),
			})
			return
		}
		slog.Error("verification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.ClockResponse{
		OK:           true,
		Action:       string(res.Action),
		Slot:         string(res.Slot),
		Score:        res.Score,
		DistanceM:    res.DistanceM,
		AttendanceID: res.AttendanceID,
		User: dto.UserInfo{
			ID:    res.User.ID,
			Email: res.User.Email,
			Name:  res.User.Name,
		},
	})
}
