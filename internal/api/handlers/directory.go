package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/internal/verify"
	"github.com/your-org/presence/pkg/dto"
)

// Rebuilder refreshes the in-memory identity index after enrollment changes.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// DirectoryHandler serves the provisioning API: departments, users and
// reference embeddings. Guarded by the API key, not user sessions.
type DirectoryHandler struct {
	db        *storage.PostgresStore
	extractor verify.Extractor
	rebuilder Rebuilder
	threshold float64
}

func NewDirectoryHandler(db *storage.PostgresStore, extractor verify.Extractor, rebuilder Rebuilder, threshold float64) *DirectoryHandler {
	return &DirectoryHandler{
		db:        db,
		extractor: extractor,
		rebuilder: rebuilder,
		threshold: threshold,
	}
}

// CreateDepartment handles POST /v1/departments.
func (h *DirectoryHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dep, err := h.db.CreateDepartment(c.Request.Context(), req.Name, req.Lat, req.Lng, req.RadiusM)
	if err != nil {
		slog.Error("create department", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create department"})
		return
	}

	c.JSON(http.StatusCreated, dep)
}

// ListDepartments handles GET /v1/departments.
func (h *DirectoryHandler) ListDepartments(c *gin.Context) {
	deps, err := h.db.ListDepartments(c.Request.Context())
	if err != nil {
		slog.Error("list departments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list departments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": deps})
}

// CreateUser handles POST /v1/users.
func (h *DirectoryHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.CreateUser(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		slog.Error("create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// GetUser handles GET /v1/users/:id.
func (h *DirectoryHandler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), id)
	if err != nil {
		slog.Error("get user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// AssignDepartment handles PUT /v1/users/:id/department.
func (h *DirectoryHandler) AssignDepartment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req dto.AssignDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dep, err := h.db.GetDepartment(c.Request.Context(), req.DepartmentID)
	if err != nil {
		slog.Error("get department", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get department"})
		return
	}
	if dep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
		return
	}

	if err := h.db.AssignDepartment(c.Request.Context(), id, req.DepartmentID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AddEmbedding handles POST /v1/users/:id/embeddings. Vectors arrive
// pre-extracted as JSON.
func (h *DirectoryHandler) AddEmbedding(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req dto.AddEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), id)
	if err != nil {
		slog.Error("get user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	fe, err := h.db.AddFaceEmbedding(c.Request.Context(), id, req.Embedding, req.SourceKey)
	if err != nil {
		slog.Error("add face embedding", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add face embedding"})
		return
	}

	if h.rebuilder != nil {
		if err := h.rebuilder.Rebuild(c.Request.Context()); err != nil {
			slog.Warn("rebuild identity index", "error", err)
		}
	}

	c.JSON(http.StatusCreated, dto.EmbeddingInfo{
		ID:        fe.ID,
		UserID:    fe.UserID,
		SourceKey: fe.SourceKey,
		CreatedAt: fe.CreatedAt,
	})
}

// ListEmbeddings handles GET /v1/users/:id/embeddings.
func (h *DirectoryHandler) ListEmbeddings(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	faces, err := h.db.ListFaceEmbeddings(c.Request.Context(), id)
	if err != nil {
		slog.Error("list face embeddings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list face embeddings"})
		return
	}

	infos := make([]dto.EmbeddingInfo, 0, len(faces))
	for _, fe := range faces {
		infos = append(infos, dto.EmbeddingInfo{
			ID:        fe.ID,
			UserID:    fe.UserID,
			SourceKey: fe.SourceKey,
			CreatedAt: fe.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"embeddings": infos})
}

// Identify handles POST /v1/identify: a diagnostic who-is-this lookup over
// the pgvector column. It never writes attendance or audit records.
func (h *DirectoryHandler) Identify(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing probe image"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read probe image"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxProbeBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read probe image"})
		return
	}

	probe, err := h.extractor.Extract(c.Request.Context(), data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	matches, err := h.db.SearchFaces(c.Request.Context(), probe, h.threshold, limit)
	if err != nil {
		slog.Error("search faces", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search faces"})
		return
	}

	resp := dto.IdentifyResponse{Matches: make([]dto.IdentifyMatch, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, dto.IdentifyMatch{
			UserID: m.UserID,
			Email:  m.Email,
			Name:   m.Name,
			Score:  m.Score,
		})
	}
	c.JSON(http.StatusOK, resp)
}
