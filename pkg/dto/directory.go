package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDepartmentRequest struct {
	Name    string  `json:"name" binding:"required"`
	Lat     float64 `json:"lat" binding:"required"`
	Lng     float64 `json:"lng" binding:"required"`
	RadiusM float64 `json:"radius_m"`
}

type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

type AssignDepartmentRequest struct {
	DepartmentID uuid.UUID `json:"department_id" binding:"required"`
}

// AddEmbeddingRequest enrolls one reference embedding for a user. Vectors
// arrive pre-extracted; this service never accepts enrollment images.
type AddEmbeddingRequest struct {
	Embedding []float32 `json:"embedding" binding:"required"`
	SourceKey string    `json:"source_key"`
}

type EmbeddingInfo struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	SourceKey string    `json:"source_key"`
	CreatedAt time.Time `json:"created_at"`
}

type IdentifyMatch struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Score  float64   `json:"score"`
}

type IdentifyResponse struct {
	Matches []IdentifyMatch `json:"matches"`
}
