package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an enrolled identity. Reference embeddings are stored separately
// in face_embeddings and are append-only: enrollment adds, nothing removes.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty" db:"department_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// FaceEmbedding is one reference embedding for a user. Vectors are
// L2-normalized by the extractor, so similarity is a plain dot product.
type FaceEmbedding struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Embedding []float32 `json:"embedding" db:"embedding"`
	SourceKey string    `json:"source_key" db:"source_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
