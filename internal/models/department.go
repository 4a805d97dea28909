package models

import (
	"time"

	"github.com/google/uuid"
)

// Department is an authorized attendance location: a center coordinate plus
// a base tolerance radius in meters. Immutable during a verification call.
type Department struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Lat       float64   `json:"lat" db:"lat"`
	Lng       float64   `json:"lng" db:"lng"`
	RadiusM   float64   `json:"radius_m" db:"radius_m"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
