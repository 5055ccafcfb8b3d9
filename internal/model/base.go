package model

import (
	"time"

	"github.com/google/uuid"
)

// Base holds the fields shared by all persisted entities.
type Base struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
