package model

import (
	"time"

	"github.com/google/uuid"
)

// Address rows are effectively immutable once created; agreements and
// vehicles carry a label derived from these fields, never the id.
type Address struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Street    string
	Number    string
	City      string
	CreatedAt time.Time
}
