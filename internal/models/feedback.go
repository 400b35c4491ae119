package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a free-form comment submitted from the game page.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	GameID    string    `json:"gameId,omitempty"`
	Name      string    `json:"name,omitempty"`
	Message   string    `json:"message"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
