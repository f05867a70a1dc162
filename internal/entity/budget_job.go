package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BudgetJob represents a persisted pipeline run for data transfer between layers.
type BudgetJob struct {
	ID               uuid.UUID       `json:"id"`
	SourceName       string          `json:"source_name"`
	MimeType         string          `json:"mime_type"`
	SubscriberKey    string          `json:"subscriber_key,omitempty"`
	Status           string          `json:"status"`
	Path             string          `json:"path,omitempty"`
	PageCount        int             `json:"page_count"`
	ItemCount        int             `json:"item_count"`
	ProjectTypeGuess string          `json:"project_type_guess,omitempty"`
	Summary          json.RawMessage `json:"summary,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at,omitempty"`
}
