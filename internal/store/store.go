// Package store defines the record-store boundary the orchestrator writes
// drafts and submitted applications through.
package store

import (
	"context"
	"errors"
	"time"

	"admissions-service/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("RECORD_NOT_FOUND")
	// ErrAlreadyPromoted is returned when promoting a draft that has already
	// been turned into a submitted application.
	ErrAlreadyPromoted = errors.New("DRAFT_ALREADY_PROMOTED")
	// ErrDraftExists is returned by CreateDraft when another draft already
	// holds the at-most-one-draft slot for the owner.
	ErrDraftExists = errors.New("DRAFT_ALREADY_EXISTS")
)

// SavePayload is the shape of one autosave write. The same shape is written
// to the local fallback store when the durable write fails.
type SavePayload struct {
	FormData      map[string]string `json:"formData"`
	ActiveSection string            `json:"activeSection"`
	SavedAt       time.Time         `json:"savedAt"`
}

// RecordStore is the durable home of drafts and submitted applications.
// Reads after writes are strongly consistent for a single owner.
type RecordStore interface {
	GetDraftByOwnerEmail(ctx context.Context, email string) (*models.Draft, error)
	CreateDraft(ctx context.Context, draft *models.Draft) error
	UpdateDraft(ctx context.Context, draftID string, payload SavePayload) error
	UpdateDraftDocuments(ctx context.Context, draftID string, docs models.DocumentSet) error

	// PromoteDraftToSubmitted atomically turns the draft into a submitted
	// application, preserving already-uploaded documents. The draft is
	// logically destroyed by the status transition.
	PromoteDraftToSubmitted(ctx context.Context, draftID string, submittedAt time.Time) (*models.Application, error)

	CreateSubmitted(ctx context.Context, app *models.Application) error
	GetSubmittedByEmail(ctx context.Context, email string) (*models.Application, error)
	UpdateSubmittedFields(ctx context.Context, appID string, fields map[string]string) error
	UpdateSubmittedDocuments(ctx context.Context, appID string, docs models.DocumentSet) error
}
