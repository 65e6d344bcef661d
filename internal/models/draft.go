// internal/models/draft.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// DraftStatus is the lifecycle marker of an in-progress application.
type DraftStatus string

const (
	StatusDraft DraftStatus = "draft"
)

// Draft is the one unsubmitted, continuously autosaved application record a
// user may have. FormData holds the raw field snapshot; document metadata is
// embedded so the draft is self-contained.
type Draft struct {
	ID            string            `json:"id"`
	OwnerEmail    string            `json:"ownerEmail"`
	OwnerID       string            `json:"ownerId"`
	FormData      map[string]string `json:"formData"`
	ActiveSection string            `json:"activeSection"`
	Status        DraftStatus       `json:"status"`
	Documents     DocumentSet       `json:"documents"`
	LastSavedAt   time.Time         `json:"lastSavedAt"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// TempDraftID synthesizes the transient identifier used for autosave before a
// durable draft exists.
func TempDraftID(ownerID string, now time.Time) string {
	return fmt.Sprintf("temp_%s_%d", ownerID, now.Unix())
}

// IsTempID reports whether the id is a transient pre-creation identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "temp_")
}
