// internal/models/application.go
package models

import "time"

// ApplicationStatus walks a fixed progression once a draft is promoted.
type ApplicationStatus string

const (
	StatusInterested ApplicationStatus = "interested"
	StatusApplied    ApplicationStatus = "applied"
	StatusInReview   ApplicationStatus = "in_review"
	StatusQualified  ApplicationStatus = "qualified"
	StatusAdmitted   ApplicationStatus = "admitted"
	StatusEnrolled   ApplicationStatus = "enrolled"

	// Terminal variants reachable from any non-terminal status.
	StatusExpired         ApplicationStatus = "expired"
	StatusDeferred        ApplicationStatus = "deferred"
	StatusMissingDocument ApplicationStatus = "missing_document"
)

// Application mirrors the draft's form snapshot after submission, with the
// document slots denormalized onto the application itself.
type Application struct {
	ID            string            `json:"id"`
	OwnerEmail    string            `json:"ownerEmail"`
	OwnerID       string            `json:"ownerId"`
	FormData      map[string]string `json:"formData"`
	Status        ApplicationStatus `json:"status"`
	Documents     DocumentSet       `json:"documents"`
	SubmittedAt   time.Time         `json:"submittedAt"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// nextStatuses encodes the forward progression. Terminal variants are allowed
// from every non-terminal status.
var nextStatuses = map[ApplicationStatus]ApplicationStatus{
	StatusInterested: StatusApplied,
	StatusApplied:    StatusInReview,
	StatusInReview:   StatusQualified,
	StatusQualified:  StatusAdmitted,
	StatusAdmitted:   StatusEnrolled,
}

// IsTerminal reports whether no further transitions are possible.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusEnrolled, StatusExpired, StatusDeferred, StatusMissingDocument:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to target respects the
// progression. Staying put is always allowed.
func (s ApplicationStatus) CanTransition(target ApplicationStatus) bool {
	if s == target {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	switch target {
	case StatusExpired, StatusDeferred, StatusMissingDocument:
		return true
	}
	return nextStatuses[s] == target
}
