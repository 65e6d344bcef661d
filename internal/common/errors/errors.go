// Package errors provides standardized error handling for the admissions orchestrator.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Draft / autosave errors
const (
	ErrCodeDraftNotFound    ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodeDraftLoadFailed  ErrorCode = "DRAFT_LOAD_FAILED"
	ErrCodeSaveFailed       ErrorCode = "SAVE_FAILED"
	ErrCodeFallbackUsed     ErrorCode = "FALLBACK_USED"
	ErrCodeFallbackFailed   ErrorCode = "FALLBACK_FAILED"
	ErrCodeDuplicateDraft   ErrorCode = "DUPLICATE_DRAFT"
)

// Document slot errors
const (
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeSlotBusy         ErrorCode = "SLOT_BUSY"
	ErrCodeUploadFailed     ErrorCode = "UPLOAD_FAILED"
	ErrCodeRemoveFailed     ErrorCode = "REMOVE_FAILED"
	ErrCodeFileTooLarge     ErrorCode = "FILE_TOO_LARGE"
)

// Submission errors
const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodePromotionFailed  ErrorCode = "PROMOTION_FAILED"
	ErrCodeCreateFailed     ErrorCode = "CREATE_FAILED"
	ErrCodeAlreadySubmitted ErrorCode = "ALREADY_SUBMITTED"
	ErrCodeSubmissionActive ErrorCode = "SUBMISSION_ACTIVE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSaveFailedError creates a retryable durable-store write error.
func NewSaveFailedError(draftID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSaveFailed,
		Message:   "Draft save to record store failed",
		Details:   fmt.Sprintf("draftId: %s, error: %s", draftID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFallbackUsedError marks a save that landed in local fallback only.
// The save is reported successful to the caller; this error is internal status.
func NewFallbackUsedError(draftID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFallbackUsed,
		Message:   "Draft saved to local fallback only",
		Details:   fmt.Sprintf("draftId: %s", draftID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFallbackFailedError is the user-visible case: both tiers failed.
func NewFallbackFailedError(draftID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFallbackFailed,
		Message:   "Draft could not be saved; your recent edits are at risk",
		Details:   fmt.Sprintf("draftId: %s, error: %s", draftID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCapacityExceededError rejects an upload before any I/O happens.
func NewCapacityExceededError(slot string, remaining int) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapacityExceeded,
		Message:   fmt.Sprintf("Too many documents; you can add %d more", remaining),
		Details:   fmt.Sprintf("slot: %s", slot),
		Retryable: false,
		Metadata:  map[string]interface{}{"remaining": remaining},
		Timestamp: time.Now().UTC(),
	}
}

// NewSlotBusyError rejects a second operation on a slot mid-operation.
func NewSlotBusyError(slot string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSlotBusy,
		Message:   "Another operation is in progress for this document",
		Details:   fmt.Sprintf("slot: %s", slot),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadFailedError creates a retryable blob upload error.
func NewUploadFailedError(fileName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   fmt.Sprintf("Upload of %q failed, please try again", fileName),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError carries the per-section error lists.
func NewValidationFailedError(sectionErrors map[string][]string) *StandardError {
	meta := make(map[string]interface{}, len(sectionErrors))
	for section, errs := range sectionErrors {
		meta[section] = errs
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Some required fields are missing or invalid",
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// NewPromotionFailedError creates a retryable draft-promotion error.
func NewPromotionFailedError(draftID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePromotionFailed,
		Message:   "Submitting your application failed, please try again",
		Details:   fmt.Sprintf("draftId: %s, error: %s", draftID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadySubmittedError creates a non-retryable duplicate-submit error.
func NewAlreadySubmittedError(ownerEmail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadySubmitted,
		Message:   "This application has already been submitted",
		Details:   fmt.Sprintf("owner: %s", ownerEmail),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCreateFailedError creates a retryable submitted-record creation error.
func NewCreateFailedError(ownerEmail string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCreateFailed,
		Message:   "Submitting your application failed, please try again",
		Details:   fmt.Sprintf("owner: %s, error: %s", ownerEmail, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionActiveError rejects a second Submit while one is running.
func NewSubmissionActiveError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionActive,
		Message:   "A submission is already in progress",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
