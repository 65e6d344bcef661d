// Package draft keeps an in-progress application durably saved without
// explicit user action: exactly one draft per owner, trailing-debounce
// autosave, and a local-fallback write path when the record store is
// unreachable.
package draft

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "admissions-service/internal/common/errors"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/common/metrics"
	"admissions-service/internal/events"
	"admissions-service/internal/identity"
	"admissions-service/internal/models"
	"admissions-service/internal/store"
)

// Status is the autosave status signal observable by the UI layer.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// DefaultQuietPeriod is the trailing-debounce window: only after this much
// edit silence does a save fire.
const DefaultQuietPeriod = 1500 * time.Millisecond

// saveTimeout bounds the background save that the debounce timer triggers.
const saveTimeout = 10 * time.Second

// FallbackStore is the last-resort persistence tier for autosave payloads.
type FallbackStore interface {
	SaveSnapshot(ctx context.Context, draftID string, payload store.SavePayload) error
	LoadSnapshot(ctx context.Context, draftID string) (*store.SavePayload, error)
	Clear(ctx context.Context, draftID string) error
}

// Manager owns one user's draft session. All mutation goes through its
// explicit entry points; there is no ambient shared form state.
type Manager struct {
	records store.RecordStore
	fb      FallbackStore
	sink    events.Sink
	logger  logger.Logger
	quiet   time.Duration

	mu         sync.Mutex
	ownerEmail string
	ownerID    string
	draft      *models.Draft
	status     Status
	lastErr    *stderrors.StandardError
	suspended  bool
	closed     bool

	// The single authoritative pending-write slot. A new edit inside the
	// quiet period replaces the payload and restarts the timer.
	pending *store.SavePayload
	timer   *time.Timer
}

func NewManager(records store.RecordStore, fb FallbackStore, sink events.Sink,
	log logger.Logger, quiet time.Duration, ownerEmail, ownerID string) *Manager {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if sink == nil {
		sink = events.Nop{}
	}
	return &Manager{
		records:    records,
		fb:         fb,
		sink:       sink,
		logger:     log.WithFields(map[string]interface{}{"component": "draft-session", "owner": ownerEmail}),
		quiet:      quiet,
		ownerEmail: ownerEmail,
		ownerID:    ownerID,
		status:     StatusIdle,
		suspended:  true, // suspended until hydration completes
	}
}

// Status returns the current autosave status signal.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the most recent internal error status, which may be set
// even when the save was reported successful (fallback-only saves).
func (m *Manager) LastError() *stderrors.StandardError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Draft returns the current draft, which may carry a transient temp id until
// the durable record exists.
func (m *Manager) Draft() *models.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// Hydrate loads the owner's existing draft and merges its stored snapshot
// with the account profile: the draft value wins when non-empty, the profile
// only back-fills gaps. A load failure is non-fatal; the form proceeds in a
// usable, unsaved state.
func (m *Manager) Hydrate(ctx context.Context, profile *identity.Profile) *models.Draft {
	existing, err := m.records.GetDraftByOwnerEmail(ctx, m.ownerEmail)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err == nil:
		existing.FormData = identity.MergeForm(existing.FormData, profile)
		m.draft = existing
	case errors.Is(err, store.ErrNotFound):
		m.draft = &models.Draft{
			ID:         models.TempDraftID(m.ownerID, time.Now().UTC()),
			OwnerEmail: m.ownerEmail,
			OwnerID:    m.ownerID,
			FormData:   identity.MergeForm(map[string]string{}, profile),
			Status:     models.StatusDraft,
		}
	default:
		m.logger.Warn("draft hydration failed", map[string]interface{}{"error": err.Error()})
		m.lastErr = &stderrors.StandardError{
			Code:      stderrors.ErrCodeDraftLoadFailed,
			Message:   "Could not load your saved draft; new edits will still be saved",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
		m.draft = &models.Draft{
			ID:         models.TempDraftID(m.ownerID, time.Now().UTC()),
			OwnerEmail: m.ownerEmail,
			OwnerID:    m.ownerID,
			FormData:   identity.MergeForm(map[string]string{}, profile),
			Status:     models.StatusDraft,
		}
	}
	m.suspended = false
	return m.draft
}

// EnsureDraft returns the durable draft for the owner, creating it if none
// exists. Repeated and concurrent calls converge on one durable id; the
// transient temp id is reconciled atomically here.
func (m *Manager) EnsureDraft(ctx context.Context) (*models.Draft, error) {
	m.mu.Lock()
	if m.draft != nil && !models.IsTempID(m.draft.ID) {
		d := m.draft
		m.mu.Unlock()
		return d, nil
	}
	tempID := ""
	var form map[string]string
	section := ""
	if m.draft != nil {
		tempID = m.draft.ID
		form = m.draft.FormData
		section = m.draft.ActiveSection
	}
	m.mu.Unlock()

	if existing, err := m.records.GetDraftByOwnerEmail(ctx, m.ownerEmail); err == nil {
		m.adoptDurable(ctx, existing, tempID)
		return m.Draft(), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, stderrors.NewSaveFailedError(tempID, err)
	}

	candidate := &models.Draft{
		ID:            uuid.New().String(),
		OwnerEmail:    m.ownerEmail,
		OwnerID:       m.ownerID,
		FormData:      form,
		ActiveSection: section,
		LastSavedAt:   time.Now().UTC(),
	}
	if candidate.FormData == nil {
		candidate.FormData = map[string]string{}
	}

	err := m.records.CreateDraft(ctx, candidate)
	switch {
	case err == nil:
		m.adoptDurable(ctx, candidate, tempID)
		return m.Draft(), nil
	case store.IsAlreadyExists(err):
		// Another caller won the race; converge on the winner's draft.
		winner, getErr := m.records.GetDraftByOwnerEmail(ctx, m.ownerEmail)
		if getErr != nil {
			return nil, stderrors.NewSaveFailedError(tempID, getErr)
		}
		m.adoptDurable(ctx, winner, tempID)
		return m.Draft(), nil
	default:
		return nil, stderrors.NewSaveFailedError(tempID, err)
	}
}

// adoptDurable is the explicit temp→durable id transition. Any fallback
// snapshot parked under the temp id moves to the durable key.
func (m *Manager) adoptDurable(ctx context.Context, durable *models.Draft, tempID string) {
	m.mu.Lock()
	if m.draft != nil && models.IsTempID(m.draft.ID) && len(m.draft.FormData) > 0 && len(durable.FormData) == 0 {
		durable.FormData = m.draft.FormData
	}
	m.draft = durable
	m.mu.Unlock()

	if tempID == "" || !models.IsTempID(tempID) || m.fb == nil {
		return
	}
	if snap, err := m.fb.LoadSnapshot(ctx, tempID); err == nil {
		if err := m.fb.SaveSnapshot(ctx, durable.ID, *snap); err == nil {
			_ = m.fb.Clear(ctx, tempID)
		}
	}
}

// QueueSave schedules a save of the given snapshot after the quiet period.
// Edits inside the window replace the payload and restart the timer, so only
// the last edit of a burst triggers a write.
func (m *Manager) QueueSave(formData map[string]string, activeSection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.suspended || m.closed {
		return
	}

	snapshot := make(map[string]string, len(formData))
	for k, v := range formData {
		snapshot[k] = v
	}
	m.pending = &store.SavePayload{
		FormData:      snapshot,
		ActiveSection: activeSection,
		SavedAt:       time.Now().UTC(),
	}
	if m.draft != nil {
		m.draft.FormData = snapshot
		m.draft.ActiveSection = activeSection
	}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.quiet, m.firePending)
}

func (m *Manager) firePending() {
	m.mu.Lock()
	payload := m.pending
	m.pending = nil
	suspended := m.suspended || m.closed
	m.mu.Unlock()
	if payload == nil || suspended {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	m.save(ctx, *payload)
}

// SaveNow flushes any pending payload immediately, bypassing the timer. The
// submission pipeline calls this before promoting the draft.
func (m *Manager) SaveNow(ctx context.Context) error {
	m.mu.Lock()
	payload := m.pending
	m.pending = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	if payload == nil {
		return nil
	}
	return m.save(ctx, *payload)
}

// save persists one payload: durable first, local fallback when the durable
// store is unreachable. Only failure of both tiers is a user-visible error.
func (m *Manager) save(ctx context.Context, payload store.SavePayload) error {
	m.setStatus(StatusSaving, nil)

	draft, err := m.EnsureDraft(ctx)
	if err == nil {
		err = m.records.UpdateDraft(ctx, draft.ID, payload)
		if err == nil {
			m.setStatus(StatusSaved, nil)
			m.touchSaved(payload)
			metrics.AutosaveTotal.WithLabelValues("durable").Inc()
			if m.fb != nil {
				_ = m.fb.Clear(ctx, draft.ID)
			}
			m.sink.Record(ctx, events.Event{
				Type:       events.TypeDraftSaved,
				OwnerEmail: m.ownerEmail,
				RecordID:   draft.ID,
			})
			return nil
		}
	}

	// Durable tier failed; the same payload shape goes to the fallback.
	draftID := m.draftID()
	if m.fb != nil {
		if fbErr := m.fb.SaveSnapshot(ctx, draftID, payload); fbErr == nil {
			m.setStatus(StatusSaved, stderrors.NewFallbackUsedError(draftID))
			m.touchSaved(payload)
			metrics.AutosaveTotal.WithLabelValues("fallback").Inc()
			metrics.AutosaveFallbackHits.Inc()
			m.logger.Warn("autosave landed in fallback store", map[string]interface{}{
				"draftId": draftID,
				"error":   errString(err),
			})
			m.sink.Record(ctx, events.Event{
				Type:       events.TypeDraftFallbackSave,
				OwnerEmail: m.ownerEmail,
				RecordID:   draftID,
			})
			return nil
		}
	}

	stdErr := stderrors.NewFallbackFailedError(draftID, err)
	m.setStatus(StatusError, stdErr)
	metrics.AutosaveTotal.WithLabelValues("error").Inc()
	m.logger.Error("autosave failed in both tiers", map[string]interface{}{
		"draftId": draftID,
		"error":   errString(err),
	})
	return stdErr
}

// Suspend stops autosave during submission or after the application has been
// submitted (view mode). Pending edits are dropped deliberately.
func (m *Manager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	m.pending = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Resume re-enables autosave after a failed submission attempt.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.suspended = false
	}
}

// Close cancels the pending timer on unmount or section teardown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pending = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStatus(s Status, err *stderrors.StandardError) {
	m.mu.Lock()
	m.status = s
	if err != nil || s == StatusSaved || s == StatusSaving {
		m.lastErr = err
	}
	m.mu.Unlock()
}

func (m *Manager) touchSaved(payload store.SavePayload) {
	m.mu.Lock()
	if m.draft != nil {
		m.draft.FormData = payload.FormData
		m.draft.ActiveSection = payload.ActiveSection
		m.draft.LastSavedAt = payload.SavedAt
	}
	m.mu.Unlock()
}

func (m *Manager) draftID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return models.TempDraftID(m.ownerID, time.Now().UTC())
	}
	return m.draft.ID
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
