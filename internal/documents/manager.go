// Package documents manages the per-document-type slots of a draft or
// submitted application: single-slot replace semantics for passport photo and
// identification document, a capped ordered collection for academic
// documents. Metadata is persisted immediately, never debounced.
package documents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"admissions-service/internal/blob"
	"admissions-service/internal/common/config"
	"admissions-service/internal/common/errors"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/common/metrics"
	"admissions-service/internal/events"
	"admissions-service/internal/models"
	"admissions-service/internal/store"
)

// DefaultMaxFileBytes caps a single document file when no limit is configured.
const DefaultMaxFileBytes int64 = 25 << 20

// Manager owns the optimistic local document state for one record and
// mediates every upload/delete against the blob store and record store.
// Operations on the same slot are serialized; different slots do not
// interfere.
type Manager struct {
	records store.RecordStore
	blobs   blob.Store
	sink    events.Sink
	logger  logger.Logger

	mu         sync.Mutex
	ownerEmail string
	recordID   string
	submitted  bool
	docs       models.DocumentSet
	busy       map[models.Slot]bool

	maxFileBytes int64
	academicCap  int
}

// NewManager builds a slot manager over the record's current document set.
// submitted selects whether metadata writes target the draft or the
// application row.
func NewManager(records store.RecordStore, blobs blob.Store, sink events.Sink, log logger.Logger,
	ownerEmail, recordID string, docs models.DocumentSet, submitted bool,
	limits config.DocumentsConfig) *Manager {
	if sink == nil {
		sink = events.Nop{}
	}
	if limits.AcademicMaxCount <= 0 {
		limits.AcademicMaxCount = models.AcademicMaxCount
	}
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = DefaultMaxFileBytes
	}
	return &Manager{
		records:      records,
		blobs:        blobs,
		sink:         sink,
		logger:       log.WithFields(map[string]interface{}{"component": "document-slots", "recordId": recordID}),
		ownerEmail:   ownerEmail,
		recordID:     recordID,
		submitted:    submitted,
		docs:         cloneSet(docs),
		busy:         make(map[models.Slot]bool),
		maxFileBytes: limits.MaxFileBytes,
		academicCap:  limits.AcademicMaxCount,
	}
}

// SetRecord repoints the manager after draft reconciliation or promotion.
func (m *Manager) SetRecord(recordID string, submitted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordID = recordID
	m.submitted = submitted
}

// Documents returns a copy of the current local state.
func (m *Manager) Documents() models.DocumentSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSet(m.docs)
}

// Remaining reports how many more academic documents would be accepted.
func (m *Manager) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.academicCap - len(m.docs.AcademicDocs)
}

// Busy reports whether an operation is in flight for the slot.
func (m *Manager) Busy(slot models.Slot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy[slot]
}

// Upload stores the files and persists the updated metadata. Single-slot
// types replace the existing document; the academic slot appends. Capacity
// violations are rejected before any network call, carrying the remaining
// count.
func (m *Manager) Upload(ctx context.Context, slot models.Slot, files []models.DocumentFile) ([]models.DocumentMeta, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("unknown document slot %q", slot)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files given for slot %s", slot)
	}

	m.mu.Lock()
	if m.busy[slot] {
		m.mu.Unlock()
		metrics.DocumentOperations.WithLabelValues(string(slot), "upload", "rejected").Inc()
		return nil, errors.NewSlotBusyError(string(slot))
	}
	if slot.IsSingle() && len(files) > 1 {
		m.mu.Unlock()
		return nil, fmt.Errorf("slot %s accepts a single file", slot)
	}
	if slot == models.SlotAcademic {
		remaining := m.academicCap - len(m.docs.AcademicDocs)
		if len(files) > remaining {
			m.mu.Unlock()
			metrics.DocumentOperations.WithLabelValues(string(slot), "upload", "rejected").Inc()
			return nil, errors.NewCapacityExceededError(string(slot), remaining)
		}
	}
	for _, f := range files {
		if int64(len(f.Data)) > m.maxFileBytes {
			m.mu.Unlock()
			return nil, &errors.StandardError{
				Code:      errors.ErrCodeFileTooLarge,
				Message:   fmt.Sprintf("%q is too large; the limit is %d MB", f.Name, m.maxFileBytes>>20),
				Retryable: false,
				Timestamp: time.Now().UTC(),
			}
		}
	}
	m.busy[slot] = true
	recordID := m.recordID
	m.mu.Unlock()

	defer m.release(slot)

	uploaded := make([]models.DocumentMeta, 0, len(files))
	for _, f := range files {
		path := fmt.Sprintf("%s/%s/%s_%s", recordID, slot, uuid.New().String(), f.Name)
		url, err := m.blobs.PutObject(ctx, path, f.Data, f.ContentType)
		if err != nil {
			m.rollbackBlobs(ctx, uploaded)
			metrics.DocumentOperations.WithLabelValues(string(slot), "upload", "error").Inc()
			return nil, errors.NewUploadFailedError(f.Name, err)
		}
		metrics.DocumentUploadBytes.Add(float64(len(f.Data)))
		uploaded = append(uploaded, models.DocumentMeta{
			FileName:      f.Name,
			Size:          int64(len(f.Data)),
			URL:           url,
			UploadedAt:    time.Now().UTC(),
			OwnerRecordID: recordID,
		})
	}

	// Optimistic local mutation, then immediate metadata persistence.
	m.mu.Lock()
	var superseded *models.DocumentMeta
	switch slot {
	case models.SlotPassportPhoto:
		superseded = m.docs.PassportPhoto
		m.docs.PassportPhoto = &uploaded[0]
	case models.SlotIDDocument:
		superseded = m.docs.IDDocument
		m.docs.IDDocument = &uploaded[0]
	case models.SlotAcademic:
		m.docs.AcademicDocs = append(m.docs.AcademicDocs, uploaded...)
	}
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		// Undo this slot only: a concurrent operation on another slot
		// keeps its outcome. No partial append survives either.
		m.mu.Lock()
		switch slot {
		case models.SlotPassportPhoto:
			m.docs.PassportPhoto = superseded
		case models.SlotIDDocument:
			m.docs.IDDocument = superseded
		case models.SlotAcademic:
			m.docs.AcademicDocs = m.docs.AcademicDocs[:len(m.docs.AcademicDocs)-len(uploaded)]
		}
		m.mu.Unlock()
		m.rollbackBlobs(ctx, uploaded)
		metrics.DocumentOperations.WithLabelValues(string(slot), "upload", "error").Inc()
		return nil, errors.NewUploadFailedError(files[0].Name, err)
	}

	// The replaced blob is superseded; removing it is best-effort.
	if superseded != nil {
		if err := m.blobs.DeleteObject(ctx, superseded.URL); err != nil {
			m.logger.Warn("superseded blob cleanup failed", map[string]interface{}{
				"slot":  slot,
				"url":   superseded.URL,
				"error": err.Error(),
			})
		}
	}

	metrics.DocumentOperations.WithLabelValues(string(slot), "upload", "success").Inc()
	m.sink.Record(ctx, events.Event{
		Type:       events.TypeDocumentUploaded,
		OwnerEmail: m.ownerEmail,
		RecordID:   recordID,
		Metadata:   map[string]interface{}{"slot": string(slot), "count": len(uploaded)},
	})
	m.logger.Info("documents uploaded", map[string]interface{}{
		"slot":  slot,
		"count": len(uploaded),
	})
	return uploaded, nil
}

// Remove deletes the document at the slot. The academic slot requires an
// index into the ordered collection; single slots ignore it.
func (m *Manager) Remove(ctx context.Context, slot models.Slot, index int) error {
	if !slot.Valid() {
		return fmt.Errorf("unknown document slot %q", slot)
	}

	m.mu.Lock()
	if m.busy[slot] {
		m.mu.Unlock()
		metrics.DocumentOperations.WithLabelValues(string(slot), "remove", "rejected").Inc()
		return errors.NewSlotBusyError(string(slot))
	}

	var removed *models.DocumentMeta
	switch slot {
	case models.SlotPassportPhoto:
		removed = m.docs.PassportPhoto
		m.docs.PassportPhoto = nil
	case models.SlotIDDocument:
		removed = m.docs.IDDocument
		m.docs.IDDocument = nil
	case models.SlotAcademic:
		if index < 0 || index >= len(m.docs.AcademicDocs) {
			m.mu.Unlock()
			return fmt.Errorf("academic document index %d out of range", index)
		}
		doc := m.docs.AcademicDocs[index]
		removed = &doc
		m.docs.AcademicDocs = append(m.docs.AcademicDocs[:index:index], m.docs.AcademicDocs[index+1:]...)
	}
	if removed == nil {
		m.mu.Unlock()
		return fmt.Errorf("no document in slot %s", slot)
	}
	m.busy[slot] = true
	recordID := m.recordID
	m.mu.Unlock()

	defer m.release(slot)

	if err := m.persist(ctx); err != nil {
		// No phantom removal: the document comes back, and only this
		// slot is touched.
		m.mu.Lock()
		switch slot {
		case models.SlotPassportPhoto:
			m.docs.PassportPhoto = removed
		case models.SlotIDDocument:
			m.docs.IDDocument = removed
		case models.SlotAcademic:
			docs := m.docs.AcademicDocs
			restored := make([]models.DocumentMeta, 0, len(docs)+1)
			restored = append(restored, docs[:index]...)
			restored = append(restored, *removed)
			restored = append(restored, docs[index:]...)
			m.docs.AcademicDocs = restored
		}
		m.mu.Unlock()
		metrics.DocumentOperations.WithLabelValues(string(slot), "remove", "error").Inc()
		return &errors.StandardError{
			Code:      errors.ErrCodeRemoveFailed,
			Message:   fmt.Sprintf("Removing %q failed, please try again", removed.FileName),
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	if err := m.blobs.DeleteObject(ctx, removed.URL); err != nil {
		m.logger.Warn("blob delete failed after metadata removal", map[string]interface{}{
			"slot":  slot,
			"url":   removed.URL,
			"error": err.Error(),
		})
	}

	metrics.DocumentOperations.WithLabelValues(string(slot), "remove", "success").Inc()
	m.sink.Record(ctx, events.Event{
		Type:       events.TypeDocumentRemoved,
		OwnerEmail: m.ownerEmail,
		RecordID:   recordID,
		Metadata:   map[string]interface{}{"slot": string(slot), "file": removed.FileName},
	})
	m.logger.Info("document removed", map[string]interface{}{
		"slot": slot,
		"file": removed.FileName,
	})
	return nil
}

// persist writes a snapshot taken under the lock at call time, so a write
// racing another slot's operation never pushes stale state to the store.
func (m *Manager) persist(ctx context.Context) error {
	m.mu.Lock()
	recordID, submitted := m.recordID, m.submitted
	docs := cloneSet(m.docs)
	m.mu.Unlock()
	if submitted {
		return m.records.UpdateSubmittedDocuments(ctx, recordID, docs)
	}
	return m.records.UpdateDraftDocuments(ctx, recordID, docs)
}

func (m *Manager) release(slot models.Slot) {
	m.mu.Lock()
	delete(m.busy, slot)
	m.mu.Unlock()
}

func (m *Manager) rollbackBlobs(ctx context.Context, uploaded []models.DocumentMeta) {
	for _, doc := range uploaded {
		if err := m.blobs.DeleteObject(ctx, doc.URL); err != nil {
			m.logger.Warn("orphan blob cleanup failed", map[string]interface{}{
				"url":   doc.URL,
				"error": err.Error(),
			})
		}
	}
}

func cloneSet(docs models.DocumentSet) models.DocumentSet {
	out := models.DocumentSet{}
	if docs.PassportPhoto != nil {
		photo := *docs.PassportPhoto
		out.PassportPhoto = &photo
	}
	if docs.IDDocument != nil {
		id := *docs.IDDocument
		out.IDDocument = &id
	}
	if len(docs.AcademicDocs) > 0 {
		out.AcademicDocs = append([]models.DocumentMeta(nil), docs.AcademicDocs...)
	}
	return out
}
