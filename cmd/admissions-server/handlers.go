// cmd/admissions-server/handlers.go
package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	stderrors "admissions-service/internal/common/errors"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/identity"
	"admissions-service/internal/models"
	"admissions-service/internal/submission"
)

// maxUploadBytes bounds a whole multipart upload request.
const maxUploadBytes = 130 << 20

func registerRoutes(mux *http.ServeMux, registry *sessionRegistry, log logger.Logger) {
	h := &apiHandler{registry: registry, logger: log.WithFields(map[string]interface{}{"component": "http-api"})}

	mux.HandleFunc("POST /api/v1/draft/hydrate", h.hydrateDraft)
	mux.HandleFunc("GET /api/v1/draft", h.getDraft)
	mux.HandleFunc("POST /api/v1/draft/edits", h.queueEdits)
	mux.HandleFunc("POST /api/v1/draft/flush", h.flushDraft)

	mux.HandleFunc("GET /api/v1/documents", h.getDocuments)
	mux.HandleFunc("POST /api/v1/documents/upload", h.uploadDocuments)
	mux.HandleFunc("POST /api/v1/documents/remove", h.removeDocument)

	mux.HandleFunc("POST /api/v1/submission", h.submit)
	mux.HandleFunc("POST /api/v1/submission/cancel", h.cancelSubmission)
	mux.HandleFunc("GET /api/v1/submission/progress", h.submissionProgress)
}

type apiHandler struct {
	registry *sessionRegistry
	logger   logger.Logger
}

// owner pulls the authenticated identity from the request. The gateway in
// front of this service resolves tokens into these headers.
func (h *apiHandler) owner(w http.ResponseWriter, r *http.Request) (email, uid string, ok bool) {
	email = r.Header.Get("X-Owner-Email")
	uid = r.Header.Get("X-Owner-Id")
	if email == "" || uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing owner identity"})
		return "", "", false
	}
	return email, uid, true
}

func (h *apiHandler) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	email, uid, ok := h.owner(w, r)
	if !ok {
		return nil, false
	}
	return h.registry.get(r.Context(), email, uid, nil), true
}

// ==========================================================================
// Draft
// ==========================================================================

func (h *apiHandler) hydrateDraft(w http.ResponseWriter, r *http.Request) {
	email, uid, ok := h.owner(w, r)
	if !ok {
		return
	}

	var profile identity.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid profile body"})
		return
	}

	s := h.registry.get(r.Context(), email, uid, &profile)
	h.writeDraftState(w, s)
}

func (h *apiHandler) getDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeDraftState(w, s)
}

func (h *apiHandler) writeDraftState(w http.ResponseWriter, s *session) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"draft":     s.drafts.Draft(),
		"status":    s.drafts.Status(),
		"lastError": s.drafts.LastError(),
	})
}

type editsRequest struct {
	FormData      map[string]string `json:"formData"`
	ActiveSection string            `json:"activeSection"`
}

func (h *apiHandler) queueEdits(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req editsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid edits body"})
		return
	}
	s.drafts.QueueSave(req.FormData, req.ActiveSection)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": s.drafts.Status()})
}

func (h *apiHandler) flushDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.drafts.SaveNow(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDraftState(w, s)
}

// ==========================================================================
// Documents
// ==========================================================================

func (h *apiHandler) getDocuments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": s.docs.Documents(),
		"remaining": s.docs.Remaining(),
	})
}

func (h *apiHandler) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	slot, ok := slotFromString(r.FormValue("slot"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown document slot"})
		return
	}

	files, err := filesFromParts(r.MultipartForm.File["files"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable file part"})
		return
	}
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no files in request"})
		return
	}

	// Uploads need a durable record id for the blob paths and metadata row.
	if err := s.ensureRecord(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	metas, err := s.docs.Upload(r.Context(), slot, files)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploaded":  metas,
		"documents": s.docs.Documents(),
		"remaining": s.docs.Remaining(),
	})
}

type removeRequest struct {
	Slot  string `json:"slot"`
	Index int    `json:"index"`
}

func (h *apiHandler) removeDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid remove body"})
		return
	}
	slot, ok := slotFromString(req.Slot)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown document slot"})
		return
	}
	if err := s.docs.Remove(r.Context(), slot, req.Index); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": s.docs.Documents(),
		"remaining": s.docs.Remaining(),
	})
}

// ==========================================================================
// Submission
// ==========================================================================

type submitBody struct {
	FormData map[string]string `json:"formData"`
}

// submit takes either a JSON body carrying the final form data, or a
// multipart body that additionally carries files not yet uploaded: the form
// data as JSON in a "formData" field, file parts keyed by slot name. Files
// sent here ride along with the submission and upload in the background.
func (h *apiHandler) submit(w http.ResponseWriter, r *http.Request) {
	email, uid, ok := h.owner(w, r)
	if !ok {
		return
	}
	s := h.registry.get(r.Context(), email, uid, nil)

	req := submission.SubmitRequest{OwnerEmail: email, OwnerID: uid}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
			return
		}
		if raw := r.FormValue("formData"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.FormData); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid formData field"})
				return
			}
		}
		for _, slot := range []models.Slot{models.SlotPassportPhoto, models.SlotIDDocument, models.SlotAcademic} {
			parts := r.MultipartForm.File[string(slot)]
			if len(parts) == 0 {
				continue
			}
			files, err := filesFromParts(parts)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable file part"})
				return
			}
			if req.PendingFiles == nil {
				req.PendingFiles = make(map[models.Slot][]models.DocumentFile)
			}
			req.PendingFiles[slot] = files
		}
	} else {
		var body submitBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid submission body"})
			return
		}
		req.FormData = body.FormData
	}

	result, err := s.pipeline.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s.markSubmitted()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application":   result.Application,
		"promoted":      result.Promoted,
		"savingsNotice": result.SavingsNotice,
	})
}

func (h *apiHandler) cancelSubmission(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.pipeline.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) submissionProgress(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Tracker().Snapshot())
}

// ==========================================================================
// Error mapping
// ==========================================================================

func (h *apiHandler) writeError(w http.ResponseWriter, err error) {
	var stdErr *stderrors.StandardError
	if !errors.As(err, &stdErr) {
		h.logger.Error("unclassified handler error", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case stderrors.ErrCodeValidationFailed:
		status = http.StatusUnprocessableEntity
	case stderrors.ErrCodeCapacityExceeded,
		stderrors.ErrCodeSlotBusy,
		stderrors.ErrCodeAlreadySubmitted,
		stderrors.ErrCodeSubmissionActive:
		status = http.StatusConflict
	case stderrors.ErrCodeFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case stderrors.ErrCodeDraftNotFound:
		status = http.StatusNotFound
	case stderrors.ErrCodeSaveFailed,
		stderrors.ErrCodeUploadFailed,
		stderrors.ErrCodePromotionFailed,
		stderrors.ErrCodeCreateFailed,
		stderrors.ErrCodeFallbackFailed:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]interface{}{
		"code":      stdErr.Code,
		"message":   stdErr.Message,
		"retryable": stdErr.Retryable,
		"metadata":  stdErr.Metadata,
	})
}

// filesFromParts reads the payload of each multipart file part into memory.
func filesFromParts(parts []*multipart.FileHeader) ([]models.DocumentFile, error) {
	var files []models.DocumentFile
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, models.DocumentFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
