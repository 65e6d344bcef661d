// cmd/admissions-server/handlers_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-service/internal/common/config"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/events"
	"admissions-service/internal/fallback"
	"admissions-service/internal/models"
	"admissions-service/internal/notify"
	"admissions-service/internal/store"
	"admissions-service/internal/submission"
)

// ==========================================================================
// Fakes
// ==========================================================================

type fakeRecords struct {
	mu            sync.Mutex
	drafts        map[string]*models.Draft
	created       *models.Application
	persistedDocs *models.DocumentSet
}

func (f *fakeRecords) GetDraftByOwnerEmail(ctx context.Context, email string) (*models.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drafts[email]; ok {
		return d, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRecords) CreateDraft(ctx context.Context, draft *models.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drafts == nil {
		f.drafts = make(map[string]*models.Draft)
	}
	f.drafts[draft.OwnerEmail] = draft
	return nil
}

func (f *fakeRecords) UpdateDraft(ctx context.Context, draftID string, payload store.SavePayload) error {
	return nil
}

func (f *fakeRecords) UpdateDraftDocuments(ctx context.Context, draftID string, docs models.DocumentSet) error {
	return nil
}

func (f *fakeRecords) PromoteDraftToSubmitted(ctx context.Context, draftID string, submittedAt time.Time) (*models.Application, error) {
	return nil, store.ErrNotFound
}

func (f *fakeRecords) CreateSubmitted(ctx context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = app
	return nil
}

func (f *fakeRecords) GetSubmittedByEmail(ctx context.Context, email string) (*models.Application, error) {
	return nil, store.ErrNotFound
}

func (f *fakeRecords) UpdateSubmittedFields(ctx context.Context, appID string, fields map[string]string) error {
	return nil
}

func (f *fakeRecords) UpdateSubmittedDocuments(ctx context.Context, appID string, docs models.DocumentSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistedDocs = &docs
	return nil
}

func (f *fakeRecords) persisted() *models.DocumentSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistedDocs
}

func (f *fakeRecords) submittedApp() *models.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

type fakeBlobs struct {
	mu   sync.Mutex
	puts []string
}

func (f *fakeBlobs) PutObject(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, path)
	return fmt.Sprintf("http://blobs.local/admissions/%s", path), nil
}

func (f *fakeBlobs) DeleteObject(ctx context.Context, url string) error { return nil }

func (f *fakeBlobs) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// ==========================================================================
// Helpers
// ==========================================================================

func newTestAPI(t *testing.T, records *fakeRecords, blobs *fakeBlobs) (*http.ServeMux, *sessionRegistry) {
	t.Helper()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := newSessionRegistry(sessionDeps{
		records:   records,
		blobs:     blobs,
		fallback:  fallback.New(client, time.Hour),
		sink:      events.Nop{},
		notifier:  notify.New(nil, nil, log, false),
		logger:    log,
		autosave:  config.AutosaveConfig{QuietPeriod: time.Second},
		documents: config.DocumentsConfig{},
		pipeline: submission.Options{
			ProgressTick:     10 * time.Millisecond,
			FinalizeDelay:    5 * time.Millisecond,
			MinSavingsReport: 0.10,
		},
	})
	t.Cleanup(registry.closeAll)

	mux := http.NewServeMux()
	registerRoutes(mux, registry, log)
	return mux, registry
}

func validSubmitForm() map[string]string {
	return map[string]string{
		"firstName":            "Amina",
		"lastName":             "Diallo",
		"email":                "amina@example.com",
		"phone":                "+221771234567",
		"program":              "MSc Data Science",
		"intake":               "2026-09",
		"studyCountry":         "France",
		"highestQualification": "BSc Computer Science",
		"graduationYear":       "2024",
	}
}

func ownerRequest(method, target string, body *bytes.Buffer) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("X-Owner-Email", "amina@example.com")
	req.Header.Set("X-Owner-Id", "u1")
	return req
}

// ==========================================================================
// Submission endpoint
// ==========================================================================

func TestSubmit_MultipartCarriesPendingFiles(t *testing.T) {
	records := &fakeRecords{}
	blobs := &fakeBlobs{}
	mux, _ := newTestAPI(t, records, blobs)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	form, err := json.Marshal(validSubmitForm())
	require.NoError(t, err)
	require.NoError(t, w.WriteField("formData", string(form)))
	part, err := w.CreateFormFile("academic", "transcript.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := ownerRequest(http.MethodPost, "/api/v1/submission", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, records.submittedApp())
	assert.Equal(t, "Amina", records.submittedApp().FormData["firstName"])

	// The file rode along with the submission and uploaded in the background.
	assert.Equal(t, 1, blobs.putCount())
	docs := records.persisted()
	require.NotNil(t, docs, "uploaded metadata lands on the application")
	require.Len(t, docs.AcademicDocs, 1)
	assert.Equal(t, "transcript.pdf", docs.AcademicDocs[0].FileName)
}

func TestSubmit_JSONBodyWithoutFiles(t *testing.T) {
	records := &fakeRecords{}
	blobs := &fakeBlobs{}
	mux, _ := newTestAPI(t, records, blobs)

	payload, err := json.Marshal(map[string]interface{}{"formData": validSubmitForm()})
	require.NoError(t, err)

	req := ownerRequest(http.MethodPost, "/api/v1/submission", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, records.submittedApp())
	assert.Zero(t, blobs.putCount(), "a file-less submit never touches blob storage")
}

func TestSubmit_MultipartUnknownSlotIgnored(t *testing.T) {
	records := &fakeRecords{}
	blobs := &fakeBlobs{}
	mux, _ := newTestAPI(t, records, blobs)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	form, err := json.Marshal(validSubmitForm())
	require.NoError(t, err)
	require.NoError(t, w.WriteField("formData", string(form)))
	part, err := w.CreateFormFile("scratch", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a slot"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := ownerRequest(http.MethodPost, "/api/v1/submission", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, blobs.putCount(), "parts outside the known slots are dropped")
}

func TestSubmit_MissingIdentityHeaders(t *testing.T) {
	mux, _ := newTestAPI(t, &fakeRecords{}, &fakeBlobs{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submission", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
