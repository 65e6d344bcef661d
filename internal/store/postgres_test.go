// internal/store/postgres_test.go
package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"admissions-service/internal/common/logger"
	"admissions-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func draftColumns() []string {
	return []string{"id", "owner_email", "owner_id", "form_data", "active_section",
		"status", "documents", "last_saved_at", "created_at", "updated_at"}
}

func testDraftRows(t *testing.T, id, email string, status models.DraftStatus) *sqlmock.Rows {
	t.Helper()
	now := time.Now().UTC()
	form, err := json.Marshal(map[string]string{"firstName": "Amina"})
	require.NoError(t, err)
	docs, err := json.Marshal(models.DocumentSet{})
	require.NoError(t, err)
	return sqlmock.NewRows(draftColumns()).
		AddRow(id, email, "uid-001", form, "personal", status, docs, now, now, now)
}

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, logger.NewTestLogger(t)), mock
}

// ==========================
// Draft CRUD
// ==========================

func TestGetDraftByOwnerEmail_Found(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT (.+) FROM drafts").
		WithArgs("amina@example.com").
		WillReturnRows(testDraftRows(t, "draft-001", "amina@example.com", models.StatusDraft))

	draft, err := s.GetDraftByOwnerEmail(context.Background(), "amina@example.com")
	require.NoError(t, err)
	assert.Equal(t, "draft-001", draft.ID)
	assert.Equal(t, "Amina", draft.FormData["firstName"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDraftByOwnerEmail_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT (.+) FROM drafts").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(draftColumns()))

	_, err := s.GetDraftByOwnerEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDraft_Success(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO drafts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	draft := &models.Draft{
		ID:         "draft-001",
		OwnerEmail: "amina@example.com",
		OwnerID:    "uid-001",
		FormData:   map[string]string{},
	}
	err := s.CreateDraft(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, draft.Status)
	assert.False(t, draft.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDraft_ConflictMeansExistingWinner(t *testing.T) {
	s, mock := newTestStore(t)

	// ON CONFLICT DO NOTHING reports zero rows affected.
	mock.ExpectExec("INSERT INTO drafts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.CreateDraft(context.Background(), &models.Draft{
		ID:         "draft-002",
		OwnerEmail: "amina@example.com",
		FormData:   map[string]string{},
	})
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDraft_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE drafts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateDraft(context.Background(), "gone", SavePayload{
		FormData:      map[string]string{"firstName": "Amina"},
		ActiveSection: "personal",
		SavedAt:       time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Promotion
// ==========================

func TestPromoteDraftToSubmitted_Success(t *testing.T) {
	s, mock := newTestStore(t)
	submittedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM drafts WHERE id = (.+) FOR UPDATE").
		WithArgs("draft-001").
		WillReturnRows(testDraftRows(t, "draft-001", "amina@example.com", models.StatusDraft))
	mock.ExpectExec("INSERT INTO applications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE drafts SET status = 'promoted'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app, err := s.PromoteDraftToSubmitted(context.Background(), "draft-001", submittedAt)
	require.NoError(t, err)
	assert.Equal(t, "draft-001", app.ID)
	assert.Equal(t, models.StatusApplied, app.Status)
	assert.Equal(t, submittedAt, app.SubmittedAt)
	assert.Equal(t, "Amina", app.FormData["firstName"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteDraftToSubmitted_AlreadyPromoted(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM drafts WHERE id = (.+) FOR UPDATE").
		WithArgs("draft-001").
		WillReturnRows(testDraftRows(t, "draft-001", "amina@example.com", "promoted"))
	mock.ExpectRollback()

	_, err := s.PromoteDraftToSubmitted(context.Background(), "draft-001", time.Now().UTC())
	assert.ErrorIs(t, err, ErrAlreadyPromoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Submitted applications
// ==========================

func TestUpdateSubmittedDocuments(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE applications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	docs := models.DocumentSet{
		AcademicDocs: []models.DocumentMeta{{FileName: "transcript.pdf", Size: 1024}},
	}
	err := s.UpdateSubmittedDocuments(context.Background(), "app-001", docs)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
