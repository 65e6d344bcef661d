// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"admissions-service/internal/common/logger"
	"admissions-service/internal/models"
)

// PostgresStore implements RecordStore on top of database/sql.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "record-store"}),
	}
}

func (s *PostgresStore) GetDraftByOwnerEmail(ctx context.Context, email string) (*models.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_email, owner_id, form_data, active_section, status, documents,
		       last_saved_at, created_at, updated_at
		FROM drafts
		WHERE owner_email = $1 AND status = 'draft'`,
		email,
	)
	return scanDraft(row)
}

func (s *PostgresStore) CreateDraft(ctx context.Context, draft *models.Draft) error {
	formJSON, err := json.Marshal(draft.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	docsJSON, err := json.Marshal(draft.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}

	now := time.Now().UTC()
	draft.Status = models.StatusDraft
	draft.CreatedAt = now
	draft.UpdatedAt = now

	// The partial unique index on (owner_email) WHERE status = 'draft' is what
	// enforces the at-most-one-draft invariant under concurrent callers.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, owner_email, owner_id, form_data, active_section, status,
		                    documents, last_saved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (owner_email) WHERE status = 'draft' DO NOTHING`,
		draft.ID, draft.OwnerEmail, draft.OwnerID, formJSON, draft.ActiveSection,
		draft.Status, docsJSON, draft.LastSavedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("draft for %s: %w", draft.OwnerEmail, ErrDraftExists)
	}
	return nil
}

// IsAlreadyExists reports whether a CreateDraft failure means another caller
// won the race; the caller should re-read and converge on the winner's id.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrDraftExists)
}

func (s *PostgresStore) UpdateDraft(ctx context.Context, draftID string, payload SavePayload) error {
	formJSON, err := json.Marshal(payload.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts
		SET form_data = $1, active_section = $2, last_saved_at = $3, updated_at = $4
		WHERE id = $5 AND status = 'draft'`,
		formJSON, payload.ActiveSection, payload.SavedAt, time.Now().UTC(), draftID,
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return requireRow(res, draftID)
}

func (s *PostgresStore) UpdateDraftDocuments(ctx context.Context, draftID string, docs models.DocumentSet) error {
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts
		SET documents = $1, updated_at = $2
		WHERE id = $3 AND status = 'draft'`,
		docsJSON, time.Now().UTC(), draftID,
	)
	if err != nil {
		return fmt.Errorf("update draft documents: %w", err)
	}
	return requireRow(res, draftID)
}

func (s *PostgresStore) PromoteDraftToSubmitted(ctx context.Context, draftID string, submittedAt time.Time) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin promotion: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, owner_email, owner_id, form_data, active_section, status, documents,
		       last_saved_at, created_at, updated_at
		FROM drafts WHERE id = $1 FOR UPDATE`,
		draftID,
	)
	draft, err := scanDraft(row)
	if err != nil {
		return nil, err
	}
	if draft.Status != models.StatusDraft {
		return nil, ErrAlreadyPromoted
	}

	app := &models.Application{
		ID:          draft.ID,
		OwnerEmail:  draft.OwnerEmail,
		OwnerID:     draft.OwnerID,
		FormData:    draft.FormData,
		Status:      models.StatusApplied,
		Documents:   draft.Documents,
		SubmittedAt: submittedAt,
		CreatedAt:   draft.CreatedAt,
		UpdatedAt:   submittedAt,
	}
	formJSON, err := json.Marshal(app.FormData)
	if err != nil {
		return nil, fmt.Errorf("marshal form data: %w", err)
	}
	docsJSON, err := json.Marshal(app.Documents)
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO applications (id, owner_email, owner_id, form_data, status,
		                          documents, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		app.ID, app.OwnerEmail, app.OwnerID, formJSON, app.Status, docsJSON,
		app.SubmittedAt, app.CreatedAt, app.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE drafts SET status = 'promoted', updated_at = $1 WHERE id = $2`,
		submittedAt, draftID,
	); err != nil {
		return nil, fmt.Errorf("retire draft: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit promotion: %w", err)
	}

	s.logger.Info("draft promoted", map[string]interface{}{
		"draftId": draftID,
		"status":  app.Status,
	})
	return app, nil
}

func (s *PostgresStore) CreateSubmitted(ctx context.Context, app *models.Application) error {
	formJSON, err := json.Marshal(app.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	docsJSON, err := json.Marshal(app.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, owner_email, owner_id, form_data, status,
		                          documents, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		app.ID, app.OwnerEmail, app.OwnerID, formJSON, app.Status, docsJSON,
		app.SubmittedAt, now,
	); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubmittedByEmail(ctx context.Context, email string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_email, owner_id, form_data, status, documents,
		       submitted_at, created_at, updated_at
		FROM applications WHERE owner_email = $1
		ORDER BY submitted_at DESC LIMIT 1`,
		email,
	)

	var (
		app      models.Application
		formJSON []byte
		docsJSON []byte
	)
	err := row.Scan(&app.ID, &app.OwnerEmail, &app.OwnerID, &formJSON, &app.Status,
		&docsJSON, &app.SubmittedAt, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select application: %w", err)
	}
	if err := json.Unmarshal(formJSON, &app.FormData); err != nil {
		return nil, fmt.Errorf("unmarshal form data: %w", err)
	}
	if err := json.Unmarshal(docsJSON, &app.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	return &app, nil
}

func (s *PostgresStore) UpdateSubmittedFields(ctx context.Context, appID string, fields map[string]string) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET form_data = form_data || $1, updated_at = $2
		WHERE id = $3`,
		fieldsJSON, time.Now().UTC(), appID,
	)
	if err != nil {
		return fmt.Errorf("update application fields: %w", err)
	}
	return requireRow(res, appID)
}

func (s *PostgresStore) UpdateSubmittedDocuments(ctx context.Context, appID string, docs models.DocumentSet) error {
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET documents = $1, updated_at = $2
		WHERE id = $3`,
		docsJSON, time.Now().UTC(), appID,
	)
	if err != nil {
		return fmt.Errorf("update application documents: %w", err)
	}
	return requireRow(res, appID)
}

// scanner is satisfied by *sql.Row.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(row scanner) (*models.Draft, error) {
	var (
		draft    models.Draft
		formJSON []byte
		docsJSON []byte
	)
	err := row.Scan(&draft.ID, &draft.OwnerEmail, &draft.OwnerID, &formJSON,
		&draft.ActiveSection, &draft.Status, &docsJSON, &draft.LastSavedAt,
		&draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select draft: %w", err)
	}
	if err := json.Unmarshal(formJSON, &draft.FormData); err != nil {
		return nil, fmt.Errorf("unmarshal form data: %w", err)
	}
	if err := json.Unmarshal(docsJSON, &draft.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	return &draft, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}
