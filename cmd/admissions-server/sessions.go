// cmd/admissions-server/sessions.go
package main

import (
	"context"
	"sync"

	"admissions-service/internal/blob"
	"admissions-service/internal/common/config"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/documents"
	"admissions-service/internal/draft"
	"admissions-service/internal/events"
	"admissions-service/internal/fallback"
	"admissions-service/internal/identity"
	"admissions-service/internal/models"
	"admissions-service/internal/notify"
	"admissions-service/internal/progress"
	"admissions-service/internal/store"
	"admissions-service/internal/submission"
)

type sessionDeps struct {
	records   store.RecordStore
	blobs     blob.Store
	fallback  *fallback.Store
	sink      events.Sink
	notifier  *notify.Notifier
	identity  identity.Provider
	logger    logger.Logger
	autosave  config.AutosaveConfig
	documents config.DocumentsConfig
	pipeline  submission.Options
}

// session bundles the three per-user managers. One session owns one user's
// draft, document slots, and submission pipeline.
type session struct {
	ownerEmail string
	ownerID    string
	drafts     *draft.Manager
	docs       *documents.Manager
	pipeline   *submission.Pipeline

	mu        sync.Mutex
	submitted bool
}

// ensureRecord makes sure the document slot manager points at a durable
// record before any upload. After submission the record is fixed.
func (s *session) ensureRecord(ctx context.Context) error {
	s.mu.Lock()
	done := s.submitted
	s.mu.Unlock()
	if done {
		return nil
	}
	d, err := s.drafts.EnsureDraft(ctx)
	if err != nil {
		return err
	}
	s.docs.SetRecord(d.ID, false)
	return nil
}

func (s *session) markSubmitted() {
	s.mu.Lock()
	s.submitted = true
	s.mu.Unlock()
}

type sessionRegistry struct {
	deps sessionDeps

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry(deps sessionDeps) *sessionRegistry {
	return &sessionRegistry{
		deps:     deps,
		sessions: make(map[string]*session),
	}
}

// get returns the owner's session, creating and hydrating it on first use.
func (r *sessionRegistry) get(ctx context.Context, ownerEmail, ownerID string, profile *identity.Profile) *session {
	r.mu.Lock()
	if s, ok := r.sessions[ownerEmail]; ok {
		r.mu.Unlock()
		return s
	}
	r.mu.Unlock()

	// Without an explicit profile, ask the identity provider; hydration
	// proceeds unaided when the lookup fails.
	if profile == nil && r.deps.identity != nil {
		if p, err := r.deps.identity.Profile(ctx, ownerID); err == nil {
			profile = p
		}
	}

	drafts := draft.NewManager(r.deps.records, r.deps.fallback, r.deps.sink,
		r.deps.logger, r.deps.autosave.QuietPeriod, ownerEmail, ownerID)
	d := drafts.Hydrate(ctx, profile)

	docs := documents.NewManager(r.deps.records, r.deps.blobs, r.deps.sink,
		r.deps.logger, ownerEmail, d.ID, d.Documents, false, r.deps.documents)

	s := &session{
		ownerEmail: ownerEmail,
		ownerID:    ownerID,
		drafts:     drafts,
		docs:       docs,
	}
	s.pipeline = submission.NewPipeline(r.deps.records, r.deps.blobs, drafts,
		docs, progress.NewTracker(), r.deps.notifier, r.deps.sink,
		r.deps.logger, r.deps.pipeline)

	// A returning user whose application is already in may only view it.
	if app, err := r.deps.records.GetSubmittedByEmail(ctx, ownerEmail); err == nil {
		drafts.Suspend()
		docs.SetRecord(app.ID, true)
		s.submitted = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[ownerEmail]; ok {
		drafts.Close()
		return existing
	}
	r.sessions[ownerEmail] = s
	return s
}

func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.drafts.Close()
	}
	r.sessions = make(map[string]*session)
}

// slotFromString parses a slot name from the API surface.
func slotFromString(raw string) (models.Slot, bool) {
	slot := models.Slot(raw)
	return slot, slot.Valid()
}
