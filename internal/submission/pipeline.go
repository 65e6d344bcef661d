// Package submission orchestrates the final submit: full validation, optional
// compression, draft promotion or create-plus-background-upload, simulated
// progress, and the completed/error terminal stages.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"admissions-service/internal/blob"
	stderrors "admissions-service/internal/common/errors"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/common/metrics"
	"admissions-service/internal/compress"
	"admissions-service/internal/events"
	"admissions-service/internal/models"
	"admissions-service/internal/progress"
	"admissions-service/internal/store"
	"admissions-service/internal/validation"
)

// uploadTimeout bounds the detached background upload, which outlives the
// caller's request context.
const uploadTimeout = 5 * time.Minute

// simulatedStep is how many percent each simulated tick adds per file.
const simulatedStep = 7

// DraftSession is the slice of the draft manager the pipeline needs: flush,
// suspend around the submit, and resume after a failed attempt.
type DraftSession interface {
	Draft() *models.Draft
	SaveNow(ctx context.Context) error
	Suspend()
	Resume()
}

// Notifier is satisfied by notify.Notifier.
type Notifier interface {
	SubmissionReceived(ctx context.Context, app *models.Application)
}

// DocumentBinder retargets the document slot manager at the submitted record
// so post-submission uploads land on the application.
type DocumentBinder interface {
	SetRecord(recordID string, submitted bool)
}

// Options tune the pipeline's pacing.
type Options struct {
	ProgressTick     time.Duration
	FinalizeDelay    time.Duration
	MinSavingsReport float64
}

func (o *Options) applyDefaults() {
	if o.ProgressTick <= 0 {
		o.ProgressTick = 200 * time.Millisecond
	}
	if o.FinalizeDelay <= 0 {
		o.FinalizeDelay = 500 * time.Millisecond
	}
	if o.MinSavingsReport <= 0 {
		o.MinSavingsReport = 0.10
	}
}

// SubmitRequest carries the form snapshot plus any document files that were
// never uploaded during drafting (the create path uploads them in the
// background after the record exists).
type SubmitRequest struct {
	OwnerEmail   string
	OwnerID      string
	FormData     map[string]string
	PendingFiles map[models.Slot][]models.DocumentFile
}

// SubmitResult reports the submitted application and how it got there.
type SubmitResult struct {
	Application   *models.Application
	Promoted      bool
	SavingsNotice string
}

// Pipeline runs at most one submission at a time per session.
type Pipeline struct {
	records    store.RecordStore
	blobs      blob.Store
	drafts     DraftSession
	docs       DocumentBinder
	compressor *compress.Service
	tracker    *progress.Tracker
	notifier   Notifier
	sink       events.Sink
	logger     logger.Logger
	opts       Options

	mu         sync.Mutex
	submitting bool
	cancelled  bool
}

func NewPipeline(records store.RecordStore, blobs blob.Store, drafts DraftSession,
	docs DocumentBinder, tracker *progress.Tracker, notifier Notifier,
	sink events.Sink, log logger.Logger, opts Options) *Pipeline {
	opts.applyDefaults()
	if sink == nil {
		sink = events.Nop{}
	}
	return &Pipeline{
		records:    records,
		blobs:      blobs,
		drafts:     drafts,
		docs:       docs,
		compressor: compress.NewService(),
		tracker:    tracker,
		notifier:   notifier,
		sink:       sink,
		logger:     log.WithFields(map[string]interface{}{"component": "submission-pipeline"}),
		opts:       opts,
	}
}

// Tracker exposes the progress tracker for UI subscription.
func (p *Pipeline) Tracker() *progress.Tracker {
	return p.tracker
}

// Cancel stops further progress reporting. In-flight network calls are not
// aborted; their results are simply no longer surfaced.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	if p.submitting {
		p.cancelled = true
	}
	p.mu.Unlock()
}

// Submit runs the whole pipeline synchronously except for the background
// document upload, which is detached: the submitted record is created and
// visible before any document bytes move.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	p.mu.Lock()
	if p.submitting {
		p.mu.Unlock()
		return nil, stderrors.NewSubmissionActiveError()
	}
	p.submitting = true
	p.cancelled = false
	p.mu.Unlock()

	metrics.ActiveSubmissions.Inc()
	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.submitting = false
		p.mu.Unlock()
		metrics.ActiveSubmissions.Dec()
	}()

	p.tracker.Reset()

	// Validation happens before any stage change or I/O.
	fieldErrs, err := validation.ValidateAll(req.FormData)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("validate form: %w", err)
	}
	if len(fieldErrs) > 0 {
		metrics.SubmissionsTotal.WithLabelValues("validation_failed").Inc()
		return nil, stderrors.NewValidationFailedError(flattenErrors(fieldErrs))
	}

	p.drafts.Suspend()
	p.setStage(progress.StagePreparing)

	result := &SubmitResult{}

	// Best-effort compression; the originals survive any failure here.
	files := req.PendingFiles
	if countFiles(files) > 0 {
		p.setStage(progress.StageCompressing)
		compressed, notice := p.compressFiles(files)
		files = compressed
		result.SavingsNotice = notice
		if notice != "" {
			p.tracker.SetMessage(notice)
		}
	}

	now := time.Now().UTC()
	draft := p.drafts.Draft()
	if draft != nil && !models.IsTempID(draft.ID) {
		app, err := p.promote(ctx, draft.ID, req, now)
		if err != nil {
			return nil, p.abort(err)
		}
		result.Application = app
		result.Promoted = true
	} else {
		app, err := p.create(ctx, req, files, now)
		if err != nil {
			return nil, p.abort(err)
		}
		result.Application = app
	}

	p.setStage(progress.StageFinalizing)
	select {
	case <-ctx.Done():
	case <-time.After(p.opts.FinalizeDelay):
	}
	p.setStage(progress.StageCompleted)

	if p.docs != nil {
		p.docs.SetRecord(result.Application.ID, true)
	}
	metrics.SubmissionsTotal.WithLabelValues("success").Inc()
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	p.sink.Record(ctx, events.Event{
		Type:       events.TypeApplicationSubmitted,
		OwnerEmail: req.OwnerEmail,
		RecordID:   result.Application.ID,
		Metadata:   map[string]interface{}{"promoted": result.Promoted},
	})
	if p.notifier != nil {
		p.notifier.SubmissionReceived(ctx, result.Application)
	}
	p.logger.Info("application submitted", map[string]interface{}{
		"applicationId": result.Application.ID,
		"promoted":      result.Promoted,
	})
	return result, nil
}

// promote is the path taken whenever a durable draft exists: documents were
// already uploaded during drafting, so nothing is re-transferred.
func (p *Pipeline) promote(ctx context.Context, draftID string, req SubmitRequest, now time.Time) (*models.Application, error) {
	// Flush any debounced edits so the promotion copies the latest snapshot.
	if err := p.drafts.SaveNow(ctx); err != nil {
		p.logger.Warn("pre-promotion flush failed", map[string]interface{}{
			"draftId": draftID,
			"error":   err.Error(),
		})
	}

	app, err := p.records.PromoteDraftToSubmitted(ctx, draftID, now)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyPromoted):
		metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
		p.setStage(progress.StageCompleted)
		return nil, stderrors.NewAlreadySubmittedError(req.OwnerEmail)
	default:
		return nil, stderrors.NewPromotionFailedError(draftID, err)
	}

	// The request snapshot is authoritative even when the flush above only
	// reached the fallback tier.
	if len(req.FormData) > 0 {
		if err := p.records.UpdateSubmittedFields(ctx, app.ID, req.FormData); err != nil {
			p.logger.Warn("post-promotion field sync failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		} else {
			app.FormData = req.FormData
		}
	}
	return app, nil
}

// create is the no-draft path: the submitted record is written first so it is
// visible immediately, then the document bytes move in a detached goroutine
// that the pipeline only observes for progress.
func (p *Pipeline) create(ctx context.Context, req SubmitRequest,
	files map[models.Slot][]models.DocumentFile, now time.Time) (*models.Application, error) {

	app := &models.Application{
		ID:          uuid.New().String(),
		OwnerEmail:  req.OwnerEmail,
		OwnerID:     req.OwnerID,
		FormData:    req.FormData,
		Status:      models.StatusApplied,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.records.CreateSubmitted(ctx, app); err != nil {
		return nil, stderrors.NewCreateFailedError(req.OwnerEmail, err)
	}

	if countFiles(files) == 0 {
		return app, nil
	}

	p.setStage(progress.StageUploading)
	var names []string
	for _, slot := range []models.Slot{models.SlotPassportPhoto, models.SlotIDDocument, models.SlotAcademic} {
		for _, f := range files[slot] {
			names = append(names, f.Name)
		}
	}
	p.tracker.InitFiles(names)

	done := make(chan struct{})
	go p.uploadDetached(app.ID, files, done)
	p.simulateProgress(names, done)
	return app, nil
}

// uploadDetached moves the document bytes and persists their metadata onto
// the already-visible application. Per-file failures mark that file errored
// without failing the submission.
func (p *Pipeline) uploadDetached(appID string, files map[models.Slot][]models.DocumentFile, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	var docs models.DocumentSet
	for _, slot := range []models.Slot{models.SlotPassportPhoto, models.SlotIDDocument, models.SlotAcademic} {
		for _, f := range files[slot] {
			path := fmt.Sprintf("%s/%s/%s_%s", appID, slot, uuid.New().String(), f.Name)
			url, err := p.blobs.PutObject(ctx, path, f.Data, f.ContentType)
			if err != nil {
				p.tracker.FailFile(f.Name, stderrors.NewUploadFailedError(f.Name, err).Message)
				p.logger.Error("background upload failed", map[string]interface{}{
					"applicationId": appID,
					"file":          f.Name,
					"error":         err.Error(),
				})
				continue
			}
			meta := models.DocumentMeta{
				FileName:      f.Name,
				Size:          int64(len(f.Data)),
				URL:           url,
				UploadedAt:    time.Now().UTC(),
				OwnerRecordID: appID,
			}
			switch slot {
			case models.SlotPassportPhoto:
				docs.PassportPhoto = &meta
			case models.SlotIDDocument:
				docs.IDDocument = &meta
			case models.SlotAcademic:
				docs.AcademicDocs = append(docs.AcademicDocs, meta)
			}
			p.tracker.CompleteFile(f.Name)
			metrics.DocumentUploadBytes.Add(float64(len(f.Data)))
		}
	}

	if err := p.records.UpdateSubmittedDocuments(ctx, appID, docs); err != nil {
		p.logger.Error("persisting uploaded documents failed", map[string]interface{}{
			"applicationId": appID,
			"error":         err.Error(),
		})
	}
}

// simulateProgress nudges every unsettled file forward on a fixed tick so the
// user sees motion, and stops the instant the real transfer settles. Real
// results always win: the tracker ignores ticks for settled files.
func (p *Pipeline) simulateProgress(names []string, done <-chan struct{}) {
	ticker := time.NewTicker(p.opts.ProgressTick)
	defer ticker.Stop()

	pct := make(map[string]int, len(names))
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if p.isCancelled() {
				// Reporting stops; the upload itself keeps running.
				<-done
				return
			}
			for _, name := range names {
				pct[name] += simulatedStep
				p.tracker.Advance(name, pct[name])
			}
		}
	}
}

// compressFiles gzips each slot's files best-effort and builds the savings
// notice when the total reduction clears the reporting threshold.
func (p *Pipeline) compressFiles(files map[models.Slot][]models.DocumentFile) (map[models.Slot][]models.DocumentFile, string) {
	out := make(map[models.Slot][]models.DocumentFile, len(files))
	var origTotal, compTotal int64
	for slot, slotFiles := range files {
		res, err := p.compressor.Compress(slotFiles)
		if err != nil {
			p.logger.Warn("compression failed, keeping originals", map[string]interface{}{
				"slot":  string(slot),
				"error": err.Error(),
			})
			out[slot] = slotFiles
			for _, f := range slotFiles {
				origTotal += int64(len(f.Data))
				compTotal += int64(len(f.Data))
			}
			continue
		}
		out[slot] = res.Files
		origTotal += res.TotalOriginal()
		compTotal += res.TotalCompressed()
	}

	if origTotal > 0 {
		saved := float64(origTotal-compTotal) / float64(origTotal)
		if saved > p.opts.MinSavingsReport {
			return out, fmt.Sprintf("Compressed your documents, saving %.0f%% of the upload", saved*100)
		}
	}
	return out, ""
}

// abort moves the tracker to the error stage, re-enables autosave, and wraps
// the cause for the caller.
func (p *Pipeline) abort(err error) error {
	var stdErr *stderrors.StandardError
	if !errors.As(err, &stdErr) {
		stdErr = stderrors.NewPromotionFailedError("", err)
	}
	if stdErr.Code == stderrors.ErrCodeAlreadySubmitted {
		// Not a failure: the application exists. Autosave stays suspended.
		return stdErr
	}
	p.tracker.Fail(stdErr.Message)
	p.drafts.Resume()
	metrics.SubmissionsTotal.WithLabelValues("error").Inc()
	p.logger.Error("submission failed", map[string]interface{}{
		"code":  string(stdErr.Code),
		"error": stdErr.Error(),
	})
	return stdErr
}

func (p *Pipeline) setStage(stage progress.Stage) {
	if p.isCancelled() {
		return
	}
	p.tracker.SetStage(stage)
}

func (p *Pipeline) isCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

func countFiles(files map[models.Slot][]models.DocumentFile) int {
	n := 0
	for _, fs := range files {
		n += len(fs)
	}
	return n
}

func flattenErrors(fieldErrs map[string][]validation.FieldError) map[string][]string {
	flat := make(map[string][]string, len(fieldErrs))
	for section, errs := range fieldErrs {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.String())
		}
		flat[section] = msgs
	}
	return flat
}
