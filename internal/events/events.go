// Package events ships analytics events to Elasticsearch, fire-and-forget.
// A sink failure is never allowed to fail the user operation that caused it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"admissions-service/internal/common/database"
	"admissions-service/internal/common/logger"
)

// Event types emitted by the orchestrator.
const (
	TypeDraftSaved           = "draft_saved"
	TypeDraftFallbackSave    = "draft_fallback_save"
	TypeDocumentUploaded     = "document_uploaded"
	TypeDocumentRemoved      = "document_removed"
	TypeApplicationSubmitted = "application_submitted"
)

// Event is one analytics record.
type Event struct {
	Type       string                 `json:"type"`
	OwnerEmail string                 `json:"ownerEmail"`
	RecordID   string                 `json:"recordId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Sink accepts events; implementations must swallow their own failures.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// ESRecorder indexes events into Elasticsearch.
type ESRecorder struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewESRecorder(es *database.ElasticsearchClient, index string, log logger.Logger) *ESRecorder {
	return &ESRecorder{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "events"}),
	}
}

func (r *ESRecorder) Record(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("event marshal failed", map[string]interface{}{"type": event.Type, "error": err.Error()})
		return
	}
	if err := r.es.Index(ctx, r.index, body); err != nil {
		r.logger.Warn("event index failed", map[string]interface{}{"type": event.Type, "error": err.Error()})
	}
}

// Nop discards events; used where no sink is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
