// internal/notify/notify_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-service/internal/common/logger"
	"admissions-service/internal/models"
)

type fakeEmail struct {
	to, subject, body string
	calls             int
	fail              bool
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	f.calls++
	f.to, f.subject, f.body = to, subject, body
	if f.fail {
		return errors.New("ses throttled")
	}
	return nil
}

type fakePublisher struct {
	messages []string
	fail     bool
}

func (f *fakePublisher) Publish(ctx context.Context, message string) error {
	if f.fail {
		return errors.New("sns unavailable")
	}
	f.messages = append(f.messages, message)
	return nil
}

func testApplication() *models.Application {
	return &models.Application{
		ID:          "app-001",
		OwnerEmail:  "amina@example.com",
		Status:      models.StatusApplied,
		SubmittedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubmissionReceived_SendsBothChannels(t *testing.T) {
	email := &fakeEmail{}
	pub := &fakePublisher{}
	n := New(email, pub, logger.NewTestLogger(t), true)

	n.SubmissionReceived(context.Background(), testApplication())

	assert.Equal(t, 1, email.calls)
	assert.Equal(t, "amina@example.com", email.to)
	assert.Contains(t, email.body, "app-001")

	require.Len(t, pub.messages, 1)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(pub.messages[0]), &payload))
	assert.Equal(t, "application_submitted", payload["type"])
	assert.Equal(t, "app-001", payload["applicationId"])
}

func TestSubmissionReceived_EmailFailureStillPublishes(t *testing.T) {
	email := &fakeEmail{fail: true}
	pub := &fakePublisher{}
	n := New(email, pub, logger.NewTestLogger(t), true)

	n.SubmissionReceived(context.Background(), testApplication())

	assert.Len(t, pub.messages, 1, "a failed email must not block the publish")
}

func TestSubmissionReceived_Disabled(t *testing.T) {
	email := &fakeEmail{}
	n := New(email, nil, logger.NewTestLogger(t), false)

	n.SubmissionReceived(context.Background(), testApplication())

	assert.Zero(t, email.calls)
}
