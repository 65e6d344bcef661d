// Package fallback is autosave's last resort: a per-session key→JSON scratch
// store used only when the durable record store is unreachable. It is never a
// durability tier and never synchronized across devices.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"admissions-service/internal/store"
)

// ErrNoSnapshot is returned when no fallback snapshot exists for the draft.
var ErrNoSnapshot = errors.New("NO_FALLBACK_SNAPSHOT")

const keyPrefix = "admissions:fallback:"

// Store writes autosave payloads keyed by draft id, with a TTL so stale
// scratch data ages out on its own.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// SaveSnapshot persists the same payload shape the durable save uses.
func (s *Store) SaveSnapshot(ctx context.Context, draftID string, payload store.SavePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal fallback snapshot: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+draftID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write fallback snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored payload, or ErrNoSnapshot.
func (s *Store) LoadSnapshot(ctx context.Context, draftID string) (*store.SavePayload, error) {
	data, err := s.client.Get(ctx, keyPrefix+draftID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read fallback snapshot: %w", err)
	}
	var payload store.SavePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal fallback snapshot: %w", err)
	}
	return &payload, nil
}

// Clear drops the snapshot after a successful durable save reconciles it.
func (s *Store) Clear(ctx context.Context, draftID string) error {
	return s.client.Del(ctx, keyPrefix+draftID).Err()
}
