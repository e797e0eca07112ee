package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedSessionKeyPrefix = "medsurat:revoked:session:"

// SessionRepository keeps the revocation list of officer sessions. Entries
// expire together with the token they revoke. Without a Redis client the list
// is kept in process.
type SessionRepository struct {
	client *redis.Client

	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewSessionRepository constructs a session revocation store.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client, revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke marks the session as logged out for ttl.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if r.client == nil {
		r.mu.Lock()
		r.revoked[sessionID] = r.now().Add(ttl)
		r.mu.Unlock()
		return nil
	}
	if err := r.client.Set(ctx, revokedSessionKeyPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session has been logged out.
func (r *SessionRepository) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		until, ok := r.revoked[sessionID]
		if !ok {
			return false, nil
		}
		if r.now().After(until) {
			delete(r.revoked, sessionID)
			return false, nil
		}
		return true, nil
	}
	_, err := r.client.Get(ctx, revokedSessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return true, nil
}
