package security

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/peerpoints/peerpoints/internal/database"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	userIndexPrefix  = "user_sessions:"
)

// RedisSessionStore keeps the session registry in Redis so several server
// processes can share it. Sessions are stored as JSON under session:<id>
// with a TTL matching the session expiry; a per-user set indexes session IDs
// for ByUser and bulk invalidation.
type RedisSessionStore struct {
	rdb *database.Redis
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(rdb *database.Redis) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := s.rdb.GetString(ctx, sessionKeyPrefix+sessionID)
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.SessionID)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.SessionID, raw, ttl)
	pipe.SAdd(ctx, userIndexPrefix+sess.UserID, sess.SessionID)
	pipe.Expire(ctx, userIndexPrefix+sess.UserID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	// Look up the owner so the user index stays consistent. A missing
	// session is not an error: deletion is idempotent.
	sess, err := s.Get(ctx, sessionID)
	if err == ErrSessionNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+sessionID)
	pipe.SRem(ctx, userIndexPrefix+sess.UserID, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.rdb.SMembers(ctx, userIndexPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}

	var out []*Session
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err == ErrSessionNotFound {
			// Expired entry left in the index; drop it lazily.
			s.rdb.SRem(ctx, userIndexPrefix+userID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *RedisSessionStore) All(ctx context.Context) ([]*Session, error) {
	var out []*Session
	iter := s.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.GetString(ctx, iter.Val())
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue
		}
		out = append(out, &sess)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return out, nil
}

func (s *RedisSessionStore) Len(ctx context.Context) (int, error) {
	var n int
	iter := s.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
