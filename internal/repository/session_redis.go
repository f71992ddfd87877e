package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/observability"
)

const defaultKeyPrefix = "session"

// RedisSessionStore keeps one hash per session plus two sorted-set indexes:
// last_active (drives the inactivity sweep) and expires_at (drives the
// overview counts). The hash field names follow the persisted-state
// contract.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisSessionStore) dataKey(sessionID string) string {
	return s.prefix + ":data:" + sessionID
}

func (s *RedisSessionStore) lastActiveIndex() string {
	return s.prefix + ":by_last_active"
}

func (s *RedisSessionStore) expiryIndex() string {
	return s.prefix + ":by_expiry"
}

func (s *RedisSessionStore) Create(ctx context.Context, sess *domain.Session) error {
	fields := map[string]any{
		"session_id":  sess.ID,
		"user_id":     sess.UserID,
		"email":       sess.Email,
		"name":        sess.Name,
		"picture":     sess.Picture,
		"created_at":  sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		"last_active": sess.LastActive.UTC().Format(time.RFC3339Nano),
		"expires_at":  sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"ip_hash":     sess.IPHash,
		"ua_hash":     sess.UAHash,
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(sess.ID), fields)
	pipe.ZAdd(ctx, s.lastActiveIndex(), redis.Z{Score: float64(sess.LastActive.UTC().Unix()), Member: sess.ID})
	pipe.ZAdd(ctx, s.expiryIndex(), redis.Z{Score: float64(sess.ExpiresAt.UTC().Unix()), Member: sess.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordStoreOperation(ctx, "session", "create", "error")
		return fmt.Errorf("redis create session: %w", err)
	}
	observability.RecordStoreOperation(ctx, "session", "create", "success")
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.dataKey(sessionID)).Result()
	if err != nil {
		observability.RecordStoreOperation(ctx, "session", "get", "error")
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	if len(fields) == 0 {
		observability.RecordStoreOperation(ctx, "session", "get", "not_found")
		return nil, ErrSessionNotFound
	}
	sess, err := sessionFromFields(fields)
	if err != nil {
		observability.RecordStoreOperation(ctx, "session", "get", "error")
		return nil, err
	}
	observability.RecordStoreOperation(ctx, "session", "get", "success")
	return sess, nil
}

func (s *RedisSessionStore) UpdateLastActive(ctx context.Context, sessionID string, lastActive time.Time) error {
	exists, err := s.client.Exists(ctx, s.dataKey(sessionID)).Result()
	if err != nil {
		observability.RecordStoreOperation(ctx, "session", "update_last_active", "error")
		return fmt.Errorf("redis update last_active: %w", err)
	}
	if exists == 0 {
		observability.RecordStoreOperation(ctx, "session", "update_last_active", "not_found")
		return ErrSessionNotFound
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(sessionID), "last_active", lastActive.UTC().Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, s.lastActiveIndex(), redis.Z{Score: float64(lastActive.UTC().Unix()), Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordStoreOperation(ctx, "session", "update_last_active", "error")
		return fmt.Errorf("redis update last_active: %w", err)
	}
	observability.RecordStoreOperation(ctx, "session", "update_last_active", "success")
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	pipe := s.client.TxPipeline()
	delCmd := pipe.Del(ctx, s.dataKey(sessionID))
	pipe.ZRem(ctx, s.lastActiveIndex(), sessionID)
	pipe.ZRem(ctx, s.expiryIndex(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordStoreOperation(ctx, "session", "delete", "error")
		return false, fmt.Errorf("redis delete session: %w", err)
	}
	deleted := delCmd.Val() > 0
	if deleted {
		observability.RecordStoreOperation(ctx, "session", "delete", "success")
	} else {
		observability.RecordStoreOperation(ctx, "session", "delete", "not_found")
	}
	return deleted, nil
}

func (s *RedisSessionStore) DeleteInactiveBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	var total int64
	// Exclusive bound: only sessions strictly older than the cutoff go.
	maxScore := "(" + strconv.FormatInt(cutoff.UTC().Unix(), 10)
	for {
		ids, err := s.client.ZRangeByScore(ctx, s.lastActiveIndex(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: int64(batchSize),
		}).Result()
		if err != nil {
			observability.RecordStoreOperation(ctx, "session", "sweep", "error")
			return total, fmt.Errorf("redis sweep scan: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		keys := make([]string, len(ids))
		members := make([]any, len(ids))
		for i, id := range ids {
			keys[i] = s.dataKey(id)
			members[i] = id
		}
		pipe := s.client.TxPipeline()
		delCmd := pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.lastActiveIndex(), members...)
		pipe.ZRem(ctx, s.expiryIndex(), members...)
		if _, err := pipe.Exec(ctx); err != nil {
			observability.RecordStoreOperation(ctx, "session", "sweep", "error")
			return total, fmt.Errorf("redis sweep delete batch: %w", err)
		}
		total += delCmd.Val()
		if len(ids) < batchSize {
			break
		}
	}
	observability.RecordStoreOperation(ctx, "session", "sweep", "success")
	return total, nil
}

func (s *RedisSessionStore) Overview(ctx context.Context, now time.Time) (Overview, error) {
	pipe := s.client.TxPipeline()
	totalCmd := pipe.ZCard(ctx, s.expiryIndex())
	expiredCmd := pipe.ZCount(ctx, s.expiryIndex(), "-inf", strconv.FormatInt(now.UTC().Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordStoreOperation(ctx, "session", "overview", "error")
		return Overview{}, fmt.Errorf("redis session overview: %w", err)
	}
	total := totalCmd.Val()
	expired := expiredCmd.Val()
	observability.RecordStoreOperation(ctx, "session", "overview", "success")
	return Overview{Total: total, Active: total - expired, Expired: expired}, nil
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func sessionFromFields(fields map[string]string) (*domain.Session, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	lastActive, err := time.Parse(time.RFC3339Nano, fields["last_active"])
	if err != nil {
		return nil, fmt.Errorf("parse last_active: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &domain.Session{
		ID:         fields["session_id"],
		UserID:     fields["user_id"],
		Email:      fields["email"],
		Name:       fields["name"],
		Picture:    fields["picture"],
		CreatedAt:  createdAt,
		LastActive: lastActive,
		ExpiresAt:  expiresAt,
		IPHash:     fields["ip_hash"],
		UAHash:     fields["ua_hash"],
	}, nil
}
