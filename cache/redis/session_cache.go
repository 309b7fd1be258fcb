package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/gtgram/cache"
)

// SessionCache implements cache.SessionCache on Redis, for deployments
// where the session must be shared between instances. The three entries
// are fields of a single hash so reads and writes stay atomic enough
// for the single-writer model.
type SessionCache struct {
	client *redis.Client
	prefix string
}

// NewSessionCache creates a new SessionCache instance.
func NewSessionCache(client *redis.Client, prefix string) *SessionCache {
	return &SessionCache{
		client: client,
		prefix: prefix,
	}
}

func (r *SessionCache) redisKey() string {
	return fmt.Sprintf("%s:session", r.prefix)
}

// Read implements cache.SessionCache.Read.
func (r *SessionCache) Read(ctx context.Context) (*cache.RawSession, error) {
	res, err := r.client.HGetAll(ctx, r.redisKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}

	record := res[cache.KeyUser]
	loginTime := res[cache.KeyLoginTime]
	autoLogin := res[cache.KeyAutoLogin]
	if record == "" || loginTime == "" || autoLogin == "" {
		return nil, nil
	}

	millis, err := strconv.ParseInt(loginTime, 10, 64)
	if err != nil {
		return nil, nil
	}
	auto, err := strconv.ParseBool(autoLogin)
	if err != nil {
		return nil, nil
	}

	return &cache.RawSession{
		Record:    []byte(record),
		LoginTime: time.UnixMilli(millis),
		AutoLogin: auto,
	}, nil
}

// Write implements cache.SessionCache.Write.
func (r *SessionCache) Write(ctx context.Context, raw *cache.RawSession) error {
	entry := map[string]interface{}{
		cache.KeyUser:      string(raw.Record),
		cache.KeyLoginTime: strconv.FormatInt(raw.LoginTime.UnixMilli(), 10),
		cache.KeyAutoLogin: strconv.FormatBool(raw.AutoLogin),
	}
	if _, err := r.client.HSet(ctx, r.redisKey(), entry).Result(); err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}
	return nil
}

// Clear implements cache.SessionCache.Clear.
func (r *SessionCache) Clear(ctx context.Context) error {
	if _, err := r.client.Del(ctx, r.redisKey()).Result(); err != nil {
		return fmt.Errorf("failed to clear session in Redis: %w", err)
	}
	return nil
}

var _ cache.SessionCache = (*SessionCache)(nil)
