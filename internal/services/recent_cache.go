package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
)

const (
	recentKeyPrefix  = "chat:group:"
	recentKeySuffix  = ":recent"
	versionKeySuffix = ":recent:ver"
	recentMaxLen     = 50
	recentTTL        = 1 * time.Hour
)

var errStaleWarm = errors.New("recent cache changed since mark")

// RecentMessageCache keeps the newest group chat messages so the first page
// of history does not hit the database.
type RecentMessageCache interface {
	Push(ctx context.Context, msg models.GroupMessage)
	// Recent returns cached messages oldest-first and whether the cache had any.
	Recent(ctx context.Context, groupID string) ([]models.GroupMessage, bool)
	// Mark returns the cache generation. Take it before reading the
	// snapshot that will be handed to Warm.
	Mark(ctx context.Context, groupID string) int64
	// Warm replaces the cache with msgs, given oldest-first, unless a
	// message was pushed or the cache invalidated after mark.
	Warm(ctx context.Context, groupID string, mark int64, msgs []models.GroupMessage)
	Invalidate(ctx context.Context, groupID string)
}

func recentKey(groupID string) string {
	return recentKeyPrefix + groupID + recentKeySuffix
}

func versionKey(groupID string) string {
	return recentKeyPrefix + groupID + versionKeySuffix
}

// RedisRecentCache stores the newest messages at the head of a Redis list.
type RedisRecentCache struct {
	rdb *redis.Client
}

func NewRedisRecentCache(rdb *redis.Client) *RedisRecentCache {
	return &RedisRecentCache{rdb: rdb}
}

// Push adds msg at the head and trims to recentMaxLen. A cold key stays
// cold so the list never holds a partial history.
func (c *RedisRecentCache) Push(ctx context.Context, msg models.GroupMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	groupID := msg.GroupID.Hex()
	key, ver := recentKey(groupID), versionKey(groupID)
	pipe := c.rdb.Pipeline()
	pipe.LPushX(ctx, key, data)
	pipe.LTrim(ctx, key, 0, recentMaxLen-1)
	pipe.Expire(ctx, key, recentTTL)
	pipe.Incr(ctx, ver)
	pipe.Expire(ctx, ver, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("recent cache push failed", "group_id", msg.GroupID.Hex(), "error", err)
	}
}

func (c *RedisRecentCache) Recent(ctx context.Context, groupID string) ([]models.GroupMessage, bool) {
	raw, err := c.rdb.LRange(ctx, recentKey(groupID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	// A push that lands right after a warm can repeat a message the
	// snapshot already held.
	seen := make(map[string]struct{}, len(raw))
	msgs := make([]models.GroupMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m models.GroupMessage
		if json.Unmarshal([]byte(raw[i]), &m) != nil {
			continue
		}
		if _, dup := seen[m.ID.Hex()]; dup {
			continue
		}
		seen[m.ID.Hex()] = struct{}{}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// Mark returns -1 when Redis is unreachable so the following Warm is skipped.
func (c *RedisRecentCache) Mark(ctx context.Context, groupID string) int64 {
	v, err := c.rdb.Get(ctx, versionKey(groupID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		return -1
	}
	return v
}

// Warm writes the snapshot inside a WATCH on the version key, so a push
// racing with the write aborts it instead of being lost.
func (c *RedisRecentCache) Warm(ctx context.Context, groupID string, mark int64, msgs []models.GroupMessage) {
	if len(msgs) == 0 || mark < 0 {
		return
	}
	key, ver := recentKey(groupID), versionKey(groupID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, ver).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != mark {
			return errStaleWarm
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			for i := len(msgs) - 1; i >= 0; i-- {
				data, err := json.Marshal(msgs[i])
				if err != nil {
					continue
				}
				pipe.RPush(ctx, key, data)
			}
			pipe.LTrim(ctx, key, 0, recentMaxLen-1)
			pipe.Expire(ctx, key, recentTTL)
			return nil
		})
		return err
	}, ver)
	switch {
	case err == nil:
	case errors.Is(err, errStaleWarm), errors.Is(err, redis.TxFailedErr):
		slog.Debug("recent cache warm skipped", "group_id", groupID)
	default:
		slog.Warn("recent cache warm failed", "group_id", groupID, "error", err)
	}
}

// Invalidate drops the list and bumps the version so an in-flight warm
// cannot bring it back.
func (c *RedisRecentCache) Invalidate(ctx context.Context, groupID string) {
	ver := versionKey(groupID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, recentKey(groupID))
	pipe.Incr(ctx, ver)
	pipe.Expire(ctx, ver, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("recent cache invalidate failed", "group_id", groupID, "error", err)
	}
}

// noRecentCache is used when Redis is not configured.
type noRecentCache struct{}

func (noRecentCache) Push(context.Context, models.GroupMessage) {}
func (noRecentCache) Recent(context.Context, string) ([]models.GroupMessage, bool) {
	return nil, false
}
func (noRecentCache) Mark(context.Context, string) int64                         { return 0 }
func (noRecentCache) Warm(context.Context, string, int64, []models.GroupMessage) {}
func (noRecentCache) Invalidate(context.Context, string)                         {}
