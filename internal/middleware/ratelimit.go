package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/trailhub-backend/pkg/clientip"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

const (
	AbuseWindow         = 120 * time.Second
	AbuseMaxRequests    = 600
	AbuseBlockDuration  = 15 * time.Minute
	rateLimitKeyPrefix  = "ratelimit:"
	blockedIPKeyPrefix  = "blocked_ip:"
	redisLimiterTimeout = 500 * time.Millisecond
)

// AbuseGuard is a shared fixed-window counter in Redis. It complements the
// in-process IPRateLimit when several instances sit behind one load balancer:
// an IP that exceeds AbuseMaxRequests within AbuseWindow across all instances
// is blocked for AbuseBlockDuration. Redis failures fail open.
type AbuseGuard struct {
	rdb         redis.Cmdable
	maxRequests int64
	window      time.Duration
	block       time.Duration
}

func NewAbuseGuard(rdb redis.Cmdable) *AbuseGuard {
	return &AbuseGuard{rdb: rdb, maxRequests: AbuseMaxRequests, window: AbuseWindow, block: AbuseBlockDuration}
}

func (g *AbuseGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)
		ctx, cancel := contextWithTimeout(r, redisLimiterTimeout)
		defer cancel()

		blocked, err := g.rdb.Exists(ctx, blockedIPKeyPrefix+ip).Result()
		if err == nil && blocked > 0 {
			utils.Error(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		key := rateLimitKeyPrefix + ip
		pipe := g.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, g.window)
		if _, err := pipe.Exec(ctx); err != nil {
			slog.Warn("abuse guard unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		if count > g.maxRequests {
			if err := g.rdb.Set(ctx, blockedIPKeyPrefix+ip, "1", g.block).Err(); err != nil {
				slog.Warn("failed to block ip", "ip", ip, "error", err)
			} else {
				slog.Warn("ip blocked for excessive requests", "ip", ip, "count", count)
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(g.block.Seconds())))
			utils.Error(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Unblock lifts a block early.
func (g *AbuseGuard) Unblock(ctx context.Context, ip string) error {
	return g.rdb.Del(ctx, blockedIPKeyPrefix+ip).Err()
}
