// app/seenmw.go
package app

import (
	"context"
	"time"

	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Throttle reports whether key may act now, arming it for ttl if so.
type Throttle func(ctx context.Context, key string, ttl time.Duration) bool

// RedisThrottle arms keys with SETNX. When Redis is unreachable it lets
// the request act.
func RedisThrottle(rdb *redis.Client) Throttle {
	return func(ctx context.Context, key string, ttl time.Duration) bool {
		ok, err := rdb.SetNX(ctx, key, "1", ttl).Result()
		return err != nil || ok
	}
}

// SyncUser mirrors the caller's token identity into the users table and
// stamps last-seen, at most once per throttle window per user. A nil allow
// syncs on every request.
func SyncUser(users *workflow.Users, allow Throttle, throttle time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok || a.UserID == "" {
			c.Next()
			return
		}
		if allow == nil || allow(c.Request.Context(), "user:lastseen:"+a.UserID, throttle) {
			ctx := c.Request.Context()
			if err := users.Provision(ctx, a, c.GetString(ctxEmail)); err != nil {
				log.Warn().Err(err).Str("user_id", a.UserID).Msg("provision user")
			} else if err := users.Touch(ctx, a.UserID); err != nil {
				// 忽略错误，不阻塞请求
				log.Debug().Err(err).Str("user_id", a.UserID).Msg("touch last seen")
			}
		}
		c.Next()
	}
}
