package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentora/appointment-service/internal/model"
)

// CachedUserDirectory is a read-through Redis cache in front of a user
// directory. Cache errors fall through to the origin; a not-found answer is
// not cached so a freshly created user becomes visible immediately.
type CachedUserDirectory struct {
	origin UserDirectory
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedUserDirectory(origin UserDirectory, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedUserDirectory {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CachedUserDirectory{origin: origin, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedUserDirectory) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	key := fmt.Sprintf("dir:user:id:%d", id)
	var u model.User
	if c.cacheGet(ctx, key, &u) {
		return u, nil
	}
	u, err := c.origin.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	c.cacheSet(ctx, key, u)
	return u, nil
}

func (c *CachedUserDirectory) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	key := "dir:user:name:" + username
	var u model.User
	if c.cacheGet(ctx, key, &u) {
		return u, nil
	}
	u, err := c.origin.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, err
	}
	c.cacheSet(ctx, key, u)
	return u, nil
}

func (c *CachedUserDirectory) cacheGet(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("directory cache read failed", "key", key, "err", err)
		}
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *CachedUserDirectory) cacheSet(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("directory cache write failed", "key", key, "err", err)
	}
}

// CachedPropertyDirectory mirrors CachedUserDirectory for properties.
type CachedPropertyDirectory struct {
	origin PropertyDirectory
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedPropertyDirectory(origin PropertyDirectory, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedPropertyDirectory {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CachedPropertyDirectory{origin: origin, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedPropertyDirectory) GetPropertyByID(ctx context.Context, id int64) (model.Property, error) {
	key := fmt.Sprintf("dir:property:%d", id)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var p model.Property
		if json.Unmarshal(raw, &p) == nil {
			return p, nil
		}
	} else if err != redis.Nil && c.logger != nil {
		c.logger.Warn("directory cache read failed", "key", key, "err", err)
	}

	p, err := c.origin.GetPropertyByID(ctx, id)
	if err != nil {
		return model.Property{}, err
	}
	if blob, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, blob, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("directory cache write failed", "key", key, "err", err)
		}
	}
	return p, nil
}
