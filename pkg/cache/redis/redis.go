// Package redis caches rendered chain groups of stored interview revisions.
// A stored revision never changes, so entries only expire through their TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "chains"
	defaultTTL = time.Hour
)

type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

type ResultCache struct {
	rdb kv
	ttl time.Duration
}

// NewResultCache wraps an existing client. A non-positive ttl falls back to
// one hour.
func NewResultCache(rdb kv, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResultCache{rdb: rdb, ttl: ttl}
}

// NewClientFromEnv connects to REDIS_ADDR. An empty address disables the
// cache and returns a nil client.
func NewClientFromEnv(ctx context.Context) (*goredis.Client, error) {
	addr := strings.TrimSpace(util.GetEnvString("REDIS_ADDR", ""))
	if addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    util.GetEnvString("REDIS_PASSWORD", ""),
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func Key(interviewID string, revision int64, opts chain.Options) string {
	return fmt.Sprintf("%s:%s:%d:%s", keyPrefix, interviewID, revision, opts.Fingerprint())
}

// Get returns the cached groups. The bool is false on a miss.
func (c *ResultCache) Get(ctx context.Context, interviewID string, revision int64, opts chain.Options) ([]common.StimulusGroup, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(interviewID, revision, opts)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var groups []common.StimulusGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return groups, true, nil
}

func (c *ResultCache) Set(ctx context.Context, interviewID string, revision int64, opts chain.Options, groups []common.StimulusGroup) error {
	raw, err := json.Marshal(groups)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(interviewID, revision, opts), raw, c.ttl).Err()
}

// Extract serves the chains of a stored snapshot from the cache, extracting
// and storing them on a miss. Cache failures are logged and never fail the
// call. The bool reports a cache hit.
func (c *ResultCache) Extract(ctx context.Context, snap *store.GraphSnapshot, opts chain.Options) ([]common.StimulusGroup, bool) {
	if c != nil {
		groups, ok, err := c.Get(ctx, snap.InterviewID, snap.Revision, opts)
		if err != nil {
			logger.Warn("[Cache] Lookup failed", "interview_id", snap.InterviewID, "revision", snap.Revision, "err", err)
		}
		if ok {
			return groups, true
		}
	}

	groups := chain.ExtractStimulusChains(snap.Graph, opts)

	if c != nil {
		if err := c.Set(ctx, snap.InterviewID, snap.Revision, opts, groups); err != nil {
			logger.Warn("[Cache] Store failed", "interview_id", snap.InterviewID, "revision", snap.Revision, "err", err)
		}
	}
	return groups, false
}
