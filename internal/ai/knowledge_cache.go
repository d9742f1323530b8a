package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// CachedKnowledgeBase memoizes lookups in redis by normalized query.
type CachedKnowledgeBase struct {
	next   KnowledgeBase
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedKnowledgeBase wraps next with a redis cache.
func NewCachedKnowledgeBase(next KnowledgeBase, client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *CachedKnowledgeBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedKnowledgeBase{next: next, client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// GetRelevantContext implements KnowledgeBase. Cache errors fall through to next.
func (c *CachedKnowledgeBase) GetRelevantContext(ctx context.Context, query string, recent []domain.Message) ([]string, error) {
	key := c.key(query)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var snippets []string
		if err := json.Unmarshal(raw, &snippets); err == nil {
			return snippets, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Debug("knowledge cache read failed", zap.Error(err))
	}

	snippets, err := c.next.GetRelevantContext(ctx, query, recent)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(snippets); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Debug("knowledge cache write failed", zap.Error(err))
		}
	}
	return snippets, nil
}

func (c *CachedKnowledgeBase) key(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return c.prefix + ":knowledge:" + hex.EncodeToString(sum[:])
}
