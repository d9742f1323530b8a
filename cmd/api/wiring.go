package main

import (
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/ai"
	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/persistence"
)

// needsRedis reports whether any configured component talks to redis.
func needsRedis(cfg *config.Config) bool {
	return cfg.Store.Driver == config.StoreDriverRedis ||
		cfg.Notification.RedisChannel != "" ||
		(cfg.AI.KnowledgeEndpoint != "" && cfg.AI.KnowledgeCacheSeconds > 0)
}

func redisClientOf(r *persistence.Redis) *redis.Client {
	if r == nil {
		return nil
	}
	return r.Client
}

func buildResponder(cfg *config.Config, logger *zap.Logger) ai.Responder {
	if cfg.AI.Endpoint == "" {
		logger.Warn("AI_ENDPOINT not provided; using scripted replies")
		return ai.ScriptedResponder{Confidence: 1}
	}
	return ai.NewHTTPResponder(cfg.AI.Endpoint, cfg.AI.Timeout())
}

func buildKnowledge(cfg *config.Config, client *redis.Client, logger *zap.Logger) ai.KnowledgeBase {
	if cfg.AI.KnowledgeEndpoint == "" {
		return ai.NoKnowledge{}
	}
	var kb ai.KnowledgeBase = ai.NewHTTPKnowledgeBase(cfg.AI.KnowledgeEndpoint, cfg.AI.KnowledgeTimeout())
	if client != nil && cfg.AI.KnowledgeCacheSeconds > 0 {
		ttl := time.Duration(cfg.AI.KnowledgeCacheSeconds) * time.Second
		kb = ai.NewCachedKnowledgeBase(kb, client, cfg.Store.KeyPrefix, ttl, logger)
	}
	return kb
}

func joinStatus(status map[string]string) string {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+status[name])
	}
	return strings.Join(parts, ", ")
}
