package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"hr-agent-go/internal/constants"
)

// RedisChatMemory 实现了 ChatMemory 接口，使用 Redis 作为持久化存储。
type RedisChatMemory struct {
	redisClient *redis.Client
	keyPrefix   string        // 例如 "app:chat:session:"，以避免键冲突
	ttl         time.Duration // 可选：为聊天记录设置过期时间
}

// NewRedisChatMemory 创建一个新的 RedisChatMemory 实例。
// redisClient: 一个已连接和配置好的 go-redis 客户端实例。
// ttl: 聊天记录在 Redis 中的可选过期时间。如果为0，则不过期。
func NewRedisChatMemory(redisClient *redis.Client, keyPrefix string, ttl time.Duration) (*RedisChatMemory, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = constants.KeyChatSessionPrefix
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisChatMemory{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
	}, nil
}

// buildKey 为给定的 sessionID 构建 Redis 键。
func (rcm *RedisChatMemory) buildKey(sessionID string) string {
	return rcm.keyPrefix + sessionID
}

// GetHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	key := rcm.buildKey(sessionID)

	// 获取 List 中的所有元素 (JSON 字符串)
	serializedMessages, err := rcm.redisClient.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []*schema.Message{}, nil // Key 不存在，返回空历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from redis for session %s: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(serializedMessages))
	for _, sm := range serializedMessages {
		var msg schema.Message
		if err := json.Unmarshal([]byte(sm), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message for session %s: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AddMessage 实现 ChatMemory 接口
func (rcm *RedisChatMemory) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("cannot add nil message to chat history for session %s", sessionID)
	}
	key := rcm.buildKey(sessionID)

	serializedMessage, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for session %s: %w", sessionID, err)
	}

	// 使用 Pipeline 保证追加与续期的原子性
	pipe := rcm.redisClient.TxPipeline()
	pipe.RPush(ctx, key, serializedMessage)
	if rcm.ttl > 0 {
		pipe.Expire(ctx, key, rcm.ttl)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add message to redis for session %s: %w", sessionID, err)
	}
	return nil
}

// AddMessages 实现 ChatMemory 接口
func (rcm *RedisChatMemory) AddMessages(ctx context.Context, sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	key := rcm.buildKey(sessionID)

	pipe := rcm.redisClient.TxPipeline()
	for _, message := range messages {
		if message == nil {
			return fmt.Errorf("cannot add nil message in a batch to chat history for session %s", sessionID)
		}
		serializedMessage, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message in batch for session %s: %w", sessionID, err)
		}
		pipe.RPush(ctx, key, serializedMessage)
	}

	if rcm.ttl > 0 {
		pipe.Expire(ctx, key, rcm.ttl)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add messages in batch to redis for session %s: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) ClearHistory(ctx context.Context, sessionID string) error {
	key := rcm.buildKey(sessionID)

	if err := rcm.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear chat history from redis for session %s: %w", sessionID, err)
	}
	return nil
}

var _ ChatMemory = (*RedisChatMemory)(nil)
var _ ChatMemory = (*InMemoryChatMemory)(nil)
