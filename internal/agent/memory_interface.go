package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ChatMemory 定义了聊天记忆存储的接口
type ChatMemory interface {
	// GetHistory 获取指定会话ID的聊天历史记录。
	// 如果会话不存在，应返回一个空的 Message 切片和 nil 错误。
	GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error)

	// AddMessage 向指定会话ID的聊天历史记录中添加一条消息。
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// AddMessages 向指定会话ID的聊天历史记录中批量添加多条消息。
	AddMessages(ctx context.Context, sessionID string, messages []*schema.Message) error

	// ClearHistory 清除指定会话ID的所有聊天历史记录。
	// 如果会话不存在，此操作应静默成功。
	ClearHistory(ctx context.Context, sessionID string) error
}

// InMemoryChatMemory 是 ChatMemory 接口的一个简单内存实现。
// 注意：此实现不是持久化的，仅用于测试和简单场景。
type InMemoryChatMemory struct {
	// 使用读写锁以支持并发访问
	mu sync.RWMutex
	// histories map 的键是 sessionID，值是该会话的消息列表
	histories map[string][]*schema.Message
}

// NewInMemoryChatMemory 创建一个新的 InMemoryChatMemory 实例。
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{
		histories: make(map[string][]*schema.Message),
	}
}

// GetHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) GetHistory(_ context.Context, sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.histories[sessionID]
	if !ok {
		// 如果会话不存在，返回空切片而不是 nil，以方便调用者处理
		return []*schema.Message{}, nil
	}
	// 返回历史记录的副本，以防止外部修改内部存储
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessage 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("cannot add nil message to chat history for session %s", sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], message)
	return nil
}

// AddMessages 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessages(_ context.Context, sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("cannot add nil message in a batch to chat history for session %s", sessionID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], messages...)
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) ClearHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.histories, sessionID)
	return nil
}
