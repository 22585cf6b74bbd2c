package agent

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryChatMemoryBasicFlow(t *testing.T) {
	memory := NewInMemoryChatMemory()
	ctx := context.Background()
	sessionID := "session-1"

	// 不存在的会话返回空切片而非 nil
	history, err := memory.GetHistory(ctx, sessionID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	require.NoError(t, memory.AddMessage(ctx, sessionID, schema.UserMessage("帮我找Go工程师")))
	require.NoError(t, memory.AddMessages(ctx, sessionID, []*schema.Message{
		schema.AssistantMessage("好的，正在检索", nil),
		schema.UserMessage("只要3年以上的"),
	}))

	history, err = memory.GetHistory(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "帮我找Go工程师", history[0].Content)
	assert.Equal(t, schema.Assistant, history[1].Role)

	// 不同会话相互隔离
	other, err := memory.GetHistory(ctx, "session-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, memory.ClearHistory(ctx, sessionID))
	history, err = memory.GetHistory(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInMemoryChatMemoryRejectsNilMessage(t *testing.T) {
	memory := NewInMemoryChatMemory()
	ctx := context.Background()

	assert.Error(t, memory.AddMessage(ctx, "s", nil))
	assert.Error(t, memory.AddMessages(ctx, "s", []*schema.Message{schema.UserMessage("ok"), nil}))
	// 批量添加遇到 nil 时整体拒绝，不应写入任何消息
	history, err := memory.GetHistory(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInMemoryChatMemoryReturnsCopy(t *testing.T) {
	memory := NewInMemoryChatMemory()
	ctx := context.Background()

	require.NoError(t, memory.AddMessage(ctx, "s", schema.UserMessage("原始消息")))

	history, err := memory.GetHistory(ctx, "s")
	require.NoError(t, err)
	// 修改返回的切片不应影响内部存储
	history[0] = schema.UserMessage("被篡改")

	again, err := memory.GetHistory(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "原始消息", again[0].Content)
}
