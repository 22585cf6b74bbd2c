package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/agent"
	"hr-agent-go/internal/types"
)

type fakeIntentParser struct {
	intent *types.SearchIntent
	err    error

	// 记录每次调用收到的历史消息数
	historyLens []int
}

func (f *fakeIntentParser) InterpretMessage(ctx context.Context, message string, history []*schema.Message) (*types.SearchIntent, error) {
	f.historyLens = append(f.historyLens, len(history))
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func searchIntent(criteria types.SearchCriteria) *types.SearchIntent {
	return &types.SearchIntent{NeedSearch: true, Criteria: criteria}
}

func TestHandleChatQuerySearchSuccess(t *testing.T) {
	indexer := &fakeIndexer{
		searchDocs: []types.ResumeDocument{
			{
				FileID:        "f1",
				CandidateName: "张三",
				Position:      "Go工程师",
				Profile:       types.ExtractedProfile{Score: "85", Education: []string{"本科 计算机科学"}},
			},
			{
				FileID:  "f2",
				Profile: types.ExtractedProfile{Name: "李四", Score: "72"},
			},
		},
		scores: []float64{3.5, 1.2},
		total:  12,
	}
	memory := agent.NewInMemoryChatMemory()
	recorder := newFakeRecorder()

	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: searchIntent(types.SearchCriteria{Position: "Go工程师"})},
		indexer,
		WithChatMemory(memory),
		WithQueryRecorder(recorder),
	)
	require.NoError(t, err)

	reply, err := o.HandleChatQuery(context.Background(), "sess-1", "帮我找Go工程师", 1, 10)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", reply.SessionID)
	assert.True(t, reply.Searched)
	require.NotNil(t, reply.Results)
	assert.Equal(t, 12, reply.Results.Total)
	require.Len(t, reply.Results.Hits, 2)

	// 相关度分数与文档一一对应
	assert.Equal(t, 3.5, reply.Results.Hits[0].Relevance)
	// 文档缺少候选人姓名时回落到档案姓名
	assert.Equal(t, "李四", reply.Results.Hits[1].CandidateName)

	// 回复包含总数、分页，每条命中为"姓名 | 学历 | 评分"
	assert.Contains(t, reply.Reply, "共找到 12 份符合条件的简历")
	assert.Contains(t, reply.Reply, "第 1/2 页")
	assert.Contains(t, reply.Reply, "1. 张三，学历: 本科 计算机科学，评分: 85")

	// 会话历史: 用户消息 + 助手回复
	history, err := memory.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, schema.Assistant, history[1].Role)

	// 查询流水落库
	require.Len(t, recorder.queryLogs, 1)
	assert.Equal(t, 12, recorder.queryLogs[0].TotalHits)
	assert.False(t, recorder.queryLogs[0].StoreDegraded)
}

func TestHandleChatQueryNoSearchNeeded(t *testing.T) {
	indexer := &fakeIndexer{}
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: &types.SearchIntent{NeedSearch: false, Reply: "你好！我可以帮你检索简历。"}},
		indexer,
	)
	require.NoError(t, err)

	reply, err := o.HandleChatQuery(context.Background(), "sess-1", "你好", 1, 10)
	require.NoError(t, err)

	assert.False(t, reply.Searched)
	assert.Equal(t, "你好！我可以帮你检索简历。", reply.Reply)
	assert.Nil(t, reply.Results)
}

func TestHandleChatQueryFallbackReply(t *testing.T) {
	// 闲聊意图且模型没有给出回复时使用兜底文案
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: &types.SearchIntent{NeedSearch: false}},
		&fakeIndexer{},
	)
	require.NoError(t, err)

	reply, err := o.HandleChatQuery(context.Background(), "sess-1", "在吗", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply.Reply)
}

func TestHandleChatQueryStoreDegradation(t *testing.T) {
	indexer := &fakeIndexer{searchErr: errors.New("es不可用")}
	recorder := newFakeRecorder()

	intent := searchIntent(types.SearchCriteria{Position: "Go工程师"})
	intent.Reply = "好的，正在为您检索Go工程师。"
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: intent},
		indexer,
		WithQueryRecorder(recorder),
	)
	require.NoError(t, err)

	// 存储故障不应向上抛错，而是在模型回复后追加道歉说明并返回空结果
	reply, err := o.HandleChatQuery(context.Background(), "sess-1", "帮我找Go工程师", 1, 10)
	require.NoError(t, err)

	assert.Equal(t, "好的，正在为您检索Go工程师。\n"+degradedReply, reply.Reply)
	assert.True(t, reply.Searched)
	require.NotNil(t, reply.Results)
	assert.Equal(t, 0, reply.Results.Total)
	assert.Empty(t, reply.Results.Hits)

	require.Len(t, recorder.queryLogs, 1)
	assert.True(t, recorder.queryLogs[0].StoreDegraded)
}

func TestHandleChatQueryPassesHistoryToParser(t *testing.T) {
	parser := &fakeIntentParser{intent: &types.SearchIntent{NeedSearch: false, Reply: "好的"}}
	memory := agent.NewInMemoryChatMemory()
	o, err := NewSearchOrchestrator(parser, &fakeIndexer{}, WithChatMemory(memory))
	require.NoError(t, err)

	// 首轮没有历史，第二轮携带上一轮的用户消息和助手回复
	_, err = o.HandleChatQuery(context.Background(), "sess-1", "你好", 1, 10)
	require.NoError(t, err)
	_, err = o.HandleChatQuery(context.Background(), "sess-1", "再看下一页", 1, 10)
	require.NoError(t, err)

	require.Len(t, parser.historyLens, 2)
	assert.Equal(t, 0, parser.historyLens[0])
	assert.Equal(t, 2, parser.historyLens[1])
}

func TestClearSession(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: &types.SearchIntent{NeedSearch: false, Reply: "好的"}},
		&fakeIndexer{},
		WithChatMemory(memory),
	)
	require.NoError(t, err)

	_, err = o.HandleChatQuery(context.Background(), "sess-1", "你好", 1, 10)
	require.NoError(t, err)

	require.NoError(t, o.ClearSession(context.Background(), "sess-1"))
	history, err := memory.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	// 未配置会话存储或空会话ID时静默成功
	bare, err := NewSearchOrchestrator(&fakeIntentParser{}, &fakeIndexer{})
	require.NoError(t, err)
	assert.NoError(t, bare.ClearSession(context.Background(), "sess-1"))
	assert.NoError(t, o.ClearSession(context.Background(), ""))
}

func TestHandleChatQueryLLMFailure(t *testing.T) {
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{err: errors.New("模型超时")},
		&fakeIndexer{},
	)
	require.NoError(t, err)

	_, err = o.HandleChatQuery(context.Background(), "sess-1", "帮我找人", 1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}

func TestHandleChatQueryEmptyMessage(t *testing.T) {
	o, err := NewSearchOrchestrator(&fakeIntentParser{}, &fakeIndexer{})
	require.NoError(t, err)

	_, err = o.HandleChatQuery(context.Background(), "sess-1", "   ", 1, 10)
	assert.Error(t, err)
}

func TestHandleChatQueryGeneratesSessionID(t *testing.T) {
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: &types.SearchIntent{NeedSearch: false, Reply: "好的"}},
		&fakeIndexer{},
	)
	require.NoError(t, err)

	reply, err := o.HandleChatQuery(context.Background(), "", "你好", 1, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, reply.SessionID)

	again, err := o.HandleChatQuery(context.Background(), "", "你好", 1, 10)
	require.NoError(t, err)
	assert.NotEqual(t, reply.SessionID, again.SessionID)
}

func TestHandleChatQueryNoHits(t *testing.T) {
	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: searchIntent(types.SearchCriteria{Position: "量子计算工程师"})},
		&fakeIndexer{total: 0},
	)
	require.NoError(t, err)

	reply, err := o.HandleChatQuery(context.Background(), "sess-1", "找量子计算工程师", 1, 10)
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "没有找到符合条件的简历")
	assert.Equal(t, 0, reply.Results.Total)
}

func TestHandleChatQueryNormalizesPaging(t *testing.T) {
	type captured struct {
		from, size int
	}
	var got captured
	indexer := &capturingIndexer{onSearch: func(from, size int) {
		got = captured{from: from, size: size}
	}}

	o, err := NewSearchOrchestrator(
		&fakeIntentParser{intent: searchIntent(types.SearchCriteria{Position: "Go"})},
		indexer,
		WithDefaultPageSize(20),
	)
	require.NoError(t, err)

	// 非法的page/size回落到默认值
	_, err = o.HandleChatQuery(context.Background(), "s", "找Go", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got.from)
	assert.Equal(t, 20, got.size)

	// 第3页的偏移 = (3-1)*size
	_, err = o.HandleChatQuery(context.Background(), "s", "找Go", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, got.from)
	assert.Equal(t, 10, got.size)

	// size超过上限被截断
	_, err = o.HandleChatQuery(context.Background(), "s", "找Go", 1, 500)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, got.size)
}

// capturingIndexer 记录检索分页参数
type capturingIndexer struct {
	onSearch func(from, size int)
}

func (c *capturingIndexer) IndexResume(ctx context.Context, doc *types.ResumeDocument) error {
	return nil
}

func (c *capturingIndexer) SearchResumes(ctx context.Context, criteria types.SearchCriteria, from, size int) ([]types.ResumeDocument, []float64, int, error) {
	c.onSearch(from, size)
	return nil, nil, 0, nil
}

func (c *capturingIndexer) ListAll(ctx context.Context, from, size int) ([]types.ResumeDocument, int, error) {
	return nil, 0, nil
}

func TestListResumes(t *testing.T) {
	indexer := &fakeIndexer{
		searchDocs: []types.ResumeDocument{{FileID: "f1"}, {FileID: "f2"}},
		total:      2,
	}
	o, err := NewSearchOrchestrator(&fakeIntentParser{}, indexer)
	require.NoError(t, err)

	resp, err := o.ListResumes(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.Size)
	require.Len(t, resp.Resumes, 2)
}

func TestListResumesStoreFailure(t *testing.T) {
	indexer := &fakeIndexer{listErr: errors.New("es不可用")}
	o, err := NewSearchOrchestrator(&fakeIntentParser{}, indexer)
	require.NoError(t, err)

	_, err = o.ListResumes(context.Background(), 1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
