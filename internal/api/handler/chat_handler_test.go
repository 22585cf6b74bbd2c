package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/agent"
	"hr-agent-go/internal/api/handler"
	appconfig "hr-agent-go/internal/config"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/types"
)

func newChatEngine(t *testing.T, intents processor.IntentParser, indexer processor.DocumentIndexer) *route.Engine {
	t.Helper()

	orchestrator, err := processor.NewSearchOrchestrator(intents, indexer)
	require.NoError(t, err)

	engine := route.NewEngine(config.NewOptions(nil))
	h := handler.NewChatHandler(&appconfig.Config{}, orchestrator)
	engine.POST("/api/v1/chat/query", h.HandleChatQuery)
	return engine
}

func performChatQuery(t *testing.T, engine *route.Engine, body string) *ut.ResponseRecorder {
	t.Helper()
	buf := bytes.NewBufferString(body)
	return ut.PerformRequest(engine, "POST", "/api/v1/chat/query",
		&ut.Body{Body: buf, Len: buf.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func TestHandleChatQuerySearch(t *testing.T) {
	intents := &stubIntentParser{intent: &types.SearchIntent{
		NeedSearch: true,
		Criteria:   types.SearchCriteria{Position: "Go工程师"},
	}}
	indexer := &stubIndexer{
		docs:   []types.ResumeDocument{{FileID: "f1", CandidateName: "张三", Profile: types.ExtractedProfile{Score: "85"}}},
		scores: []float64{2.5},
		total:  1,
	}

	engine := newChatEngine(t, intents, indexer)
	w := performChatQuery(t, engine, `{"session_id": "sess-1", "message": "帮我找Go工程师"}`)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var reply types.ChatReply
	require.NoError(t, json.Unmarshal(resp.Body(), &reply))
	assert.Equal(t, "sess-1", reply.SessionID)
	assert.True(t, reply.Searched)
	require.NotNil(t, reply.Results)
	assert.Equal(t, 1, reply.Results.Total)
	assert.Contains(t, reply.Reply, "张三")

	// 对外字段名: need_search标记是否检索，data承载分页结果
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Body(), &raw))
	assert.Contains(t, raw, "need_search")
	assert.Contains(t, raw, "data")
	var page map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["data"], &page))
	assert.Contains(t, page, "data")
}

func TestHandleChatQueryChitchat(t *testing.T) {
	intents := &stubIntentParser{intent: &types.SearchIntent{
		NeedSearch: false,
		Reply:      "你好！我可以帮你检索简历。",
	}}

	engine := newChatEngine(t, intents, &stubIndexer{})
	w := performChatQuery(t, engine, `{"message": "你好"}`)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var reply types.ChatReply
	require.NoError(t, json.Unmarshal(resp.Body(), &reply))
	assert.False(t, reply.Searched)
	assert.Nil(t, reply.Results)
	// 未提供session_id时服务端生成
	assert.NotEmpty(t, reply.SessionID)
}

func TestHandleChatQueryStoreDegradationReturns200(t *testing.T) {
	intents := &stubIntentParser{intent: &types.SearchIntent{
		NeedSearch: true,
		Criteria:   types.SearchCriteria{Position: "Go工程师"},
	}}
	indexer := &stubIndexer{searchErr: errors.New("es down")}

	engine := newChatEngine(t, intents, indexer)
	w := performChatQuery(t, engine, `{"message": "帮我找Go工程师"}`)
	resp := w.Result()
	// 存储故障在编排器内降级，对外仍是200
	require.Equal(t, 200, resp.StatusCode())

	var reply types.ChatReply
	require.NoError(t, json.Unmarshal(resp.Body(), &reply))
	assert.Contains(t, reply.Reply, "暂时不可用")
	require.NotNil(t, reply.Results)
	assert.Empty(t, reply.Results.Hits)
}

func TestHandleChatQueryLLMFailureReturns502(t *testing.T) {
	intents := &stubIntentParser{err: errors.New("模型超时")}

	engine := newChatEngine(t, intents, &stubIndexer{})
	w := performChatQuery(t, engine, `{"message": "帮我找人"}`)
	assert.Equal(t, 502, w.Result().StatusCode())
}

func TestHandleClearSession(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	orchestrator, err := processor.NewSearchOrchestrator(
		&stubIntentParser{intent: &types.SearchIntent{NeedSearch: false, Reply: "你好"}},
		&stubIndexer{},
		processor.WithChatMemory(memory),
	)
	require.NoError(t, err)

	engine := route.NewEngine(config.NewOptions(nil))
	h := handler.NewChatHandler(&appconfig.Config{}, orchestrator)
	engine.POST("/api/v1/chat/query", h.HandleChatQuery)
	engine.DELETE("/api/v1/chat/session/:session_id", h.HandleClearSession)

	w := performChatQuery(t, engine, `{"session_id": "sess-1", "message": "你好"}`)
	require.Equal(t, 200, w.Result().StatusCode())

	w = ut.PerformRequest(engine, "DELETE", "/api/v1/chat/session/sess-1", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	history, err := memory.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandleChatQueryBadRequest(t *testing.T) {
	engine := newChatEngine(t, &stubIntentParser{}, &stubIndexer{})

	// 空消息
	w := performChatQuery(t, engine, `{"message": "   "}`)
	assert.Equal(t, 400, w.Result().StatusCode())

	// 非法JSON
	w = performChatQuery(t, engine, `{"message": `)
	assert.Equal(t, 400, w.Result().StatusCode())
}
