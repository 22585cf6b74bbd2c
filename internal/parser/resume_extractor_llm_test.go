package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatCompleter 记录收到的提示词并返回预设响应
type mockChatCompleter struct {
	response     string
	err          error
	systemPrompt string
	userContent  string
	calls        int
}

func (m *mockChatCompleter) ChatCompletion(ctx context.Context, systemPrompt, userContent string) (string, error) {
	m.calls++
	m.systemPrompt = systemPrompt
	m.userContent = userContent
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

const validProfileResponse = `{
  "name": "张三",
  "phone": "13800138000",
  "email": "zhangsan@example.com",
  "education": ["某大学 本科"],
  "work_experience": ["某公司 3年"],
  "skills": ["Go"],
  "projects": [],
  "other": {},
  "score": "78"
}`

func TestExtractProfileSuccess(t *testing.T) {
	llm := &mockChatCompleter{response: validProfileResponse}
	extractor := NewLLMProfileExtractor(llm)

	profile, raw, err := extractor.ExtractProfile(context.Background(), "张三的简历全文", "")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "张三", profile.Name)
	assert.Equal(t, "78", profile.Score)
	assert.Equal(t, validProfileResponse, raw)
	assert.Equal(t, 1, llm.calls)
	// 简历全文应出现在用户消息中
	assert.Contains(t, llm.userContent, "张三的简历全文")
}

func TestExtractProfileWithJobDescription(t *testing.T) {
	llm := &mockChatCompleter{response: validProfileResponse}
	extractor := NewLLMProfileExtractor(llm)

	_, _, err := extractor.ExtractProfile(context.Background(), "简历文本", "负责Go后端服务开发")
	require.NoError(t, err)
	// 提供岗位描述时，系统提示词应包含岗位内容和加权维度
	assert.Contains(t, llm.systemPrompt, "负责Go后端服务开发")
	assert.Contains(t, llm.systemPrompt, "目标岗位描述")
}

func TestExtractProfileLLMError(t *testing.T) {
	llmErr := errors.New("连接超时")
	llm := &mockChatCompleter{err: llmErr}
	extractor := NewLLMProfileExtractor(llm)

	profile, raw, err := extractor.ExtractProfile(context.Background(), "简历文本", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, llmErr)
	assert.Nil(t, profile)
	assert.Empty(t, raw)
}

func TestExtractProfileParseFailureNoRetry(t *testing.T) {
	// 响应缺少必需字段，解析失败但不应触发二次调用
	llm := &mockChatCompleter{response: `{"name": "张三"}`}
	extractor := NewLLMProfileExtractor(llm)

	profile, raw, err := extractor.ExtractProfile(context.Background(), "简历文本", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldMissing)
	assert.Nil(t, profile)
	// 原始响应返回给调用方用于排查
	assert.Equal(t, `{"name": "张三"}`, raw)
	assert.Equal(t, 1, llm.calls)
}

func TestInterpretMessageSuccess(t *testing.T) {
	llm := &mockChatCompleter{response: `{"need_search": true, "search_criteria": {"position": "Java开发", "experience": "3年以上"}, "reply": ""}`}
	p := NewLLMIntentParser(llm)

	intent, err := p.InterpretMessage(context.Background(), "帮我找3年以上的Java开发", nil)
	require.NoError(t, err)
	assert.True(t, intent.NeedSearch)
	assert.Equal(t, "Java开发", intent.Criteria.Position)
	assert.Equal(t, "3年以上", intent.Criteria.Experience)
	assert.Contains(t, llm.userContent, "帮我找3年以上的Java开发")
}

func TestInterpretMessageCarriesHistory(t *testing.T) {
	llm := &mockChatCompleter{response: `{"need_search": true, "search_criteria": {"position": "Go工程师"}, "reply": ""}`}
	p := NewLLMIntentParser(llm)

	history := []*schema.Message{
		schema.UserMessage("帮我找Go工程师"),
		schema.AssistantMessage("共找到 12 份符合条件的简历", nil),
	}
	_, err := p.InterpretMessage(context.Background(), "再看下一页", history)
	require.NoError(t, err)

	// 历史消息按角色拼入提示词，再附上当前消息
	assert.Contains(t, llm.userContent, "对话历史：")
	assert.Contains(t, llm.userContent, "用户: 帮我找Go工程师")
	assert.Contains(t, llm.userContent, "助手: 共找到 12 份符合条件的简历")
	assert.Contains(t, llm.userContent, "HR的消息：再看下一页")
}

func TestInterpretMessageChitchat(t *testing.T) {
	llm := &mockChatCompleter{response: `{"need_search": False, "search_criteria": {}, "reply": "你好！我可以帮你检索简历库。"}`}
	p := NewLLMIntentParser(llm)

	intent, err := p.InterpretMessage(context.Background(), "你好", nil)
	require.NoError(t, err)
	assert.False(t, intent.NeedSearch)
	assert.Equal(t, "你好！我可以帮你检索简历库。", intent.Reply)
	assert.True(t, intent.Criteria.IsEmpty())
}

func TestInterpretMessageLLMError(t *testing.T) {
	llmErr := errors.New("服务不可用")
	llm := &mockChatCompleter{err: llmErr}
	p := NewLLMIntentParser(llm)

	intent, err := p.InterpretMessage(context.Background(), "帮我找人", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, llmErr)
	assert.Nil(t, intent)
}

func TestInterpretMessageMalformedResponse(t *testing.T) {
	llm := &mockChatCompleter{response: "模型没有输出任何结构化内容"}
	p := NewLLMIntentParser(llm)

	intent, err := p.InterpretMessage(context.Background(), "帮我找人", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoJSONInResponse)
	assert.Nil(t, intent)
}

func TestBuildExtractionPromptGeneralScoring(t *testing.T) {
	system, user := BuildExtractionPrompt("简历文本", "  ")
	// 岗位描述为空白时走通用评分标准
	assert.Contains(t, system, "无目标岗位")
	assert.NotContains(t, system, "目标岗位描述")
	assert.Contains(t, user, "简历文本")
}
