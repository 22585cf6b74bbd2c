package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	appLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/pkg/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var llmTracer = otel.Tracer("hr-agent-go/internal/agent")

const (
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	defaultDeepSeekModel   = "deepseek-chat"

	// 重试策略: 最多3次尝试，指数退避，最短4秒，最长10秒
	defaultMaxAttempts     = 3
	defaultRetryMinSeconds = 4
	defaultRetryMaxSeconds = 10
)

// --- OpenAI Compatible Request/Response Structures ---

type OpenAIChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"` // Eino schema.Message is compatible enough for role/content
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type OpenAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type OpenAIChatChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
}

// DeepSeekChatModel 实现 model.ChatModel 接口，通过OpenAI兼容接口与DeepSeek交互
type DeepSeekChatModel struct {
	apiKey      string
	modelName   string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *ratelimit.TokenBucket
	logger      zerolog.Logger

	maxAttempts  int
	retryMinWait time.Duration
	retryMaxWait time.Duration
}

// DeepSeekOption DeepSeek客户端的配置选项
type DeepSeekOption func(*DeepSeekChatModel)

// WithTemperature 设置采样温度
func WithTemperature(t float64) DeepSeekOption {
	return func(m *DeepSeekChatModel) {
		m.temperature = t
	}
}

// WithMaxTokens 设置响应的最大token数
func WithMaxTokens(n int) DeepSeekOption {
	return func(m *DeepSeekChatModel) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(d time.Duration) DeepSeekOption {
	return func(m *DeepSeekChatModel) {
		m.httpClient.Timeout = d
	}
}

// WithQPMLimit 设置每分钟请求数限制，0表示不限流
func WithQPMLimit(qpm int) DeepSeekOption {
	return func(m *DeepSeekChatModel) {
		if qpm > 0 {
			m.limiter = ratelimit.NewTokenBucket(qpm, 0)
		}
	}
}

// WithRetryPolicy 设置重试策略: 总尝试次数与退避区间(秒)
func WithRetryPolicy(maxAttempts, minSeconds, maxSeconds int) DeepSeekOption {
	return func(m *DeepSeekChatModel) {
		if maxAttempts > 0 {
			m.maxAttempts = maxAttempts
		}
		if minSeconds > 0 {
			m.retryMinWait = time.Duration(minSeconds) * time.Second
		}
		if maxSeconds > 0 {
			m.retryMaxWait = time.Duration(maxSeconds) * time.Second
		}
	}
}

// NewDeepSeekChatModel 创建一个新的 DeepSeekChatModel 实例
func NewDeepSeekChatModel(apiKey, modelName, baseURL string, options ...DeepSeekOption) (*DeepSeekChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultDeepSeekModel
	}

	url := strings.TrimRight(baseURL, "/")
	if strings.TrimSpace(url) == "" {
		url = defaultDeepSeekBaseURL
	}

	m := &DeepSeekChatModel{
		apiKey:       apiKey,
		modelName:    mn,
		baseURL:      url,
		temperature:  0.7,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		logger:       appLogger.Logger.With().Str("component", "deepseek_model").Logger(),
		maxAttempts:  defaultMaxAttempts,
		retryMinWait: defaultRetryMinSeconds * time.Second,
		retryMaxWait: defaultRetryMaxSeconds * time.Second,
	}

	for _, option := range options {
		option(m)
	}

	m.logger.Info().Str("base_url", m.baseURL).Str("model", m.modelName).Msg("DeepSeek LLM 客户端已创建")
	return m, nil
}

// Generate 实现 model.ChatModel 接口
// 只做一次传输调用，不含重试；重试语义见 GenerateWithRetry
func (m *DeepSeekChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	reqPayload := OpenAIChatCompletionRequest{
		Model:       m.modelName,
		Messages:    messages,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	endpoint := m.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, tracing.SafeLLMSnippet(string(bodyBytes)))
	}

	var openAIResp OpenAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &openAIResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, tracing.SafeLLMSnippet(string(bodyBytes)))
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", tracing.SafeLLMSnippet(string(bodyBytes)))
	}

	apiMessage := openAIResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.RoleType("assistant")
	}

	return resultMessage, nil
}

// GenerateWithRetry 带重试的生成调用
// 仅重试传输层/HTTP层失败；响应内容的解析问题由调用方处理且不触发重试
func (m *DeepSeekChatModel) GenerateWithRetry(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	ctx, span := llmTracer.Start(ctx, "llm.chat_completion", trace.WithAttributes(
		attribute.String("llm.model", m.modelName),
		attribute.Int("llm.message_count", len(messages)),
	))
	defer span.End()

	var lastErr error
	wait := m.retryMinWait

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				tracing.RecordError(span, err, tracing.ErrorTypeTimeout)
				return nil, err
			}
		}

		msg, err := m.Generate(ctx, messages)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt))
			return msg, nil
		}
		lastErr = err

		if attempt == m.maxAttempts {
			break
		}

		m.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("LLM调用失败，准备重试")
		tracing.RecordLLMRetry(span, attempt, wait.Seconds(), err.Error())

		select {
		case <-ctx.Done():
			tracing.RecordError(span, ctx.Err(), tracing.ErrorTypeTimeout)
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		// 指数退避，封顶
		wait *= 2
		if wait > m.retryMaxWait {
			wait = m.retryMaxWait
		}
	}

	tracing.RecordError(span, lastErr, tracing.ErrorTypeLLM)
	return nil, fmt.Errorf("LLM调用在 %d 次尝试后仍失败: %w", m.maxAttempts, lastErr)
}

// ChatCompletion 便捷方法: 以系统提示词+用户内容发起一次带重试的调用，返回原始文本
func (m *DeepSeekChatModel) ChatCompletion(ctx context.Context, systemPrompt, userContent string) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	messages = append(messages, schema.UserMessage(userContent))

	msg, err := m.GenerateWithRetry(ctx, messages)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Stream 实现 model.ChatModel 接口 (未实现)
func (m *DeepSeekChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("DeepSeekChatModel 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口，当前不支持工具调用
func (m *DeepSeekChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return fmt.Errorf("DeepSeekChatModel 不支持工具调用")
	}
	return nil
}

var _ model.ChatModel = (*DeepSeekChatModel)(nil)
