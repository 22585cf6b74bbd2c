package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	appLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/internal/types"
)

// LLMIntentParser 使用LLM理解聊天消息并产出检索意图
type LLMIntentParser struct {
	llm     ChatCompleter
	logger  zerolog.Logger
	timeout time.Duration
}

// IntentParserOption 意图识别器的配置选项
type IntentParserOption func(*LLMIntentParser)

// WithIntentTimeout 设置单次意图识别的总超时
func WithIntentTimeout(d time.Duration) IntentParserOption {
	return func(p *LLMIntentParser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewLLMIntentParser 创建聊天意图识别器
func NewLLMIntentParser(llm ChatCompleter, options ...IntentParserOption) *LLMIntentParser {
	p := &LLMIntentParser{
		llm:     llm,
		logger:  appLogger.Logger.With().Str("component", "intent_parser").Logger(),
		timeout: 30 * time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// InterpretMessage 识别聊天消息的检索意图，history为同一会话的既往消息
// 解析采用宽松模式: 缺失的条件键用默认值填充，不会因缺键报错
func (p *LLMIntentParser) InterpretMessage(ctx context.Context, message string, history []*schema.Message) (*types.SearchIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	systemPrompt, userPrompt := BuildIntentPrompt(message, history)

	raw, err := p.llm.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("意图识别调用LLM失败: %w", err)
	}

	intent, err := ParseSearchIntent(raw)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("raw_snippet", tracing.SafeLLMSnippet(raw)).
			Msg("意图识别结果解析失败")
		return nil, err
	}

	p.logger.Debug().
		Bool("need_search", intent.NeedSearch).
		Msg("意图识别完成")
	return intent, nil
}
