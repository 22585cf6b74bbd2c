package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/internal/types"
)

// ChatCompleter 发起一次对话补全并返回原始文本
// 传输层重试由实现负责，解析失败不会触发重试
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// LLMProfileExtractor 使用LLM从简历文本中抽取结构化档案
type LLMProfileExtractor struct {
	llm     ChatCompleter
	logger  zerolog.Logger
	timeout time.Duration
}

// ProfileExtractorOption 抽取器的配置选项
type ProfileExtractorOption func(*LLMProfileExtractor)

// WithExtractTimeout 设置单次抽取的总超时
func WithExtractTimeout(d time.Duration) ProfileExtractorOption {
	return func(e *LLMProfileExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewLLMProfileExtractor 创建简历档案抽取器
func NewLLMProfileExtractor(llm ChatCompleter, options ...ProfileExtractorOption) *LLMProfileExtractor {
	e := &LLMProfileExtractor{
		llm:     llm,
		logger:  appLogger.Logger.With().Str("component", "profile_extractor").Logger(),
		timeout: 120 * time.Second,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// ExtractProfile 执行一次完整抽取: 构造提示词 -> 调用LLM -> 严格解析
// 返回解析出的档案和模型原始响应（失败时用于日志与排查）
func (e *LLMProfileExtractor) ExtractProfile(ctx context.Context, resumeText, jobDescription string) (*types.ExtractedProfile, string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	systemPrompt, userPrompt := BuildExtractionPrompt(resumeText, jobDescription)

	startTime := time.Now()
	raw, err := e.llm.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, "", fmt.Errorf("简历抽取调用LLM失败: %w", err)
	}

	profile, err := ParseExtractedProfile(raw)
	if err != nil {
		// 解析失败不重试，保留原始响应片段便于定位
		e.logger.Warn().
			Err(err).
			Str("raw_snippet", tracing.SafeLLMSnippet(raw)).
			Msg("简历抽取结果解析失败")
		return nil, raw, err
	}

	e.logger.Info().
		Str("candidate", tracing.MaskPII(profile.Name)).
		Str("score", profile.Score).
		Dur("duration", time.Since(startTime)).
		Msg("简历抽取完成")
	return profile, raw, nil
}
