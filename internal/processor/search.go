package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hr-agent-go/internal/agent"
	appLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/storage/models"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/internal/types"
)

const (
	// DefaultPageSize 搜索与列表的默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 单页上限
	MaxPageSize = 100

	// 检索存储故障时的降级回复
	degradedReply = "抱歉，简历检索服务暂时不可用，请稍后再试。"
	// 意图为闲聊且模型未给出回复时的兜底
	fallbackReply = "您好，我可以帮您检索已入库的简历，例如\"找有三年以上Go经验的候选人\"。"
)

// SearchOrchestrator 聊天查询编排器
// 负责: 意图识别 -> 结构化检索 -> 结果组稿 -> 会话与流水记录
type SearchOrchestrator struct {
	intents  IntentParser
	indexer  DocumentIndexer
	memory   agent.ChatMemory
	recorder UploadRecorder

	defaultPageSize int
	logger          zerolog.Logger
}

// OrchestratorOption 编排器配置选项
type OrchestratorOption func(*SearchOrchestrator)

// WithChatMemory 设置会话历史存储
func WithChatMemory(memory agent.ChatMemory) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		o.memory = memory
	}
}

// WithQueryRecorder 设置查询流水记录器
func WithQueryRecorder(recorder UploadRecorder) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		o.recorder = recorder
	}
}

// WithDefaultPageSize 设置默认分页大小
func WithDefaultPageSize(n int) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		if n > 0 {
			o.defaultPageSize = n
		}
	}
}

// NewSearchOrchestrator 创建聊天查询编排器
func NewSearchOrchestrator(intents IntentParser, indexer DocumentIndexer, opts ...OrchestratorOption) (*SearchOrchestrator, error) {
	if intents == nil {
		return nil, fmt.Errorf("意图解析器不能为空")
	}
	if indexer == nil {
		return nil, fmt.Errorf("检索存储不能为空")
	}

	o := &SearchOrchestrator{
		intents:         intents,
		indexer:         indexer,
		defaultPageSize: DefaultPageSize,
		logger:          appLogger.Logger.With().Str("component", "search_orchestrator").Logger(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// HandleChatQuery 处理一轮自然语言查询
// 检索存储故障时降级为道歉回复加空结果，不向上抛错
func (o *SearchOrchestrator) HandleChatQuery(ctx context.Context, sessionID, message string, page, size int) (*types.ChatReply, error) {
	ctx, span := processorTracer.Start(ctx, "processor.HandleChatQuery")
	defer span.End()

	started := time.Now()

	if strings.TrimSpace(message) == "" {
		err := fmt.Errorf("查询消息不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if sessionID == "" {
		sessionID = newSessionID()
	}
	page, size = o.normalizePage(page, size)

	span.SetAttributes(
		attribute.String("chat.session_id", sessionID),
		attribute.String("chat.message", tracing.TruncateString(message, tracing.MaxQueryLength)),
		attribute.Int("chat.page", page),
		attribute.Int("chat.size", size),
	)

	// 1. 意图识别，带上既往会话消息帮助模型理解"再看下一页"这类指代
	history := o.sessionHistory(ctx, sessionID)
	intent, err := o.intents.InterpretMessage(ctx, message, history)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, NewLLMError("", err.Error())
	}

	reply := &types.ChatReply{
		SessionID: sessionID,
		Searched:  intent.NeedSearch,
	}

	// 2. 不需要检索时直接用模型回复
	if !intent.NeedSearch {
		reply.Reply = intent.Reply
		if reply.Reply == "" {
			reply.Reply = fallbackReply
		}
		o.appendTurn(ctx, sessionID, message, reply.Reply)
		o.recordQueryLog(ctx, sessionID, message, intent, 0, false, reply.Reply, started)
		span.SetStatus(codes.Ok, "")
		return reply, nil
	}

	// 3. 结构化检索
	from := (page - 1) * size
	docs, scores, total, err := o.indexer.SearchResumes(ctx, intent.Criteria, from, size)
	if err != nil {
		// 存储故障降级: 模型回复后追加道歉说明 + 空结果
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("检索存储查询失败，降级返回空结果")
		span.AddEvent("search_store_degraded")
		reply.Reply = joinReply(intent.Reply, degradedReply)
		reply.Results = &types.SearchPage{Page: page, Size: size, Hits: []types.ResumeHit{}}
		o.appendTurn(ctx, sessionID, message, reply.Reply)
		o.recordQueryLog(ctx, sessionID, message, intent, 0, true, reply.Reply, started)
		span.SetStatus(codes.Ok, "degraded")
		return reply, nil
	}

	// 4. 组稿
	hits := buildHits(docs, scores)
	reply.Results = &types.SearchPage{
		Total: total,
		Page:  page,
		Size:  size,
		Hits:  hits,
	}
	reply.Reply = o.composeReply(intent, total, page, size, hits)

	o.appendTurn(ctx, sessionID, message, reply.Reply)
	o.recordQueryLog(ctx, sessionID, message, intent, total, false, reply.Reply, started)

	span.SetAttributes(attribute.Int("search.total_hits", total))
	span.SetStatus(codes.Ok, "")
	return reply, nil
}

// ListResumes 分页列出全部简历，按上传时间倒序
func (o *SearchOrchestrator) ListResumes(ctx context.Context, page, size int) (*types.PaginatedResumeResponse, error) {
	ctx, span := processorTracer.Start(ctx, "processor.ListResumes")
	defer span.End()

	page, size = o.normalizePage(page, size)
	from := (page - 1) * size

	docs, total, err := o.indexer.ListAll(ctx, from, size)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return nil, NewStoreError("", err.Error())
	}

	span.SetAttributes(attribute.Int("list.total", total))
	span.SetStatus(codes.Ok, "")
	return &types.PaginatedResumeResponse{
		Total:   total,
		Page:    page,
		Size:    size,
		Resumes: docs,
	}, nil
}

// composeReply 组装最终的自然语言回复
func (o *SearchOrchestrator) composeReply(intent *types.SearchIntent, total, page, size int, hits []types.ResumeHit) string {
	var sb strings.Builder

	if intent.Reply != "" {
		sb.WriteString(intent.Reply)
		sb.WriteString("\n")
	}

	if total == 0 {
		sb.WriteString("没有找到符合条件的简历。")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("共找到 %d 份符合条件的简历", total))
	totalPages := (total + size - 1) / size
	if totalPages > 1 {
		sb.WriteString(fmt.Sprintf("（第 %d/%d 页）", page, totalPages))
	}
	sb.WriteString("：\n")

	// 每条命中一行固定格式: 姓名 | 学历 | 评分
	for i, hit := range hits {
		name := hit.CandidateName
		if name == "" {
			name = "未知候选人"
		}
		line := fmt.Sprintf("%d. %s", (page-1)*size+i+1, name)
		if hit.Education != "" {
			line += fmt.Sprintf("，学历: %s", hit.Education)
		}
		if hit.Score != "" {
			line += fmt.Sprintf("，评分: %s", hit.Score)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// buildHits 将检索文档和相关度分数组装为命中列表
func buildHits(docs []types.ResumeDocument, scores []float64) []types.ResumeHit {
	hits := make([]types.ResumeHit, 0, len(docs))
	for i, doc := range docs {
		hit := types.ResumeHit{
			FileID:        doc.FileID,
			CandidateName: doc.CandidateName,
			Position:      doc.Position,
			Score:         doc.Profile.Score,
			Skills:        doc.Profile.Skills,
		}
		if len(doc.Profile.Education) > 0 {
			hit.Education = doc.Profile.Education[0]
		}
		if hit.CandidateName == "" {
			hit.CandidateName = doc.Profile.Name
		}
		if i < len(scores) {
			hit.Relevance = scores[i]
		}
		hits = append(hits, hit)
	}
	return hits
}

func (o *SearchOrchestrator) normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = o.defaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// sessionHistory 读取既往会话消息，读取失败时按无历史处理
func (o *SearchOrchestrator) sessionHistory(ctx context.Context, sessionID string) []*schema.Message {
	if o.memory == nil {
		return nil
	}
	history, err := o.memory.GetHistory(ctx, sessionID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("读取会话历史失败")
		return nil
	}
	return history
}

// appendTurn 将一轮对话(用户消息+助手回复)写入会话历史
func (o *SearchOrchestrator) appendTurn(ctx context.Context, sessionID, userMessage, assistantReply string) {
	if o.memory == nil {
		return
	}
	turn := []*schema.Message{
		schema.UserMessage(userMessage),
		schema.AssistantMessage(assistantReply, nil),
	}
	if err := o.memory.AddMessages(ctx, sessionID, turn); err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("写入会话历史失败")
	}
}

// ClearSession 清除一个会话的全部历史，会话不存在时静默成功
func (o *SearchOrchestrator) ClearSession(ctx context.Context, sessionID string) error {
	if o.memory == nil || sessionID == "" {
		return nil
	}
	return o.memory.ClearHistory(ctx, sessionID)
}

// joinReply 在模型回复之后追加补充说明
func joinReply(modelReply, note string) string {
	if modelReply == "" {
		return note
	}
	return modelReply + "\n" + note
}

// recordQueryLog 落一条查询流水，尽力而为
func (o *SearchOrchestrator) recordQueryLog(ctx context.Context, sessionID, message string, intent *types.SearchIntent, total int, degraded bool, reply string, started time.Time) {
	if o.recorder == nil {
		return
	}
	criteriaJSON, err := models.StructToJSON(intent.Criteria)
	if err != nil {
		criteriaJSON = models.StringToJSON("{}")
	}
	entry := &models.ChatQueryLog{
		SessionID:     sessionID,
		UserMessage:   message,
		NeedSearch:    intent.NeedSearch,
		CriteriaJSON:  criteriaJSON,
		TotalHits:     total,
		StoreDegraded: degraded,
		ReplyExcerpt:  tracing.TruncateString(reply, 500),
		ElapsedMillis: time.Since(started).Milliseconds(),
	}
	if err := o.recorder.SaveChatQueryLog(ctx, entry); err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("保存查询流水失败")
	}
}

// newSessionID 生成会话ID，UUID生成失败时退化为时间戳
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	return id.String()
}
