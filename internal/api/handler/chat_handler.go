package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/processor"
)

// ChatQueryRequest 聊天查询请求体
type ChatQueryRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Page      int    `json:"page"`
	Size      int    `json:"size"`
}

// ChatHandler 自然语言查询接口
type ChatHandler struct {
	cfg          *config.Config
	orchestrator *processor.SearchOrchestrator
}

// NewChatHandler 创建聊天查询处理器
func NewChatHandler(cfg *config.Config, orchestrator *processor.SearchOrchestrator) *ChatHandler {
	return &ChatHandler{
		cfg:          cfg,
		orchestrator: orchestrator,
	}
}

// HandleChatQuery 处理一轮自然语言查询
// 检索存储故障在编排器内降级，仍返回200；意图识别的模型故障返回502
func (h *ChatHandler) HandleChatQuery(ctx context.Context, c *app.RequestContext) {
	var req ChatQueryRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式不正确"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "message不能为空"})
		return
	}

	reply, err := h.orchestrator.HandleChatQuery(ctx, req.SessionID, req.Message, req.Page, req.Size)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("session_id", req.SessionID).
			Msg("聊天查询处理失败")
		if errors.Is(err, processor.ErrLLMUnavailable) {
			c.JSON(consts.StatusBadGateway, utils.H{"error": "意图识别服务暂时不可用，请稍后重试"})
			return
		}
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询处理失败"})
		return
	}

	c.JSON(consts.StatusOK, reply)
}

// HandleClearSession 清除一个会话的历史记录，会话不存在时同样返回200
func (h *ChatHandler) HandleClearSession(ctx context.Context, c *app.RequestContext) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "session_id不能为空"})
		return
	}

	if err := h.orchestrator.ClearSession(ctx, sessionID); err != nil {
		logger.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("清除会话历史失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "清除会话历史失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"session_id": sessionID, "cleared": true})
}
