package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/processor"
)

// ResumePaginatedHandler 分页简历列表接口
type ResumePaginatedHandler struct {
	cfg          *config.Config
	orchestrator *processor.SearchOrchestrator
}

// NewResumePaginatedHandler 创建分页列表处理器
func NewResumePaginatedHandler(cfg *config.Config, orchestrator *processor.SearchOrchestrator) *ResumePaginatedHandler {
	return &ResumePaginatedHandler{
		cfg:          cfg,
		orchestrator: orchestrator,
	}
}

// HandlePaginatedResumeList 分页列出已入库的简历，按上传时间倒序
// 查询参数: page(从1开始)、size
func (h *ResumePaginatedHandler) HandlePaginatedResumeList(ctx context.Context, c *app.RequestContext) {
	page := parsePositiveInt(c.Query("page"), 1)
	size := parsePositiveInt(c.Query("size"), 0)

	resp, err := h.orchestrator.ListResumes(ctx, page, size)
	if err != nil {
		logger.Warn().Err(err).Msg("查询简历列表失败")
		c.JSON(consts.StatusBadGateway, utils.H{"error": "检索存储暂时不可用，请稍后重试"})
		return
	}

	c.JSON(consts.StatusOK, resp)
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
