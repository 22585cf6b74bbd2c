package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/processor"
)

// ResumeAdminHandler 简历详情与删除接口
type ResumeAdminHandler struct {
	admin *processor.ResumeAdmin
}

// NewResumeAdminHandler 创建详情与删除处理器
func NewResumeAdminHandler(admin *processor.ResumeAdmin) *ResumeAdminHandler {
	return &ResumeAdminHandler{admin: admin}
}

// HandleResumeDetail 按文件标识返回上传记录详情
func (h *ResumeAdminHandler) HandleResumeDetail(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")

	detail, err := h.admin.GetResumeDetail(ctx, fileID)
	if err != nil {
		status, message := classifyAdminError(err)
		logger.Warn().Err(err).Str("file_id", fileID).Msg("查询简历详情失败")
		c.JSON(status, utils.H{"error": message})
		return
	}

	c.JSON(consts.StatusOK, detail)
}

// HandleResumeText 返回归档的解析文本
func (h *ResumeAdminHandler) HandleResumeText(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")

	text, err := h.admin.GetParsedText(ctx, fileID)
	if err != nil {
		status, message := classifyAdminError(err)
		logger.Warn().Err(err).Str("file_id", fileID).Msg("查询解析文本失败")
		c.JSON(status, utils.H{"error": message})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"file_id": fileID, "text": text})
}

// HandleResumeDelete 删除一份简历
func (h *ResumeAdminHandler) HandleResumeDelete(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")

	if err := h.admin.DeleteResume(ctx, fileID); err != nil {
		status, message := classifyAdminError(err)
		logger.Warn().Err(err).Str("file_id", fileID).Msg("删除简历失败")
		c.JSON(status, utils.H{"error": message})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"file_id": fileID, "status": "DELETED"})
}

// classifyAdminError 将详情/删除错误映射为HTTP状态码和对外文案
func classifyAdminError(err error) (int, string) {
	switch {
	case errors.Is(err, processor.ErrResumeNotFound):
		return consts.StatusNotFound, "简历不存在"
	case errors.Is(err, processor.ErrStoreUnavailable):
		return consts.StatusBadGateway, "检索存储暂时不可用，请稍后重试"
	case errors.Is(err, processor.ErrArchiveFailed):
		return consts.StatusBadGateway, "归档存储暂时不可用，请稍后重试"
	case errors.Is(err, processor.ErrDatabaseFailed):
		return consts.StatusInternalServerError, "查询上传记录失败"
	default:
		return consts.StatusInternalServerError, "简历操作失败"
	}
}
