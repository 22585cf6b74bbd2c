package handler

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/processor"
)

// ResumeHandler 简历上传接口
type ResumeHandler struct {
	cfg     *config.Config
	uploads *processor.ResumeUploadProcessor
}

// NewResumeHandler 创建简历上传处理器
func NewResumeHandler(cfg *config.Config, uploads *processor.ResumeUploadProcessor) *ResumeHandler {
	return &ResumeHandler{
		cfg:     cfg,
		uploads: uploads,
	}
}

// HandleResumeUpload 处理简历上传请求
// multipart表单: file(必填)、candidate_name、position、job_description(可选)
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}

	if max := int64(h.cfg.Upload.MaxFileSizeBytes); max > 0 && fileHeader.Size > max {
		c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过大小限制"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件内容失败"})
		return
	}

	input := processor.UploadInput{
		FileName:       fileHeader.Filename,
		Data:           data,
		CandidateName:  c.PostForm("candidate_name"),
		Position:       c.PostForm("position"),
		JobDescription: c.PostForm("job_description"),
	}

	result, err := h.uploads.ProcessUpload(ctx, input)
	if err != nil {
		status, message := classifyUploadError(err)
		logger.Warn().
			Err(err).
			Str("filename", fileHeader.Filename).
			Int("http_status", status).
			Msg("简历上传处理失败")
		c.JSON(status, utils.H{"error": message})
		return
	}

	c.JSON(consts.StatusOK, result)
}

// classifyUploadError 将流水线错误映射为HTTP状态码和对外文案
func classifyUploadError(err error) (int, string) {
	switch {
	case errors.Is(err, processor.ErrUnsupportedFormat):
		return consts.StatusBadRequest, "不支持的文件格式，请上传PDF或DOCX"
	case errors.Is(err, processor.ErrDocumentUnreadable):
		return consts.StatusBadRequest, "无法读取简历文件内容"
	case errors.Is(err, processor.ErrContentTooShort):
		return consts.StatusBadRequest, "简历文本内容过短，无法解析"
	case errors.Is(err, processor.ErrMissingField),
		errors.Is(err, processor.ErrNoJSONFound),
		errors.Is(err, processor.ErrMalformedJSON):
		return consts.StatusUnprocessableEntity, "简历结构化抽取失败，请稍后重试"
	case errors.Is(err, processor.ErrLLMUnavailable):
		return consts.StatusBadGateway, "解析服务暂时不可用，请稍后重试"
	case errors.Is(err, processor.ErrStoreUnavailable):
		return consts.StatusBadGateway, "检索存储暂时不可用，请稍后重试"
	default:
		return consts.StatusInternalServerError, "简历处理失败"
	}
}
