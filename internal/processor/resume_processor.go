package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hr-agent-go/internal/constants"
	appLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/parser"
	"hr-agent-go/internal/storage/models"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/internal/types"
	"hr-agent-go/pkg/utils"
)

var processorTracer = otel.Tracer("hr-agent-go/internal/processor")

// UploadInput 一次简历上传请求的全部输入
type UploadInput struct {
	FileName       string
	Data           []byte
	CandidateName  string // 可选，表单提供的候选人姓名
	Position       string // 可选，目标岗位
	JobDescription string // 可选，岗位描述，提供时触发多维加权评分
}

// UploadResult 上传流水线的处理结果
type UploadResult struct {
	FileID    string                  `json:"file_id"`
	Status    string                  `json:"status"`
	Duplicate bool                    `json:"duplicate"`
	Profile   *types.ExtractedProfile `json:"profile,omitempty"`
}

// Components 上传流水线的功能组件依赖，便于集中管理和测试替换
type Components struct {
	Converter DocumentConverter
	Extractor ProfileExtractor
	Indexer   DocumentIndexer
	Deduper   Deduper
	Archiver  Archiver
	Recorder  UploadRecorder
}

// ResumeUploadProcessor 简历上传流水线
// 同步执行: 去重 -> 归档 -> 文本转换 -> 内容门限 -> LLM抽取 -> 索引 -> 落库
type ResumeUploadProcessor struct {
	components Components

	minContentChars int
	fileIDSuffixLen int
	now             Clock
	logger          zerolog.Logger
}

// UploadOption 上传流水线的配置选项
type UploadOption func(*ResumeUploadProcessor)

// WithMinContentChars 设置转换文本的最小有效长度
func WithMinContentChars(n int) UploadOption {
	return func(p *ResumeUploadProcessor) {
		if n > 0 {
			p.minContentChars = n
		}
	}
}

// WithFileIDSuffixLen 设置文件标识随机后缀的字节数
func WithFileIDSuffixLen(n int) UploadOption {
	return func(p *ResumeUploadProcessor) {
		if n > 0 {
			p.fileIDSuffixLen = n
		}
	}
}

// WithClock 注入时间源，测试时替换
func WithClock(clock Clock) UploadOption {
	return func(p *ResumeUploadProcessor) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewResumeUploadProcessor 创建上传流水线
// Converter、Extractor、Indexer为必需组件；Deduper、Archiver、Recorder缺失时对应环节降级跳过
func NewResumeUploadProcessor(components Components, opts ...UploadOption) (*ResumeUploadProcessor, error) {
	if components.Converter == nil {
		return nil, fmt.Errorf("文档转换器不能为空")
	}
	if components.Extractor == nil {
		return nil, fmt.Errorf("档案抽取器不能为空")
	}
	if components.Indexer == nil {
		return nil, fmt.Errorf("检索存储不能为空")
	}

	p := &ResumeUploadProcessor{
		components:      components,
		minContentChars: constants.DefaultMinContentChars,
		fileIDSuffixLen: constants.DefaultFileIDSuffixLen,
		now:             time.Now,
		logger:          appLogger.Logger.With().Str("component", "upload_processor").Logger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// ProcessUpload 同步执行完整的上传流水线
// 重复文件直接短路返回，不产生新的索引文档
func (p *ResumeUploadProcessor) ProcessUpload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	ctx, span := processorTracer.Start(ctx, "processor.ProcessUpload")
	defer span.End()

	span.SetAttributes(
		attribute.String("resume.file_name", input.FileName),
		attribute.Int("resume.file_size", len(input.Data)),
	)

	if len(input.Data) == 0 {
		err := NewUnreadableError("", "文件内容为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if !p.components.Converter.Supports(input.FileName) {
		err := NewUnsupportedFormatError("", filepath.Ext(input.FileName))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	// 1. MD5去重
	rawMD5 := utils.CalculateMD5(input.Data)
	span.SetAttributes(attribute.String("resume.raw_md5", rawMD5))

	if p.components.Deduper != nil {
		exists, err := p.components.Deduper.CheckRawFileMD5Exists(ctx, rawMD5)
		if err != nil {
			// 去重检查失败时按未重复继续，避免Redis故障阻断上传
			p.logger.Warn().Err(err).Str("md5", rawMD5).Msg("检查文件MD5失败，跳过去重")
		} else if exists {
			existingID, _ := p.components.Deduper.GetFileIDByMD5(ctx, rawMD5)
			span.AddEvent("duplicate_file_skipped", trace.WithAttributes(
				attribute.String("resume.existing_file_id", existingID),
			))
			p.recordDuplicate(ctx, input, rawMD5)
			span.SetStatus(codes.Ok, "")
			return &UploadResult{
				FileID:    existingID,
				Status:    constants.StatusDuplicateSkipped,
				Duplicate: true,
			}, nil
		}
	}

	// 2. 生成文件标识并落初始记录
	fileID := utils.GenerateFileID(p.now(), p.fileIDSuffixLen)
	fileExt := strings.ToLower(filepath.Ext(input.FileName))
	span.SetAttributes(attribute.String("resume.file_id", fileID))

	if p.components.Recorder != nil {
		record := &models.ResumeUpload{
			FileID:           fileID,
			OriginalFilename: input.FileName,
			FileExt:          fileExt,
			FileSizeBytes:    int64(len(input.Data)),
			RawFileMD5:       rawMD5,
			CandidateName:    input.CandidateName,
			Position:         input.Position,
			Status:           constants.StatusSubmitted,
			UploadedAt:       p.now(),
		}
		if err := p.components.Recorder.CreateUploadRecord(ctx, record); err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("写入上传记录失败")
		}
	}

	// 3. 归档原始文件，失败只降级不阻断
	var originalPath string
	if p.components.Archiver != nil {
		path, err := p.components.Archiver.UploadOriginalFile(ctx, fileID, fileExt, bytes.NewReader(input.Data), int64(len(input.Data)))
		if err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("归档原始简历失败")
			span.AddEvent("archive_original_failed")
		} else {
			originalPath = path
		}
	}

	// 4. 文本转换
	text, _, err := p.components.Converter.Convert(ctx, input.Data, input.FileName)
	if err != nil {
		p.markFailed(ctx, fileID, constants.StatusExtractionFailed, err.Error())
		wrapped := NewUnreadableError(fileID, err.Error())
		tracing.RecordError(span, wrapped, tracing.ErrorTypeConvert)
		return nil, wrapped
	}

	// 5. 内容长度门限
	effective := utf8.RuneCountInString(strings.TrimSpace(text))
	if effective < p.minContentChars {
		p.markFailed(ctx, fileID, constants.StatusContentTooShort, fmt.Sprintf("有效字符 %d", effective))
		wrapped := NewContentTooShortError(fileID, effective, p.minContentChars)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeValidation)
		return nil, wrapped
	}

	// 6. LLM抽取结构化档案
	profile, rawOutput, err := p.components.Extractor.ExtractProfile(ctx, text, input.JobDescription)
	if err != nil {
		p.markFailed(ctx, fileID, constants.StatusExtractionFailed, err.Error())
		wrapped := p.wrapExtractError(fileID, err, rawOutput)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeLLM)
		return nil, wrapped
	}

	// 7. 构建检索文档并写入索引
	doc := p.buildDocument(fileID, input, text, profile)
	if err := p.components.Indexer.IndexResume(ctx, doc); err != nil {
		p.markFailed(ctx, fileID, constants.StatusIndexFailed, err.Error())
		wrapped := NewStoreError(fileID, err.Error())
		tracing.RecordError(span, wrapped, tracing.ErrorTypeSearch)
		return nil, wrapped
	}

	// 8. 登记去重信息和解析文本归档，均为尽力而为
	p.finalizeArtifacts(ctx, fileID, rawMD5, text, originalPath, profile)

	p.logger.Info().
		Str("file_id", fileID).
		Str("candidate", tracing.MaskPII(profile.Name)).
		Str("score", profile.Score).
		Msg("简历上传处理完成")
	span.SetStatus(codes.Ok, "")

	return &UploadResult{
		FileID:  fileID,
		Status:  constants.StatusIndexed,
		Profile: profile,
	}, nil
}

// buildDocument 将抽取结果组装为检索文档
// numeric_score仅在score可解析为整数时写入，原始score字符串原样保留
func (p *ResumeUploadProcessor) buildDocument(fileID string, input UploadInput, text string, profile *types.ExtractedProfile) *types.ResumeDocument {
	doc := &types.ResumeDocument{
		FileID:        fileID,
		FileName:      input.FileName,
		CandidateName: input.CandidateName,
		Position:      input.Position,
		RawText:       text,
		Profile:       *profile,
		UploadedAt:    p.now().Unix(),
	}

	if doc.CandidateName == "" {
		doc.CandidateName = profile.Name
	}
	if n, err := strconv.Atoi(strings.TrimSpace(profile.Score)); err == nil {
		doc.NumericScore = &n
	}
	if g, ok := profile.Other["gender"].(string); ok {
		doc.Gender = g
	}

	return doc
}

// finalizeArtifacts 索引成功后的收尾: MD5登记、解析文本归档、记录终态
func (p *ResumeUploadProcessor) finalizeArtifacts(ctx context.Context, fileID, rawMD5, text, originalPath string, profile *types.ExtractedProfile) {
	if p.components.Deduper != nil {
		if err := p.components.Deduper.AddRawFileMD5(ctx, rawMD5); err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("登记文件MD5失败")
		}
		if err := p.components.Deduper.MapMD5ToFileID(ctx, rawMD5, fileID); err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("登记MD5映射失败")
		}
		if err := p.components.Deduper.AddParsedTextMD5(ctx, utils.CalculateMD5([]byte(text))); err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("登记解析文本MD5失败")
		}
	}

	var parsedPath string
	if p.components.Archiver != nil {
		path, err := p.components.Archiver.UploadParsedText(ctx, fileID, text)
		if err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("归档解析文本失败")
		} else {
			parsedPath = path
		}
	}

	if p.components.Recorder != nil {
		profileJSON, err := models.StructToJSON(profile)
		if err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("序列化档案失败")
		}
		updates := map[string]interface{}{
			"status": constants.StatusIndexed,
			"score":  profile.Score,
		}
		if profileJSON != nil {
			updates["profile_json"] = profileJSON
		}
		if originalPath != "" {
			updates["original_path_oss"] = originalPath
		}
		if parsedPath != "" {
			updates["parsed_text_path"] = parsedPath
		}
		if err := p.components.Recorder.UpdateUploadResult(ctx, fileID, updates); err != nil {
			p.logger.Warn().Err(err).Str("file_id", fileID).Msg("回填上传记录失败")
		}
	}
}

// recordDuplicate 为被去重跳过的上传落一条流水记录
func (p *ResumeUploadProcessor) recordDuplicate(ctx context.Context, input UploadInput, rawMD5 string) {
	if p.components.Recorder == nil {
		return
	}
	record := &models.ResumeUpload{
		FileID:           utils.GenerateFileID(p.now(), p.fileIDSuffixLen),
		OriginalFilename: input.FileName,
		FileExt:          strings.ToLower(filepath.Ext(input.FileName)),
		FileSizeBytes:    int64(len(input.Data)),
		RawFileMD5:       rawMD5,
		CandidateName:    input.CandidateName,
		Position:         input.Position,
		Status:           constants.StatusDuplicateSkipped,
		UploadedAt:       p.now(),
	}
	if err := p.components.Recorder.CreateUploadRecord(ctx, record); err != nil {
		p.logger.Warn().Err(err).Msg("写入重复上传流水失败")
	}
}

func (p *ResumeUploadProcessor) markFailed(ctx context.Context, fileID, status, reason string) {
	if p.components.Recorder == nil {
		return
	}
	if err := p.components.Recorder.UpdateUploadStatus(ctx, fileID, status, reason); err != nil {
		p.logger.Warn().Err(err).Str("file_id", fileID).Msg("更新上传记录状态失败")
	}
}

// wrapExtractError 将抽取阶段的错误归入流水线错误族
func (p *ResumeUploadProcessor) wrapExtractError(fileID string, err error, rawOutput string) error {
	var missing *parser.MissingFieldError
	switch {
	case errors.As(err, &missing):
		return NewMissingFieldError(fileID, missing.Field)
	case errors.Is(err, parser.ErrNoJSONInResponse):
		return &PipelineError{
			FileID:  fileID,
			Op:      "parse",
			BaseErr: ErrNoJSONFound,
			Detail:  err.Error(),
		}
	case errors.Is(err, parser.ErrInvalidJSON):
		return &PipelineError{
			FileID:  fileID,
			Op:      "parse",
			BaseErr: ErrMalformedJSON,
			Detail:  err.Error(),
		}
	default:
		return NewLLMError(fileID, err.Error())
	}
}
