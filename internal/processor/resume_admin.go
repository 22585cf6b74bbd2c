package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hr-agent-go/internal/constants"
	appLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/storage/models"
)

// RecordStore 上传记录的读取与状态更新
type RecordStore interface {
	// GetUploadByFileID 按FileID查询上传记录，不存在时返回 (nil, nil)
	GetUploadByFileID(ctx context.Context, fileID string) (*models.ResumeUpload, error)
	UpdateUploadStatus(ctx context.Context, fileID, status, failureReason string) error
}

// ArchiveReader 归档对象的读取、签名下载与删除
type ArchiveReader interface {
	GetParsedText(ctx context.Context, objectName string) (string, error)
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	DeleteOriginalFile(ctx context.Context, objectName string) error
}

// DocumentRemover 从检索存储中删除简历文档
type DocumentRemover interface {
	DeleteResume(ctx context.Context, fileID string) error
}

// ResumeDetail 单份简历的详情，含可选的原始文件下载链接
type ResumeDetail struct {
	FileID           string          `json:"file_id"`
	OriginalFilename string          `json:"original_filename"`
	CandidateName    string          `json:"candidate_name,omitempty"`
	Position         string          `json:"position,omitempty"`
	Status           string          `json:"status"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	Score            string          `json:"score,omitempty"`
	Profile          json.RawMessage `json:"profile,omitempty"`
	UploadedAt       time.Time       `json:"uploaded_at"`
	DownloadURL      string          `json:"download_url,omitempty"`
}

// ResumeAdmin 简历详情与删除的编排层
// 详情来自上传记录，下载链接与解析文本来自对象存储，删除同时清理检索存储和归档
type ResumeAdmin struct {
	records RecordStore
	remover DocumentRemover
	archive ArchiveReader
	expiry  time.Duration
	logger  zerolog.Logger
}

// AdminOption 详情编排层的配置选项
type AdminOption func(*ResumeAdmin)

// WithArchiveReader 注入对象存储读取器，缺失时详情不含下载链接
func WithArchiveReader(a ArchiveReader) AdminOption {
	return func(r *ResumeAdmin) {
		r.archive = a
	}
}

// WithDownloadURLExpiry 设置预签名下载链接的有效期
func WithDownloadURLExpiry(d time.Duration) AdminOption {
	return func(r *ResumeAdmin) {
		if d > 0 {
			r.expiry = d
		}
	}
}

// NewResumeAdmin 创建详情与删除编排层，上传记录存储和检索存储为必需依赖
func NewResumeAdmin(records RecordStore, remover DocumentRemover, opts ...AdminOption) (*ResumeAdmin, error) {
	if records == nil {
		return nil, fmt.Errorf("上传记录存储不能为空")
	}
	if remover == nil {
		return nil, fmt.Errorf("检索存储不能为空")
	}
	r := &ResumeAdmin{
		records: records,
		remover: remover,
		expiry:  1 * time.Hour,
		logger:  appLogger.Logger.With().Str("component", "resume_admin").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// GetResumeDetail 按FileID返回上传记录详情
// 配置了对象存储且原始文件已归档时附带预签名下载链接
func (r *ResumeAdmin) GetResumeDetail(ctx context.Context, fileID string) (*ResumeDetail, error) {
	ctx, span := processorTracer.Start(ctx, "ResumeAdmin.GetResumeDetail")
	defer span.End()
	span.SetAttributes(attribute.String("resume.file_id", fileID))

	record, err := r.fetchRecord(ctx, fileID, "detail")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	detail := &ResumeDetail{
		FileID:           record.FileID,
		OriginalFilename: record.OriginalFilename,
		CandidateName:    record.CandidateName,
		Position:         record.Position,
		Status:           record.Status,
		FailureReason:    record.FailureReason,
		Score:            record.Score,
		UploadedAt:       record.UploadedAt,
	}
	if len(record.ProfileJSON) > 0 {
		detail.Profile = json.RawMessage(record.ProfileJSON)
	}

	if r.archive != nil && record.OriginalPathOSS != "" {
		url, err := r.archive.GetPresignedURL(ctx, record.OriginalPathOSS, r.expiry)
		if err != nil {
			// 下载链接属于附加信息，生成失败不影响详情返回
			r.logger.Warn().Err(err).Str("file_id", fileID).Msg("生成下载链接失败")
		} else {
			detail.DownloadURL = url
		}
	}

	span.SetStatus(codes.Ok, "")
	return detail, nil
}

// GetParsedText 返回归档的解析文本
func (r *ResumeAdmin) GetParsedText(ctx context.Context, fileID string) (string, error) {
	ctx, span := processorTracer.Start(ctx, "ResumeAdmin.GetParsedText")
	defer span.End()
	span.SetAttributes(attribute.String("resume.file_id", fileID))

	record, err := r.fetchRecord(ctx, fileID, "parsed_text")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if r.archive == nil || record.ParsedTextPath == "" {
		err := &PipelineError{FileID: fileID, Op: "parsed_text", BaseErr: ErrResumeNotFound, Detail: "解析文本未归档"}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text, err := r.archive.GetParsedText(ctx, record.ParsedTextPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", NewArchiveError(fileID, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return text, nil
}

// DeleteResume 删除一份简历: 检索文档、归档的原始文件，并将记录置为删除态
// 已入索引的简历删除检索文档失败时整体失败，归档清理失败仅告警
func (r *ResumeAdmin) DeleteResume(ctx context.Context, fileID string) error {
	ctx, span := processorTracer.Start(ctx, "ResumeAdmin.DeleteResume",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("resume.file_id", fileID))

	record, err := r.fetchRecord(ctx, fileID, "delete")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// 未入索引的记录(抽取失败、重复跳过等)没有检索文档可删
	if record.Status == constants.StatusIndexed {
		if err := r.remover.DeleteResume(ctx, fileID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return NewStoreError(fileID, err.Error())
		}
	}

	if r.archive != nil && record.OriginalPathOSS != "" {
		if err := r.archive.DeleteOriginalFile(ctx, record.OriginalPathOSS); err != nil {
			r.logger.Warn().Err(err).Str("file_id", fileID).Msg("删除归档原始文件失败")
		}
	}

	if err := r.records.UpdateUploadStatus(ctx, fileID, constants.StatusDeleted, ""); err != nil {
		r.logger.Warn().Err(err).Str("file_id", fileID).Msg("更新删除状态失败")
	}

	r.logger.Info().Str("file_id", fileID).Msg("简历删除完成")
	span.SetStatus(codes.Ok, "")
	return nil
}

// fetchRecord 查询上传记录，缺失时返回ErrResumeNotFound
func (r *ResumeAdmin) fetchRecord(ctx context.Context, fileID, op string) (*models.ResumeUpload, error) {
	if fileID == "" {
		return nil, &PipelineError{FileID: fileID, Op: op, BaseErr: ErrResumeNotFound, Detail: "文件标识为空"}
	}
	record, err := r.records.GetUploadByFileID(ctx, fileID)
	if err != nil {
		return nil, NewDatabaseError(fileID, err.Error())
	}
	if record == nil {
		return nil, &PipelineError{FileID: fileID, Op: op, BaseErr: ErrResumeNotFound}
	}
	return record, nil
}
