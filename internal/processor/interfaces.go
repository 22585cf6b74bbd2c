package processor

import (
	"context"
	"io"
	"time"

	"github.com/cloudwego/eino/schema"

	"hr-agent-go/internal/storage/models"
	"hr-agent-go/internal/types"
)

// DocumentConverter 将原始简历文件转换为纯文本
type DocumentConverter interface {
	// Convert 按文件名扩展名分发转换，返回纯文本和可选的元数据
	Convert(ctx context.Context, data []byte, fileName string) (string, map[string]interface{}, error)

	// Supports 是否支持该文件名的格式
	Supports(fileName string) bool
}

// ProfileExtractor 调用大模型从简历文本中抽取结构化档案
type ProfileExtractor interface {
	// ExtractProfile 返回严格校验后的档案、模型原始输出、错误
	ExtractProfile(ctx context.Context, resumeText, jobDescription string) (*types.ExtractedProfile, string, error)
}

// IntentParser 调用大模型解释自然语言查询意图
// history 为同一会话的既往消息，供模型理解上下文指代
type IntentParser interface {
	InterpretMessage(ctx context.Context, message string, history []*schema.Message) (*types.SearchIntent, error)
}

// DocumentIndexer 简历文档检索存储的最小写/查接口
type DocumentIndexer interface {
	IndexResume(ctx context.Context, doc *types.ResumeDocument) error
	SearchResumes(ctx context.Context, criteria types.SearchCriteria, from, size int) ([]types.ResumeDocument, []float64, int, error)
	ListAll(ctx context.Context, from, size int) ([]types.ResumeDocument, int, error)
}

// Deduper 基于MD5的文件去重
type Deduper interface {
	CheckRawFileMD5Exists(ctx context.Context, md5Hex string) (bool, error)
	AddRawFileMD5(ctx context.Context, md5Hex string) error
	AddParsedTextMD5(ctx context.Context, md5Hex string) error
	MapMD5ToFileID(ctx context.Context, md5Hex, fileID string) error
	GetFileIDByMD5(ctx context.Context, md5Hex string) (string, error)
}

// Archiver 原始文件与解析文本的对象存储归档
type Archiver interface {
	UploadOriginalFile(ctx context.Context, fileID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	UploadParsedText(ctx context.Context, fileID string, text string) (string, error)
}

// UploadRecorder 上传记录与查询流水的持久化
type UploadRecorder interface {
	CreateUploadRecord(ctx context.Context, record *models.ResumeUpload) error
	UpdateUploadStatus(ctx context.Context, fileID, status, failureReason string) error
	UpdateUploadResult(ctx context.Context, fileID string, updates map[string]interface{}) error
	SaveChatQueryLog(ctx context.Context, entry *models.ChatQueryLog) error
}

// Clock 可注入的时间源，测试时替换
type Clock func() time.Time
