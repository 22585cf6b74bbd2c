package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型，对应流水线各阶段的失败
var (
	ErrDocumentUnreadable = errors.New("读取简历文件失败")
	ErrUnsupportedFormat  = errors.New("不支持的简历文件格式")
	ErrContentTooShort    = errors.New("简历文本内容过短")
	ErrDuplicateFile      = errors.New("重复的简历文件")
	ErrLLMUnavailable     = errors.New("大模型服务不可用")
	ErrNoJSONFound        = errors.New("模型响应中未找到JSON")
	ErrMalformedJSON      = errors.New("模型响应JSON解析失败")
	ErrMissingField       = errors.New("抽取结果缺少必需字段")
	ErrStoreUnavailable   = errors.New("检索存储不可用")
	ErrResumeNotFound     = errors.New("简历不存在")
	ErrDatabaseFailed     = errors.New("数据库操作失败")
	ErrArchiveFailed      = errors.New("归档简历文件失败")
)

// PipelineError 包含详细错误信息的自定义错误
type PipelineError struct {
	FileID  string
	Op      string
	BaseErr error
	Detail  string
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.FileID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.FileID)
}

func (e *PipelineError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewUnreadableError(fileID, detail string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "convert",
		BaseErr: ErrDocumentUnreadable,
		Detail:  detail,
	}
}

func NewUnsupportedFormatError(fileID, detail string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "convert",
		BaseErr: ErrUnsupportedFormat,
		Detail:  detail,
	}
}

func NewContentTooShortError(fileID string, got, want int) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "gate",
		BaseErr: ErrContentTooShort,
		Detail:  fmt.Sprintf("有效字符 %d，最低要求 %d", got, want),
	}
}

func NewLLMError(fileID, detail string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "llm",
		BaseErr: ErrLLMUnavailable,
		Detail:  detail,
	}
}

// NewMissingFieldError 严格校验下首个缺失字段即失败
func NewMissingFieldError(fileID, field string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "validate",
		BaseErr: ErrMissingField,
		Detail:  fmt.Sprintf("字段: %s", field),
	}
}

func NewStoreError(fileID, detail string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "index",
		BaseErr: ErrStoreUnavailable,
		Detail:  detail,
	}
}

func NewDatabaseError(fileID, detail string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "database",
		BaseErr: ErrDatabaseFailed,
		Detail:  detail,
	}
}

func NewArchiveError(fileID, detail string) error {
	return &PipelineError{
		FileID:  fileID,
		Op:      "archive",
		BaseErr: ErrArchiveFailed,
		Detail:  detail,
	}
}
