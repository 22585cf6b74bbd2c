package constants

import "time"

const (
	// 上传与抽取相关
	DefaultMinContentChars = 50 // 转换文本的最小有效长度(字符)
	DefaultFileIDSuffixLen = 6  // 文件标识随机后缀字节数

	// 岗位描述评分维度权重（有岗位描述时用于综合评分）
	ScoreWeightLayout     = 10
	ScoreWeightEducation  = 15
	ScoreWeightExperience = 35
	ScoreWeightSkills     = 20
	ScoreWeightLanguage   = 10
	ScoreWeightTone       = 10

	// 默认评分区间，等于全区间时视为不限定
	ScoreRangeMin = 0
	ScoreRangeMax = 100

	// 会话历史在Redis中的保留时长
	ChatHistoryTTL = 2 * time.Hour
)

// 上传记录状态
const (
	StatusSubmitted        = "SUBMITTED"
	StatusDuplicateSkipped = "DUPLICATE_FILE_SKIPPED"
	StatusContentTooShort  = "CONTENT_TOO_SHORT"
	StatusExtractionFailed = "EXTRACTION_FAILED"
	StatusIndexFailed      = "INDEX_FAILED"
	StatusIndexed          = "INDEXED"
	StatusDeleted          = "DELETED"
)
