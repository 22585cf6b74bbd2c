package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ResumeUpload 简历上传记录表
// 每次上传请求(含被去重跳过的)都会落一条记录，FileID为业务主键
type ResumeUpload struct {
	FileID           string         `gorm:"type:varchar(64);primaryKey"`
	OriginalFilename string         `gorm:"type:varchar(255);not null"`
	FileExt          string         `gorm:"type:varchar(16)"`
	FileSizeBytes    int64          `gorm:"type:bigint"`
	RawFileMD5       string         `gorm:"type:char(32);index:idx_ru_raw_file_md5"`
	CandidateName    string         `gorm:"type:varchar(255)"`
	Position         string         `gorm:"type:varchar(255)"`
	OriginalPathOSS  string         `gorm:"type:varchar(1024)"` // MinIO中原始文件的对象键
	ParsedTextPath   string         `gorm:"type:varchar(1024)"` // MinIO中解析文本的对象键
	ProfileJSON      datatypes.JSON `gorm:"type:json"`          // 抽取出的结构化画像
	Score            string         `gorm:"type:varchar(16)"`   // 原始评分字符串
	Status           string         `gorm:"type:varchar(50);default:'SUBMITTED';index:idx_ru_status"`
	FailureReason    string         `gorm:"type:text"`
	UploadedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ru_uploaded_at"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ResumeUpload) TableName() string {
	return "resume_uploads"
}

// ChatQueryLog 聊天查询流水表
// 记录会话中每轮NL查询的解释结果，便于排查意图解析质量
type ChatQueryLog struct {
	LogID         uint64         `gorm:"primaryKey;autoIncrement"`
	SessionID     string         `gorm:"type:varchar(64);not null;index:idx_cql_session_id"`
	UserMessage   string         `gorm:"type:text;not null"`
	NeedSearch    bool           `gorm:"default:false"`
	CriteriaJSON  datatypes.JSON `gorm:"type:json"`
	TotalHits     int            `gorm:"type:int;default:0"`
	StoreDegraded bool           `gorm:"default:false"` // 检索存储故障降级
	ReplyExcerpt  string         `gorm:"type:varchar(512)"`
	ElapsedMillis int64          `gorm:"type:bigint"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_cql_created_at"`
}

func (ChatQueryLog) TableName() string {
	return "chat_query_logs"
}

// StringToJSON 将字符串转换为datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// MapToJSON 将map[string]interface{}转换为datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// StructToJSON 将任意结构体序列化为datatypes.JSON
func StructToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
