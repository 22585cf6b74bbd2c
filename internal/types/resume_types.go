package types

// ProjectEntry 简历中的一段项目经历
type ProjectEntry struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
}

// ExtractedProfile LLM从简历文本中抽取出的结构化档案
// 九个键在严格校验下必须全部出现
type ExtractedProfile struct {
	Name           string                 `json:"name"`
	Phone          string                 `json:"phone"`
	Email          string                 `json:"email"`
	Education      []string               `json:"education"`
	WorkExperience []string               `json:"work_experience"`
	Skills         []string               `json:"skills"`
	Projects       []ProjectEntry         `json:"projects"`
	Other          map[string]interface{} `json:"other"`
	Score          string                 `json:"score"`
	ScoreDetails   map[string]interface{} `json:"score_details,omitempty"`
}

// SearchCriteria 从聊天消息中识别出的结构化筛选条件
// 宽松解析：缺失的键使用零值默认，score_range 缺省为 [0,100]
type SearchCriteria struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Gender     string   `json:"gender"`
	Education  string   `json:"education"`
	Experience string   `json:"experience"`
	Position   string   `json:"position"`
	Skills     []string `json:"skills"`
	Projects   []string `json:"projects"`
	Other      string   `json:"other"`
	Keywords   []string `json:"keywords"`
	ScoreRange [2]int   `json:"score_range"`
}

// IsEmpty 没有任何有效筛选条件时返回true（评分区间为全区间也视为无条件）
func (c SearchCriteria) IsEmpty() bool {
	return c.Name == "" && c.Email == "" && c.Phone == "" &&
		c.Gender == "" && c.Education == "" && c.Experience == "" &&
		c.Position == "" && c.Other == "" &&
		len(c.Skills) == 0 && len(c.Projects) == 0 && len(c.Keywords) == 0 &&
		!c.HasScoreRange()
}

// HasScoreRange 评分区间窄于[0,100]时才构成约束
func (c SearchCriteria) HasScoreRange() bool {
	return !(c.ScoreRange[0] <= 0 && c.ScoreRange[1] >= 100)
}

// SearchIntent 聊天意图识别的结果
type SearchIntent struct {
	NeedSearch bool           `json:"need_search"`
	Criteria   SearchCriteria `json:"search_criteria"`
	Reply      string         `json:"reply"`
}

// ResumeDocument 写入检索存储的简历文档
type ResumeDocument struct {
	FileID        string           `json:"file_id"`
	FileName      string           `json:"file_name"`
	CandidateName string           `json:"candidate_name"`
	Position      string           `json:"position"`
	RawText       string           `json:"raw_text"`
	Profile       ExtractedProfile `json:"profile"`
	// NumericScore 仅在profile.score可解析为整数时写入，供范围查询使用
	NumericScore *int   `json:"numeric_score,omitempty"`
	Gender       string `json:"gender,omitempty"`
	UploadedAt   int64  `json:"uploaded_at"`
}

// ResumeHit 一条搜索命中
type ResumeHit struct {
	FileID        string   `json:"file_id"`
	CandidateName string   `json:"candidate_name"`
	Position      string   `json:"position"`
	Education     string   `json:"education"`
	Score         string   `json:"score"`
	Skills        []string `json:"skills"`
	Relevance     float64  `json:"relevance"`
}

// SearchPage 一页搜索结果
type SearchPage struct {
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Hits  []ResumeHit `json:"data"`
}

// ChatReply 聊天接口的最终响应
type ChatReply struct {
	SessionID string      `json:"session_id"`
	Reply     string      `json:"reply"`
	Searched  bool        `json:"need_search"`
	Results   *SearchPage `json:"data,omitempty"`
}

// PaginatedResumeResponse 分页简历列表响应
type PaginatedResumeResponse struct {
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
	Resumes []ResumeDocument `json:"resumes"`
}
