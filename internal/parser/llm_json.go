package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/types"
)

// 模型响应解析相关的错误
var (
	ErrNoJSONInResponse = errors.New("响应文本中未找到JSON对象")
	ErrInvalidJSON      = errors.New("JSON解析失败")
	ErrFieldMissing     = errors.New("缺少必需字段")
)

// requiredProfileKeys 严格校验下抽取结果必须包含的九个键
var requiredProfileKeys = []string{
	"name", "phone", "email", "education", "work_experience",
	"skills", "projects", "other", "score",
}

// MissingFieldError 指明严格校验时首个缺失的字段
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("缺少必需字段: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrFieldMissing
}

// ExtractJSONSegment 从模型响应中截取JSON片段
// 取第一个 '{' 到最后一个 '}' 之间的内容；模型常把JSON包在说明文字或代码栅栏中
func ExtractJSONSegment(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: %q", ErrNoJSONInResponse, truncateForError(text))
	}
	return text[start : end+1], nil
}

// NormalizePythonLiterals 将裸的 True/False/None 规范为JSON字面量
// 只替换字符串之外的完整单词
func NormalizePythonLiterals(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	i := 0
	for i < len(s) {
		c := s[i]
		if inString {
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			i++
			continue
		}

		if c == '"' {
			inString = true
			sb.WriteByte(c)
			i++
			continue
		}

		if replaced, adv := matchBareWord(s, i); adv > 0 {
			sb.WriteString(replaced)
			i += adv
			continue
		}

		sb.WriteByte(c)
		i++
	}
	return sb.String()
}

// matchBareWord 在位置i处匹配 True/False/None 的完整单词，返回替换文本与消耗长度
func matchBareWord(s string, i int) (string, int) {
	candidates := []struct {
		word string
		repl string
	}{
		{"True", "true"},
		{"False", "false"},
		{"None", "null"},
	}

	for _, c := range candidates {
		if !strings.HasPrefix(s[i:], c.word) {
			continue
		}
		// 前后都不能是标识符字符，避免替换 "Truely" 这类内容
		if i > 0 && isWordChar(s[i-1]) {
			continue
		}
		next := i + len(c.word)
		if next < len(s) && isWordChar(s[next]) {
			continue
		}
		return c.repl, len(c.word)
	}
	return "", 0
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ParseExtractedProfile 严格模式解析: 九个键必须全部出现，首个缺失键即失败
func ParseExtractedProfile(raw string) (*types.ExtractedProfile, error) {
	segment, err := ExtractJSONSegment(raw)
	if err != nil {
		return nil, err
	}
	segment = NormalizePythonLiterals(segment)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(segment), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	for _, key := range requiredProfileKeys {
		if _, ok := fields[key]; !ok {
			return nil, &MissingFieldError{Field: key}
		}
	}

	profile := &types.ExtractedProfile{}
	profile.Name = decodeString(fields["name"])
	profile.Phone = decodeString(fields["phone"])
	profile.Email = decodeString(fields["email"])
	profile.Education = decodeStringList(fields["education"])
	profile.WorkExperience = decodeStringList(fields["work_experience"])
	profile.Skills = decodeStringList(fields["skills"])
	profile.Projects = decodeProjects(fields["projects"])
	profile.Other = decodeMap(fields["other"])
	profile.Score = decodeString(fields["score"])
	if rawDetails, ok := fields["score_details"]; ok {
		profile.ScoreDetails = decodeScoreDetails(rawDetails)
	}

	return profile, nil
}

// ParseSearchIntent 宽松模式解析: 缺失的键使用默认值，永不因缺键报错
func ParseSearchIntent(raw string) (*types.SearchIntent, error) {
	segment, err := ExtractJSONSegment(raw)
	if err != nil {
		return nil, err
	}
	segment = NormalizePythonLiterals(segment)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(segment), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	intent := &types.SearchIntent{
		Criteria: DefaultSearchCriteria(),
	}

	if v, ok := fields["need_search"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			intent.NeedSearch = b
		}
	}
	if v, ok := fields["reply"]; ok {
		intent.Reply = decodeString(v)
	}
	if v, ok := fields["search_criteria"]; ok {
		var crit map[string]json.RawMessage
		if json.Unmarshal(v, &crit) == nil {
			fillCriteria(&intent.Criteria, crit)
		}
	}

	return intent, nil
}

// DefaultSearchCriteria 宽松解析的默认条件: 空字符串/空列表/全评分区间
func DefaultSearchCriteria() types.SearchCriteria {
	return types.SearchCriteria{
		ScoreRange: [2]int{constants.ScoreRangeMin, constants.ScoreRangeMax},
	}
}

func fillCriteria(c *types.SearchCriteria, fields map[string]json.RawMessage) {
	if v, ok := fields["name"]; ok {
		c.Name = decodeString(v)
	}
	if v, ok := fields["email"]; ok {
		c.Email = decodeString(v)
	}
	if v, ok := fields["phone"]; ok {
		c.Phone = decodeString(v)
	}
	if v, ok := fields["gender"]; ok {
		c.Gender = decodeString(v)
	}
	if v, ok := fields["education"]; ok {
		c.Education = decodeString(v)
	}
	if v, ok := fields["experience"]; ok {
		c.Experience = decodeString(v)
	}
	if v, ok := fields["position"]; ok {
		c.Position = decodeString(v)
	}
	if v, ok := fields["skills"]; ok {
		c.Skills = decodeStringList(v)
	}
	if v, ok := fields["projects"]; ok {
		c.Projects = decodeStringList(v)
	}
	if v, ok := fields["other"]; ok {
		c.Other = decodeString(v)
	}
	if v, ok := fields["keywords"]; ok {
		c.Keywords = decodeStringList(v)
	}
	if v, ok := fields["score_range"]; ok {
		var pair []float64
		if json.Unmarshal(v, &pair) == nil && len(pair) == 2 {
			c.ScoreRange = [2]int{int(pair[0]), int(pair[1])}
		}
	}
}

// decodeString 字符串或数字都转成字符串，其他类型返回空串
func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// decodeStringList 接受字符串列表；单个字符串会被包装成单元素列表
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		if list == nil {
			return []string{}
		}
		return list
	}
	// 模型偶尔会返回对象数组或混合数组，逐项兜底转字符串
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) == nil {
		result := make([]string, 0, len(items))
		for _, item := range items {
			if s := decodeString(item); s != "" {
				result = append(result, s)
			} else if m := decodeMap(item); len(m) > 0 {
				if b, err := json.Marshal(m); err == nil {
					result = append(result, string(b))
				}
			}
		}
		return result
	}
	if s := decodeString(raw); s != "" {
		return []string{s}
	}
	return []string{}
}

// decodeProjects 接受对象数组；字符串项会被当作项目名
func decodeProjects(raw json.RawMessage) []types.ProjectEntry {
	if len(raw) == 0 {
		return []types.ProjectEntry{}
	}
	var projects []types.ProjectEntry
	if json.Unmarshal(raw, &projects) == nil {
		if projects == nil {
			return []types.ProjectEntry{}
		}
		return projects
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) == nil {
		result := make([]types.ProjectEntry, 0, len(items))
		for _, item := range items {
			var p types.ProjectEntry
			if json.Unmarshal(item, &p) == nil && p.Name != "" {
				result = append(result, p)
				continue
			}
			if s := decodeString(item); s != "" {
				result = append(result, types.ProjectEntry{Name: s})
			}
		}
		return result
	}
	return []types.ProjectEntry{}
}

// decodeScoreDetails 评分依据可能是对象(分维度)也可能是整段文字，字符串形态保留在summary键下
func decodeScoreDetails(raw json.RawMessage) map[string]interface{} {
	if m := decodeMap(raw); len(m) > 0 {
		return m
	}
	if s := decodeString(raw); s != "" {
		return map[string]interface{}{"summary": s}
	}
	return map[string]interface{}{}
}

func decodeMap(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if json.Unmarshal(raw, &m) == nil && m != nil {
		return m
	}
	return map[string]interface{}{}
}

func truncateForError(s string) string {
	const max = 80
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
