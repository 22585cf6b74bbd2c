package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONSegment(t *testing.T) {
	// 代码栅栏和说明文字都应被剥离
	raw := "好的，以下是解析结果：\n```json\n{\"name\": \"张三\"}\n```\n请查收。"
	segment, err := ExtractJSONSegment(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"name": "张三"}`, segment)

	// 嵌套对象取第一个 '{' 到最后一个 '}'
	raw = `前缀 {"a": {"b": 1}} 后缀`
	segment, err = ExtractJSONSegment(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, segment)
}

func TestExtractJSONSegmentNoJSON(t *testing.T) {
	cases := []string{
		"",
		"模型没有返回任何结构化内容",
		"只有右括号 }",
		"} 括号顺序颠倒 {",
	}
	for _, raw := range cases {
		_, err := ExtractJSONSegment(raw)
		assert.ErrorIs(t, err, ErrNoJSONInResponse, "输入: %q", raw)
	}
}

func TestNormalizePythonLiterals(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "裸字面量被替换",
			in:   `{"need_search": True, "active": False, "reply": None}`,
			want: `{"need_search": true, "active": false, "reply": null}`,
		},
		{
			name: "字符串内部不替换",
			in:   `{"note": "He said True and None"}`,
			want: `{"note": "He said True and None"}`,
		},
		{
			name: "带转义引号的字符串内部不替换",
			in:   `{"note": "quote \" True inside", "flag": True}`,
			want: `{"note": "quote \" True inside", "flag": true}`,
		},
		{
			name: "部分匹配的单词不替换",
			in:   `{"brand": TrueNorth, "x": NoneSuch, "y": IsTrue}`,
			want: `{"brand": TrueNorth, "x": NoneSuch, "y": IsTrue}`,
		},
		{
			name: "已是JSON字面量时保持不变",
			in:   `{"a": true, "b": null}`,
			want: `{"a": true, "b": null}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePythonLiterals(tc.in))
		})
	}
}

func TestParseExtractedProfile(t *testing.T) {
	raw := "解析完成：\n```json\n" + `{
  "name": "李四",
  "phone": "13800138000",
  "email": "lisi@example.com",
  "education": ["某大学 本科 计算机科学 2016-2020"],
  "work_experience": ["某公司 后端工程师 2020-2023"],
  "skills": ["Go", "MySQL", "Redis"],
  "projects": [{"name": "订单系统", "description": "高并发订单处理", "technologies": ["Go", "Kafka"]}],
  "other": {"gender": "男", "expected_salary": None},
  "score": 85,
  "score_details": {"skills": 18}
}` + "\n```"

	profile, err := ParseExtractedProfile(raw)
	require.NoError(t, err)
	assert.Equal(t, "李四", profile.Name)
	assert.Equal(t, "13800138000", profile.Phone)
	assert.Equal(t, "lisi@example.com", profile.Email)
	assert.Equal(t, []string{"某大学 本科 计算机科学 2016-2020"}, profile.Education)
	assert.Equal(t, []string{"Go", "MySQL", "Redis"}, profile.Skills)
	require.Len(t, profile.Projects, 1)
	assert.Equal(t, "订单系统", profile.Projects[0].Name)
	// 数字评分被规范为字符串
	assert.Equal(t, "85", profile.Score)
	assert.Equal(t, "男", profile.Other["gender"])
	// None 在 other 中被规范为 null
	assert.Contains(t, profile.Other, "expected_salary")
	assert.Nil(t, profile.Other["expected_salary"])
	assert.Equal(t, float64(18), profile.ScoreDetails["skills"])
}

func TestParseExtractedProfileMissingField(t *testing.T) {
	// 缺少 skills 及之后的键，应在首个缺失键处失败
	raw := `{
  "name": "王五",
  "phone": "",
  "email": "",
  "education": [],
  "work_experience": []
}`
	profile, err := ParseExtractedProfile(raw)
	require.Error(t, err)
	assert.Nil(t, profile)
	assert.ErrorIs(t, err, ErrFieldMissing)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "skills", missing.Field)
}

func TestParseExtractedProfileScoreDetailsAsText(t *testing.T) {
	// 评分依据是整段文字时保留在summary键下，不丢弃
	raw := `{
  "name": "李四",
  "phone": "13800138000",
  "email": "lisi@example.com",
  "education": ["某大学 本科"],
  "work_experience": ["某公司 后端工程师"],
  "skills": ["Go"],
  "projects": [],
  "other": {},
  "score": 80,
  "score_details": "技能扎实加18分，项目经验丰富加25分，学历符合要求加15分"
}`
	profile, err := ParseExtractedProfile(raw)
	require.NoError(t, err)
	assert.Equal(t, "技能扎实加18分，项目经验丰富加25分，学历符合要求加15分", profile.ScoreDetails["summary"])
}

func TestParseExtractedProfileInvalidJSON(t *testing.T) {
	_, err := ParseExtractedProfile(`{"name": "赵六", "phone": }`)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestParseSearchIntentFull(t *testing.T) {
	raw := "```json\n" + `{
  "need_search": True,
  "search_criteria": {
    "gender": "女",
    "education": "硕士",
    "experience": "3-5年",
    "position": "后端工程师",
    "skills": ["Go", "Kubernetes"],
    "keywords": ["高并发"],
    "score_range": [70, 95]
  },
  "reply": "正在为您检索符合条件的简历"
}` + "\n```"

	intent, err := ParseSearchIntent(raw)
	require.NoError(t, err)
	assert.True(t, intent.NeedSearch)
	assert.Equal(t, "正在为您检索符合条件的简历", intent.Reply)
	assert.Equal(t, "女", intent.Criteria.Gender)
	assert.Equal(t, "硕士", intent.Criteria.Education)
	assert.Equal(t, "后端工程师", intent.Criteria.Position)
	assert.Equal(t, []string{"Go", "Kubernetes"}, intent.Criteria.Skills)
	assert.Equal(t, [2]int{70, 95}, intent.Criteria.ScoreRange)
	assert.True(t, intent.Criteria.HasScoreRange())
}

func TestParseSearchIntentContactCriteria(t *testing.T) {
	// 姓名、联系方式、项目和自由文本条件都要能落到结构化检索里
	raw := `{
  "need_search": true,
  "search_criteria": {
    "name": "张三",
    "email": "zhangsan@example.com",
    "phone": "13800138000",
    "projects": ["支付网关"],
    "other": "有带团队经验"
  },
  "reply": "好的"
}`
	intent, err := ParseSearchIntent(raw)
	require.NoError(t, err)
	assert.Equal(t, "张三", intent.Criteria.Name)
	assert.Equal(t, "zhangsan@example.com", intent.Criteria.Email)
	assert.Equal(t, "13800138000", intent.Criteria.Phone)
	assert.Equal(t, []string{"支付网关"}, intent.Criteria.Projects)
	assert.Equal(t, "有带团队经验", intent.Criteria.Other)
	assert.False(t, intent.Criteria.IsEmpty())
}

func TestParseSearchIntentDefaults(t *testing.T) {
	// 宽松模式: 缺失的键不报错，使用默认值
	intent, err := ParseSearchIntent(`{"need_search": False}`)
	require.NoError(t, err)
	assert.False(t, intent.NeedSearch)
	assert.Empty(t, intent.Reply)
	assert.Equal(t, [2]int{0, 100}, intent.Criteria.ScoreRange)
	// [0,100] 视为未限定评分
	assert.False(t, intent.Criteria.HasScoreRange())
	assert.True(t, intent.Criteria.IsEmpty())
}

func TestParseSearchIntentPartialCriteria(t *testing.T) {
	raw := `{"need_search": true, "search_criteria": {"position": "算法工程师"}}`
	intent, err := ParseSearchIntent(raw)
	require.NoError(t, err)
	assert.True(t, intent.NeedSearch)
	assert.Equal(t, "算法工程师", intent.Criteria.Position)
	// 未出现的 score_range 保持默认全区间
	assert.Equal(t, [2]int{0, 100}, intent.Criteria.ScoreRange)
	assert.False(t, intent.Criteria.IsEmpty())
}

func TestParseSearchIntentNoJSON(t *testing.T) {
	_, err := ParseSearchIntent("模型直接回复了一句话，没有任何结构化内容")
	assert.ErrorIs(t, err, ErrNoJSONInResponse)
}

func TestDecodeStringListMixed(t *testing.T) {
	// 单个字符串被包装成单元素列表
	assert.Equal(t, []string{"Go"}, decodeStringList([]byte(`"Go"`)))
	// 混合数组逐项兜底
	list := decodeStringList([]byte(`["Go", 42]`))
	assert.Equal(t, []string{"Go", "42"}, list)
	// 空输入返回空列表而非 nil
	assert.Equal(t, []string{}, decodeStringList(nil))
}
