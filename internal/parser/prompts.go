package parser

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"hr-agent-go/internal/constants"
)

// 抽取与意图识别的提示词构造
// 同样的输入必须产生同样的提示词，便于缓存与回归测试

const extractionSystemPrompt = `你是一个专业的简历解析专家，负责从简历纯文本中提取结构化信息并对简历质量进行评分。

核心任务：
1. 提取候选人信息：从文本中准确提取姓名、电话、邮箱、教育经历、工作经历、技能和项目经历。
2. 汇总其他信息：无法归入上述类别但有价值的信息（性别、年龄、期望薪资、自我评价等）放入 other 对象。
3. 评分：按照给定的评分标准给出0-100的综合评分，并在 score_details 中说明评分依据。

重要指令：
- 信息缺失处理：若某信息项缺失，字符串字段设为空字符串，列表字段设为空列表。请勿编造信息。
- education 和 work_experience 中的每一项是一段完整描述（学校/学历/时间、公司/职位/时间）。
- skills 是技能名称列表，不要带解释。
- projects 中每个项目包含 name、role、description 三个字段。
- score 以字符串形式输出，例如 "85"。

JSON输出格式规范：
{
  "name": "string",
  "phone": "string",
  "email": "string",
  "education": ["string"],
  "work_experience": ["string"],
  "skills": ["string"],
  "projects": [
    {"name": "string", "role": "string", "description": "string"}
  ],
  "other": {},
  "score": "string",
  "score_details": {}
}

请严格按照上述JSON格式规范输出，不要包含任何解释性文字或Markdown标记。确保JSON的完整性和可解析性。`

// generalScoringGuide 无岗位描述时的通用评分标准
const generalScoringGuide = `评分标准（无目标岗位，综合评估简历本身质量）：
- 信息完整度与排版清晰度
- 教育背景
- 工作/项目经历的深度与连贯性
- 技能与经历的匹配程度
- 语言表达`

// BuildExtractionPrompt 构造简历抽取的提示词
// jobDescription 非空时附加六个加权评分维度
func BuildExtractionPrompt(resumeText, jobDescription string) (systemPrompt, userPrompt string) {
	var sb strings.Builder
	sb.WriteString(extractionSystemPrompt)
	sb.WriteString("\n\n")

	if strings.TrimSpace(jobDescription) == "" {
		sb.WriteString(generalScoringGuide)
	} else {
		sb.WriteString("评分标准（按以下维度加权评估简历与目标岗位的匹配度，总分100）：\n")
		sb.WriteString(fmt.Sprintf("- 简历排版与结构清晰度：%d分\n", constants.ScoreWeightLayout))
		sb.WriteString(fmt.Sprintf("- 教育背景与岗位要求的匹配度：%d分\n", constants.ScoreWeightEducation))
		sb.WriteString(fmt.Sprintf("- 工作/项目经历与岗位要求的匹配度：%d分\n", constants.ScoreWeightExperience))
		sb.WriteString(fmt.Sprintf("- 技能与岗位要求的匹配度：%d分\n", constants.ScoreWeightSkills))
		sb.WriteString(fmt.Sprintf("- 语言表达能力：%d分\n", constants.ScoreWeightLanguage))
		sb.WriteString(fmt.Sprintf("- 整体专业性与态度：%d分\n", constants.ScoreWeightTone))
		sb.WriteString("请在 score_details 中按维度说明得分及依据。\n\n")
		sb.WriteString("目标岗位描述：\n")
		sb.WriteString(strings.TrimSpace(jobDescription))
	}

	userPrompt = "以下是一份简历的纯文本内容，请进行解析：\n\n" + resumeText
	return sb.String(), userPrompt
}

const intentSystemPrompt = `你是一个招聘助手，负责理解HR的聊天消息并判断是否需要检索简历库。

判断规则：
- 如果消息是在寻找/筛选候选人（例如提到性别、学历、工作年限、技能、岗位、评分等筛选条件），need_search 为 true，并把条件整理到 search_criteria。
- 如果消息是寒暄、咨询或与找人无关，need_search 为 false，search_criteria 保持为空对象，并在 reply 中给出自然、友好的中文回答。

search_criteria 可用的键（只填消息中明确出现的条件）：
- name: 候选人姓名，如 "张三"
- email: 邮箱地址
- phone: 电话号码
- gender: 性别，如 "男"、"女"
- education: 学历或院校要求，如 "本科"、"硕士"、"985"、"211"
- experience: 经验要求原文，如 "4年以上"
- position: 目标岗位，如 "Java开发"
- skills: 技能列表，如 ["Python", "Kubernetes"]
- projects: 项目经历关键词列表，如 ["支付系统", "推荐引擎"]
- other: 其他补充条件的原文描述
- keywords: 其他关键词列表
- score_range: 评分区间 [最低分, 最高分]，未提及时为 [0, 100]

示例：
输入: 帮我找性别为女的，经验4年以上，985毕业的候选人
输出: {"need_search": true, "search_criteria": {"gender": "女", "experience": "4年以上", "education": "985", "score_range": [0, 100]}, "reply": ""}

输入: 你好，你能做什么？
输出: {"need_search": false, "search_criteria": {}, "reply": "你好！我可以帮你检索简历库，例如：帮我找3年以上经验的Java候选人。"}

JSON输出格式规范：
{"need_search": "boolean", "search_criteria": {}, "reply": "string"}

请严格按照上述JSON格式输出，不要包含任何解释性文字或Markdown标记。`

// maxIntentHistoryTurns 拼入意图识别提示词的历史消息上限
const maxIntentHistoryTurns = 6

// BuildIntentPrompt 构造聊天意图识别的提示词
// history 为同一会话的既往消息，按时间顺序拼入，帮助模型理解"再看下一页"这类指代
func BuildIntentPrompt(message string, history []*schema.Message) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	if len(history) > maxIntentHistoryTurns {
		history = history[len(history)-maxIntentHistoryTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("对话历史：\n")
		for _, msg := range history {
			if msg == nil || msg.Content == "" {
				continue
			}
			role := "用户"
			if msg.Role == schema.Assistant {
				role = "助手"
			}
			sb.WriteString(role)
			sb.WriteString(": ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("HR的消息：")
	sb.WriteString(strings.TrimSpace(message))
	return intentSystemPrompt, sb.String()
}
