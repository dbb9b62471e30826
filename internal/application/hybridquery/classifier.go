package hybridquery

import (
	"regexp"
	"strings"
)

// phonePattern 电话号码：可带 + 前缀的 7 位以上数字串，容忍空格和连字符
var phonePattern = regexp.MustCompile(`\+?\d[\d\s\-]{6,}\d`)

// filePattern 带扩展名的文件名
var filePattern = regexp.MustCompile(`\b[\w\-]+\.(?:jpg|jpeg|png|gif|mp4|mov|avi|mp3|wav|pdf|docx?|xlsx?|pptx?|txt|csv|zip|apk|db|json|xml)\b`)

// countTerms 精确计数/枚举类措辞
var countTerms = []string{
	"how many", "count", "number of", "total", "list all", "show all", "show me all", "all the",
}

// conceptTerms 概念性/描述性措辞，指向语义检索
var conceptTerms = []string{
	"suspicious", "about", "regarding", "related to", "relating to", "concerning",
	"meeting", "meetings", "deal", "deals", "plan", "plans", "discuss", "discussed",
	"threat", "threats", "drug", "drugs", "money", "payment", "payments", "transfer",
	"unusual", "strange", "hidden", "secret", "illegal", "crypto", "launder",
}

// relationTerms 关系/网络类措辞，需要图检索参与
var relationTerms = []string{
	"relationship", "relationships", "network", "connected", "connection", "connections",
	"linked", "links", "associates", "associated", "between", "who knows", "in touch with",
	"communicat", "contact with",
}

// classifierRule 一条分类规则。规则表按优先级排列、首个命中生效；
// 调整顺序会改变分类结果，也会使既有缓存键失配，改动需慎重。
type classifierRule struct {
	name     string
	strategy Strategy
	match    func(s signals) bool
}

// signals 从规范化查询文本提取的判定信号
type signals struct {
	exact    bool // 具体实体：电话号码、文件名、精确计数措辞
	concept  bool // 概念性描述措辞
	relation bool // 关系/网络措辞
}

var classifierRules = []classifierRule{
	{
		name:     "relationship terms require graph",
		strategy: StrategyHybrid,
		match:    func(s signals) bool { return s.relation },
	},
	{
		name:     "exact and conceptual combined",
		strategy: StrategyHybrid,
		match:    func(s signals) bool { return s.exact && s.concept },
	},
	{
		name:     "concrete identifiers only",
		strategy: StrategyStructured,
		match:    func(s signals) bool { return s.exact },
	},
	{
		name:     "conceptual language only",
		strategy: StrategySemantic,
		match:    func(s signals) bool { return s.concept },
	},
	{
		name:     "ambiguous phrasing",
		strategy: StrategyHybrid,
		match:    func(s signals) bool { return true },
	},
}

// Classify 为查询文本选择检索策略。
// 纯函数：只依赖规范化后的文本，相同输入恒得相同策略，缓存正确性依赖这一点。
func Classify(text string) Strategy {
	s := extractSignals(normalizeQuery(text))
	for _, rule := range classifierRules {
		if rule.match(s) {
			return rule.strategy
		}
	}
	return StrategyHybrid
}

// normalizeQuery 小写并折叠空白，保留 + . - 等号码和文件名需要的字符
func normalizeQuery(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == ' ', r == '+', r == '.', r == '-', r == '_', r == '/':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func extractSignals(q string) signals {
	return signals{
		exact:    phonePattern.MatchString(q) || filePattern.MatchString(q) || containsAny(q, countTerms),
		concept:  containsAny(q, conceptTerms),
		relation: containsAny(q, relationTerms),
	}
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// StartEntity 从查询文本提取图遍历起点实体，当前取首个电话号码。
// 没有可用起点时返回空串，图检索随之跳过。
func StartEntity(text string) string {
	m := phonePattern.FindString(normalizeQuery(text))
	if m == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range m {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
