package protocol

import (
	"ufdr-insight-api/internal/domain/evidence"
)

// inferenceRule 一条字段签名到记录类型的映射
type inferenceRule struct {
	kind  evidence.Kind
	match func(fields map[string]string) bool
}

// inferenceRules 推断引擎的优先级表，首个命中的规则生效。
// 字段集合存在重叠（通话与聊天都可能带 from/to），
// 按信息密度从高到低排列以确定性地消解重叠；调整顺序会改变分类结果。
var inferenceRules = []inferenceRule{
	{
		kind: evidence.KindSearch,
		match: func(f map[string]string) bool {
			return has(f, "relevance") || has(f, "evidence_id") ||
				has(f, "risk_level") || has(f, "indicators")
		},
	},
	{
		kind: evidence.KindAnalysis,
		match: func(f map[string]string) bool {
			return has(f, "confidence") || has(f, "finding") || has(f, "references")
		},
	},
	{
		kind: evidence.KindMedia,
		match: func(f map[string]string) bool {
			return has(f, "file") || has(f, "path") ||
				(has(f, "size") && (has(f, "file_type") || has(f, "type")))
		},
	},
	{
		kind: evidence.KindCall,
		match: func(f map[string]string) bool {
			return has(f, "duration") || has(f, "call_type") ||
				(has(f, "from") && has(f, "to") && !has(f, "message") && !has(f, "app"))
		},
	},
	{
		kind: evidence.KindChat,
		match: func(f map[string]string) bool {
			return has(f, "message") || has(f, "app")
		},
	},
	{
		kind: evidence.KindContact,
		match: func(f map[string]string) bool {
			if has(f, "name") || has(f, "email") {
				return true
			}
			return has(f, "phone") &&
				!has(f, "model") && !has(f, "manufacturer") && !has(f, "imei")
		},
	},
	{
		kind: evidence.KindDevice,
		match: func(f map[string]string) bool {
			return has(f, "model") || has(f, "manufacturer") || has(f, "imei")
		},
	},
}

// InferKind 根据字段签名推断记录类型，无规则命中时返回 unknown 而非丢弃
func InferKind(pairs []pair) evidence.Kind {
	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		fields[p.key] = p.value
	}
	for _, rule := range inferenceRules {
		if rule.match(fields) {
			return rule.kind
		}
	}
	return evidence.KindUnknown
}

func has(fields map[string]string, key string) bool {
	return fields[key] != ""
}
