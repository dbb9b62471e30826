package protocol

import (
	"regexp"
	"strings"

	"ufdr-insight-api/internal/domain/evidence"
)

// entryPattern 编号条目：`N. rest`、`N - rest`、`N: rest` 或 `N rest`
var entryPattern = regexp.MustCompile(`^\s*(\d{1,6})\s*[.\-:]?\s+(\S.*)$`)

// pair 解码出的一对标签/取值，标签已全局规范化
type pair struct {
	key   string
	value string
}

// Decode 将协议文本还原为类型化记录。
// 逐行处理：分节头切换当前类型；编号条目按分隔符拆分字段；
// 无法归入任何分节或字段签名与分节矛盾的条目交由推断引擎定型；
// 完全没有编号条目时整段文本降级为叙述，不报错。
func Decode(text string) *Document {
	doc := &Document{}
	current := evidence.KindUnknown
	var narration []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if kind, ok := headerKind(trimmed); ok {
			current = kind
			continue
		}

		if rec, ok := decodeEntry(trimmed, current); ok {
			doc.Records = append(doc.Records, rec)
			continue
		}

		narration = append(narration, trimmed)
	}

	if len(doc.Records) == 0 {
		doc.Narration = strings.TrimSpace(text)
	} else {
		doc.Narration = strings.Join(narration, "\n")
	}
	return doc
}

// decodeEntry 尝试将一行解析为编号条目。
// 至少要解析出一对 label: value 才算条目，否则按叙述处理，
// 避免把正文里的 "12:30" 这类片段误认成记录。
func decodeEntry(line string, current evidence.Kind) (*evidence.Record, bool) {
	m := entryPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	pairs := splitFields(m[2])
	if len(pairs) == 0 {
		return nil, false
	}

	kind := resolveKind(current, pairs)
	rec := evidence.NewRecord(kind)
	for _, p := range pairs {
		if !rec.Set(p.key, p.value) {
			rec.AddExtra(p.key, p.value)
		}
	}
	return rec, true
}

// resolveKind 确定条目类型。字段签名先走推断引擎：签名指向其他类型时
// 以签名为准（分节头与内容矛盾），签名无信息量时才沿用分节类型；
// time 这类四处通用的字段不足以坐实分节归属。
func resolveKind(current evidence.Kind, pairs []pair) evidence.Kind {
	inferred := InferKind(pairs)
	if current == evidence.KindUnknown || current == "" {
		return inferred
	}
	if inferred == evidence.KindUnknown {
		return current
	}
	return inferred
}

// splitFields 将条目正文拆成标签/取值对。
// 先按首个出现的分隔符（| • ; 或带空格的 -）切段，再按每段首个冒号切标签。
func splitFields(rest string) []pair {
	segments := splitSegments(rest)
	pairs := make([]pair, 0, len(segments))
	for _, seg := range segments {
		idx := strings.Index(seg, ":")
		if idx <= 0 {
			continue
		}
		label := strings.TrimSpace(seg[:idx])
		value := strings.TrimSpace(seg[idx+1:])
		if label == "" || value == "" {
			continue
		}
		pairs = append(pairs, pair{key: canonicalLabel(label), value: value})
	}
	return pairs
}

// splitSegments 按该行首个出现的分隔符切分。
// 裸连字符只在两侧有空格时当作分隔符，避免切碎日期和电话号码。
func splitSegments(rest string) []string {
	delim := detectDelimiter(rest)
	if delim == "" {
		return []string{rest}
	}
	return strings.Split(rest, delim)
}

// detectDelimiter 从左到右找到第一个允许的分隔符
func detectDelimiter(rest string) string {
	runes := []rune(rest)
	for i, r := range runes {
		switch r {
		case '|':
			return "|"
		case '•':
			return "•"
		case ';':
			return ";"
		case '-':
			if i > 0 && i < len(runes)-1 && runes[i-1] == ' ' && runes[i+1] == ' ' {
				return " - "
			}
		}
	}
	return ""
}
