package protocol

import (
	"fmt"
	"strings"

	"ufdr-insight-api/internal/domain/evidence"
)

// fieldDelimiter 编码统一使用管道分隔符
const fieldDelimiter = " | "

// Document 协议层响应文档：叙述文本加按类型分组的记录序列
type Document struct {
	Narration string
	Records   []*evidence.Record
}

// Encode 将响应文档序列化为分节/编号记录文本。
// 叙述在前，随后按固定类型顺序输出各分节，节内记录从 1 开始编号。
func Encode(doc *Document) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	if narration := strings.TrimSpace(doc.Narration); narration != "" {
		b.WriteString(narration)
		b.WriteString("\n")
	}

	grouped := make(map[evidence.Kind][]*evidence.Record)
	var unknowns []*evidence.Record
	for _, r := range doc.Records {
		if r == nil {
			continue
		}
		if _, ok := sectionHeaders[r.Kind]; ok {
			grouped[r.Kind] = append(grouped[r.Kind], r)
		} else {
			unknowns = append(unknowns, r)
		}
	}

	for _, kind := range kindOrder {
		records := grouped[kind]
		if len(records) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(sectionHeaders[kind])
		b.WriteString("\n")
		for i, r := range records {
			b.WriteString(encodeEntry(i+1, r))
			b.WriteString("\n")
		}
	}

	// 无法归类的记录放在专属分节下，重新解码时不会沾染前一分节的类型
	if len(unknowns) > 0 {
		b.WriteString("\n")
		b.WriteString(unknownHeader)
		b.WriteString("\n")
		for i, r := range unknowns {
			b.WriteString(encodeEntry(i+1, r))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// encodeEntry 编码单条记录：`N. Label: value | Label: value`
func encodeEntry(index int, r *evidence.Record) string {
	fields := r.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", displayLabel(f.Label), sanitizeValue(f.Value)))
	}
	return fmt.Sprintf("%d. %s", index, strings.Join(parts, fieldDelimiter))
}

// sanitizeValue 去除取值中与协议冲突的分隔符和换行
func sanitizeValue(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "|", "/")
	return strings.TrimSpace(v)
}
