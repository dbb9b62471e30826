// Package protocol 实现分节/编号记录文本协议的编解码
package protocol

import (
	"strings"

	"ufdr-insight-api/internal/domain/evidence"
)

// kindOrder 编码时的固定分节顺序
var kindOrder = []evidence.Kind{
	evidence.KindChat,
	evidence.KindCall,
	evidence.KindMedia,
	evidence.KindContact,
	evidence.KindSearch,
	evidence.KindAnalysis,
	evidence.KindDevice,
}

// sectionHeaders 记录类型到分节头的映射
var sectionHeaders = map[evidence.Kind]string{
	evidence.KindChat:     "CHAT RECORDS",
	evidence.KindCall:     "CALL RECORDS",
	evidence.KindMedia:    "MEDIA FILES",
	evidence.KindContact:  "CONTACTS",
	evidence.KindSearch:   "SEARCH RESULTS",
	evidence.KindAnalysis: "ANALYSIS RESULTS",
	evidence.KindDevice:   "DEVICE INFORMATION",
}

// unknownHeader 无法归类记录的分节头，解码侧将当前分节重置为 unknown
const unknownHeader = "UNRECOGNIZED ENTRIES"

// headerKinds 规范化分节头到记录类型的反向映射
var headerKinds = map[string]evidence.Kind{
	"CHAT RECORDS":         evidence.KindChat,
	"CALL RECORDS":         evidence.KindCall,
	"CALL LOGS":            evidence.KindCall,
	"MEDIA FILES":          evidence.KindMedia,
	"CONTACTS":             evidence.KindContact,
	"SEARCH RESULTS":       evidence.KindSearch,
	"ANALYSIS RESULTS":     evidence.KindAnalysis,
	"DEVICE INFORMATION":   evidence.KindDevice,
	"DEVICE INFO":          evidence.KindDevice,
	"UNRECOGNIZED ENTRIES": evidence.KindUnknown,
}

// labelSynonyms 标签同义词到全局规范化键的映射。
// "type" 保持原样，由 Record.Set 按类型消歧（call_type 还是 file_type）。
var labelSynonyms = map[string]string{
	"app":         "app",
	"application": "app",
	"platform":    "app",

	"from":   "from",
	"sender": "from",
	"caller": "from",

	"to":        "to",
	"recipient": "to",
	"receiver":  "to",
	"callee":    "to",

	"time":      "time",
	"timestamp": "time",
	"date":      "time",
	"datetime":  "time",

	"message": "message",
	"content": "message",
	"text":    "message",
	"msg":     "message",

	"duration":  "duration",
	"call_type": "call_type",
	"type":      "type",

	"file":      "file",
	"filename":  "file",
	"file_name": "file",

	"size":      "size",
	"file_size": "size",

	"file_type": "file_type",
	"mime_type": "file_type",
	"mimetype":  "file_type",

	"path":      "path",
	"file_path": "path",
	"location":  "path",

	"name":         "name",
	"contact_name": "name",

	"phone":        "phone",
	"phone_number": "phone",
	"number":       "phone",
	"mobile":       "phone",

	"email":         "email",
	"email_address": "email",

	"relevance":  "relevance",
	"score":      "relevance",
	"similarity": "relevance",

	"risk":       "risk_level",
	"risk_level": "risk_level",

	"indicators":      "indicators",
	"risk_indicators": "indicators",

	"evidence_id": "evidence_id",
	"evidence":    "evidence_id",

	"confidence": "confidence",

	"finding":     "finding",
	"description": "finding",
	"summary":     "finding",

	"references": "references",
	"refs":       "references",

	"model":        "model",
	"device_model": "model",

	"manufacturer": "manufacturer",
	"make":         "manufacturer",

	"os_version": "os_version",
	"os":         "os_version",

	"imei": "imei",

	"serial_number": "serial_number",
	"serial":        "serial_number",

	"extraction_date": "extraction_date",
	"extraction_tool": "extraction_tool",
	"tool":            "extraction_tool",

	"case_officer": "case_officer",
	"officer":      "case_officer",
	"examiner":     "case_officer",
}

// displayLabels 编码时规范化键到展示标签的映射
var displayLabels = map[string]string{
	"app":             "App",
	"from":            "From",
	"to":              "To",
	"time":            "Time",
	"message":         "Message",
	"duration":        "Duration",
	"call_type":       "Type",
	"file":            "File",
	"size":            "Size",
	"file_type":       "Type",
	"path":            "Path",
	"name":            "Name",
	"phone":           "Phone",
	"email":           "Email",
	"relevance":       "Relevance",
	"risk_level":      "Risk Level",
	"indicators":      "Indicators",
	"evidence_id":     "Evidence ID",
	"confidence":      "Confidence",
	"finding":         "Finding",
	"references":      "References",
	"model":           "Model",
	"manufacturer":    "Manufacturer",
	"os_version":      "OS Version",
	"imei":            "IMEI",
	"serial_number":   "Serial Number",
	"extraction_date": "Extraction Date",
	"extraction_tool": "Extraction Tool",
	"case_officer":    "Case Officer",
}

// canonicalLabel 将原始标签规范化为全局键：小写、空白转下划线、查同义词表。
// 词表之外的标签返回规范化形态本身，保留进 Extras。
func canonicalLabel(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Join(strings.Fields(key), "_")
	if canonical, ok := labelSynonyms[key]; ok {
		return canonical
	}
	return key
}

// normalizeHeader 规范化候选分节头：去掉两侧修饰符、下划线转空格、折叠空白并转大写
func normalizeHeader(line string) string {
	s := strings.TrimSpace(line)
	s = strings.Trim(s, "*#=:-— \t")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	return s
}

// headerKind 判断一行是否为分节头
func headerKind(line string) (evidence.Kind, bool) {
	k, ok := headerKinds[normalizeHeader(line)]
	return k, ok
}

// displayLabel 返回编码用展示标签，词表外的键原样输出
func displayLabel(key string) string {
	if label, ok := displayLabels[key]; ok {
		return label
	}
	return key
}
