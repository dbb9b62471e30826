// Package evidence 定义取证证据的领域模型
package evidence

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// Kind 证据记录类型标签
type Kind string

// 闭合的记录类型集合
const (
	KindChat     Kind = "chat_records"
	KindCall     Kind = "call_records"
	KindMedia    Kind = "media_files"
	KindContact  Kind = "contacts"
	KindSearch   Kind = "search_results"
	KindAnalysis Kind = "analysis_results"
	KindDevice   Kind = "device_information"
	KindUnknown  Kind = "unknown"
)

// ChatFields 聊天记录核心字段
type ChatFields struct {
	App     string
	From    string
	To      string
	Time    string
	Message string
}

// CallFields 通话记录核心字段
type CallFields struct {
	From     string
	To       string
	Duration string
	CallType string
	Time     string
}

// MediaFields 媒体文件核心字段
type MediaFields struct {
	File     string
	Size     string
	FileType string
	Path     string
	Time     string
}

// ContactFields 联系人核心字段
type ContactFields struct {
	Name  string
	Phone string
	Email string
	Time  string
}

// SearchFields 检索命中核心字段
type SearchFields struct {
	Relevance  string
	RiskLevel  string
	Indicators string
	EvidenceID string
}

// AnalysisFields 分析结论核心字段
type AnalysisFields struct {
	Finding    string
	Confidence string
	References string
}

// DeviceFields 设备信息核心字段
type DeviceFields struct {
	Model          string
	Manufacturer   string
	OSVersion      string
	IMEI           string
	SerialNumber   string
	Phone          string
	ExtractionDate string
	ExtractionTool string
	CaseOfficer    string
}

// Record 带类型标签的证据记录。
// 每种类型持有固定字段结构，词表之外的标签进入 Extras，保证不丢信息。
type Record struct {
	Kind Kind

	Chat     *ChatFields
	Call     *CallFields
	Media    *MediaFields
	Contact  *ContactFields
	Search   *SearchFields
	Analysis *AnalysisFields
	Device   *DeviceFields

	Extras map[string]string
}

// Field 编码时的一对标签/取值
type Field struct {
	Label string
	Value string
}

// NewRecord 创建指定类型的空记录
func NewRecord(kind Kind) *Record {
	return &Record{Kind: kind}
}

// Set 按规范化标签写入对应类型的核心字段。
// 标签不属于该类型词表时返回 false，调用方应将其放入 Extras。
func (r *Record) Set(key, value string) bool {
	switch r.Kind {
	case KindChat:
		if r.Chat == nil {
			r.Chat = &ChatFields{}
		}
		switch key {
		case "app":
			r.Chat.App = value
		case "from":
			r.Chat.From = value
		case "to":
			r.Chat.To = value
		case "time":
			r.Chat.Time = value
		case "message":
			r.Chat.Message = value
		default:
			return false
		}
		return true
	case KindCall:
		if r.Call == nil {
			r.Call = &CallFields{}
		}
		switch key {
		case "from":
			r.Call.From = value
		case "to":
			r.Call.To = value
		case "duration":
			r.Call.Duration = value
		case "call_type", "type":
			r.Call.CallType = value
		case "time":
			r.Call.Time = value
		default:
			return false
		}
		return true
	case KindMedia:
		if r.Media == nil {
			r.Media = &MediaFields{}
		}
		switch key {
		case "file":
			r.Media.File = value
		case "size":
			r.Media.Size = value
		case "file_type", "type":
			r.Media.FileType = value
		case "path":
			r.Media.Path = value
		case "time":
			r.Media.Time = value
		default:
			return false
		}
		return true
	case KindContact:
		if r.Contact == nil {
			r.Contact = &ContactFields{}
		}
		switch key {
		case "name":
			r.Contact.Name = value
		case "phone":
			r.Contact.Phone = value
		case "email":
			r.Contact.Email = value
		case "time":
			r.Contact.Time = value
		default:
			return false
		}
		return true
	case KindSearch:
		if r.Search == nil {
			r.Search = &SearchFields{}
		}
		switch key {
		case "relevance":
			r.Search.Relevance = value
		case "risk_level":
			r.Search.RiskLevel = value
		case "indicators":
			r.Search.Indicators = value
		case "evidence_id":
			r.Search.EvidenceID = value
		default:
			return false
		}
		return true
	case KindAnalysis:
		if r.Analysis == nil {
			r.Analysis = &AnalysisFields{}
		}
		switch key {
		case "finding":
			r.Analysis.Finding = value
		case "confidence":
			r.Analysis.Confidence = value
		case "references":
			r.Analysis.References = value
		default:
			return false
		}
		return true
	case KindDevice:
		if r.Device == nil {
			r.Device = &DeviceFields{}
		}
		switch key {
		case "model":
			r.Device.Model = value
		case "manufacturer":
			r.Device.Manufacturer = value
		case "os_version":
			r.Device.OSVersion = value
		case "imei":
			r.Device.IMEI = value
		case "serial_number":
			r.Device.SerialNumber = value
		case "phone":
			r.Device.Phone = value
		case "extraction_date":
			r.Device.ExtractionDate = value
		case "extraction_tool":
			r.Device.ExtractionTool = value
		case "case_officer":
			r.Device.CaseOfficer = value
		default:
			return false
		}
		return true
	default:
		return false
	}
}

// AddExtra 保留词表外标签
func (r *Record) AddExtra(key, value string) {
	if r.Extras == nil {
		r.Extras = make(map[string]string)
	}
	r.Extras[key] = value
}

// Fields 按类型固定顺序返回非空核心字段，编码器依赖该顺序保证输出稳定。
func (r *Record) Fields() []Field {
	var fields []Field
	add := func(label, value string) {
		if value != "" {
			fields = append(fields, Field{Label: label, Value: value})
		}
	}

	switch r.Kind {
	case KindChat:
		if r.Chat != nil {
			add("app", r.Chat.App)
			add("from", r.Chat.From)
			add("to", r.Chat.To)
			add("time", r.Chat.Time)
			add("message", r.Chat.Message)
		}
	case KindCall:
		if r.Call != nil {
			add("from", r.Call.From)
			add("to", r.Call.To)
			add("duration", r.Call.Duration)
			add("call_type", r.Call.CallType)
			add("time", r.Call.Time)
		}
	case KindMedia:
		if r.Media != nil {
			add("file", r.Media.File)
			add("size", r.Media.Size)
			add("file_type", r.Media.FileType)
			add("path", r.Media.Path)
			add("time", r.Media.Time)
		}
	case KindContact:
		if r.Contact != nil {
			add("name", r.Contact.Name)
			add("phone", r.Contact.Phone)
			add("email", r.Contact.Email)
			add("time", r.Contact.Time)
		}
	case KindSearch:
		if r.Search != nil {
			add("relevance", r.Search.Relevance)
			add("risk_level", r.Search.RiskLevel)
			add("indicators", r.Search.Indicators)
			add("evidence_id", r.Search.EvidenceID)
		}
	case KindAnalysis:
		if r.Analysis != nil {
			add("finding", r.Analysis.Finding)
			add("confidence", r.Analysis.Confidence)
			add("references", r.Analysis.References)
		}
	case KindDevice:
		if r.Device != nil {
			add("model", r.Device.Model)
			add("manufacturer", r.Device.Manufacturer)
			add("os_version", r.Device.OSVersion)
			add("imei", r.Device.IMEI)
			add("serial_number", r.Device.SerialNumber)
			add("phone", r.Device.Phone)
			add("extraction_date", r.Device.ExtractionDate)
			add("extraction_tool", r.Device.ExtractionTool)
			add("case_officer", r.Device.CaseOfficer)
		}
	}

	// Extras 按标签排序追加，保证确定性
	if len(r.Extras) > 0 {
		keys := make([]string, 0, len(r.Extras))
		for k := range r.Extras {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k, r.Extras[k])
		}
	}

	return fields
}

// CanonicalFields 返回规范化标签到取值的映射（含 Extras）
func (r *Record) CanonicalFields() map[string]string {
	out := make(map[string]string)
	for _, f := range r.Fields() {
		out[f.Label] = f.Value
	}
	return out
}

// Identity 由载荷派生的稳定实体标识，用于跨来源去重。
// 优先使用各类型最具区分度的字段组合，全部缺失时回退为全量字段哈希。
func (r *Record) Identity() string {
	var parts []string
	switch r.Kind {
	case KindChat:
		if r.Chat != nil {
			parts = []string{r.Chat.From, r.Chat.To, r.Chat.Time, r.Chat.Message}
		}
	case KindCall:
		if r.Call != nil {
			parts = []string{r.Call.From, r.Call.To, r.Call.Time}
		}
	case KindMedia:
		if r.Media != nil {
			parts = []string{r.Media.File, r.Media.Path}
		}
	case KindContact:
		if r.Contact != nil {
			parts = []string{r.Contact.Name, r.Contact.Phone}
		}
	case KindDevice:
		if r.Device != nil {
			parts = []string{r.Device.IMEI, r.Device.SerialNumber}
		}
	}

	joined := strings.TrimSpace(strings.Join(parts, "\x1f"))
	if strings.Trim(joined, "\x1f \t") == "" {
		fields := r.Fields()
		ps := make([]string, 0, len(fields))
		for _, f := range fields {
			ps = append(ps, f.Label+"="+f.Value)
		}
		sort.Strings(ps)
		joined = strings.Join(ps, "\x1f")
	}

	sum := sha1.Sum([]byte(string(r.Kind) + "\x1e" + joined))
	return hex.EncodeToString(sum[:])
}
