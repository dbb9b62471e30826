package evidence

import (
	"time"
)

// CaseModel 案件登记表，存放于公共 schema，记录三个存储命名空间的句柄
type CaseModel struct {
	ID           string     `gorm:"column:id;primaryKey;type:varchar(64)"`
	SafeName     string     `gorm:"column:safe_name;type:varchar(128);uniqueIndex;not null"`
	Investigator string     `gorm:"column:investigator;type:varchar(128);not null"`
	SchemaName   string     `gorm:"column:schema_name;type:varchar(160);not null"`
	Collection   string     `gorm:"column:collection;type:varchar(160);not null"`
	GraphLabel   string     `gorm:"column:graph_label;type:varchar(160);not null"`
	Status       string     `gorm:"column:status;type:varchar(32);not null;default:active"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	DeletedAt    *time.Time `gorm:"column:deleted_at;index"`
}

// TableName 指定表名
func (CaseModel) TableName() string {
	return "cases"
}

// ReportModel 单份 UFDR 提取报告的设备级元数据
type ReportModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceModel    string    `gorm:"column:device_model;type:varchar(128)"`
	Manufacturer   string    `gorm:"column:manufacturer;type:varchar(128)"`
	OSVersion      string    `gorm:"column:os_version;type:varchar(64)"`
	IMEI           string    `gorm:"column:imei;type:varchar(32);index"`
	SerialNumber   string    `gorm:"column:serial_number;type:varchar(64)"`
	PhoneNumber    string    `gorm:"column:phone_number;type:varchar(32);index"`
	ExtractionDate string    `gorm:"column:extraction_date;type:varchar(64)"`
	ExtractionTool string    `gorm:"column:extraction_tool;type:varchar(128)"`
	CaseOfficer    string    `gorm:"column:case_officer;type:varchar(128)"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (ReportModel) TableName() string {
	return "ufdr_reports"
}

// ChatModel 聊天消息行
type ChatModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ReportID  int64     `gorm:"column:report_id;index"`
	App       string    `gorm:"column:app;type:varchar(64);index"`
	Sender    string    `gorm:"column:sender;type:varchar(64);index"`
	Receiver  string    `gorm:"column:receiver;type:varchar(64);index"`
	Message   string    `gorm:"column:message;type:text"`
	SentAt    string    `gorm:"column:sent_at;type:varchar(64)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (ChatModel) TableName() string {
	return "chat_records"
}

// CallModel 通话记录行
type CallModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ReportID  int64     `gorm:"column:report_id;index"`
	Caller    string    `gorm:"column:caller;type:varchar(64);index"`
	Callee    string    `gorm:"column:callee;type:varchar(64);index"`
	Duration  string    `gorm:"column:duration;type:varchar(32)"`
	CallType  string    `gorm:"column:call_type;type:varchar(32);index"`
	CalledAt  string    `gorm:"column:called_at;type:varchar(64)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (CallModel) TableName() string {
	return "call_records"
}

// ContactModel 联系人行
type ContactModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ReportID  int64     `gorm:"column:report_id;index"`
	Name      string    `gorm:"column:name;type:varchar(128);index"`
	Phone     string    `gorm:"column:phone;type:varchar(32);index"`
	Email     string    `gorm:"column:email;type:varchar(128)"`
	AddedAt   string    `gorm:"column:added_at;type:varchar(64)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (ContactModel) TableName() string {
	return "contacts"
}

// MediaModel 媒体文件行
type MediaModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ReportID  int64     `gorm:"column:report_id;index"`
	FileName  string    `gorm:"column:file_name;type:varchar(256);index"`
	FileType  string    `gorm:"column:file_type;type:varchar(64);index"`
	Size      string    `gorm:"column:size;type:varchar(32)"`
	Path      string    `gorm:"column:path;type:text"`
	TakenAt   string    `gorm:"column:taken_at;type:varchar(64)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (MediaModel) TableName() string {
	return "media_files"
}

// Record 将行模型转换为协议记录
func (m *ChatModel) Record() *Record {
	r := NewRecord(KindChat)
	r.Set("app", m.App)
	r.Set("from", m.Sender)
	r.Set("to", m.Receiver)
	r.Set("time", m.SentAt)
	r.Set("message", m.Message)
	return r
}

// Record 将行模型转换为协议记录
func (m *CallModel) Record() *Record {
	r := NewRecord(KindCall)
	r.Set("from", m.Caller)
	r.Set("to", m.Callee)
	r.Set("duration", m.Duration)
	r.Set("call_type", m.CallType)
	r.Set("time", m.CalledAt)
	return r
}

// Record 将行模型转换为协议记录
func (m *ContactModel) Record() *Record {
	r := NewRecord(KindContact)
	r.Set("name", m.Name)
	r.Set("phone", m.Phone)
	r.Set("email", m.Email)
	r.Set("time", m.AddedAt)
	return r
}

// Record 将行模型转换为协议记录
func (m *MediaModel) Record() *Record {
	r := NewRecord(KindMedia)
	r.Set("file", m.FileName)
	r.Set("size", m.Size)
	r.Set("file_type", m.FileType)
	r.Set("path", m.Path)
	r.Set("time", m.TakenAt)
	return r
}

// Record 将行模型转换为协议记录
func (m *ReportModel) Record() *Record {
	r := NewRecord(KindDevice)
	r.Set("model", m.DeviceModel)
	r.Set("manufacturer", m.Manufacturer)
	r.Set("os_version", m.OSVersion)
	r.Set("imei", m.IMEI)
	r.Set("serial_number", m.SerialNumber)
	r.Set("phone", m.PhoneNumber)
	r.Set("extraction_date", m.ExtractionDate)
	r.Set("extraction_tool", m.ExtractionTool)
	r.Set("case_officer", m.CaseOfficer)
	return r
}
