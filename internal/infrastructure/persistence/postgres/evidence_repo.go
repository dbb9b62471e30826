package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/domain/evidence"
)

// stopwords 查询分词时丢弃的无信息词
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "do": true, "does": true, "did": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "with": true, "and": true,
	"or": true, "any": true, "all": true, "show": true, "me": true, "list": true,
	"find": true, "what": true, "which": true, "who": true, "how": true,
	"many": true, "there": true, "from": true, "about": true, "have": true,
	"has": true, "had": true, "between": true, "records": true, "record": true,
}

// tableHints 查询措辞到证据表的提示词
var tableHints = map[string][]string{
	"chat_records": {"chat", "message", "whatsapp", "telegram", "signal", "sms", "text", "conversation"},
	"call_records": {"call", "called", "dial", "phone call", "duration"},
	"contacts":     {"contact", "address book", "saved number"},
	"media_files":  {"media", "photo", "image", "picture", "video", "file", "document", "audio"},
	"ufdr_reports": {"device", "imei", "handset", "extraction", "manufacturer"},
}

// EvidenceRepo 案件 schema 内证据表的精确检索仓储
type EvidenceRepo struct {
	client *Client
}

// NewEvidenceRepo 创建证据仓储
func NewEvidenceRepo(client *Client) *EvidenceRepo {
	return &EvidenceRepo{client: client}
}

// Query 在案件 schema 内做关键词精确检索。
// 查询措辞里点名了证据类别时只查对应的表，否则全表扫一遍。
func (r *EvidenceRepo) Query(ctx context.Context, handle *casespace.Handle, text string, limit int) ([]hybridquery.Candidate, error) {
	ctx, span := tracer.Start(ctx, "postgres.EvidenceRepo.Query",
		trace.WithAttributes(attribute.String("schema", handle.Schema)))
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	terms := searchTerms(text)
	tables := hintedTables(text)

	var candidates []hybridquery.Candidate
	for _, table := range tables {
		rows, err := r.queryTable(ctx, handle.Schema, table, terms, limit)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to query %s.%s: %w", handle.Schema, table, err)
		}
		candidates = append(candidates, rows...)
		if len(candidates) >= limit {
			candidates = candidates[:limit]
			break
		}
	}
	return candidates, nil
}

// Counts 统计案件各证据表的行数
func (r *EvidenceRepo) Counts(ctx context.Context, handle *casespace.Handle) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.EvidenceRepo.Counts",
		trace.WithAttributes(attribute.String("schema", handle.Schema)))
	defer span.End()

	counts := make(map[string]int64, 5)
	for _, table := range []string{"ufdr_reports", "chat_records", "call_records", "contacts", "media_files"} {
		var n int64
		err := r.client.db.WithContext(ctx).Table(handle.Schema + "." + table).Count(&n).Error
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to count %s.%s: %w", handle.Schema, table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// InsertReport 写入一份提取报告的设备元数据，返回行 ID 供证据行关联
func (r *EvidenceRepo) InsertReport(ctx context.Context, handle *casespace.Handle, report *evidence.ReportModel) (int64, error) {
	err := r.client.db.WithContext(ctx).
		Table(handle.Schema + ".ufdr_reports").Create(report).Error
	if err != nil {
		return 0, fmt.Errorf("failed to insert report into %s: %w", handle.Schema, err)
	}
	return report.ID, nil
}

// InsertChats 批量写入聊天消息行
func (r *EvidenceRepo) InsertChats(ctx context.Context, handle *casespace.Handle, rows []*evidence.ChatModel) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.client.db.WithContext(ctx).
		Table(handle.Schema + ".chat_records").CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to insert chat records into %s: %w", handle.Schema, err)
	}
	return nil
}

// InsertCalls 批量写入通话记录行
func (r *EvidenceRepo) InsertCalls(ctx context.Context, handle *casespace.Handle, rows []*evidence.CallModel) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.client.db.WithContext(ctx).
		Table(handle.Schema + ".call_records").CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to insert call records into %s: %w", handle.Schema, err)
	}
	return nil
}

// InsertContacts 批量写入联系人行
func (r *EvidenceRepo) InsertContacts(ctx context.Context, handle *casespace.Handle, rows []*evidence.ContactModel) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.client.db.WithContext(ctx).
		Table(handle.Schema + ".contacts").CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to insert contacts into %s: %w", handle.Schema, err)
	}
	return nil
}

// InsertMedia 批量写入媒体文件行
func (r *EvidenceRepo) InsertMedia(ctx context.Context, handle *casespace.Handle, rows []*evidence.MediaModel) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.client.db.WithContext(ctx).
		Table(handle.Schema + ".media_files").CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to insert media files into %s: %w", handle.Schema, err)
	}
	return nil
}

// insertBatchSize 批量写入的分批大小
const insertBatchSize = 500

func (r *EvidenceRepo) queryTable(ctx context.Context, schema, table string, terms []string, limit int) ([]hybridquery.Candidate, error) {
	db := r.client.db.WithContext(ctx).Table(schema + "." + table).Limit(limit)

	columns := searchColumns(table)
	if len(terms) > 0 && len(columns) > 0 {
		var conds []string
		var args []interface{}
		for _, term := range terms {
			for _, col := range columns {
				conds = append(conds, col+" ILIKE ?")
				args = append(args, "%"+term+"%")
			}
		}
		db = db.Where(strings.Join(conds, " OR "), args...)
	}

	var records []*evidence.Record
	switch table {
	case "chat_records":
		var rows []evidence.ChatModel
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			records = append(records, rows[i].Record())
		}
	case "call_records":
		var rows []evidence.CallModel
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			records = append(records, rows[i].Record())
		}
	case "contacts":
		var rows []evidence.ContactModel
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			records = append(records, rows[i].Record())
		}
	case "media_files":
		var rows []evidence.MediaModel
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			records = append(records, rows[i].Record())
		}
	case "ufdr_reports":
		var rows []evidence.ReportModel
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			records = append(records, rows[i].Record())
		}
	}

	candidates := make([]hybridquery.Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, hybridquery.Candidate{
			Record: rec,
			Origin: hybridquery.OriginRelational,
		})
	}
	return candidates, nil
}

// searchColumns 每张表参与模糊匹配的列
func searchColumns(table string) []string {
	switch table {
	case "chat_records":
		return []string{"app", "sender", "receiver", "message"}
	case "call_records":
		return []string{"caller", "callee", "call_type"}
	case "contacts":
		return []string{"name", "phone", "email"}
	case "media_files":
		return []string{"file_name", "file_type", "path"}
	case "ufdr_reports":
		return []string{"device_model", "manufacturer", "imei", "phone_number", "case_officer"}
	default:
		return nil
	}
}

// searchTerms 提取检索词：小写分词、去停用词、保留号码和带扩展名的文件名
func searchTerms(text string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		w := strings.Trim(f, "?!,.:;\"'()")
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// hintedTables 根据查询措辞挑选目标表，无提示时全表参与
func hintedTables(text string) []string {
	q := strings.ToLower(text)
	var tables []string
	for _, table := range []string{"chat_records", "call_records", "contacts", "media_files", "ufdr_reports"} {
		for _, hint := range tableHints[table] {
			if strings.Contains(q, hint) {
				tables = append(tables, table)
				break
			}
		}
	}
	if len(tables) == 0 {
		return []string{"chat_records", "call_records", "contacts", "media_files", "ufdr_reports"}
	}
	return tables
}
