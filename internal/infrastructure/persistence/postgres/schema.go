package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// evidenceTables 每个案件 schema 内的证据表 DDL，%s 为 schema 名
var evidenceTables = []string{
	`CREATE TABLE IF NOT EXISTS %s.ufdr_reports (
		id BIGSERIAL PRIMARY KEY,
		device_model VARCHAR(128),
		manufacturer VARCHAR(128),
		os_version VARCHAR(64),
		imei VARCHAR(32),
		serial_number VARCHAR(64),
		phone_number VARCHAR(32),
		extraction_date VARCHAR(64),
		extraction_tool VARCHAR(128),
		case_officer VARCHAR(128),
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %s.chat_records (
		id BIGSERIAL PRIMARY KEY,
		report_id BIGINT,
		app VARCHAR(64),
		sender VARCHAR(64),
		receiver VARCHAR(64),
		message TEXT,
		sent_at VARCHAR(64),
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %s.call_records (
		id BIGSERIAL PRIMARY KEY,
		report_id BIGINT,
		caller VARCHAR(64),
		callee VARCHAR(64),
		duration VARCHAR(32),
		call_type VARCHAR(32),
		called_at VARCHAR(64),
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %s.contacts (
		id BIGSERIAL PRIMARY KEY,
		report_id BIGINT,
		name VARCHAR(128),
		phone VARCHAR(32),
		email VARCHAR(128),
		added_at VARCHAR(64),
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %s.media_files (
		id BIGSERIAL PRIMARY KEY,
		report_id BIGINT,
		file_name VARCHAR(256),
		file_type VARCHAR(64),
		size VARCHAR(32),
		path TEXT,
		taken_at VARCHAR(64),
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sender ON %s.chat_records (sender)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_receiver ON %s.chat_records (receiver)`,
	`CREATE INDEX IF NOT EXISTS idx_call_caller ON %s.call_records (caller)`,
	`CREATE INDEX IF NOT EXISTS idx_contact_phone ON %s.contacts (phone)`,
}

// SchemaManager 实现案件关系库命名空间的创建与销毁
type SchemaManager struct {
	client *Client
}

// NewSchemaManager 创建 schema 管理器
func NewSchemaManager(client *Client) *SchemaManager {
	return &SchemaManager{client: client}
}

// CreateSchema 创建案件专属 schema 及全部证据表。
// schema 名来自注册表清洗后的安全名，引用后直接拼入 DDL。
func (m *SchemaManager) CreateSchema(ctx context.Context, schema string) error {
	ctx, span := tracer.Start(ctx, "postgres.CreateSchema",
		trace.WithAttributes(attribute.String("schema", schema)))
	defer span.End()

	quoted := pq.QuoteIdentifier(schema)
	db := m.client.db.WithContext(ctx)
	if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoted)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	for _, ddl := range evidenceTables {
		if err := db.Exec(fmt.Sprintf(ddl, quoted)).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create evidence table in %s: %w", schema, err)
		}
	}
	return nil
}

// DropSchema 连同全部证据表一起删除案件 schema
func (m *SchemaManager) DropSchema(ctx context.Context, schema string) error {
	ctx, span := tracer.Start(ctx, "postgres.DropSchema",
		trace.WithAttributes(attribute.String("schema", schema)))
	defer span.End()

	err := m.client.db.WithContext(ctx).
		Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schema))).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop schema %s: %w", schema, err)
	}
	return nil
}
