package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/config"
	"ufdr-insight-api/internal/domain/evidence"
	"ufdr-insight-api/pkg/metrics"
)

const (
	fieldID        = "id"
	fieldDataType  = "data_type"
	fieldPayload   = "payload"
	fieldEmbedding = "embedding"

	payloadMaxLength = 8192
	searchEf         = 64
)

// vectorPayload 向量库里一条证据的序列化形态
type vectorPayload struct {
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

// Repository 案件向量集合仓储：集合生命周期管理与相似度检索
type Repository struct {
	client *Client
	cfg    *config.MilvusConfig
	dim    int
}

// NewRepository 创建向量仓储
func NewRepository(client *Client, cfg *config.MilvusConfig, dimension int) *Repository {
	return &Repository{
		client: client,
		cfg:    cfg,
		dim:    dimension,
	}
}

// CreateCollection 创建案件专属集合并建 HNSW 索引
func (r *Repository) CreateCollection(ctx context.Context, collection string) error {
	name := r.client.CollectionName(collection)
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	exists, err := r.client.milvus.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "per-case evidence embeddings",
		Fields: []*entity.Field{
			entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(64).WithIsPrimaryKey(true),
			entity.NewField().WithName(fieldDataType).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(32),
			entity.NewField().WithName(fieldPayload).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(payloadMaxLength),
			entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(r.dim)),
		},
	}

	if err := r.client.milvus.CreateCollection(ctx, schema, 1); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	index, err := entity.NewIndexHNSW(entity.COSINE, r.cfg.HNSWM, r.cfg.HNSWEfConstruction)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build hnsw index params: %w", err)
	}
	if err := r.client.milvus.CreateIndex(ctx, name, fieldEmbedding, index, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index on %s: %w", name, err)
	}
	if err := r.client.milvus.LoadCollection(ctx, name, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

// DropCollection 删除案件集合
func (r *Repository) DropCollection(ctx context.Context, collection string) error {
	name := r.client.CollectionName(collection)
	ctx, span := tracer.Start(ctx, "milvus.DropCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	exists, err := r.client.milvus.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}
	if err := r.client.milvus.DropCollection(ctx, name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// Segment 一条待入库的证据向量
type Segment struct {
	ID        string
	Record    *evidence.Record
	Embedding []float32
}

// InsertSegments 批量写入证据向量。载荷超长或缺向量的分段跳过不报错，
// 主键相同的分段由 Milvus 按 upsert 语义覆盖。
func (r *Repository) InsertSegments(ctx context.Context, handle *casespace.Handle, segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	name := r.client.CollectionName(handle.Collection)
	ctx, span := tracer.Start(ctx, "milvus.InsertSegments",
		trace.WithAttributes(
			attribute.String("collection", name),
			attribute.Int("segments", len(segments)),
		))
	defer span.End()

	ids := make([]string, 0, len(segments))
	kinds := make([]string, 0, len(segments))
	payloads := make([]string, 0, len(segments))
	vectors := make([][]float32, 0, len(segments))
	for _, s := range segments {
		if s.Record == nil || len(s.Embedding) != r.dim {
			continue
		}
		raw, err := json.Marshal(vectorPayload{
			Kind:   string(s.Record.Kind),
			Fields: s.Record.CanonicalFields(),
		})
		if err != nil || len(raw) > payloadMaxLength {
			continue
		}
		id := s.ID
		if id == "" {
			id = s.Record.Identity()
		}
		ids = append(ids, id)
		kinds = append(kinds, string(s.Record.Kind))
		payloads = append(payloads, string(raw))
		vectors = append(vectors, s.Embedding)
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := r.client.milvus.Upsert(ctx, name, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldDataType, kinds),
		entity.NewColumnVarChar(fieldPayload, payloads),
		entity.NewColumnFloatVector(fieldEmbedding, r.dim, vectors))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments into %s: %w", name, err)
	}
	return nil
}

// Search 余弦相似度检索，低于下限的命中直接丢弃
func (r *Repository) Search(ctx context.Context, handle *casespace.Handle, vector []float32, topK int, floor float64) ([]hybridquery.Candidate, error) {
	name := r.client.CollectionName(handle.Collection)
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("collection", name),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	start := time.Now()
	sp, err := entity.NewIndexHNSWSearchParam(searchEf)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := r.client.milvus.Search(ctx, name, nil, "",
		[]string{fieldID, fieldDataType, fieldPayload},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding, entity.COSINE, topK, sp)
	metrics.MilvusSearchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(name, "ok").Inc()

	var candidates []hybridquery.Candidate
	for _, rs := range results {
		payloadCol, ok := rs.Fields.GetColumn(fieldPayload).(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		for i := 0; i < rs.ResultCount; i++ {
			// COSINE 度量下分值即相似度，越大越近
			similarity := float64(rs.Scores[i])
			if similarity < floor {
				continue
			}
			raw, err := payloadCol.ValueByIdx(i)
			if err != nil {
				continue
			}
			rec := decodePayload(raw)
			if rec == nil {
				continue
			}
			candidates = append(candidates, hybridquery.Candidate{
				Record:   rec,
				Origin:   hybridquery.OriginVector,
				RawScore: similarity,
			})
		}
	}
	return candidates, nil
}

// decodePayload 将向量库载荷还原为证据记录，坏载荷丢弃不报错
func decodePayload(raw string) *evidence.Record {
	var p vectorPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	rec := evidence.NewRecord(evidence.Kind(p.Kind))
	for k, v := range p.Fields {
		if !rec.Set(k, v) {
			rec.AddExtra(k, v)
		}
	}
	return rec
}
