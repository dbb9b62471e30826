package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/application/report"
	"ufdr-insight-api/internal/domain/evidence"
	"ufdr-insight-api/pkg/metrics"
)

// markerID 命名空间占位节点，空案件也能被识别为已创建
const markerID = "__namespace__"

// traversalLimit 单次图遍历最多返回的路径数
const traversalLimit = 25

// Repository 案件图命名空间仓储：命名空间生命周期与有界深度路径遍历。
// 案件隔离靠节点标签实现，标签名来自注册表清洗后的安全名。
type Repository struct {
	client *Client
}

// NewRepository 创建图仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// CreateNamespace 创建案件图命名空间
func (r *Repository) CreateNamespace(ctx context.Context, label string) error {
	ctx, span := tracer.Start(ctx, "neo4j.CreateNamespace",
		trace.WithAttributes(attribute.String("label", label)))
	defer span.End()

	cypher := fmt.Sprintf("MERGE (:`%s` {entity_id: $id})", label)
	if _, err := r.client.Run(ctx, cypher, map[string]any{"id": markerID}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create graph namespace %s: %w", label, err)
	}
	return nil
}

// DropNamespace 删除案件命名空间下的全部节点和关系
func (r *Repository) DropNamespace(ctx context.Context, label string) error {
	ctx, span := tracer.Start(ctx, "neo4j.DropNamespace",
		trace.WithAttributes(attribute.String("label", label)))
	defer span.End()

	cypher := fmt.Sprintf("MATCH (n:`%s`) DETACH DELETE n", label)
	if _, err := r.client.Run(ctx, cypher, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop graph namespace %s: %w", label, err)
	}
	return nil
}

// MergePerson 写入或更新案件命名空间内的人员节点。
// entity_id 通常是电话号码，重复写入只更新属性。
func (r *Repository) MergePerson(ctx context.Context, handle *casespace.Handle, entityID, name string) error {
	ctx, span := tracer.Start(ctx, "neo4j.MergePerson",
		trace.WithAttributes(attribute.String("label", handle.GraphLabel)))
	defer span.End()

	cypher := fmt.Sprintf(
		"MERGE (p:`%s` {entity_id: $id}) SET p.name = coalesce(nullif($name, ''), p.name)",
		handle.GraphLabel)
	if _, err := r.client.Run(ctx, cypher, map[string]any{"id": entityID, "name": name}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to merge person in %s: %w", handle.GraphLabel, err)
	}
	return nil
}

// MergeCommunication 写入两个实体之间的通联关系并累计强度。
// 同一对实体重复通联时 weight 递增，strength 随之增长。
func (r *Repository) MergeCommunication(ctx context.Context, handle *casespace.Handle, fromID, toID, channel string) error {
	ctx, span := tracer.Start(ctx, "neo4j.MergeCommunication",
		trace.WithAttributes(attribute.String("label", handle.GraphLabel)))
	defer span.End()

	cypher := fmt.Sprintf(`
		MERGE (a:`+"`%s`"+` {entity_id: $from})
		MERGE (b:`+"`%s`"+` {entity_id: $to})
		MERGE (a)-[r:COMMUNICATED_WITH]->(b)
		ON CREATE SET r.weight = 1, r.strength = 0.5, r.channel = $channel
		ON MATCH SET r.weight = r.weight + 1,
			r.strength = CASE WHEN r.strength + 0.05 > 1.0 THEN 1.0 ELSE r.strength + 0.05 END`,
		handle.GraphLabel, handle.GraphLabel)
	params := map[string]any{"from": fromID, "to": toID, "channel": channel}
	if _, err := r.client.Run(ctx, cypher, params); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to merge communication in %s: %w", handle.GraphLabel, err)
	}
	return nil
}

// keyPlayerLimit 网络概况里按通联度取前几名实体
const keyPlayerLimit = 5

// Stats 统计案件通联网络概况：节点数、边数和通联度最高的实体。
// 命名空间占位节点不计入。
func (r *Repository) Stats(ctx context.Context, handle *casespace.Handle) (*report.NetworkStats, error) {
	ctx, span := tracer.Start(ctx, "neo4j.Stats",
		trace.WithAttributes(attribute.String("label", handle.GraphLabel)))
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH (n:`+"`%s`"+`) WHERE n.entity_id <> $marker
		OPTIONAL MATCH (n)-[r]->(:`+"`%s`"+`)
		RETURN count(DISTINCT n) AS nodes, count(r) AS edges`,
		handle.GraphLabel, handle.GraphLabel)
	result, err := r.client.Run(ctx, cypher, map[string]any{"marker": markerID})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count graph %s: %w", handle.GraphLabel, err)
	}

	stats := &report.NetworkStats{}
	if len(result.Records) > 0 {
		m := result.Records[0].AsMap()
		stats.Nodes = int64(intValue(m, "nodes"))
		stats.Edges = int64(intValue(m, "edges"))
	}
	if stats.Nodes == 0 {
		return stats, nil
	}

	cypher = fmt.Sprintf(`
		MATCH (n:`+"`%s`"+`)-[r]-() WHERE n.entity_id <> $marker
		RETURN n.entity_id AS entity_id, coalesce(n.name, '') AS name, count(r) AS degree
		ORDER BY degree DESC, entity_id
		LIMIT %d`,
		handle.GraphLabel, keyPlayerLimit)
	result, err = r.client.Run(ctx, cypher, map[string]any{"marker": markerID})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to rank graph entities in %s: %w", handle.GraphLabel, err)
	}
	for _, record := range result.Records {
		m := record.AsMap()
		entityID := stringValue(m, "entity_id")
		if entityID == "" {
			continue
		}
		stats.KeyPlayers = append(stats.KeyPlayers, report.KeyPlayer{
			EntityID: entityID,
			Name:     stringValue(m, "name"),
			Degree:   intValue(m, "degree"),
		})
	}
	return stats, nil
}

// Traverse 从起点实体出发做有界深度路径遍历。
// 每条路径映射为一条分析记录，原始分 = 关系强度积 / 路径长度。
func (r *Repository) Traverse(ctx context.Context, handle *casespace.Handle, entity string, maxDepth int) ([]hybridquery.Candidate, error) {
	ctx, span := tracer.Start(ctx, "neo4j.Traverse",
		trace.WithAttributes(
			attribute.String("label", handle.GraphLabel),
			attribute.Int("max_depth", maxDepth),
		))
	defer span.End()

	// 标签和深度无法参数化，二者都来自受控输入
	cypher := fmt.Sprintf(`
		MATCH p = (start:`+"`%s`"+` {entity_id: $entity})-[*1..%d]-(other:`+"`%s`"+`)
		WHERE other.entity_id <> $entity AND other.entity_id <> $marker
		WITH other, p,
			reduce(s = 1.0, r IN relationships(p) | s * coalesce(r.strength, 1.0)) AS strength,
			[r IN relationships(p) | type(r)] AS rel_types
		RETURN other.entity_id AS entity_id,
			coalesce(other.name, '') AS name,
			length(p) AS path_len,
			strength, rel_types
		ORDER BY strength / length(p) DESC
		LIMIT %d`,
		handle.GraphLabel, maxDepth, handle.GraphLabel, traversalLimit)

	start := time.Now()
	result, err := r.client.Run(ctx, cypher, map[string]any{"entity": entity, "marker": markerID})
	metrics.GraphTraversalDuration.WithLabelValues(handle.SafeName).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to traverse graph %s: %w", handle.GraphLabel, err)
	}

	candidates := make([]hybridquery.Candidate, 0, len(result.Records))
	for _, record := range result.Records {
		entityID := stringValue(record.AsMap(), "entity_id")
		if entityID == "" {
			continue
		}
		name := stringValue(record.AsMap(), "name")
		pathLen := intValue(record.AsMap(), "path_len")
		if pathLen <= 0 {
			pathLen = 1
		}
		strength := floatValue(record.AsMap(), "strength")
		relTypes := stringSliceValue(record.AsMap(), "rel_types")

		rec := evidence.NewRecord(evidence.KindAnalysis)
		rec.Set("finding", pathFinding(entity, entityID, name, relTypes, pathLen))
		rec.Set("confidence", fmt.Sprintf("%.2f", strength/float64(pathLen)))
		rec.Set("references", entity+" -> "+entityID)

		candidates = append(candidates, hybridquery.Candidate{
			Record:   rec,
			Origin:   hybridquery.OriginGraph,
			RawScore: strength / float64(pathLen),
		})
	}
	return candidates, nil
}

// pathFinding 把一条图路径写成可读结论
func pathFinding(from, to, name string, relTypes []string, pathLen int) string {
	target := to
	if name != "" {
		target = fmt.Sprintf("%s (%s)", name, to)
	}
	via := "UNKNOWN"
	if len(relTypes) > 0 {
		via = strings.Join(relTypes, ", ")
	}
	return fmt.Sprintf("%s is connected to %s via %s within %d hop(s)", from, target, via, pathLen)
}

func stringValue(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intValue(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatValue(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func stringSliceValue(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
