// Package hybridquery 实现混合查询编排：策略分类、三路扇出、归并排序与应答编码
package hybridquery

import (
	"context"
	"time"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/domain/evidence"
)

// Strategy 检索策略
type Strategy string

// 三种检索路径
const (
	StrategyStructured Strategy = "sql_only"
	StrategySemantic   Strategy = "semantic_only"
	StrategyHybrid     Strategy = "hybrid"
)

// Origin 候选命中的来源后端
type Origin string

// 三个检索后端
const (
	OriginRelational Origin = "relational"
	OriginVector     Origin = "vector"
	OriginGraph      Origin = "graph"
)

// originRank 同分时的来源优先级，确定性越高越靠前
var originRank = map[Origin]int{
	OriginRelational: 0,
	OriginVector:     1,
	OriginGraph:      2,
}

// RetrievalRequest 由查询和策略派生的扇出请求
type RetrievalRequest struct {
	Strategy Strategy
	Text     string

	// 关系库子查询
	RowLimit int

	// 向量子查询
	Embedding       []float32
	TopK            int
	SimilarityFloor float64

	// 图子查询，StartEntity 为空时跳过图检索
	StartEntity string
	MaxDepth    int
}

// Candidate 单个后端返回的一条命中，创建后不再修改
type Candidate struct {
	Record   *evidence.Record
	Origin   Origin
	RawScore float64
}

// RankedCandidate 归并后的候选：统一分值加来源集合
type RankedCandidate struct {
	Record  *evidence.Record
	Score   float64
	Origins []Origin
}

// RankedResult 归并排序后的结果。
// Degraded 显式携带失败或超时的来源，调用方据此提示结果可能不完整。
type RankedResult struct {
	Candidates []RankedCandidate
	Degraded   []Origin
}

// Records 提取候选携带的记录序列
func (r *RankedResult) Records() []*evidence.Record {
	out := make([]*evidence.Record, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Record)
	}
	return out
}

// RelationalStore 关系库检索端口，返回精确匹配行
type RelationalStore interface {
	Query(ctx context.Context, handle *casespace.Handle, text string, limit int) ([]Candidate, error)
}

// VectorStore 向量检索端口，返回相似度达标的载荷
type VectorStore interface {
	Search(ctx context.Context, handle *casespace.Handle, vector []float32, topK int, floor float64) ([]Candidate, error)
}

// GraphStore 图检索端口，返回起点实体出发的有界深度路径
type GraphStore interface {
	Traverse(ctx context.Context, handle *casespace.Handle, entity string, maxDepth int) ([]Candidate, error)
}

// Narrator LLM 叙述端口：基于排序结果生成答复正文
type Narrator interface {
	Narrate(ctx context.Context, question string, result *RankedResult) (string, error)
}

// CachedAnswer 缓存的完整应答
type CachedAnswer struct {
	Text     string   `json:"text"`
	Strategy Strategy `json:"strategy"`
	Degraded []string `json:"degraded,omitempty"`
}

// ResultCache 查询结果缓存端口
type ResultCache interface {
	Get(ctx context.Context, key string) (*CachedAnswer, bool, error)
	Set(ctx context.Context, key string, answer *CachedAnswer, ttl time.Duration) error
}

// Answer 一次查询的最终应答
type Answer struct {
	CaseID    string
	Strategy  Strategy
	Text      string
	Degraded  []string
	FromCache bool
}
