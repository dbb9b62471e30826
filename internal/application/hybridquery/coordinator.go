package hybridquery

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/config"
	"ufdr-insight-api/pkg/errors"
	"ufdr-insight-api/pkg/logger"
	"ufdr-insight-api/pkg/metrics"
)

// 图遍历深度边界
const (
	minGraphDepth = 1
	maxGraphDepth = 5
)

// Coordinator 检索扇出协调器：按策略并发下发子查询，
// 单路失败降级为零候选，全部失败才向上报错
type Coordinator struct {
	relational RelationalStore
	vector     VectorStore
	graph      GraphStore
	cfg        *config.QueryConfig
}

// NewCoordinator 创建扇出协调器
func NewCoordinator(relational RelationalStore, vector VectorStore, graph GraphStore, cfg *config.QueryConfig) *Coordinator {
	return &Coordinator{
		relational: relational,
		vector:     vector,
		graph:      graph,
		cfg:        cfg,
	}
}

// Retrieve 按请求策略扇出检索。
// 每路子查询有独立超时；调用方取消后迟到的结果直接丢弃，不会混进应答。
func (c *Coordinator) Retrieve(ctx context.Context, handle *casespace.Handle, req *RetrievalRequest) ([]Candidate, []Origin, error) {
	type outcome struct {
		candidates []Candidate
		err        error
	}

	var relOut, vecOut, graphOut *outcome
	var g errgroup.Group

	if c.wantRelational(req) {
		relOut = &outcome{}
		g.Go(func() error {
			relOut.candidates, relOut.err = c.runBackend(ctx, OriginRelational, c.cfg.RelationalTimeout,
				func(sub context.Context) ([]Candidate, error) {
					return c.relational.Query(sub, handle, req.Text, req.RowLimit)
				})
			return nil
		})
	}

	if c.wantVector(req) {
		vecOut = &outcome{}
		g.Go(func() error {
			vecOut.candidates, vecOut.err = c.runBackend(ctx, OriginVector, c.cfg.VectorTimeout,
				func(sub context.Context) ([]Candidate, error) {
					return c.vector.Search(sub, handle, req.Embedding, req.TopK, req.SimilarityFloor)
				})
			return nil
		})
	}

	if c.wantGraph(req) {
		graphOut = &outcome{}
		g.Go(func() error {
			depth := clampDepth(req.MaxDepth)
			graphOut.candidates, graphOut.err = c.runBackend(ctx, OriginGraph, c.cfg.GraphTimeout,
				func(sub context.Context) ([]Candidate, error) {
					return c.graph.Traverse(sub, handle, req.StartEntity, depth)
				})
			return nil
		})
	}

	_ = g.Wait()

	// 调用方已取消，结果不再有人要
	if ctx.Err() != nil {
		return nil, nil, errors.Wrap(ctx.Err(), errors.CodeServiceUnavailable, "query cancelled")
	}

	var all []Candidate
	var degraded []Origin
	attempted, failed := 0, 0
	collect := func(origin Origin, out *outcome) {
		if out == nil {
			return
		}
		attempted++
		if out.err != nil {
			failed++
			degraded = append(degraded, origin)
			metrics.FanoutDegradedTotal.WithLabelValues(string(origin)).Inc()
			logger.Warn(ctx, "retrieval backend degraded",
				"backend", string(origin), "case_id", handle.CaseID, "error", out.err.Error())
			return
		}
		all = append(all, out.candidates...)
	}
	collect(OriginRelational, relOut)
	collect(OriginVector, vecOut)
	collect(OriginGraph, graphOut)

	if attempted > 0 && failed == attempted {
		return nil, nil, errors.New(errors.CodeRetrievalUnavailable, "all retrieval backends failed").
			WithDetail("case " + handle.CaseID)
	}

	return all, degraded, nil
}

// runBackend 带独立超时执行单路子查询并上报指标
func (c *Coordinator) runBackend(ctx context.Context, origin Origin, timeout time.Duration, fn func(context.Context) ([]Candidate, error)) ([]Candidate, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sub, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	candidates, err := fn(sub)
	metrics.FanoutDuration.WithLabelValues(string(origin)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.FanoutBackendTotal.WithLabelValues(string(origin), "ok").Inc()
	case sub.Err() == context.DeadlineExceeded:
		metrics.FanoutBackendTotal.WithLabelValues(string(origin), "timeout").Inc()
	default:
		metrics.FanoutBackendTotal.WithLabelValues(string(origin), "error").Inc()
	}
	return candidates, err
}

func (c *Coordinator) wantRelational(req *RetrievalRequest) bool {
	if c.relational == nil {
		return false
	}
	return req.Strategy == StrategyStructured || req.Strategy == StrategyHybrid
}

func (c *Coordinator) wantVector(req *RetrievalRequest) bool {
	if c.vector == nil || len(req.Embedding) == 0 {
		return false
	}
	return req.Strategy == StrategySemantic || req.Strategy == StrategyHybrid
}

func (c *Coordinator) wantGraph(req *RetrievalRequest) bool {
	if c.graph == nil || req.StartEntity == "" {
		return false
	}
	return req.Strategy == StrategyHybrid
}

// clampDepth 图遍历深度收敛到 [1, 5]
func clampDepth(depth int) int {
	if depth < minGraphDepth {
		return minGraphDepth
	}
	if depth > maxGraphDepth {
		return maxGraphDepth
	}
	return depth
}
