package hybridquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/singleflight"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/config"
	"ufdr-insight-api/internal/protocol"
	"ufdr-insight-api/pkg/errors"
	"ufdr-insight-api/pkg/logger"
	"ufdr-insight-api/pkg/metrics"
	"ufdr-insight-api/pkg/tracer"
)

// Service 混合查询服务：解析案件、分类、扇出、归并、叙述、编码、缓存
type Service struct {
	registry    *casespace.Registry
	coordinator *Coordinator
	embedder    embedding.Embedder
	narrator    Narrator
	cache       ResultCache
	cfg         *config.QueryConfig
	group       singleflight.Group
}

// NewService 创建混合查询服务
func NewService(registry *casespace.Registry, coordinator *Coordinator, embedder embedding.Embedder, narrator Narrator, cache ResultCache, cfg *config.QueryConfig) *Service {
	return &Service{
		registry:    registry,
		coordinator: coordinator,
		embedder:    embedder,
		narrator:    narrator,
		cache:       cache,
		cfg:         cfg,
	}
}

// Execute 执行一次混合查询，返回协议文本应答。
// 缓存命中直接短路整个扇出；降级来源随应答显式返回。
func (s *Service) Execute(ctx context.Context, caseID, question string) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "hybridquery.Execute")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New(errors.CodeInvalidParam, "question is required")
	}

	handle, err := s.registry.Resolve(ctx, caseID)
	if err != nil {
		return nil, err
	}

	strategy := Classify(question)
	start := time.Now()
	key := cacheKey(caseID, strategy, question)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warn(ctx, "query cache lookup failed", "error", err.Error())
		}
		if ok && cached != nil {
			metrics.QueryCacheHits.WithLabelValues("hit").Inc()
			metrics.QueryTotal.WithLabelValues(string(strategy), "ok").Inc()
			return &Answer{
				CaseID:    caseID,
				Strategy:  cached.Strategy,
				Text:      cached.Text,
				Degraded:  cached.Degraded,
				FromCache: true,
			}, nil
		}
		metrics.QueryCacheHits.WithLabelValues("miss").Inc()
	}

	// 未命中时按缓存键合并并发的相同查询，扇出只做一次。
	// 航班挂在剥离了取消信号的上下文上：领头请求断开不拖垮共享结果，
	// 各等待方仍各自响应自身取消，后端超时由协调器单独控制。
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.answer(flightCtx, handle, strategy, caseID, question, key)
	})

	select {
	case <-ctx.Done():
		metrics.QueryTotal.WithLabelValues(string(strategy), "error").Inc()
		return nil, errors.Wrap(ctx.Err(), errors.CodeServiceUnavailable, "query cancelled")
	case res := <-ch:
		if res.Err != nil {
			metrics.QueryTotal.WithLabelValues(string(strategy), "error").Inc()
			return nil, res.Err
		}
		answer := res.Val.(*Answer)

		metrics.QueryTotal.WithLabelValues(string(strategy), "ok").Inc()
		metrics.QueryDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
		return answer, nil
	}
}

// answer 执行一次完整的检索与应答生成
func (s *Service) answer(ctx context.Context, handle *casespace.Handle, strategy Strategy, caseID, question, key string) (*Answer, error) {
	req, err := s.buildRequest(ctx, strategy, question)
	if err != nil {
		return nil, err
	}

	candidates, degraded, err := s.coordinator.Retrieve(ctx, handle, req)
	if err != nil {
		return nil, err
	}

	result := Merge(candidates, degraded)
	text := s.render(ctx, question, result)

	answer := &Answer{
		CaseID:   caseID,
		Strategy: strategy,
		Text:     text,
		Degraded: originNames(result.Degraded),
	}

	if s.cache != nil {
		cached := &CachedAnswer{Text: answer.Text, Strategy: strategy, Degraded: answer.Degraded}
		if err := s.cache.Set(ctx, key, cached, s.cfg.CacheTTL); err != nil {
			logger.Warn(ctx, "query cache fill failed", "error", err.Error())
		}
	}

	logger.Info(ctx, "hybrid query answered",
		"case_id", caseID, "strategy", string(strategy),
		"candidates", len(result.Candidates), "degraded", len(result.Degraded))
	return answer, nil
}

// buildRequest 由策略派生扇出请求，语义路径需要先算查询向量
func (s *Service) buildRequest(ctx context.Context, strategy Strategy, question string) (*RetrievalRequest, error) {
	req := &RetrievalRequest{
		Strategy:        strategy,
		Text:            question,
		RowLimit:        s.cfg.RowLimit,
		TopK:            s.cfg.TopK,
		SimilarityFloor: s.cfg.SimilarityFloor,
		StartEntity:     StartEntity(question),
		MaxDepth:        s.cfg.MaxGraphDepth,
	}

	if strategy == StrategySemantic || strategy == StrategyHybrid {
		vec, err := s.embedQuestion(ctx, question)
		if err != nil {
			// 纯语义查询没有向量无路可走；混合查询可降级到其余两路
			if strategy == StrategySemantic {
				return nil, errors.Wrap(err, errors.CodeEmbeddingFailed, "failed to embed question")
			}
			logger.Warn(ctx, "embedding unavailable, vector backend skipped", "error", err.Error())
		}
		req.Embedding = vec
	}
	return req, nil
}

func (s *Service) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	vectors, err := s.embedder.EmbedStrings(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	out := make([]float32, 0, len(vectors[0]))
	for _, x := range vectors[0] {
		out = append(out, float32(x))
	}
	return out, nil
}

// render 生成协议文本：LLM 叙述失败时回退为确定性摘要，查询不因此失败
func (s *Service) render(ctx context.Context, question string, result *RankedResult) string {
	var narration string
	if s.narrator != nil {
		n, err := s.narrator.Narrate(ctx, question, result)
		if err != nil {
			logger.Warn(ctx, "narration failed, falling back to summary", "error", err.Error())
		} else {
			// 叙述器可能已经输出完整协议文本，能解出记录就直接采用
			if doc := protocol.Decode(n); len(doc.Records) > 0 {
				return appendDegradedNote(n, result.Degraded)
			}
			narration = n
		}
	}
	if narration == "" {
		narration = fallbackNarration(result)
	}

	doc := &protocol.Document{
		Narration: appendDegradedNote(narration, result.Degraded),
		Records:   result.Records(),
	}
	return protocol.Encode(doc)
}

// fallbackNarration 无 LLM 时的简单摘要
func fallbackNarration(result *RankedResult) string {
	if len(result.Candidates) == 0 {
		return "No matching evidence was found for this question."
	}
	return fmt.Sprintf("Found %d evidence item(s) relevant to this question.", len(result.Candidates))
}

// appendDegradedNote 附上不可用来源说明，降级绝不静默
func appendDegradedNote(text string, degraded []Origin) string {
	if len(degraded) == 0 {
		return text
	}
	names := originNames(degraded)
	return strings.TrimRight(text, "\n") +
		fmt.Sprintf("\nNote: results may be incomplete, unavailable sources: %s.", strings.Join(names, ", "))
}

func originNames(origins []Origin) []string {
	if len(origins) == 0 {
		return nil
	}
	names := make([]string, 0, len(origins))
	for _, o := range origins {
		names = append(names, string(o))
	}
	return names
}
