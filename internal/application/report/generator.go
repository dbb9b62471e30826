package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/domain/evidence"
	"ufdr-insight-api/internal/protocol"
	"ufdr-insight-api/pkg/errors"
	"ufdr-insight-api/pkg/logger"
	"ufdr-insight-api/pkg/tracer"
)

// flaggedFetchLimit 风险评估取样的记录上限
const flaggedFetchLimit = 200

// EvidenceSource 报告生成消费的证据端口
type EvidenceSource interface {
	Query(ctx context.Context, handle *casespace.Handle, text string, limit int) ([]hybridquery.Candidate, error)
	Counts(ctx context.Context, handle *casespace.Handle) (map[string]int64, error)
}

// GraphSource 通联网络统计端口
type GraphSource interface {
	Stats(ctx context.Context, handle *casespace.Handle) (*NetworkStats, error)
}

// KeyPlayer 网络中通联度最高的实体
type KeyPlayer struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name,omitempty"`
	Degree   int    `json:"degree"`
}

// NetworkStats 案件通联网络概况
type NetworkStats struct {
	Nodes      int64       `json:"nodes"`
	Edges      int64       `json:"edges"`
	KeyPlayers []KeyPlayer `json:"key_players,omitempty"`
}

// Timeline 取样证据覆盖的时间范围
type Timeline struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Report 案件分析报告
type Report struct {
	CaseID         string           `json:"case_id"`
	Investigator   string           `json:"investigator"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Counts         map[string]int64 `json:"counts"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	RiskScore      int              `json:"risk_score"`
	RiskIndicators []string         `json:"risk_indicators,omitempty"`
	Network        *NetworkStats    `json:"network,omitempty"`
	Timeline       *Timeline        `json:"timeline,omitempty"`
	Summary        string           `json:"summary"`
	FlaggedRecords string           `json:"flagged_records,omitempty"`
}

// Generator 案件报告生成器
type Generator struct {
	registry *casespace.Registry
	source   EvidenceSource
	graph    GraphSource
	narrator hybridquery.Narrator
}

// NewGenerator 创建报告生成器，graph 可为空，网络统计随之省略
func NewGenerator(registry *casespace.Registry, source EvidenceSource, graph GraphSource, narrator hybridquery.Narrator) *Generator {
	return &Generator{
		registry: registry,
		source:   source,
		graph:    graph,
		narrator: narrator,
	}
}

// Generate 生成案件报告：统计证据规模、做风险评估，
// 再交给 LLM 写摘要；LLM 不可用时回退为确定性摘要。
func (g *Generator) Generate(ctx context.Context, caseID string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "report.Generate")
	defer span.End()

	handle, err := g.registry.Resolve(ctx, caseID)
	if err != nil {
		return nil, err
	}

	counts, err := g.source.Counts(ctx, handle)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReportFailed, "failed to count evidence")
	}

	candidates, err := g.source.Query(ctx, handle, "", flaggedFetchLimit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReportFailed, "failed to sample evidence")
	}

	ranked := hybridquery.Merge(candidates, nil)
	assessment := Assess(ranked.Records())

	report := &Report{
		CaseID:         caseID,
		Investigator:   handle.Investigator,
		GeneratedAt:    time.Now().UTC(),
		Counts:         counts,
		RiskLevel:      assessment.Level,
		RiskScore:      assessment.Score,
		RiskIndicators: assessment.Indicators,
		Timeline:       timelineOf(ranked.Records()),
	}

	// 图库不可用只丢失网络概况，报告照常生成
	if g.graph != nil {
		stats, err := g.graph.Stats(ctx, handle)
		if err != nil {
			logger.Warn(ctx, "graph stats unavailable for report", "case_id", caseID, "error", err.Error())
		} else {
			report.Network = stats
		}
	}
	if len(assessment.Flagged) > 0 {
		report.FlaggedRecords = protocol.Encode(&protocol.Document{Records: assessment.Flagged})
	}

	report.Summary = g.summarize(ctx, report, assessment)
	return report, nil
}

// summarize 生成叙述性摘要，LLM 失败不让报告跟着失败
func (g *Generator) summarize(ctx context.Context, report *Report, assessment *Assessment) string {
	if g.narrator != nil {
		flagged := make([]hybridquery.RankedCandidate, 0, len(assessment.Flagged))
		for _, rec := range assessment.Flagged {
			flagged = append(flagged, hybridquery.RankedCandidate{Record: rec, Score: 1})
		}
		question := fmt.Sprintf(
			"Write an investigation report summary for case %s. Risk level: %s. Risk indicators: %s.",
			report.CaseID, report.RiskLevel, strings.Join(report.RiskIndicators, ", "))
		summary, err := g.narrator.Narrate(ctx, question, &hybridquery.RankedResult{Candidates: flagged})
		if err == nil && strings.TrimSpace(summary) != "" {
			return summary
		}
		if err != nil {
			logger.Warn(ctx, "report summary narration failed, falling back", "error", err.Error())
		}
	}
	return fallbackSummary(report)
}

// fallbackSummary 无 LLM 时的确定性摘要
func fallbackSummary(report *Report) string {
	tables := make([]string, 0, len(report.Counts))
	for table := range report.Counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var b strings.Builder
	fmt.Fprintf(&b, "Case %s contains", report.CaseID)
	for i, table := range tables {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %d %s", report.Counts[table], strings.ReplaceAll(table, "_", " "))
	}
	fmt.Fprintf(&b, ". Assessed risk level: %s.", report.RiskLevel)
	if len(report.RiskIndicators) > 0 {
		fmt.Fprintf(&b, " Indicators observed: %s.", strings.Join(report.RiskIndicators, ", "))
	}
	if report.Network != nil && len(report.Network.KeyPlayers) > 0 {
		names := make([]string, 0, len(report.Network.KeyPlayers))
		for _, p := range report.Network.KeyPlayers {
			names = append(names, p.EntityID)
		}
		fmt.Fprintf(&b, " Key communicators: %s.", strings.Join(names, ", "))
	}
	return b.String()
}

// timeLayouts 证据时间戳的常见写法，提取报告来源不一，逐个尝试
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// timelineOf 从取样记录的时间字段推导证据覆盖区间，无可解析时间时返回 nil
func timelineOf(records []*evidence.Record) *Timeline {
	var tl *Timeline
	for _, rec := range records {
		if rec == nil {
			continue
		}
		raw := rec.CanonicalFields()["time"]
		if raw == "" {
			continue
		}
		ts, ok := parseEvidenceTime(raw)
		if !ok {
			continue
		}
		if tl == nil {
			tl = &Timeline{Earliest: ts, Latest: ts}
			continue
		}
		if ts.Before(tl.Earliest) {
			tl.Earliest = ts
		}
		if ts.After(tl.Latest) {
			tl.Latest = ts
		}
	}
	return tl
}

func parseEvidenceTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
