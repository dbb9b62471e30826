package dto

import (
	"time"

	"ufdr-insight-api/internal/application/report"
)

// ReportResponse 案件分析报告响应
type ReportResponse struct {
	CaseID         string           `json:"case_id"`
	Investigator   string           `json:"investigator,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Counts         map[string]int64 `json:"counts"`
	RiskLevel      string           `json:"risk_level"`
	RiskScore      int              `json:"risk_score"`
	RiskIndicators []string         `json:"risk_indicators,omitempty"`
	Network        *NetworkStats    `json:"network,omitempty"`
	Timeline       *Timeline        `json:"timeline,omitempty"`
	Summary        string           `json:"summary"`
	FlaggedRecords string           `json:"flagged_records,omitempty"`
}

// NetworkStats 通联网络概况
type NetworkStats struct {
	Nodes      int64       `json:"nodes"`
	Edges      int64       `json:"edges"`
	KeyPlayers []KeyPlayer `json:"key_players,omitempty"`
}

// KeyPlayer 通联度最高的实体
type KeyPlayer struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name,omitempty"`
	Degree   int    `json:"degree"`
}

// Timeline 证据覆盖的时间范围
type Timeline struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// NewReportResponse 由报告构建响应
func NewReportResponse(r *report.Report) *ReportResponse {
	resp := &ReportResponse{
		CaseID:         r.CaseID,
		Investigator:   r.Investigator,
		GeneratedAt:    r.GeneratedAt,
		Counts:         r.Counts,
		RiskLevel:      string(r.RiskLevel),
		RiskScore:      r.RiskScore,
		RiskIndicators: r.RiskIndicators,
		Summary:        r.Summary,
		FlaggedRecords: r.FlaggedRecords,
	}
	if r.Network != nil {
		network := &NetworkStats{Nodes: r.Network.Nodes, Edges: r.Network.Edges}
		for _, p := range r.Network.KeyPlayers {
			network.KeyPlayers = append(network.KeyPlayers, KeyPlayer{
				EntityID: p.EntityID,
				Name:     p.Name,
				Degree:   p.Degree,
			})
		}
		resp.Network = network
	}
	if r.Timeline != nil {
		resp.Timeline = &Timeline{Earliest: r.Timeline.Earliest, Latest: r.Timeline.Latest}
	}
	return resp
}
