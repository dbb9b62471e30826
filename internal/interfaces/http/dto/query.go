package dto

import (
	"ufdr-insight-api/internal/application/hybridquery"
)

// QueryRequest 混合查询请求
type QueryRequest struct {
	Question string `json:"question" binding:"required,max=2048"`
}

// QueryResponse 混合查询响应
type QueryResponse struct {
	CaseID    string   `json:"case_id"`
	Strategy  string   `json:"strategy"`
	Answer    string   `json:"answer"`
	Degraded  []string `json:"degraded_sources,omitempty"`
	FromCache bool     `json:"from_cache"`
}

// NewQueryResponse 由应答构建响应
func NewQueryResponse(answer *hybridquery.Answer) *QueryResponse {
	return &QueryResponse{
		CaseID:    answer.CaseID,
		Strategy:  string(answer.Strategy),
		Answer:    answer.Text,
		Degraded:  answer.Degraded,
		FromCache: answer.FromCache,
	}
}
