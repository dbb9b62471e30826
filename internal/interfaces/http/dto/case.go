package dto

import (
	"time"

	"ufdr-insight-api/internal/application/casespace"
)

// CreateCaseRequest 创建案件环境请求
type CreateCaseRequest struct {
	CaseID       string `json:"case_id" binding:"required,max=128"`
	Investigator string `json:"investigator" binding:"max=128"`
}

// CaseResponse 案件环境响应
type CaseResponse struct {
	CaseID       string    `json:"case_id"`
	SafeName     string    `json:"safe_name"`
	Investigator string    `json:"investigator,omitempty"`
	Schema       string    `json:"schema"`
	Collection   string    `json:"collection"`
	GraphLabel   string    `json:"graph_label"`
	CreatedAt    time.Time `json:"created_at"`
}

// CaseCountsResponse 案件证据规模响应
type CaseCountsResponse struct {
	CaseID string           `json:"case_id"`
	Counts map[string]int64 `json:"counts"`
}

// NewCaseResponse 由案件句柄构建响应
func NewCaseResponse(h *casespace.Handle) *CaseResponse {
	return &CaseResponse{
		CaseID:       h.CaseID,
		SafeName:     h.SafeName,
		Investigator: h.Investigator,
		Schema:       h.Schema,
		Collection:   h.Collection,
		GraphLabel:   h.GraphLabel,
		CreatedAt:    h.CreatedAt,
	}
}

// NewCaseListResponse 由句柄列表构建响应列表
func NewCaseListResponse(handles []*casespace.Handle) []*CaseResponse {
	out := make([]*CaseResponse, 0, len(handles))
	for _, h := range handles {
		out = append(out, NewCaseResponse(h))
	}
	return out
}
