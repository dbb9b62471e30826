// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/report"
	"ufdr-insight-api/internal/interfaces/http/dto"
	"ufdr-insight-api/pkg/logger"
)

// CacheInvalidator 案件销毁后清理缓存应答的端口
type CacheInvalidator interface {
	InvalidateCase(ctx context.Context, caseID string) error
}

// CaseHandler 案件环境处理器
type CaseHandler struct {
	registry *casespace.Registry
	source   report.EvidenceSource
	cache    CacheInvalidator
}

// NewCaseHandler 创建案件环境处理器
func NewCaseHandler(registry *casespace.Registry, source report.EvidenceSource, cache CacheInvalidator) *CaseHandler {
	return &CaseHandler{
		registry: registry,
		source:   source,
		cache:    cache,
	}
}

// Create 创建案件环境
// @Summary 创建案件环境
// @Description 为案件开通关系库 schema、向量集合与图命名空间
// @Tags Cases
// @Accept json
// @Produce json
// @Param request body dto.CreateCaseRequest true "创建请求"
// @Success 201 {object} dto.Response[dto.CaseResponse]
// @Router /v1/cases [post]
func (h *CaseHandler) Create(c *gin.Context) {
	var req dto.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	handle, err := h.registry.Provision(c.Request.Context(), req.CaseID, req.Investigator)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Created(c, dto.NewCaseResponse(handle))
}

// List 列出所有已开通的案件环境
// @Summary 列出案件
// @Tags Cases
// @Produce json
// @Success 200 {object} dto.Response[[]dto.CaseResponse]
// @Router /v1/cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	handles, err := h.registry.List(c.Request.Context())
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Success(c, dto.NewCaseListResponse(handles))
}

// Get 查询单个案件环境
// @Summary 查询案件
// @Tags Cases
// @Produce json
// @Param cid path string true "案件 ID"
// @Success 200 {object} dto.Response[dto.CaseResponse]
// @Router /v1/cases/{cid} [get]
func (h *CaseHandler) Get(c *gin.Context) {
	handle, err := h.registry.Resolve(c.Request.Context(), c.Param("cid"))
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Success(c, dto.NewCaseResponse(handle))
}

// Counts 查询案件证据规模
// @Summary 查询案件证据规模
// @Tags Cases
// @Produce json
// @Param cid path string true "案件 ID"
// @Success 200 {object} dto.Response[dto.CaseCountsResponse]
// @Router /v1/cases/{cid}/counts [get]
func (h *CaseHandler) Counts(c *gin.Context) {
	ctx := c.Request.Context()
	handle, err := h.registry.Resolve(ctx, c.Param("cid"))
	if err != nil {
		dto.Fail(c, err)
		return
	}

	counts, err := h.source.Counts(ctx, handle)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Success(c, &dto.CaseCountsResponse{
		CaseID: handle.CaseID,
		Counts: counts,
	})
}

// Delete 销毁案件环境
// @Summary 销毁案件
// @Description 撤销案件的全部存储命名空间，部分失败时返回残留清单
// @Tags Cases
// @Produce json
// @Param cid path string true "案件 ID"
// @Success 204
// @Router /v1/cases/{cid} [delete]
func (h *CaseHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	caseID := c.Param("cid")

	if err := h.registry.Teardown(ctx, caseID); err != nil {
		dto.Fail(c, err)
		return
	}

	// 缓存清理失败不影响销毁结果，条目会随 TTL 过期
	if h.cache != nil {
		if err := h.cache.InvalidateCase(ctx, caseID); err != nil {
			logger.Warn(ctx, "failed to invalidate query cache after teardown",
				"case_id", caseID,
				"error", err.Error(),
			)
		}
	}

	dto.NoContent(c)
}
