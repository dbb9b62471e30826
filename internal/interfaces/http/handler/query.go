package handler

import (
	"github.com/gin-gonic/gin"

	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/interfaces/http/dto"
)

// QueryHandler 混合查询处理器
type QueryHandler struct {
	service *hybridquery.Service
}

// NewQueryHandler 创建混合查询处理器
func NewQueryHandler(service *hybridquery.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// Query 对案件执行自然语言查询
// @Summary 混合查询
// @Description 按问题形态选择检索策略，跨关系库/向量库/图库并发检索后融合应答
// @Tags Query
// @Accept json
// @Produce json
// @Param cid path string true "案件 ID"
// @Param request body dto.QueryRequest true "查询请求"
// @Success 200 {object} dto.Response[dto.QueryResponse]
// @Router /v1/cases/{cid}/query [post]
func (h *QueryHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	answer, err := h.service.Execute(c.Request.Context(), c.Param("cid"), req.Question)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Success(c, dto.NewQueryResponse(answer))
}
