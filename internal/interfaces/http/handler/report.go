package handler

import (
	"github.com/gin-gonic/gin"

	"ufdr-insight-api/internal/application/report"
	"ufdr-insight-api/internal/interfaces/http/dto"
)

// ReportHandler 案件报告处理器
type ReportHandler struct {
	generator *report.Generator
}

// NewReportHandler 创建案件报告处理器
func NewReportHandler(generator *report.Generator) *ReportHandler {
	return &ReportHandler{generator: generator}
}

// Generate 生成案件分析报告
// @Summary 生成案件报告
// @Description 统计证据规模、做风险评估并生成叙述性摘要
// @Tags Reports
// @Produce json
// @Param cid path string true "案件 ID"
// @Success 200 {object} dto.Response[dto.ReportResponse]
// @Router /v1/cases/{cid}/report [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	rep, err := h.generator.Generate(c.Request.Context(), c.Param("cid"))
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Success(c, dto.NewReportResponse(rep))
}
