// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"ufdr-insight-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	caseHandler *handler.CaseHandler,
	queryHandler *handler.QueryHandler,
	reportHandler *handler.ReportHandler,
) {
	// 案件环境管理
	cases := v1.Group("/cases")
	{
		cases.GET("", caseHandler.List)
		cases.POST("", caseHandler.Create)
		cases.GET("/:cid", caseHandler.Get)
		cases.DELETE("/:cid", caseHandler.Delete)
		cases.GET("/:cid/counts", caseHandler.Counts)

		// 案件内查询与报告
		cases.POST("/:cid/query", queryHandler.Query)
		cases.POST("/:cid/report", reportHandler.Generate)
	}
}
