package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"hr-agent-go/internal/api/handler"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(
	h *server.Hertz,
	resumeHandler *handler.ResumeHandler,
	chatHandler *handler.ChatHandler,
	paginatedHandler *handler.ResumePaginatedHandler,
	adminHandler *handler.ResumeAdminHandler,
) {
	h.GET("/ping", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"message": "pong"})
	})

	api := h.Group("/api/v1")

	api.POST("/resumes/upload", resumeHandler.HandleResumeUpload)
	api.GET("/resumes", paginatedHandler.HandlePaginatedResumeList)
	api.POST("/chat/query", chatHandler.HandleChatQuery)
	api.DELETE("/chat/session/:session_id", chatHandler.HandleClearSession)

	// 详情与删除依赖上传记录存储，未配置MySQL时不注册
	if adminHandler != nil {
		api.GET("/resumes/:file_id", adminHandler.HandleResumeDetail)
		api.GET("/resumes/:file_id/text", adminHandler.HandleResumeText)
		api.DELETE("/resumes/:file_id", adminHandler.HandleResumeDelete)
	}

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
