package api

import (
	"ehs-backend/api/handlers/events"
	"ehs-backend/api/handlers/permits"
	"ehs-backend/internal/audit"
	"ehs-backend/internal/config"
	"ehs-backend/internal/logger"
	"ehs-backend/internal/metrics"
	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 组装许可证服务的 Gin 路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(Identity())
	router.Use(metrics.PrometheusMiddleware())

	// 检查表模板：配置了路径则与内置模板合并
	templates, err := permit.LoadChecklistTemplates(cfg.Permit.ChecklistTemplatePath)
	if err != nil {
		logger.Warn("加载检查表模板失败，使用内置模板",
			zap.String("path", cfg.Permit.ChecklistTemplatePath),
			zap.Error(err),
		)
		templates = nil
	}

	bus := permit.NewEventBus(&permit.EventBusConfig{BufferSize: cfg.Permit.EventBufferSize})
	recorder := audit.NewRecorder(db, logger.Get())

	opts := []permit.ServiceOption{
		permit.WithEventBus(bus),
		permit.WithAuditRecorder(recorder),
		permit.WithServiceLogger(logger.Get()),
	}
	if templates != nil {
		opts = append(opts, permit.WithChecklistTemplates(templates))
	}
	svc := permit.NewService(db, opts...)

	permitHandler := permits.NewPermitHandler(svc)
	checklistHandler := permits.NewChecklistHandler(svc)
	extensionHandler := permits.NewExtensionHandler(svc)
	stopWorkHandler := permits.NewStopWorkHandler(svc)
	wsHandler := events.NewWebSocketHandler(bus)

	// 系统端点
	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		permitGroup := apiGroup.Group("/permits")
		{
			permitGroup.POST("", permitHandler.CreatePermit)
			permitGroup.GET("", permitHandler.ListPermits)
			permitGroup.GET("/:id", permitHandler.GetPermit)
			permitGroup.PUT("/:id", permitHandler.UpdatePermit)
			permitGroup.DELETE("/:id", permitHandler.DeletePermit)

			// 生命周期流转
			permitGroup.POST("/:id/submit", permitHandler.Submit)
			permitGroup.POST("/:id/approve", permitHandler.Approve)
			permitGroup.POST("/:id/reject", permitHandler.Reject)
			permitGroup.POST("/:id/activate", permitHandler.Activate)
			permitGroup.POST("/:id/close", permitHandler.Close)
			permitGroup.POST("/:id/cancel", permitHandler.Cancel)

			// 延期
			permitGroup.POST("/:id/extensions", extensionHandler.RequestExtension)
			permitGroup.GET("/:id/extensions", extensionHandler.ListExtensions)
		}

		checklistGroup := apiGroup.Group("/checklists")
		{
			checklistGroup.GET("/:id", checklistHandler.GetChecklist)
			checklistGroup.PUT("/:id", checklistHandler.UpdateChecklist)
		}

		extensionGroup := apiGroup.Group("/extensions")
		{
			extensionGroup.GET("/:id", extensionHandler.GetExtension)
			extensionGroup.POST("/:id/approve", extensionHandler.ApproveExtension)
			extensionGroup.POST("/:id/reject", extensionHandler.RejectExtension)
		}

		stopWorkGroup := apiGroup.Group("/stop-work")
		{
			stopWorkGroup.POST("", stopWorkHandler.CreateStopWork)
			stopWorkGroup.GET("", stopWorkHandler.ListStopWork)
			stopWorkGroup.GET("/:id", stopWorkHandler.GetStopWork)
			stopWorkGroup.POST("/:id/investigate", stopWorkHandler.StartInvestigation)
			stopWorkGroup.POST("/:id/resolve", stopWorkHandler.ResolveStopWork)
			stopWorkGroup.POST("/:id/resume", stopWorkHandler.ResumeWork)
		}

		// 实时事件推送
		apiGroup.GET("/events/ws", wsHandler.Connect)
	}

	return router
}
