package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/handlers"
	"github.com/onurcolak/sms-dispatch-service/internal/middlewares"
)

type Handlers struct {
	Health        *handlers.HealthHandler
	Message       *handlers.MessageHandler
	Campaign      *handlers.CampaignHandler
	Template      *handlers.TemplateHandler
	Autoresponder *handlers.AutoresponderHandler
	Scheduler     *handlers.SchedulerHandler
}

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(e *echo.Echo, h Handlers, cfg *environments.Config) {
	e.GET("/health", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 base group
	v1 := e.Group("/api/v1")

	// Dispatch, campaign, template and autoresponder routes share the messages key
	auth := middlewares.APIKeyAuth(cfg.Auth.MessagesAPIKey)

	messages := v1.Group("/messages", auth)
	messages.POST("/send", h.Message.SendMessage)
	messages.POST("/bulk", h.Message.SendBulk)
	messages.GET("/logs", h.Message.GetLogs)
	messages.GET("/stats", h.Message.GetStats)
	messages.GET("/cached", h.Message.GetCachedMessages)
	messages.GET("/cached/:id", h.Message.GetCachedMessage)

	v1.GET("/carriers", h.Message.GetCarriers, auth)

	campaigns := v1.Group("/campaigns", auth)
	campaigns.POST("", h.Campaign.CreateCampaign)
	campaigns.GET("", h.Campaign.ListCampaigns)
	campaigns.GET("/:id", h.Campaign.GetCampaign)
	campaigns.POST("/:id/schedule", h.Campaign.ScheduleCampaign)
	campaigns.POST("/:id/cancel", h.Campaign.CancelCampaign)
	campaigns.POST("/:id/run", h.Campaign.RunCampaign)

	templates := v1.Group("/templates", auth)
	templates.POST("", h.Template.CreateTemplate)
	templates.GET("", h.Template.ListTemplates)
	templates.PUT("/:id/active", h.Template.SetTemplateActive)
	templates.POST("/:id/preview", h.Template.PreviewTemplate)

	autoresponders := v1.Group("/autoresponders", auth)
	autoresponders.POST("", h.Autoresponder.CreateAutoresponder)
	autoresponders.GET("", h.Autoresponder.ListAutoresponders)
	autoresponders.PUT("/:id/active", h.Autoresponder.SetAutoresponderActive)
	autoresponders.GET("/:id/logs", h.Autoresponder.GetAutomationLogs)

	v1.POST("/events", h.Autoresponder.HandleEvent, auth)
	v1.POST("/inbound/sms", h.Autoresponder.InboundSMS, auth)

	// Scheduler routes with their own API key
	schedulerGroup := v1.Group("/scheduler", middlewares.APIKeyAuth(cfg.Auth.SchedulerAPIKey))

	schedulerGroup.POST("/start", h.Scheduler.StartScheduler)
	schedulerGroup.POST("/stop", h.Scheduler.StopScheduler)
	schedulerGroup.GET("/status", h.Scheduler.GetSchedulerStatus)
}
