package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, scheduleHandler *handler.ScheduleHandler, appHandler *handler.AppHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	authMW := middleware.Auth(jwtKey)

	schedules := r.Group("/schedules", authMW)
	schedules.GET("", scheduleHandler.List)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("/stream", scheduleHandler.Stream)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.PUT("/:id", scheduleHandler.Update)
	schedules.POST("/:id/cancel", scheduleHandler.Cancel)
	schedules.DELETE("/:id", scheduleHandler.Delete)

	r.GET("/apps", authMW, appHandler.ListApps)
	r.GET("/notifications", authMW, appHandler.ListNotifications)

	return r
}
