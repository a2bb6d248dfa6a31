package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/notify"
	"github.com/gin-gonic/gin"
)

type appLister interface {
	InstalledApps(ctx context.Context) ([]domain.InstalledApp, error)
}

type notificationTray interface {
	Results() []notify.Entry
	Foreground() []notify.Entry
}

// AppHandler serves the target picker and the notification shade.
type AppHandler struct {
	apps   appLister
	tray   notificationTray
	logger *slog.Logger
}

func NewAppHandler(apps appLister, tray notificationTray, logger *slog.Logger) *AppHandler {
	return &AppHandler{apps: apps, tray: tray, logger: logger.With("component", "app_handler")}
}

type appResponse struct {
	PackageName string  `json:"package_name"`
	AppName     string  `json:"app_name"`
	IconPath    *string `json:"icon_path,omitempty"`
}

func (h *AppHandler) ListApps(ctx *gin.Context) {
	apps, err := h.apps.InstalledApps(ctx.Request.Context())
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "list installed apps", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errListApps})
		return
	}

	items := make([]appResponse, len(apps))
	for i, a := range apps {
		items[i] = appResponse{PackageName: a.PackageName, AppName: a.AppName, IconPath: a.IconPath}
	}
	ctx.JSON(http.StatusOK, gin.H{"apps": items})
}

func (h *AppHandler) ListNotifications(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"results":    h.tray.Results(),
		"foreground": h.tray.Foreground(),
	})
}
