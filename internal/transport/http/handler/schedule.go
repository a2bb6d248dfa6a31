package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/requestid"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/usecase"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

type scheduleUsecaser interface {
	AddSchedule(ctx context.Context, input usecase.AddScheduleInput) (*domain.Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, scheduledTime time.Time) (*domain.Schedule, error)
	CancelSchedule(ctx context.Context, id int64) error
	DeleteSchedule(ctx context.Context, id int64) error
	GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error)
	ListSchedules(ctx context.Context) ([]*domain.Schedule, error)
	WatchSchedules(ctx context.Context) <-chan []*domain.Schedule
}

// Attacher marks the host as foreground while a list viewer is connected.
type Attacher interface {
	Attach() (detach func())
}

type ScheduleHandler struct {
	uc       scheduleUsecaser
	presence Attacher
	logger   *slog.Logger
}

func NewScheduleHandler(uc scheduleUsecaser, presence Attacher, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, presence: presence, logger: logger.With("component", "schedule_handler")}
}

type addScheduleRequest struct {
	PackageName   string    `json:"package_name"   binding:"required,max=256"`
	AppName       string    `json:"app_name"       binding:"max=256"`
	AppIconPath   *string   `json:"app_icon_path"  binding:"omitempty,max=1024"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

type updateScheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

type scheduleResponse struct {
	ID            int64         `json:"id"`
	PackageName   string        `json:"package_name"`
	AppName       string        `json:"app_name"`
	AppIconPath   *string       `json:"app_icon_path,omitempty"`
	ScheduledTime time.Time     `json:"scheduled_time"`
	Status        domain.Status `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ExecutedAt    *time.Time    `json:"executed_at,omitempty"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:            s.ID,
		PackageName:   s.PackageName,
		AppName:       s.AppName,
		AppIconPath:   s.AppIconPath,
		ScheduledTime: s.ScheduledTime,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
		ExecutedAt:    s.ExecutedAt,
	}
}

func toScheduleResponses(list []*domain.Schedule) []scheduleResponse {
	items := make([]scheduleResponse, len(list))
	for i, s := range list {
		items[i] = toScheduleResponse(s)
	}
	return items
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req addScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRequest})
		return
	}

	s, err := h.uc.AddSchedule(ctx.Request.Context(), usecase.AddScheduleInput{
		PackageName:   req.PackageName,
		AppName:       req.AppName,
		AppIconPath:   req.AppIconPath,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		if !h.writeValidationError(ctx, err) {
			h.logger.ErrorContext(ctx.Request.Context(), "add schedule", "package", req.PackageName, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errAddSchedule})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": msgScheduleAdded, "schedule": toScheduleResponse(s)})
}

func (h *ScheduleHandler) Update(ctx *gin.Context) {
	id, ok := scheduleID(ctx)
	if !ok {
		return
	}
	var req updateScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRequest})
		return
	}

	s, err := h.uc.UpdateSchedule(ctx.Request.Context(), id, req.ScheduledTime)
	if err != nil {
		if !h.writeValidationError(ctx, err) {
			h.logger.ErrorContext(ctx.Request.Context(), "update schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errUpdateSchedule})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": msgScheduleUpdated, "schedule": toScheduleResponse(s)})
}

func (h *ScheduleHandler) Cancel(ctx *gin.Context) {
	id, ok := scheduleID(ctx)
	if !ok {
		return
	}

	if err := h.uc.CancelSchedule(ctx.Request.Context(), id); err != nil {
		if !h.writeValidationError(ctx, err) {
			h.logger.ErrorContext(ctx.Request.Context(), "cancel schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errCancelSchedule})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": msgScheduleCancelled})
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	id, ok := scheduleID(ctx)
	if !ok {
		return
	}

	if err := h.uc.DeleteSchedule(ctx.Request.Context(), id); err != nil {
		if !h.writeValidationError(ctx, err) {
			h.logger.ErrorContext(ctx.Request.Context(), "delete schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errDeleteSchedule})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": msgScheduleDeleted})
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	id, ok := scheduleID(ctx)
	if !ok {
		return
	}

	s, err := h.uc.GetSchedule(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "get schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	list, err := h.uc.ListSchedules(ctx.Request.Context())
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"schedules": toScheduleResponses(list)})
}

// Stream pushes the schedule list as server-sent "schedules" events until the
// client disconnects. The host counts as foreground while any stream is open.
func (h *ScheduleHandler) Stream(ctx *gin.Context) {
	// event ids are <request id>.<seq>
	reqCtx, streamID := requestid.Ensure(ctx.Request.Context())
	detach := h.presence.Attach()
	defer detach()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Status(http.StatusOK)

	snapshots := h.uc.WatchSchedules(reqCtx)
	for seq := 1; ; seq++ {
		select {
		case <-reqCtx.Done():
			return
		case list, ok := <-snapshots:
			if !ok {
				return
			}
			ctx.Render(-1, sse.Event{
				Id:    fmt.Sprintf("%s.%d", streamID, seq),
				Event: "schedules",
				Data:  toScheduleResponses(list),
			})
			ctx.Writer.Flush()
		}
	}
}

// writeValidationError maps recoverable usecase errors onto responses and
// reports whether err was one of them.
func (h *ScheduleHandler) writeValidationError(ctx *gin.Context, err error) bool {
	switch {
	case errors.Is(err, domain.ErrTimeInPast):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": errTimeInPast})
	case errors.Is(err, domain.ErrTimeConflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": errTimeConflict})
	case errors.Is(err, domain.ErrTargetNotLaunchable):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": errNotLaunchable})
	case errors.Is(err, domain.ErrScheduleNotPending):
		ctx.JSON(http.StatusConflict, gin.H{"error": errNotPending})
	case errors.Is(err, domain.ErrScheduleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
	default:
		return false
	}
	return true
}

func scheduleID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidID})
		return 0, false
	}
	return id, true
}
