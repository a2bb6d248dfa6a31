package handler

const (
	errInternalServer   = "Internal server error"
	errInvalidRequest   = "Invalid request"
	errInvalidID        = "Invalid schedule id"
	errScheduleNotFound = "Schedule not found"
	errTimeInPast       = "Failed: The scheduled time must be in the future"
	errTimeConflict     = "Failed: Time conflicting with another schedule"
	errNotLaunchable    = "Failed: The application cannot be launched"
	errNotPending       = "Failed: Schedule is no longer pending"
	errAddSchedule      = "Failed to add schedule"
	errUpdateSchedule   = "Failed to update schedule"
	errCancelSchedule   = "Failed to cancel schedule"
	errDeleteSchedule   = "Failed to delete schedule"
	errListApps         = "Failed to load installed apps"

	msgScheduleAdded     = "Schedule added successfully"
	msgScheduleUpdated   = "Schedule updated successfully"
	msgScheduleCancelled = "Schedule cancelled successfully"
	msgScheduleDeleted   = "Schedule deleted successfully"
)
