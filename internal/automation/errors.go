package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrScheduleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrScheduleNotFound is returned when a schedule name does not exist.
	ErrScheduleNotFound = errors.New("schedule: not found")

	// ErrScheduleExists is returned when two schedules share a name.
	ErrScheduleExists = errors.New("schedule: already exists")

	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("schedule: invalid")

	// ErrInvalidName is returned when a schedule name is empty or too long.
	ErrInvalidName = errors.New("schedule: invalid name")

	// ErrInvalidCron is returned when the cron expression cannot be parsed.
	ErrInvalidCron = errors.New("schedule: invalid cron expression")
)
