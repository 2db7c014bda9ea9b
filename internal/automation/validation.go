package automation

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/config"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// Validation constants.
const (
	maxNameLength = 100
	maxAddresses  = 64
)

// cronParser accepts standard five-field expressions and descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule returns an error describing the first validation failure.
func ValidateSchedule(s *Schedule) error {
	if s == nil {
		return ErrInvalidSchedule
	}
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if _, err := cronParser.Parse(s.Cron); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, s.Cron, err) //nolint:errorlint // cron error is context only
	}
	if !s.Target.Valid() {
		return fmt.Errorf("%w: target %q", ErrInvalidSchedule, s.Target)
	}
	if len(s.Addresses) > maxAddresses {
		return fmt.Errorf("%w: more than %d addresses", ErrInvalidSchedule, maxAddresses)
	}
	for i, addr := range s.Addresses {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("%w: addresses[%d] is empty", ErrInvalidSchedule, i)
		}
	}
	return nil
}

// ValidateName checks that a schedule name is non-empty and reasonably short.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// FromConfig converts and validates the configured schedules. Names must be
// unique.
func FromConfig(cfgs []config.ScheduleConfig) ([]Schedule, error) {
	schedules := make([]Schedule, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))

	for i, c := range cfgs {
		target, err := power.ParseTarget(c.State)
		if err != nil {
			return nil, fmt.Errorf("schedules[%d]: %w", i, err)
		}
		s := Schedule{
			Name:      strings.TrimSpace(c.Name),
			Cron:      c.Cron,
			Target:    target,
			Addresses: c.Addresses,
		}
		if err := ValidateSchedule(&s); err != nil {
			return nil, fmt.Errorf("schedules[%d]: %w", i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("schedules[%d]: %w: %q", i, ErrScheduleExists, s.Name)
		}
		seen[s.Name] = struct{}{}
		schedules = append(schedules, s)
	}
	return schedules, nil
}
