package services

import (
	"context"
	"strings"
	"time"

	"github.com/tripbill/tripbill/internal/models"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// trimOptional trims s and maps blank values to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// today returns the calendar date of now in now's location.
func today(now time.Time) time.Time {
	return time.Time(models.NewDate(now))
}

// calendarDate strips the clock and location from t, keeping its calendar date.
func calendarDate(t time.Time) time.Time {
	return time.Time(models.NewDate(t))
}
