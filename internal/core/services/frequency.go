package services

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/sosodev/duration"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NextRun computes the next firing strictly after now.
// Interval frequencies add an ISO-8601 duration to now; cron frequencies are
// evaluated in the frequency's timezone (UTC when empty).
func NextRun(f domain.Frequency, now time.Time) (time.Time, error) {
	if err := f.Validate(); err != nil {
		return time.Time{}, err
	}

	switch f.Type {
	case domain.FrequencyInterval:
		d, err := duration.Parse(f.Value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: duration %q: %v", domain.ErrInvalidFrequency, f.Value, err)
		}
		td := d.ToTimeDuration()
		if td <= 0 {
			return time.Time{}, fmt.Errorf("%w: duration %q must be positive", domain.ErrInvalidFrequency, f.Value)
		}
		return now.Add(td), nil

	default:
		loc := time.UTC
		if f.Timezone != "" {
			l, err := time.LoadLocation(f.Timezone)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidFrequency, f.Timezone, err)
			}
			loc = l
		}
		sched, err := cronParser.Parse(f.Expression)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: cron %q: %v", domain.ErrInvalidFrequency, f.Expression, err)
		}
		next := sched.Next(now.In(loc))
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("%w: cron %q never fires", domain.ErrInvalidFrequency, f.Expression)
		}
		return next, nil
	}
}
