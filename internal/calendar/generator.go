package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Template describes the daily slot grid a doctor is bookable on.
type Template struct {
	DayStart string // 15:04, first slot
	DayEnd   string // 15:04, slots end strictly before
	Step     time.Duration
	Days     int // rolling window length including today
}

// Times expands the template into slot times formatted as 15:04.
func (t Template) Times() ([]string, error) {
	start, err := ParseSlotTime(t.DayStart)
	if err != nil {
		return nil, err
	}
	end, err := ParseSlotTime(t.DayEnd)
	if err != nil {
		return nil, err
	}
	step := int(t.Step / time.Minute)
	if step <= 0 {
		return nil, errors.New("slot step must be at least one minute")
	}
	if end <= start {
		return nil, fmt.Errorf("day end %s must be after day start %s", t.DayEnd, t.DayStart)
	}

	var times []string
	for m := start; m < end; m += step {
		times = append(times, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return times, nil
}

// Generator maintains the rolling calendar window.
type Generator struct {
	store    Store
	template Template
}

func NewGenerator(store Store, template Template) *Generator {
	return &Generator{store: store, template: template}
}

// RefreshResult reports what one Refresh call changed.
type RefreshResult struct {
	DaysEnsured int
	DaysPruned  int
}

// Refresh makes sure every day of the window starting at today exists for
// each channel and drops days before today. Slots already reserved stay
// reserved.
func (g *Generator) Refresh(ctx context.Context, doctorID string, channels []Channel, today time.Time) (RefreshResult, error) {
	var res RefreshResult
	if err := validateDoctor(doctorID); err != nil {
		return res, err
	}

	times, err := g.template.Times()
	if err != nil {
		return res, fmt.Errorf("expand template: %w", err)
	}

	first := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	for _, ch := range channels {
		for i := 0; i < g.template.Days; i++ {
			key := Key{DoctorID: doctorID, Channel: ch, Date: first.AddDate(0, 0, i).Format(DateLayout)}
			if err := g.store.EnsureDay(ctx, key, times); err != nil {
				return res, err
			}
			res.DaysEnsured++
		}

		n, err := g.store.PruneBefore(ctx, doctorID, ch, first.Format(DateLayout))
		if err != nil {
			return res, err
		}
		res.DaysPruned += n
	}
	return res, nil
}
