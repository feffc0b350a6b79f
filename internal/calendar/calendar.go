package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Calendar answers slot queries and performs reservations for the booking
// engine.
type Calendar struct {
	store Store
}

func New(store Store) *Calendar {
	return &Calendar{store: store}
}

// AvailableDates lists every date in the calendar, including fully booked
// ones.
func (c *Calendar) AvailableDates(ctx context.Context, doctorID string, channel Channel) ([]string, error) {
	if err := validateDoctor(doctorID); err != nil {
		return nil, err
	}
	dates, err := c.store.Dates(ctx, doctorID, channel)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	return dates, nil
}

// AvailableSlots returns the open slots of a day in ascending time order.
func (c *Calendar) AvailableSlots(ctx context.Context, doctorID string, channel Channel, date string) ([]Slot, error) {
	key, err := newKey(doctorID, channel, date)
	if err != nil {
		return nil, err
	}
	all, err := c.store.Slots(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	open := make([]Slot, 0, len(all))
	for _, s := range all {
		if s.Available {
			open = append(open, s)
		}
	}
	return open, nil
}

// Reserve flips one slot to unavailable. It fails with ErrNotAvailable when
// the slot is already taken and ErrSlotNotFound when it does not exist.
func (c *Calendar) Reserve(ctx context.Context, doctorID string, channel Channel, date, slotTime string) error {
	key, err := newKey(doctorID, channel, date)
	if err != nil {
		return err
	}
	if err := c.store.Reserve(ctx, key, slotTime); err != nil {
		if errors.Is(err, ErrNotAvailable) || errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("reserve slot %s %s: %w", key, slotTime, err)
	}
	return nil
}

// Release makes a reserved slot bookable again. Releasing an open slot is a
// no-op.
func (c *Calendar) Release(ctx context.Context, doctorID string, channel Channel, date, slotTime string) error {
	key, err := newKey(doctorID, channel, date)
	if err != nil {
		return err
	}
	if err := c.store.Release(ctx, key, slotTime); err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("release slot %s %s: %w", key, slotTime, err)
	}
	return nil
}

func validateDoctor(doctorID string) error {
	if strings.TrimSpace(doctorID) == "" {
		return errors.New("doctor id is required")
	}
	return nil
}

func newKey(doctorID string, channel Channel, date string) (Key, error) {
	if err := validateDoctor(doctorID); err != nil {
		return Key{}, err
	}
	if _, err := ParseChannel(string(channel)); err != nil {
		return Key{}, err
	}
	if _, err := ParseDate(date); err != nil {
		return Key{}, err
	}
	return Key{DoctorID: doctorID, Channel: channel, Date: date}, nil
}
