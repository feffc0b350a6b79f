package calendar

import "context"

// Store persists slot days. Reserve and Release must be atomic per slot.
type Store interface {
	// Dates returns every date stored for the doctor and channel, ascending.
	Dates(ctx context.Context, doctorID string, channel Channel) ([]string, error)
	// Slots returns all slots of a day in ascending time order.
	Slots(ctx context.Context, key Key) ([]Slot, error)
	Reserve(ctx context.Context, key Key, slotTime string) error
	Release(ctx context.Context, key Key, slotTime string) error
	// EnsureDay adds any missing times as available slots. Existing slots keep
	// their availability.
	EnsureDay(ctx context.Context, key Key, times []string) error
	// PruneBefore drops every day strictly before date.
	PruneBefore(ctx context.Context, doctorID string, channel Channel, date string) (int, error)
}
