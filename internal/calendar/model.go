package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for keys and records.
const DateLayout = "2006-01-02"

type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelClinic Channel = "clinic"
)

// Channels lists every consultation channel.
var Channels = []Channel{ChannelOnline, ChannelClinic}

var (
	ErrNotAvailable   = errors.New("slot is not available")
	ErrSlotNotFound   = errors.New("slot not found")
	ErrInvalidChannel = errors.New("channel must be online or clinic")
	ErrInvalidDate    = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime    = errors.New("invalid slot time")
)

func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelOnline:
		return ChannelOnline, nil
	case ChannelClinic:
		return ChannelClinic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
}

type Slot struct {
	Time      string
	Available bool
}

// Key addresses one day of slots for a doctor and channel.
type Key struct {
	DoctorID string
	Channel  Channel
	Date     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Channel, k.Date)
}

// ParseDate validates a calendar date string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

var slotTimeLayouts = []string{"15:04", "3:04 PM", "03:04 PM", "3:04PM"}

// ParseSlotTime returns the minute of day for a slot time such as "10:00"
// or "10:00 AM".
func ParseSlotTime(s string) (int, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range slotTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// CompareSlotTimes orders two slot times chronologically. Unparseable times
// sort after parseable ones and fall back to lexical order.
func CompareSlotTimes(a, b string) int {
	ma, errA := ParseSlotTime(a)
	mb, errB := ParseSlotTime(b)
	switch {
	case errA == nil && errB == nil:
		return ma - mb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
