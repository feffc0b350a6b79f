package appointment

import (
	"cmp"
	"slices"
	"strings"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

// ConsoleQuery filters the doctor console. Status is one of the five
// statuses in any case, or "all"/empty. Search is matched case-insensitively
// against patient name, reason and token.
type ConsoleQuery struct {
	Status string
	Search string
}

func (q ConsoleQuery) statusFilter() (Status, error) {
	v := strings.TrimSpace(q.Status)
	if v == "" || strings.EqualFold(v, "all") {
		return "", nil
	}
	return ParseStatus(v)
}

// FilterConsole applies q to list and returns the matches sorted by
// appointment date and time. list is not modified.
func FilterConsole(list []Appointment, q ConsoleQuery) ([]Appointment, error) {
	status, err := q.statusFilter()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if status != "" && a.Status != status {
			continue
		}
		if needle != "" && !matchesSearch(a, needle) {
			continue
		}
		out = append(out, a)
	}

	SortChronological(out)
	return out, nil
}

func matchesSearch(a Appointment, needle string) bool {
	return strings.Contains(strings.ToLower(a.PatientName), needle) ||
		strings.Contains(strings.ToLower(a.Reason), needle) ||
		strings.Contains(strings.ToLower(a.Token), needle)
}

// SortChronological orders appointments by date then slot time, ties broken
// by creation time.
func SortChronological(list []Appointment) {
	slices.SortStableFunc(list, compareInstant)
}

func compareInstant(a, b Appointment) int {
	if c := strings.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	if c := calendar.CompareSlotTimes(a.Time, b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
}
