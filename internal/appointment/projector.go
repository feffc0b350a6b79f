package appointment

import "slices"

// PatientView is the patient's appointment list split for display.
type PatientView struct {
	Upcoming []Appointment // soonest first
	Past     []Appointment // most recent first
}

// Project re-derives elapsed completion on copies of the records and
// partitions them. Every record lands in exactly one bucket.
func Project(list []Appointment, today string) PatientView {
	view := PatientView{
		Upcoming: []Appointment{},
		Past:     []Appointment{},
	}

	for _, a := range list {
		AutoComplete(&a, today)
		if isUpcoming(a, today) {
			view.Upcoming = append(view.Upcoming, a)
		} else {
			view.Past = append(view.Past, a)
		}
	}

	SortChronological(view.Upcoming)
	SortChronological(view.Past)
	slices.Reverse(view.Past)
	return view
}

func isUpcoming(a Appointment, today string) bool {
	return !a.Status.IsTerminal() && a.Date >= today
}
