package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

type Status string

const (
	StatusPending     Status = "Pending"
	StatusAccepted    Status = "Accepted"
	StatusRescheduled Status = "Rescheduled"
	StatusCompleted   Status = "Completed"
	StatusCancelled   Status = "Cancelled"
)

var allStatuses = []Status{StatusPending, StatusAccepted, StatusRescheduled, StatusCompleted, StatusCancelled}

// ParseStatus matches one of the five statuses case-insensitively.
func ParseStatus(s string) (Status, error) {
	v := strings.TrimSpace(s)
	for _, st := range allStatuses {
		if strings.EqualFold(v, string(st)) {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
}

// IsTerminal reports whether no further lifecycle transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentOnline:
		return PaymentOnline, nil
	}
	return "", &ValidationError{Field: "payment_method", Message: "must be cash or online"}
}

// Actor identifies who issued a lifecycle command.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorDoctor  Actor = "doctor"
)

func ParseActor(s string) (Actor, error) {
	switch Actor(strings.ToLower(strings.TrimSpace(s))) {
	case ActorPatient:
		return ActorPatient, nil
	case ActorDoctor:
		return ActorDoctor, nil
	}
	return "", &ValidationError{Field: "actor", Message: "must be patient or doctor"}
}

// Appointment carries a snapshot of the doctor taken at booking time so the
// record stays meaningful if the profile later changes.
type Appointment struct {
	ID                   uuid.UUID
	DoctorID             string
	DoctorName           string
	DoctorAvatar         string
	DoctorSpecialization string
	PatientID            string
	PatientName          string
	PatientAge           int
	Date                 string // 2006-01-02
	Time                 string
	Channel              calendar.Channel
	Token                string
	PaymentMethod        PaymentMethod
	ConsultationFee      float64
	Status               Status
	Reason               string
	DoctorNotes          string
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// slotRef identifies the calendar slot an appointment occupies.
type slotRef struct {
	DoctorID string
	Channel  calendar.Channel
	Date     string
	Time     string
}

func (a *Appointment) slot() slotRef {
	return slotRef{DoctorID: a.DoctorID, Channel: a.Channel, Date: a.Date, Time: a.Time}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
