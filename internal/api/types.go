package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

type BookAppointmentRequest struct {
	DoctorID      string `json:"doctor_id"`
	Channel       string `json:"channel"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PatientID     string `json:"patient_id"`
	PatientName   string `json:"patient_name"`
	PatientAge    int    `json:"patient_age"`
	PaymentMethod string `json:"payment_method"`
	Reason        string `json:"reason"`
}

type RescheduleAppointmentRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Actor string `json:"actor"`
}

type CancelAppointmentRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type UpdateNotesRequest struct {
	Notes  *string `json:"notes"` // omitted keeps the current notes
	Status string  `json:"status"`
}

type AppointmentResponse struct {
	ID                   uuid.UUID `json:"id"`
	DoctorID             string    `json:"doctor_id"`
	DoctorName           string    `json:"doctor_name"`
	DoctorAvatar         string    `json:"doctor_avatar,omitempty"`
	DoctorSpecialization string    `json:"doctor_specialization"`
	PatientID            string    `json:"patient_id"`
	PatientName          string    `json:"patient_name"`
	PatientAge           int       `json:"patient_age"`
	Date                 string    `json:"date"`
	Time                 string    `json:"time"`
	Channel              string    `json:"channel"`
	Token                string    `json:"token"`
	PaymentMethod        string    `json:"payment_method"`
	ConsultationFee      float64   `json:"consultation_fee"`
	Status               string    `json:"status"`
	Reason               string    `json:"reason"`
	DoctorNotes          string    `json:"doctor_notes"`
	Version              int       `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type PatientAppointmentsResponse struct {
	PatientID string                `json:"patient_id"`
	Upcoming  []AppointmentResponse `json:"upcoming"`
	Past      []AppointmentResponse `json:"past"`
}

type DoctorAppointmentsResponse struct {
	DoctorID     string                `json:"doctor_id"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type DatesResponse struct {
	DoctorID string   `json:"doctor_id"`
	Channel  string   `json:"channel"`
	Dates    []string `json:"dates"`
}

type SlotResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type SlotsResponse struct {
	DoctorID string         `json:"doctor_id"`
	Channel  string         `json:"channel"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                   a.ID,
		DoctorID:             a.DoctorID,
		DoctorName:           a.DoctorName,
		DoctorAvatar:         a.DoctorAvatar,
		DoctorSpecialization: a.DoctorSpecialization,
		PatientID:            a.PatientID,
		PatientName:          a.PatientName,
		PatientAge:           a.PatientAge,
		Date:                 a.Date,
		Time:                 a.Time,
		Channel:              string(a.Channel),
		Token:                a.Token,
		PaymentMethod:        string(a.PaymentMethod),
		ConsultationFee:      a.ConsultationFee,
		Status:               string(a.Status),
		Reason:               a.Reason,
		DoctorNotes:          a.DoctorNotes,
		Version:              a.Version,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

func toSlotList(slots []calendar.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Time: s.Time, Available: s.Available})
	}
	return out
}
