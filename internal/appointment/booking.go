package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

const maxPatientAge = 150

// BookingRequest is a patient's request for one slot. Patient fields come
// from the identity provider and are taken as given.
type BookingRequest struct {
	DoctorID      string
	Channel       string
	Date          string
	Time          string
	PatientID     string
	PatientName   string
	PatientAge    int
	PaymentMethod string
	Reason        string
}

type validBooking struct {
	channel calendar.Channel
	payment PaymentMethod
}

func (r BookingRequest) validate(today string) (validBooking, error) {
	var v validBooking

	fields := []struct{ name, value string }{
		{"doctor_id", r.DoctorID},
		{"channel", r.Channel},
		{"date", r.Date},
		{"time", r.Time},
		{"patient_id", r.PatientID},
		{"patient_name", r.PatientName},
		{"payment_method", r.PaymentMethod},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return v, required(f.name)
		}
	}
	if r.PatientAge <= 0 || r.PatientAge > maxPatientAge {
		return v, &ValidationError{Field: "patient_age", Message: fmt.Sprintf("must be between 1 and %d", maxPatientAge)}
	}

	ch, err := calendar.ParseChannel(r.Channel)
	if err != nil {
		return v, &ValidationError{Field: "channel", Message: "must be online or clinic"}
	}
	if _, err := calendar.ParseDate(r.Date); err != nil {
		return v, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if r.Date < today {
		return v, &ValidationError{Field: "date", Message: "must not be in the past"}
	}
	if _, err := calendar.ParseSlotTime(r.Time); err != nil {
		return v, &ValidationError{Field: "time", Message: "must be a slot time such as 10:00 or 10:00 AM"}
	}
	pm, err := ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return v, err
	}

	v.channel = ch
	v.payment = pm
	return v, nil
}

// Book reserves the requested slot and records a new appointment. On any
// failure after the reservation the slot is handed back, so a failed booking
// leaves the calendar unchanged.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	v, err := req.validate(s.today())
	if err != nil {
		s.metrics.ObserveBooking("validation_error")
		return nil, err
	}

	doc, err := s.doctors.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		s.metrics.ObserveBooking("doctor_error")
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	fee, err := doc.Fee(v.channel)
	if err != nil {
		s.metrics.ObserveBooking("validation_error")
		return nil, &ValidationError{Field: "channel", Message: err.Error()}
	}

	ref := slotRef{DoctorID: doc.ID, Channel: v.channel, Date: req.Date, Time: req.Time}
	if err := s.slots.Reserve(ctx, ref.DoctorID, ref.Channel, ref.Date, ref.Time); err != nil {
		if errors.Is(err, calendar.ErrNotAvailable) || errors.Is(err, calendar.ErrSlotNotFound) {
			s.metrics.ObserveBooking("slot_conflict")
			return nil, fmt.Errorf("%w: %s %s on %s", ErrSlotConflict, ref.Channel, ref.Time, ref.Date)
		}
		s.metrics.ObserveBooking("error")
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	status := StatusPending
	if doc.AutoAccept {
		status = StatusAccepted
	}

	now := s.now()
	appt := &Appointment{
		ID:                   uuid.New(),
		DoctorID:             doc.ID,
		DoctorName:           doc.Name,
		DoctorAvatar:         doc.Avatar,
		DoctorSpecialization: doc.Specialization,
		PatientID:            req.PatientID,
		PatientName:          strings.TrimSpace(req.PatientName),
		PatientAge:           req.PatientAge,
		Date:                 req.Date,
		Time:                 req.Time,
		Channel:              v.channel,
		PaymentMethod:        v.payment,
		ConsultationFee:      fee,
		Status:               status,
		Reason:               strings.TrimSpace(req.Reason),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.insertWithToken(ctx, appt); err != nil {
		// the store already holds an active record for this slot; the
		// calendar is right to keep it reserved
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveBooking("slot_conflict")
			return nil, err
		}
		s.releaseSlot(ctx, ref, "booking_rollback")
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	s.metrics.ObserveBooking("success")
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID).
		Str("token", appt.Token).
		Msg("appointment booked")

	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"doctor_id":  appt.DoctorID,
		"patient_id": appt.PatientID,
		"channel":    appt.Channel,
		"date":       appt.Date,
		"time":       appt.Time,
		"token":      appt.Token,
		"status":     appt.Status,
	})

	return appt, nil
}

// insertWithToken assigns a token unused in the doctor's namespace and
// inserts the record, retrying a bounded number of times on collision.
func (s *Service) insertWithToken(ctx context.Context, appt *Appointment) error {
	for attempt := 0; attempt < s.tokenAttempts; attempt++ {
		token := s.newToken()

		taken, err := s.repo.TokenExists(ctx, appt.DoctorID, token)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		appt.Token = token
		err = s.repo.Insert(ctx, appt)
		if errors.Is(err, ErrTokenTaken) {
			continue
		}
		if err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("%w after %d attempts", ErrTokenExhausted, s.tokenAttempts)
}
