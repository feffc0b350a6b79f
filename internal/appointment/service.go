package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/doctor"
	"github.com/hackgods/appointment-lifecycle/internal/metrics"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentAccepted    = "APPOINTMENT_ACCEPTED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentUpdated     = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
)

// SlotReserver is the part of the slot calendar the service drives.
type SlotReserver interface {
	Reserve(ctx context.Context, doctorID string, channel calendar.Channel, date, slotTime string) error
	Release(ctx context.Context, doctorID string, channel calendar.Channel, date, slotTime string) error
}

type Service struct {
	repo          Repository
	slots         SlotReserver
	doctors       doctor.Provider
	locker        redisclient.Locker
	logger        zerolog.Logger
	metrics       *metrics.SchedulingMetrics
	location      *time.Location
	tokenAttempts int
	now           func() time.Time
	newToken      func() string
}

type Option func(*Service)

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the wall clock used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenSource replaces the booking token generator.
func WithTokenSource(fn func() string) Option {
	return func(s *Service) { s.newToken = fn }
}

func NewService(repo Repository, slots SlotReserver, doctors doctor.Provider, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		slots:         slots,
		doctors:       doctors,
		locker:        locker,
		logger:        logger.With().Str("component", "appointment").Logger(),
		location:      cfg.ClinicLocation,
		tokenAttempts: cfg.TokenAttempts,
		now:           time.Now,
		newToken:      GenerateToken,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.tokenAttempts < 1 {
		s.tokenAttempts = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the current calendar date in the clinic's time zone.
func (s *Service) today() string {
	return s.now().In(s.location).Format(calendar.DateLayout)
}

// GetAppointment returns one appointment with its status re-derived.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	list := s.completeElapsed(ctx, []Appointment{*a})
	return &list[0], nil
}

// DoctorAppointments backs the doctor console: every appointment of the
// doctor, lazily completed, filtered and in chronological order.
func (s *Service) DoctorAppointments(ctx context.Context, doctorID string, q ConsoleQuery) ([]Appointment, error) {
	if doctorID == "" {
		return nil, required("doctor_id")
	}
	if _, err := q.statusFilter(); err != nil {
		return nil, err
	}

	list, err := s.repo.List(ctx, Filter{DoctorID: doctorID})
	if err != nil {
		return nil, err
	}
	list = s.completeElapsed(ctx, list)
	return FilterConsole(list, q)
}

// PatientAppointments backs the patient view: every appointment of the
// patient split into upcoming and past.
func (s *Service) PatientAppointments(ctx context.Context, patientID string) (PatientView, error) {
	if patientID == "" {
		return PatientView{}, required("patient_id")
	}

	list, err := s.repo.List(ctx, Filter{PatientID: patientID})
	if err != nil {
		return PatientView{}, err
	}
	list = s.completeElapsed(ctx, list)
	return Project(list, s.today()), nil
}

func (s *Service) releaseSlot(ctx context.Context, ref slotRef, why string) {
	err := s.slots.Release(ctx, ref.DoctorID, ref.Channel, ref.Date, ref.Time)
	if err == nil {
		return
	}
	ev := s.logger.Warn()
	if !errors.Is(err, calendar.ErrSlotNotFound) {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("doctor_id", ref.DoctorID).
		Str("channel", string(ref.Channel)).
		Str("date", ref.Date).
		Str("time", ref.Time).
		Str("reason", why).
		Msg("slot release failed")
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
