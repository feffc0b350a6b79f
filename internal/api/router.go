package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

// AppointmentService is the part of *appointment.Service the API calls.
type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Accept(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor appointment.Actor, reason string) (*appointment.Appointment, error)
	UpdateNotesAndStatus(ctx context.Context, id uuid.UUID, notes *string, status string) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DoctorAppointments(ctx context.Context, doctorID string, q appointment.ConsoleQuery) ([]appointment.Appointment, error)
	PatientAppointments(ctx context.Context, patientID string) (appointment.PatientView, error)
}

// SlotCalendar is the part of *calendar.Calendar the API calls.
type SlotCalendar interface {
	AvailableDates(ctx context.Context, doctorID string, channel calendar.Channel) ([]string, error)
	AvailableSlots(ctx context.Context, doctorID string, channel calendar.Channel, date string) ([]calendar.Slot, error)
	Release(ctx context.Context, doctorID string, channel calendar.Channel, date, slotTime string) error
}

type RouterConfig struct {
	Service  AppointmentService
	Calendar SlotCalendar
	Postgres Pinger
	Redis    Pinger
	Metrics  http.Handler // defaults to promhttp.Handler()
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	// Slot calendar
	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/channels/{channel}/dates", availableDatesHandler(cfg.Calendar, cfg.Logger))
		r.Get("/channels/{channel}/dates/{date}/slots", availableSlotsHandler(cfg.Calendar, cfg.Logger))
		r.Post("/channels/{channel}/dates/{date}/slots/{time}/release", releaseSlotHandler(cfg.Calendar, cfg.Logger))
		r.Get("/appointments", doctorAppointmentsHandler(cfg.Service, cfg.Logger))
	})

	r.Get("/patients/{patientID}/appointments", patientAppointmentsHandler(cfg.Service, cfg.Logger))

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Service, cfg.Logger))
	r.Route("/appointments/{id}", func(r chi.Router) {
		r.Get("/", getAppointmentHandler(cfg.Service, cfg.Logger))
		r.Delete("/", deleteAppointmentHandler(cfg.Service, cfg.Logger))
		r.Post("/accept", acceptAppointmentHandler(cfg.Service, cfg.Logger))
		r.Post("/reschedule", rescheduleAppointmentHandler(cfg.Service, cfg.Logger))
		r.Post("/cancel", cancelAppointmentHandler(cfg.Service, cfg.Logger))
		r.Put("/notes", updateNotesHandler(cfg.Service, cfg.Logger))
	})

	return r
}
