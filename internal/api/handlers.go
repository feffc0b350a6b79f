package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
)

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// actorOrPatient defaults an omitted actor to the patient.
func actorOrPatient(raw string) (appointment.Actor, error) {
	if raw == "" {
		return appointment.ActorPatient, nil
	}
	return appointment.ParseActor(raw)
}

func bookAppointmentHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookingRequest{
			DoctorID:      req.DoctorID,
			Channel:       req.Channel,
			Date:          req.Date,
			Time:          req.Time,
			PatientID:     req.PatientID,
			PatientName:   req.PatientName,
			PatientAge:    req.PatientAge,
			PaymentMethod: req.PaymentMethod,
			Reason:        req.Reason,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func acceptAppointmentHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Accept(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		actor, err := actorOrPatient(req.Actor)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, appointment.RescheduleRequest{
			Date:  req.Date,
			Time:  req.Time,
			Actor: actor,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		actor, err := actorOrPatient(req.Actor)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		appt, err := svc.Cancel(r.Context(), id, actor, req.Reason)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateNotesHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateNotesRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.UpdateNotesAndStatus(r.Context(), id, req.Notes, req.Status)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func doctorAppointmentsHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorID")
		q := appointment.ConsoleQuery{
			Status: r.URL.Query().Get("status"),
			Search: r.URL.Query().Get("search"),
		}

		list, err := svc.DoctorAppointments(r.Context(), doctorID, q)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, DoctorAppointmentsResponse{
			DoctorID:     doctorID,
			Appointments: toAppointmentList(list),
		})
	}
}

func patientAppointmentsHandler(svc AppointmentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := chi.URLParam(r, "patientID")

		view, err := svc.PatientAppointments(r.Context(), patientID)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, PatientAppointmentsResponse{
			PatientID: patientID,
			Upcoming:  toAppointmentList(view.Upcoming),
			Past:      toAppointmentList(view.Past),
		})
	}
}
