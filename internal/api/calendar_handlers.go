package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

func channelParam(w http.ResponseWriter, r *http.Request) (calendar.Channel, bool) {
	ch, err := calendar.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return "", false
	}
	return ch, true
}

func availableDatesHandler(cal SlotCalendar, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channelParam(w, r)
		if !ok {
			return
		}
		doctorID := chi.URLParam(r, "doctorID")

		dates, err := cal.AvailableDates(r.Context(), doctorID, ch)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, DatesResponse{DoctorID: doctorID, Channel: string(ch), Dates: dates})
	}
}

func availableSlotsHandler(cal SlotCalendar, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channelParam(w, r)
		if !ok {
			return
		}
		doctorID := chi.URLParam(r, "doctorID")
		date := chi.URLParam(r, "date")

		slots, err := cal.AvailableSlots(r.Context(), doctorID, ch, date)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Channel:  string(ch),
			Date:     date,
			Slots:    toSlotList(slots),
		})
	}
}

// releaseSlotHandler is the administrative release. Slot times such as
// "10:00 AM" arrive path-escaped.
func releaseSlotHandler(cal SlotCalendar, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channelParam(w, r)
		if !ok {
			return
		}
		slotTime, err := url.PathUnescape(chi.URLParam(r, "time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "time is not a valid path segment")
			return
		}

		err = cal.Release(r.Context(), chi.URLParam(r, "doctorID"), ch, chi.URLParam(r, "date"), slotTime)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
