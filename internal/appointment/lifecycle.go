package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

// AutoComplete promotes a non-terminal appointment whose date is strictly
// before today to Completed. It reports whether a changed. Applying it again
// is a no-op.
func AutoComplete(a *Appointment, today string) bool {
	if a.Status.IsTerminal() {
		return false
	}
	if a.Date < today {
		a.Status = StatusCompleted
		return true
	}
	return false
}

// slotChange lists calendar side effects of a command. reserved is handed
// back if the write fails; released is freed once the write succeeds.
type slotChange struct {
	reserved *slotRef
	released *slotRef
	details  map[string]any // extra event payload
}

type mutation func(ctx context.Context, a *Appointment) (slotChange, error)

// mutate runs one lifecycle command under the appointment lock: load, derive
// elapsed completion, apply, then write the whole record back with a version
// check.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, action, event string, apply mutation) (*Appointment, error) {
	var out *Appointment

	err := s.locker.WithLock(ctx, redisclient.AppointmentLockKey(id), func(lockCtx context.Context) error {
		a, err := s.repo.Get(lockCtx, id)
		if err != nil {
			return err
		}

		if AutoComplete(a, s.today()) {
			a.UpdatedAt = s.now()
			if err := s.repo.Replace(lockCtx, a); err != nil {
				return fmt.Errorf("persist completion: %w", err)
			}
			s.metrics.ObserveAutoCompleted(1)
		}

		prev := a.Status
		change, err := apply(lockCtx, a)
		if err != nil {
			return err
		}

		a.UpdatedAt = s.now()
		if err := s.repo.Replace(lockCtx, a); err != nil {
			if change.reserved != nil {
				s.releaseSlot(lockCtx, *change.reserved, action+"_rollback")
			}
			return err
		}
		if change.released != nil {
			s.releaseSlot(lockCtx, *change.released, action)
		}

		payload := map[string]any{
			"from":   prev,
			"to":     a.Status,
			"date":   a.Date,
			"time":   a.Time,
			"reason": a.Reason,
		}
		for k, v := range change.details {
			payload[k] = v
		}
		s.logEvent(lockCtx, a.ID, event, payload)
		out = a
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = ErrAppointmentBusy
	}

	s.observeTransition(action, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("action", action).
		Str("status", string(out.Status)).
		Msg("appointment updated")
	return out, nil
}

func (s *Service) observeTransition(action string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		outcome = "validation_error"
	case errors.Is(err, ErrInvalidTransition):
		outcome = "invalid_transition"
	case errors.Is(err, ErrSlotConflict):
		outcome = "slot_conflict"
	case errors.Is(err, ErrAppointmentNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrAppointmentBusy), errors.Is(err, ErrVersionConflict):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	s.metrics.ObserveTransition(action, outcome)
}

// Accept moves a Pending appointment to Accepted.
func (s *Service) Accept(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.mutate(ctx, id, "accept", EventAppointmentAccepted, func(ctx context.Context, a *Appointment) (slotChange, error) {
		if a.Status != StatusPending {
			return slotChange{}, &TransitionError{From: a.Status, Action: "accept"}
		}
		a.Status = StatusAccepted
		return slotChange{}, nil
	})
}

// RescheduleRequest moves an appointment to another slot of the same doctor
// and channel.
type RescheduleRequest struct {
	Date  string
	Time  string
	Actor Actor
}

func (r RescheduleRequest) validate(today string) error {
	if strings.TrimSpace(r.Date) == "" {
		return required("date")
	}
	if strings.TrimSpace(r.Time) == "" {
		return required("time")
	}
	if _, err := calendar.ParseDate(r.Date); err != nil {
		return &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if r.Date < today {
		return &ValidationError{Field: "date", Message: "must not be in the past"}
	}
	if _, err := calendar.ParseSlotTime(r.Time); err != nil {
		return &ValidationError{Field: "time", Message: "must be a slot time such as 10:00 or 10:00 AM"}
	}
	if r.Actor != "" {
		if _, err := ParseActor(string(r.Actor)); err != nil {
			return err
		}
	}
	return nil
}

// Reschedule reserves the new slot, moves the appointment there with status
// Rescheduled and an audit note, then frees the old slot.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	if err := req.validate(s.today()); err != nil {
		s.observeTransition("reschedule", err)
		return nil, err
	}

	return s.mutate(ctx, id, "reschedule", EventAppointmentRescheduled, func(ctx context.Context, a *Appointment) (slotChange, error) {
		if a.Status.IsTerminal() {
			return slotChange{}, &TransitionError{From: a.Status, Action: "reschedule"}
		}
		if a.Date == req.Date && a.Time == req.Time {
			return slotChange{}, &ValidationError{Field: "date", Message: "new slot is the current slot"}
		}

		next := slotRef{DoctorID: a.DoctorID, Channel: a.Channel, Date: req.Date, Time: req.Time}
		if err := s.slots.Reserve(ctx, next.DoctorID, next.Channel, next.Date, next.Time); err != nil {
			if errors.Is(err, calendar.ErrNotAvailable) || errors.Is(err, calendar.ErrSlotNotFound) {
				return slotChange{}, fmt.Errorf("%w: %s on %s", ErrSlotConflict, next.Time, next.Date)
			}
			return slotChange{}, fmt.Errorf("reserve slot: %w", err)
		}

		old := a.slot()
		note := fmt.Sprintf("Rescheduled to %s at %s", req.Date, req.Time)
		a.Date = req.Date
		a.Time = req.Time
		a.Status = StatusRescheduled
		a.Reason = appendNote(a.Reason, note)
		a.DoctorNotes = appendNote(a.DoctorNotes, note)

		actor := req.Actor
		if actor == "" {
			actor = ActorPatient
		}
		return slotChange{
			reserved: &next,
			released: &old,
			details:  map[string]any{"actor": actor, "previous_date": old.Date, "previous_time": old.Time},
		}, nil
	})
}

// Cancel ends a non-terminal appointment and frees its slot. An empty reason
// gets a default naming the actor.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		switch actor {
		case ActorDoctor:
			reason = "Doctor cancelled"
		default:
			reason = "Patient cancelled"
		}
	}

	return s.mutate(ctx, id, "cancel", EventAppointmentCancelled, func(ctx context.Context, a *Appointment) (slotChange, error) {
		if a.Status.IsTerminal() {
			return slotChange{}, &TransitionError{From: a.Status, Action: "cancel"}
		}
		old := a.slot()
		a.Status = StatusCancelled
		a.Reason = reason
		return slotChange{released: &old, details: map[string]any{"actor": actor}}, nil
	})
}

// UpdateNotesAndStatus is the doctor's override: any status may be set on a
// live appointment together with notes. Terminal appointments accept notes
// only. An empty status keeps the current one; nil notes keep the current
// notes.
func (s *Service) UpdateNotesAndStatus(ctx context.Context, id uuid.UUID, notes *string, status string) (*Appointment, error) {
	var target Status
	if strings.TrimSpace(status) != "" {
		st, err := ParseStatus(status)
		if err != nil {
			s.observeTransition("update", err)
			return nil, err
		}
		target = st
	}

	return s.mutate(ctx, id, "update", EventAppointmentUpdated, func(ctx context.Context, a *Appointment) (slotChange, error) {
		next := target
		if next == "" {
			next = a.Status
		}
		if a.Status.IsTerminal() && next != a.Status {
			return slotChange{}, &TransitionError{From: a.Status, Action: "change status of"}
		}

		var change slotChange
		if next == StatusCancelled && !a.Status.IsTerminal() {
			old := a.slot()
			change.released = &old
		}
		a.Status = next
		if notes != nil {
			a.DoctorNotes = strings.TrimSpace(*notes)
		}
		return change, nil
	})
}

// Delete removes an appointment record. Any record still holding an upcoming
// slot frees it, including one the doctor marked Completed early.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.locker.WithLock(ctx, redisclient.AppointmentLockKey(id), func(lockCtx context.Context) error {
		a, err := s.repo.Get(lockCtx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(lockCtx, id); err != nil {
			return err
		}
		if a.Status != StatusCancelled && a.Date >= s.today() {
			s.releaseSlot(lockCtx, a.slot(), "delete")
		}
		s.logEvent(lockCtx, id, EventAppointmentDeleted, map[string]any{
			"status": a.Status,
			"token":  a.Token,
		})
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = ErrAppointmentBusy
	}
	s.observeTransition("delete", err)
	if err == nil {
		s.logger.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	}
	return err
}

// completeElapsed applies AutoComplete to every record and writes promoted
// ones back. A failed write-back is logged; the derived status is still
// returned since it is a pure function of the date.
func (s *Service) completeElapsed(ctx context.Context, list []Appointment) []Appointment {
	today := s.today()
	promoted := 0

	for i := range list {
		a := &list[i]
		if !AutoComplete(a, today) {
			continue
		}
		promoted++

		stored := *a
		stored.UpdatedAt = s.now()
		if err := s.repo.Replace(ctx, &stored); err != nil {
			s.logger.Warn().Err(err).
				Str("appointment_id", a.ID.String()).
				Msg("lazy completion write-back failed")
			continue
		}
		*a = stored
		s.logEvent(ctx, a.ID, EventAppointmentCompleted, map[string]any{
			"reason": "date_elapsed",
			"date":   a.Date,
		})
	}

	s.metrics.ObserveAutoCompleted(promoted)
	return list
}

func appendNote(existing, note string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
