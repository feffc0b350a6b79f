package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/db"
)

const (
	activeSlotConstraint  = "appointments_active_slot_idx"
	doctorTokenConstraint = "appointments_doctor_token_idx"
)

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

const appointmentColumns = `id, doctor_id, doctor_name, doctor_avatar, doctor_specialization,
	patient_id, patient_name, patient_age, appointment_date, appointment_time, channel,
	token, payment_method, consultation_fee, status, reason, doctor_notes, version,
	created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.DoctorName,
		&a.DoctorAvatar,
		&a.DoctorSpecialization,
		&a.PatientID,
		&a.PatientName,
		&a.PatientAge,
		&date,
		&a.Time,
		&a.Channel,
		&a.Token,
		&a.PaymentMethod,
		&a.ConsultationFee,
		&a.Status,
		&a.Reason,
		&a.DoctorNotes,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = date.Format(calendar.DateLayout)
	return &a, nil
}

func mapWriteError(err error) error {
	if name, ok := db.UniqueViolation(err); ok {
		switch name {
		case activeSlotConstraint:
			return ErrSlotConflict
		case doctorTokenConstraint:
			return ErrTokenTaken
		}
	}
	return err
}

func sqlDate(date string) (time.Time, error) {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Message: err.Error()}
	}
	return d, nil
}

// Interface methods

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	date, err := sqlDate(a.Date)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1, $18, $19)
	`,
		a.ID, a.DoctorID, a.DoctorName, a.DoctorAvatar, a.DoctorSpecialization,
		a.PatientID, a.PatientName, a.PatientAge, date, a.Time, a.Channel,
		a.Token, a.PaymentMethod, a.ConsultationFee, a.Status, a.Reason, a.DoctorNotes,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", mapWriteError(err))
	}

	a.Version = 1
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR doctor_id = $1)
		  AND ($2 = '' OR patient_id = $2)
		ORDER BY created_at
	`, f.DoctorID, f.PatientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Replace(ctx context.Context, a *Appointment) error {
	date, err := sqlDate(a.Date)
	if err != nil {
		return err
	}

	var version int
	err = r.db.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $3,
		    doctor_name = $4,
		    doctor_avatar = $5,
		    doctor_specialization = $6,
		    patient_id = $7,
		    patient_name = $8,
		    patient_age = $9,
		    appointment_date = $10,
		    appointment_time = $11,
		    channel = $12,
		    token = $13,
		    payment_method = $14,
		    consultation_fee = $15,
		    status = $16,
		    reason = $17,
		    doctor_notes = $18,
		    updated_at = $19,
		    version = version + 1
		WHERE id = $1
		  AND version = $2
		RETURNING version
	`,
		a.ID, a.Version,
		a.DoctorID, a.DoctorName, a.DoctorAvatar, a.DoctorSpecialization,
		a.PatientID, a.PatientName, a.PatientAge, date, a.Time, a.Channel,
		a.Token, a.PaymentMethod, a.ConsultationFee, a.Status, a.Reason, a.DoctorNotes,
		a.UpdatedAt,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missingOrStale(ctx, a.ID)
		}
		return fmt.Errorf("replace appointment: %w", mapWriteError(err))
	}

	a.Version = version
	return nil
}

// missingOrStale tells a deleted record from a version mismatch after an
// UPDATE matched no row.
func (r *PgRepository) missingOrStale(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check appointment: %w", err)
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrVersionConflict
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) TokenExists(ctx context.Context, doctorID, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1 AND token = $2)
	`, doctorID, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
