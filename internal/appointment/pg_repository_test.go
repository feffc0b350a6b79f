package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

var appointmentCols = []string{
	"id", "doctor_id", "doctor_name", "doctor_avatar", "doctor_specialization",
	"patient_id", "patient_name", "patient_age", "appointment_date", "appointment_time", "channel",
	"token", "payment_method", "consultation_fee", "status", "reason", "doctor_notes", "version",
	"created_at", "updated_at",
}

func sampleAppointment() *Appointment {
	now := time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC)
	return &Appointment{
		ID:                   uuid.New(),
		DoctorID:             "dr001",
		DoctorName:           "Dr. Meera Iyer",
		DoctorSpecialization: "Dermatology",
		PatientID:            "pt-100",
		PatientName:          "Rohan Sharma",
		PatientAge:           34,
		Date:                 "2025-09-01",
		Time:                 "09:00",
		Channel:              calendar.ChannelClinic,
		Token:                "K-042",
		PaymentMethod:        PaymentCash,
		ConsultationFee:      650,
		Status:               StatusPending,
		Reason:               "Skin rash follow-up",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func rowFor(a *Appointment, version int) *pgxmock.Rows {
	date, _ := calendar.ParseDate(a.Date)
	return pgxmock.NewRows(appointmentCols).AddRow(
		a.ID, a.DoctorID, a.DoctorName, a.DoctorAvatar, a.DoctorSpecialization,
		a.PatientID, a.PatientName, a.PatientAge, date, a.Time, a.Channel,
		a.Token, a.PaymentMethod, a.ConsultationFee, a.Status, a.Reason, a.DoctorNotes, version,
		a.CreatedAt, a.UpdatedAt,
	)
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestPgInsertSetsVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), a))
	assert.Equal(t, 1, a.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{constraint: activeSlotConstraint, want: ErrSlotConflict},
		{constraint: doctorTokenConstraint, want: ErrTokenTaken},
	}

	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec("INSERT INTO appointments").
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			err := repo.Insert(context.Background(), sampleAppointment())
			assert.ErrorIs(t, err, tc.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgInsertRejectsBadDate(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()
	a.Date = "01/09/2025"

	err := repo.Insert(context.Background(), a)
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs(a.ID).
		WillReturnRows(rowFor(a, 3))

	got, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", got.Date)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, calendar.ChannelClinic, got.Channel)
	assert.Equal(t, 3, got.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListByDoctor(t *testing.T) {
	repo, mock := newMockRepo(t)
	first := sampleAppointment()
	second := sampleAppointment()
	second.Time = "09:30"
	second.Token = "B-101"

	rows := rowFor(first, 1)
	date, _ := calendar.ParseDate(second.Date)
	rows.AddRow(
		second.ID, second.DoctorID, second.DoctorName, second.DoctorAvatar, second.DoctorSpecialization,
		second.PatientID, second.PatientName, second.PatientAge, date, second.Time, second.Channel,
		second.Token, second.PaymentMethod, second.ConsultationFee, second.Status, second.Reason, second.DoctorNotes, 1,
		second.CreatedAt, second.UpdatedAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("dr001", "").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), Filter{DoctorID: "dr001"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B-101", list[1].Token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("", "pt-100").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.List(context.Background(), Filter{PatientID: "pt-100"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list appointments")
}

func TestPgReplaceBumpsVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()
	a.Version = 2
	a.Status = StatusAccepted

	mock.ExpectQuery("UPDATE appointments").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(3))

	require.NoError(t, repo.Replace(context.Background(), a))
	assert.Equal(t, 3, a.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReplaceStaleOrMissing(t *testing.T) {
	cases := []struct {
		name   string
		exists bool
		want   error
	}{
		{name: "stale", exists: true, want: ErrVersionConflict},
		{name: "missing", exists: false, want: ErrAppointmentNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			a := sampleAppointment()
			a.Version = 1

			mock.ExpectQuery("UPDATE appointments").
				WillReturnRows(pgxmock.NewRows([]string{"version"}))
			mock.ExpectQuery("SELECT EXISTS").
				WithArgs(a.ID).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tc.exists))

			err := repo.Replace(context.Background(), a)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, a.Version)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgReplaceSlotConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectQuery("UPDATE appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeSlotConstraint})

	err := repo.Replace(context.Background(), a)
	assert.ErrorIs(t, err, ErrSlotConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTokenExists(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("dr001", "K-042").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.TokenExists(context.Background(), "dr001", "K-042")
	require.NoError(t, err)
	assert.True(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentBooked, &id, []byte(`{"token":"K-042"}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentBooked,
		AppointmentID: &id,
		Payload:       []byte(`{"token":"K-042"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
