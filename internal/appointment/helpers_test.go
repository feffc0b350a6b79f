package appointment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/doctor"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

type fakeDoctors map[string]doctor.Doctor

func (f fakeDoctors) GetDoctor(_ context.Context, id string) (*doctor.Doctor, error) {
	d, ok := f[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	return &d, nil
}

// flakyRepo lets a test fail individual repository writes.
type flakyRepo struct {
	*MemoryRepository
	insertErr  error
	replaceErr error
}

func (r *flakyRepo) Insert(ctx context.Context, a *Appointment) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.MemoryRepository.Insert(ctx, a)
}

func (r *flakyRepo) Replace(ctx context.Context, a *Appointment) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	return r.MemoryRepository.Replace(ctx, a)
}

type fixture struct {
	svc   *Service
	repo  *flakyRepo
	cal   *calendar.Calendar
	mr    *miniredis.Miniredis
	clock time.Time
}

var fixtureDates = []string{"2025-09-01", "2025-09-02"}
var fixtureTimes = []string{"09:00", "09:30", "10:00", "10:30"}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := calendar.NewMemoryStore()
	for _, doc := range []string{"dr001", "dr002"} {
		for _, ch := range calendar.Channels {
			for _, d := range fixtureDates {
				key := calendar.Key{DoctorID: doc, Channel: ch, Date: d}
				require.NoError(t, store.EnsureDay(context.Background(), key, fixtureTimes))
			}
		}
	}

	doctors := fakeDoctors{
		"dr001": {ID: "dr001", Name: "Dr. Meera Iyer", Avatar: "https://cdn.example/meera.png", Specialization: "Dermatology", OnlineFee: 400, ClinicFee: 650},
		"dr002": {ID: "dr002", Name: "Dr. Arjun Nair", Specialization: "Cardiology", OnlineFee: 900, ClinicFee: 1200, AutoAccept: true},
	}

	f := &fixture{
		repo:  &flakyRepo{MemoryRepository: NewMemoryRepository()},
		cal:   calendar.New(store),
		mr:    mr,
		clock: time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC),
	}

	cfg := config.Config{TokenAttempts: 5, ClinicLocation: time.UTC}
	locker := redisclient.NewRedisLocker(client, 5*time.Second, 1, 0)
	all := append([]Option{WithClock(func() time.Time { return f.clock })}, opts...)
	f.svc = NewService(f.repo, f.cal, doctors, locker, cfg, zerolog.Nop(), all...)
	return f
}

func bookingFor(date, slotTime string) BookingRequest {
	return BookingRequest{
		DoctorID:      "dr001",
		Channel:       "online",
		Date:          date,
		Time:          slotTime,
		PatientID:     "pt-100",
		PatientName:   "Rohan Sharma",
		PatientAge:    34,
		PaymentMethod: "cash",
		Reason:        "Skin rash follow-up",
	}
}

func (f *fixture) book(t *testing.T, req BookingRequest) *Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	return a
}

func (f *fixture) slotOpen(t *testing.T, doctorID string, ch calendar.Channel, date, slotTime string) bool {
	t.Helper()
	slots, err := f.cal.AvailableSlots(context.Background(), doctorID, ch, date)
	require.NoError(t, err)
	for _, s := range slots {
		if s.Time == slotTime {
			return true
		}
	}
	return false
}

// seedRecord stores an appointment directly, bypassing booking.
func (f *fixture) seedRecord(t *testing.T, a Appointment) *Appointment {
	t.Helper()
	require.NoError(t, f.repo.MemoryRepository.Insert(context.Background(), &a))
	return &a
}

func textPtr(s string) *string { return &s }

// lastEvent decodes the payload of the most recent event of the given type.
func (f *fixture) lastEvent(t *testing.T, eventType string) map[string]any {
	t.Helper()
	events := f.repo.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType != eventType {
			continue
		}
		var payload map[string]any
		require.NoError(t, json.Unmarshal(events[i].Payload, &payload))
		return payload
	}
	t.Fatalf("no %s event recorded", eventType)
	return nil
}
