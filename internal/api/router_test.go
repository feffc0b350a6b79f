package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/doctor"
	"github.com/hackgods/appointment-lifecycle/internal/metrics"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

type stubDoctors map[string]doctor.Doctor

func (s stubDoctors) GetDoctor(_ context.Context, id string) (*doctor.Doctor, error) {
	d, ok := s[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	return &d, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	handler http.Handler
	cal     *calendar.Calendar
	mr      *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := calendar.NewRedisStore(client)
	gen := calendar.NewGenerator(store, calendar.Template{DayStart: "09:00", DayEnd: "11:00", Step: 30 * time.Minute, Days: 3})
	today := time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)
	_, err := gen.Refresh(context.Background(), "dr001", calendar.Channels, today)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	cal := calendar.New(store)
	svc := appointment.NewService(
		appointment.NewMemoryRepository(),
		cal,
		stubDoctors{"dr001": {ID: "dr001", Name: "Dr. Meera Iyer", Specialization: "Dermatology", OnlineFee: 400, ClinicFee: 650}},
		redisclient.NewRedisLocker(client, 5*time.Second, 1, 0),
		config.Config{TokenAttempts: 5, ClinicLocation: time.UTC},
		zerolog.Nop(),
		appointment.WithMetrics(metrics.NewSchedulingMetrics(reg)),
		appointment.WithClock(func() time.Time { return today.Add(9 * time.Hour) }),
	)

	h := NewRouter(RouterConfig{
		Service:  svc,
		Calendar: cal,
		Postgres: pingFunc(func(context.Context) error { return nil }),
		Redis:    RedisPinger{Client: client},
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:   zerolog.Nop(),
		Env:      "test",
		Version:  "v0.0.0-test",
	})
	return &testServer{handler: h, cal: cal, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func booking(slotTime string) BookAppointmentRequest {
	return BookAppointmentRequest{
		DoctorID:      "dr001",
		Channel:       "clinic",
		Date:          "2025-08-31",
		Time:          slotTime,
		PatientID:     "pt-100",
		PatientName:   "Rohan Sharma",
		PatientAge:    34,
		PaymentMethod: "cash",
		Reason:        "Skin rash follow-up",
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, ready.Dependencies)

	s.mr.Close()
	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", decode[ReadinessResponse](t, rec).Dependencies["redis"])
}

func TestReadinessReportsPostgresOutage(t *testing.T) {
	h := NewHealthHandler(
		pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		pingFunc(func(context.Context) error { return nil }),
		"test", "",
	)
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", decode[ReadinessResponse](t, rec).Dependencies["postgres"])
}

func TestCalendarEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/doctors/dr001/channels/clinic/dates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2025-08-30", "2025-08-31", "2025-09-01"}, decode[DatesResponse](t, rec).Dates)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/channels/clinic/dates/2025-08-31/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 4)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/channels/phone/dates", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/channels/clinic/dates/31-08-2025/slots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAndConflict(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", booking("10:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "Pending", appt.Status)
	assert.Equal(t, 650.0, appt.ConsultationFee)
	assert.Equal(t, "Dr. Meera Iyer", appt.DoctorName)

	rec = s.do(t, http.MethodPost, "/appointments", booking("10:00"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_conflict", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/channels/clinic/dates/2025-08-31/slots", nil)
	for _, slot := range decode[SlotsResponse](t, rec).Slots {
		assert.NotEqual(t, "10:00", slot.Time)
	}
}

func TestBookValidationErrors(t *testing.T) {
	s := newTestServer(t)

	missing := booking("10:00")
	missing.PatientName = ""
	rec := s.do(t, http.MethodPost, "/appointments", missing)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).Error)

	unknown := booking("10:00")
	unknown.DoctorID = "dr404"
	rec = s.do(t, http.MethodPost, "/appointments", unknown)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, raw).Error)
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	appt := decode[AppointmentResponse](t, s.do(t, http.MethodPost, "/appointments", booking("09:00")))
	base := "/appointments/" + appt.ID.String()

	rec := s.do(t, http.MethodPost, base+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Accepted", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/reschedule", RescheduleAppointmentRequest{Date: "2025-09-01", Time: "10:30", Actor: "doctor"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "Rescheduled", moved.Status)
	assert.Equal(t, "2025-09-01", moved.Date)

	rec = s.do(t, http.MethodPut, base+"/notes", map[string]any{"notes": "Bring previous prescriptions"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bring previous prescriptions", decode[AppointmentResponse](t, rec).DoctorNotes)

	rec = s.do(t, http.MethodPost, base+"/cancel", CancelAppointmentRequest{Actor: "patient"})
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "Cancelled", cancelled.Status)
	assert.Equal(t, "Patient cancelled", cancelled.Reason)

	rec = s.do(t, http.MethodPost, base+"/accept", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, base+"/cancel", CancelAppointmentRequest{Actor: "nurse"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/patients/pt-100/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[PatientAppointmentsResponse](t, rec)
	assert.Empty(t, view.Upcoming)
	require.Len(t, view.Past, 1)
	assert.Equal(t, appt.ID, view.Past[0].ID)

	rec = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusOnlyNotesUpdateOverHTTP(t *testing.T) {
	s := newTestServer(t)

	appt := decode[AppointmentResponse](t, s.do(t, http.MethodPost, "/appointments", booking("09:00")))
	base := "/appointments/" + appt.ID.String()

	rec := s.do(t, http.MethodPost, base+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, base+"/reschedule", RescheduleAppointmentRequest{Date: "2025-09-01", Time: "10:30", Actor: "doctor"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, base+"/notes", map[string]any{"status": "Accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "Accepted", got.Status)
	assert.Equal(t, "Rescheduled to 2025-09-01 at 10:30", got.DoctorNotes)

	rec = s.do(t, http.MethodPut, base+"/notes", map[string]any{"notes": ""})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[AppointmentResponse](t, rec).DoctorNotes)
}

func TestDoctorConsoleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	first := decode[AppointmentResponse](t, s.do(t, http.MethodPost, "/appointments", booking("10:30")))
	other := booking("09:30")
	other.PatientID = "pt-200"
	other.PatientName = "Ananya Rao"
	decode[AppointmentResponse](t, s.do(t, http.MethodPost, "/appointments", other))

	rec := s.do(t, http.MethodPost, "/appointments/"+first.ID.String()+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/appointments?status=accepted&search=sharma", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[DoctorAppointmentsResponse](t, rec).Appointments
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/appointments?status=all", nil)
	all := decode[DoctorAppointmentsResponse](t, rec).Appointments
	require.Len(t, all, 2)
	assert.Equal(t, "09:30", all[0].Time)

	rec = s.do(t, http.MethodGet, "/doctors/dr001/appointments?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseSlotEndpoint(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.cal.Reserve(ctx, "dr001", calendar.ChannelOnline, "2025-08-31", "09:00"))

	rec := s.do(t, http.MethodPost, "/doctors/dr001/channels/online/dates/2025-08-31/slots/09:00/release", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, s.cal.Reserve(ctx, "dr001", calendar.ChannelOnline, "2025-08-31", "09:00"))

	rec = s.do(t, http.MethodPost, "/doctors/dr001/channels/online/dates/2025-08-31/slots/13:00/release", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidAppointmentID(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_appointment_id", decode[ErrorResponse](t, rec).Error)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/appointments", booking("10:00"))

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinic_scheduling_bookings_total")
}

func TestBusyAppointmentMapsToConflict(t *testing.T) {
	s := newTestServer(t)
	appt := decode[AppointmentResponse](t, s.do(t, http.MethodPost, "/appointments", booking("10:00")))

	require.NoError(t, s.mr.Set("lock:appointment:"+appt.ID.String(), "someone-else"))

	rec := s.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/accept", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "appointment_busy", decode[ErrorResponse](t, rec).Error)
}
