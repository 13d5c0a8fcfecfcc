package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/turnomed/clinic-scheduling/internal/redis"
	"github.com/turnomed/clinic-scheduling/internal/schedule"
)

type testServer struct {
	srv     *httptest.Server
	doctor  schedule.Doctor
	patient schedule.Patient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := schedule.NewMemoryRepository()
	doctor := schedule.Doctor{ID: uuid.New(), Name: "Dr. Ramirez"}
	patient := schedule.Patient{ID: uuid.New(), Name: "Lucia Ferreyra"}
	repo.PutDoctor(doctor)
	repo.PutPatient(patient)

	svc := schedule.NewService(repo, redisclient.NoopLocker{}, zerolog.Nop())
	router := NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, doctor: doctor, patient: patient}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// nextMonday returns an upcoming Monday so windows created for
// time.Monday always apply to the booked date.
func nextMonday() string {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func (ts *testServer) createWindow(t *testing.T) WindowResponse {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/availability", CreateWindowRequest{
		DoctorID:            ts.doctor.ID.String(),
		Weekday:             int(time.Monday),
		StartTime:           "08:00",
		EndTime:             "12:00",
		SlotDurationMinutes: 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[WindowResponse](t, resp)
}

func (ts *testServer) createAppointment(t *testing.T, start string) AppointmentResponse {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:        ts.doctor.ID.String(),
		PatientID:       ts.patient.ID.String(),
		Date:            nextMonday(),
		StartTime:       start,
		DurationMinutes: 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[AppointmentResponse](t, resp)
}

func TestCreateWindowEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.createWindow(t)
	assert.Equal(t, ts.doctor.ID, w.DoctorID)
	assert.Equal(t, "08:00", w.StartTime)
	assert.True(t, w.Active)
}

func TestCreateWindowValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		req  CreateWindowRequest
		code int
	}{
		{
			name: "bad doctor id",
			req:  CreateWindowRequest{DoctorID: "not-a-uuid", Weekday: 1, StartTime: "08:00", EndTime: "12:00", SlotDurationMinutes: 30},
			code: http.StatusBadRequest,
		},
		{
			name: "unknown doctor",
			req:  CreateWindowRequest{DoctorID: uuid.NewString(), Weekday: 1, StartTime: "08:00", EndTime: "12:00", SlotDurationMinutes: 30},
			code: http.StatusNotFound,
		},
		{
			name: "end before start",
			req:  CreateWindowRequest{DoctorID: ts.doctor.ID.String(), Weekday: 1, StartTime: "12:00", EndTime: "08:00", SlotDurationMinutes: 30},
			code: http.StatusBadRequest,
		},
		{
			name: "bad time format",
			req:  CreateWindowRequest{DoctorID: ts.doctor.ID.String(), Weekday: 1, StartTime: "8am", EndTime: "12:00", SlotDurationMinutes: 30},
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/availability", tt.req)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestWindowUpdateAndDeactivate(t *testing.T) {
	ts := newTestServer(t)
	w := ts.createWindow(t)

	dur := 20
	resp := ts.do(t, http.MethodPatch, "/availability/"+w.ID.String(), UpdateWindowRequest{
		SlotDurationMinutes: &dur,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[WindowResponse](t, resp)
	assert.Equal(t, 20, updated.SlotDurationMinutes)
	assert.Equal(t, "08:00", updated.StartTime)

	resp = ts.do(t, http.MethodDelete, "/availability/"+w.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/availability", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]WindowResponse](t, resp))

	resp = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/availability?include_inactive=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]WindowResponse](t, resp), 1)
}

func TestFreeSlotsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createWindow(t)
	date := nextMonday()

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", ts.doctor.ID, date), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[FreeSlotsResponse](t, resp)
	assert.Equal(t, date, body.Date)
	require.Len(t, body.Slots, 8)
	assert.Equal(t, "08:00", body.Slots[0].StartTime)
	assert.Equal(t, 30, body.Slots[0].DurationMinutes)

	ts.createAppointment(t, "08:00")

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", ts.doctor.ID, date), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[FreeSlotsResponse](t, resp)
	assert.Len(t, body.Slots, 7)
}

func TestFreeSlotsEndpointBadInput(t *testing.T) {
	ts := newTestServer(t)
	ts.createWindow(t)

	resp := ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/slots", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/slots?date=March+10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", uuid.New(), nextMonday()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createWindow(t)

	appt := ts.createAppointment(t, "08:00")
	assert.Equal(t, "pending", appt.Status)

	// Double booking the same interval conflicts.
	resp := ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:        ts.doctor.ID.String(),
		PatientID:       ts.patient.ID.String(),
		Date:            nextMonday(),
		StartTime:       "08:15",
		DurationMinutes: 30,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, resp).Status)

	resp = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String(), RescheduleRequest{
		Date:      nextMonday(),
		StartTime: "10:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "10:00", moved.StartTime)
	assert.Equal(t, 30, moved.DurationMinutes)

	resp = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Terminal: no further transitions.
	resp = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", decode[AppointmentResponse](t, resp).Status)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createWindow(t)

	a := ts.createAppointment(t, "08:00")
	ts.createAppointment(t, "09:00")

	resp := ts.do(t, http.MethodGet, "/appointments?doctor_id="+ts.doctor.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]AppointmentResponse](t, resp), 2)

	resp = ts.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/appointments?status=cancelled", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]AppointmentResponse](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	resp = ts.do(t, http.MethodGet, "/appointments?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAppointmentNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/appointments/"+uuid.NewString()+"/confirm", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAppointmentBadPayload(t *testing.T) {
	ts := newTestServer(t)
	ts.createWindow(t)

	resp := ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:        ts.doctor.ID.String(),
		PatientID:       ts.patient.ID.String(),
		Date:            "10/03/2025",
		StartTime:       "08:00",
		DurationMinutes: 30,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:        ts.doctor.ID.String(),
		PatientID:       ts.patient.ID.String(),
		Date:            nextMonday(),
		StartTime:       "25:00",
		DurationMinutes: 30,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
