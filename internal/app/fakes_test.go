package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardiocare/cardiocare/internal/api"
	"github.com/cardiocare/cardiocare/internal/platform/storage"
	"github.com/cardiocare/cardiocare/internal/session"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBackend answers every call with the configured function, or an empty
// result when none is set. Calls are counted per method.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	register           func(api.RegisterRequest) (string, error)
	login              func(email, password string) (*api.LoginResponse, error)
	predict            func(ctx context.Context, in api.PredictionInput) (*api.PredictionResult, error)
	history            func(ctx context.Context) ([]api.HistoryEntry, error)
	doctors            func() ([]api.Doctor, error)
	book               func(api.BookAppointmentRequest) (string, error)
	appointments       func() ([]api.Appointment, error)
	doctorAppointments func() ([]api.DoctorAppointment, error)
	updateStatus       func(id int, status string) (string, error)
	patients           func() ([]api.Patient, error)
	patientHistory     func(id string) ([]api.HistoryEntry, error)
	details            func(id string) (*api.PredictionDetails, error)
	saveNote           func(id, note string) (string, error)
}

func (f *fakeBackend) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Register(_ context.Context, req api.RegisterRequest) (string, error) {
	f.count("register")
	if f.register != nil {
		return f.register(req)
	}
	return "User registered successfully", nil
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (*api.LoginResponse, error) {
	f.count("login")
	if f.login != nil {
		return f.login(email, password)
	}
	return &api.LoginResponse{AccessToken: "token", UserRole: "patient"}, nil
}

func (f *fakeBackend) Predict(ctx context.Context, in api.PredictionInput) (*api.PredictionResult, error) {
	f.count("predict")
	if f.predict != nil {
		return f.predict(ctx, in)
	}
	return &api.PredictionResult{Prediction: "No", Probability: "10.00%"}, nil
}

func (f *fakeBackend) History(ctx context.Context) ([]api.HistoryEntry, error) {
	f.count("history")
	if f.history != nil {
		return f.history(ctx)
	}
	return nil, nil
}

func (f *fakeBackend) Recommendations(context.Context) ([]api.RecommendationGroup, error) {
	f.count("recommendations")
	return nil, nil
}

func (f *fakeBackend) Doctors(context.Context) ([]api.Doctor, error) {
	f.count("doctors")
	if f.doctors != nil {
		return f.doctors()
	}
	return nil, nil
}

func (f *fakeBackend) BookAppointment(_ context.Context, req api.BookAppointmentRequest) (string, error) {
	f.count("book")
	if f.book != nil {
		return f.book(req)
	}
	return "Appointment requested successfully", nil
}

func (f *fakeBackend) Appointments(context.Context) ([]api.Appointment, error) {
	f.count("appointments")
	if f.appointments != nil {
		return f.appointments()
	}
	return nil, nil
}

func (f *fakeBackend) DoctorAppointments(context.Context) ([]api.DoctorAppointment, error) {
	f.count("doctor_appointments")
	if f.doctorAppointments != nil {
		return f.doctorAppointments()
	}
	return nil, nil
}

func (f *fakeBackend) UpdateAppointmentStatus(_ context.Context, id int, status string) (string, error) {
	f.count("update_status")
	if f.updateStatus != nil {
		return f.updateStatus(id, status)
	}
	return "ok", nil
}

func (f *fakeBackend) DoctorPatients(context.Context) ([]api.Patient, error) {
	f.count("patients")
	if f.patients != nil {
		return f.patients()
	}
	return nil, nil
}

func (f *fakeBackend) PatientHistory(_ context.Context, id string) ([]api.HistoryEntry, error) {
	f.count("patient_history")
	if f.patientHistory != nil {
		return f.patientHistory(id)
	}
	return nil, nil
}

func (f *fakeBackend) PredictionDetails(_ context.Context, id string) (*api.PredictionDetails, error) {
	f.count("details")
	if f.details != nil {
		return f.details(id)
	}
	return &api.PredictionDetails{}, nil
}

func (f *fakeBackend) SavePredictionNote(_ context.Context, id, note string) (string, error) {
	f.count("save_note")
	if f.saveNote != nil {
		return f.saveNote(id, note)
	}
	return "Note saved successfully", nil
}

func (f *fakeBackend) DoctorNotes(context.Context) ([]api.DoctorNote, error) {
	f.count("doctor_notes")
	return nil, nil
}

type fixture struct {
	app       *App
	clock     *fakeClock
	backend   *fakeBackend
	durable   *storage.MemoryStore
	ephemeral *storage.MemoryStore
}

func newFixture(t *testing.T, be *fakeBackend) *fixture {
	t.Helper()
	f := &fixture{
		clock:     newFakeClock(),
		backend:   be,
		durable:   storage.NewMemoryStore(),
		ephemeral: storage.NewMemoryStore(),
	}
	f.app = f.reload()
	return f
}

// reload builds a fresh App over the same storage, like reopening the tab.
func (f *fixture) reload() *App {
	return New(Options{
		API:          f.backend,
		Durable:      f.durable,
		Ephemeral:    f.ephemeral,
		Logger:       zerolog.Nop(),
		Now:          f.clock.Now,
		ResultWindow: 5 * time.Second,
		NoticeTTL:    4 * time.Second,
	})
}

func (f *fixture) loginAs(t *testing.T, role session.Role) {
	t.Helper()
	if err := f.app.Session().Save(context.Background(), "token", role); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
}

func (f *fixture) lastNotice(t *testing.T) string {
	t.Helper()
	n, ok := f.app.Notices().Current()
	if !ok {
		t.Fatal("expected a visible notice")
	}
	return n.Message
}

func validSurvey() map[string]string {
	return map[string]string{
		"General_Health": "Good", "Checkup": "Within the past year", "Exercise": "Yes", "Smoking_History": "No",
		"Alcohol_Consumption": "0", "Fruit_Consumption": "30", "Green_Vegetables_Consumption": "12", "FriedPotato_Consumption": "4",
		"BMI": "24.5", "Sex": "Female", "Age_Category": "45-49",
		"Diabetes": "No", "Depression": "No", "Arthritis": "No", "Skin_Cancer": "No", "Other_Cancer": "No",
	}
}
