// Package app wires the session, navigation and backend client into the
// pages of the CardioCare client: per-page refreshes, form handlers and a
// text rendering of the visible page.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardiocare/cardiocare/internal/api"
	"github.com/cardiocare/cardiocare/internal/nav"
	"github.com/cardiocare/cardiocare/internal/notify"
	"github.com/cardiocare/cardiocare/internal/platform/storage"
	"github.com/cardiocare/cardiocare/internal/sequencer"
	"github.com/cardiocare/cardiocare/internal/session"
)

// Backend is the subset of the REST API the pages use. *api.Client
// implements it.
type Backend interface {
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Predict(ctx context.Context, in api.PredictionInput) (*api.PredictionResult, error)
	History(ctx context.Context) ([]api.HistoryEntry, error)
	Recommendations(ctx context.Context) ([]api.RecommendationGroup, error)
	Doctors(ctx context.Context) ([]api.Doctor, error)
	BookAppointment(ctx context.Context, req api.BookAppointmentRequest) (string, error)
	Appointments(ctx context.Context) ([]api.Appointment, error)
	DoctorAppointments(ctx context.Context) ([]api.DoctorAppointment, error)
	UpdateAppointmentStatus(ctx context.Context, id int, status string) (string, error)
	DoctorPatients(ctx context.Context) ([]api.Patient, error)
	PatientHistory(ctx context.Context, patientID string) ([]api.HistoryEntry, error)
	PredictionDetails(ctx context.Context, predictionID string) (*api.PredictionDetails, error)
	SavePredictionNote(ctx context.Context, predictionID, note string) (string, error)
	DoctorNotes(ctx context.Context) ([]api.DoctorNote, error)
}

// Ephemeral keys of the selected patient.
const (
	KeySelectedPatientID   = "selected_patient_id"
	KeySelectedPatientName = "selected_patient_name"
)

// Sequencer keys, one per independently refreshed panel.
const (
	SeqPrediction         = "prediction"
	SeqHistory            = "history"
	SeqRecommendations    = "recommendations"
	SeqDoctors            = "doctors"
	SeqAppointments       = "appointments"
	SeqDoctorAppointments = "doctor-appointments"
	SeqPatients           = "patients"
	SeqPatientHistory     = "patient-history"
	SeqPredictionDetails  = "prediction-details"
	SeqDoctorNotes        = "doctor-notes"
)

type Options struct {
	API Backend
	// Durable holds the session record. Ephemeral holds per-tab state and is
	// cleared on logout.
	Durable   storage.Store
	Ephemeral storage.Store

	Logger       zerolog.Logger
	Now          func() time.Time
	ResultWindow time.Duration
	NoticeTTL    time.Duration
}

type App struct {
	api     Backend
	session *session.Store
	pending *nav.Pending
	seq     *sequencer.Sequencer
	ctrl    *nav.Controller
	notices *notify.Notifier
	screen  *Screen
	now     func() time.Time
	logger  zerolog.Logger
}

func New(opts Options) *App {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.NoticeTTL
	if ttl <= 0 {
		ttl = notify.DefaultTTL
	}
	logger := opts.Logger

	a := &App{
		api:    opts.API,
		seq:    sequencer.New(),
		screen: NewScreen(),
		now:    now,
		logger: logger,
	}
	a.notices = notify.New(
		notify.WithTTL(ttl),
		notify.WithClock(now),
		notify.WithSink(func(n notify.Notice) {
			logger.Debug().Str("kind", string(n.Kind)).Str("message", n.Message).Msg("notice")
		}),
	)
	a.session = session.NewStore(opts.Durable, opts.Ephemeral,
		session.WithObserver(a.screen.SetAffordances),
		session.WithClock(now),
		session.WithLogger(logger),
	)
	a.pending = nav.NewPending(opts.Ephemeral, opts.ResultWindow, now, logger)
	a.ctrl = nav.NewController(a.session, a.pending, a.notices, logger)

	a.registerRefreshers()
	a.registerHandlers()
	return a
}

func (a *App) Session() *session.Store         { return a.session }
func (a *App) Controller() *nav.Controller     { return a.ctrl }
func (a *App) Notices() *notify.Notifier       { return a.notices }
func (a *App) Screen() *Screen                 { return a.screen }
func (a *App) Pending() *nav.Pending           { return a.pending }
func (a *App) Sequencer() *sequencer.Sequencer { return a.seq }

// Start loads the persisted session and shows the initial location.
func (a *App) Start(ctx context.Context, initial string) nav.Transition {
	a.session.Load(ctx)
	return a.ctrl.Navigate(ctx, initial)
}

func (a *App) Navigate(ctx context.Context, raw string) nav.Transition {
	return a.ctrl.Navigate(ctx, raw)
}

// Dispatch raises event on the visible page.
func (a *App) Dispatch(ctx context.Context, event string, form nav.Form) error {
	return a.ctrl.Dispatch(ctx, event, form)
}

// Wait blocks until page refreshes started so far are done.
func (a *App) Wait() {
	a.ctrl.Wait()
}

// fail renders an inline failure and surfaces the backend message.
func (a *App) fail(panel, inline string, err error) {
	a.logger.Warn().Err(err).Str("panel", panel).Int("status", api.StatusOf(err)).Msg("load failed")
	a.screen.Failed(panel, inline)
	a.notices.Error(err.Error())
}

func (a *App) ephemeral(ctx context.Context, key string) string {
	v, ok, err := a.session.Ephemeral().Get(ctx, key)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("ephemeral read failed")
	}
	if !ok {
		return ""
	}
	return v
}

func (a *App) setEphemeral(ctx context.Context, key, value string) {
	if err := a.session.Ephemeral().Set(ctx, key, value); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("ephemeral write failed, keeping in memory")
	}
}
