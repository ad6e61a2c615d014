package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cardiocare/cardiocare/internal/api"
	"github.com/cardiocare/cardiocare/internal/nav"
	"github.com/cardiocare/cardiocare/internal/sequencer"
	"github.com/cardiocare/cardiocare/internal/session"
)

// Events raised by pages.
const (
	EventSubmit        = "submit"
	EventApprove       = "approve"
	EventReject        = "reject"
	EventSelectPatient = "select-patient"
	EventViewDetails   = "view-details"
	EventSaveNote      = "save-note"
	EventLogout        = "logout"
)

// ErrBusy is returned when a form is submitted while its previous
// submission is still running.
var ErrBusy = errors.New("app: action already in progress")

const appointmentLayout = "2006-01-02T15:04"

func (a *App) registerHandlers() {
	a.ctrl.On(nav.Login, EventSubmit, a.handleLogin)
	a.ctrl.On(nav.Register, EventSubmit, a.handleRegister)
	a.ctrl.On(nav.NewPrediction, EventSubmit, a.handlePredict)
	a.ctrl.On(nav.Appointments, EventSubmit, a.handleBookAppointment)
	a.ctrl.On(nav.ManageAppointments, EventApprove, a.statusHandler(api.StatusApproved))
	a.ctrl.On(nav.ManageAppointments, EventReject, a.statusHandler(api.StatusRejected))
	a.ctrl.On(nav.ViewPredictions, EventSelectPatient, a.handleSelectPatient)
	a.ctrl.On(nav.ManageRecommendations, EventSelectPatient, a.handleSelectPatient)
	a.ctrl.On(nav.PatientHistoryViewer, EventViewDetails, a.handleViewDetails)
	a.ctrl.On(nav.PatientHistoryViewer, EventSaveNote, a.handleSaveNote)
	a.ctrl.On(nav.AnyLocation, EventLogout, a.handleLogout)
}

// rejectForm surfaces a validation failure before any request is made.
func (a *App) rejectForm(err error) error {
	a.notices.Error(err.Error())
	return err
}

func (a *App) handleLogin(ctx context.Context, form nav.Form) error {
	email, password := strings.TrimSpace(form["email"]), form["password"]
	if email == "" || password == "" {
		return a.rejectForm(invalid("Please enter your email and password."))
	}
	if !a.screen.TryBusy(BusyLogin) {
		return ErrBusy
	}
	defer a.screen.SetBusy(BusyLogin, false)

	resp, err := a.api.Login(ctx, email, password)
	if err != nil {
		a.notices.Error(err.Error())
		return err
	}
	role, ok := session.ParseRole(resp.UserRole)
	if !ok || resp.AccessToken == "" {
		err := fmt.Errorf("login: unexpected response role %q", resp.UserRole)
		a.notices.Error("Login failed")
		return err
	}

	if err := a.session.Save(ctx, resp.AccessToken, role); err != nil {
		a.logger.Warn().Err(err).Msg("session not persisted, continuing in memory")
	}
	a.ctrl.NavigateTo(ctx, nav.Dashboard(role))
	return nil
}

func (a *App) handleRegister(ctx context.Context, form nav.Form) error {
	req, err := parseRegistration(form)
	if err != nil {
		return a.rejectForm(err)
	}
	if !a.screen.TryBusy(BusyRegister) {
		return ErrBusy
	}
	defer a.screen.SetBusy(BusyRegister, false)

	if _, err := a.api.Register(ctx, req); err != nil {
		a.notices.Error(err.Error())
		return err
	}
	a.notices.Success("Registration successful! Please log in.")
	a.ctrl.NavigateTo(ctx, nav.Login)
	return nil
}

func parseRegistration(form nav.Form) (api.RegisterRequest, error) {
	req := api.RegisterRequest{
		FullName:       strings.TrimSpace(form["full_name"]),
		Email:          strings.TrimSpace(form["email"]),
		Password:       form["password"],
		Role:           strings.TrimSpace(form["role"]),
		Gender:         form["gender"],
		Phone:          form["phone"],
		Specialization: form["specialization"],
		ClinicAddress:  form["clinic_address"],
	}
	if req.Role == "" {
		req.Role = string(session.RolePatient)
	}
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return req, invalid("Please fill in your full name, email and password.")
	}
	if _, ok := session.ParseRole(req.Role); !ok {
		return req, invalid("Role must be patient or doctor.")
	}
	optionalInt := func(key, name string) (*int, error) {
		v := strings.TrimSpace(form[key])
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, invalid(name + " must be a whole number.")
		}
		return &n, nil
	}
	var err error
	if req.Age, err = optionalInt("age", "Age"); err != nil {
		return req, err
	}
	if req.ExperienceYears, err = optionalInt("experience_years", "Experience"); err != nil {
		return req, err
	}
	return req, nil
}

// handlePredict submits the survey. Only the newest submission may touch the
// result panels, arm the pending result or clear the busy flag.
func (a *App) handlePredict(ctx context.Context, form nav.Form) error {
	in, err := ParseSurvey(form)
	if err != nil {
		return a.rejectForm(err)
	}

	a.screen.SetBusy(BusyPrediction, true)

	var (
		callErr  error
		showPage bool
	)
	fetch := func(ctx context.Context) (*api.PredictionResult, error) {
		return a.api.Predict(ctx, in)
	}
	applied := sequencer.Run(ctx, a.seq, SeqPrediction, fetch, func(res *api.PredictionResult, err error) {
		defer a.screen.SetBusy(BusyPrediction, false)
		if err != nil {
			a.logger.Warn().Err(err).Msg("prediction failed")
			a.screen.Clear(PanelResultContent)
			a.screen.Clear(PanelResultList)
			a.screen.Message(PanelResultError, "We could not analyze your data. Please try again.")
			a.screen.SetHidden(PanelResultError, false)
			a.notices.Error(err.Error())
			callErr = err
			return
		}

		payload := nav.Payload{
			Prediction:      res.Prediction,
			Probability:     res.Probability,
			Recommendations: res.Recommendations,
		}
		a.showResult(payload)
		if err := a.pending.Arm(ctx, payload); err != nil {
			a.logger.Warn().Err(err).Msg("pending result not persisted, keeping in memory")
		}
		showPage = true
	})
	if !applied {
		a.logger.Debug().Msg("discarding superseded prediction response")
		return nil
	}
	if showPage {
		a.ctrl.NavigateTo(ctx, nav.Result)
	}
	return callErr
}

func (a *App) handleBookAppointment(ctx context.Context, form nav.Form) error {
	doctorID, err := strconv.Atoi(strings.TrimSpace(form["doctor_id"]))
	if err != nil || doctorID <= 0 {
		return a.rejectForm(invalid("Please select a doctor."))
	}
	at, err := time.ParseInLocation(appointmentLayout, strings.TrimSpace(form["datetime"]), a.now().Location())
	if err != nil {
		return a.rejectForm(invalid("Invalid date/time selected."))
	}
	if !at.After(a.now()) {
		return a.rejectForm(invalid("Appointment date and time must be in the future."))
	}

	if !a.screen.TryBusy(BusyAppointment) {
		return ErrBusy
	}
	defer a.screen.SetBusy(BusyAppointment, false)

	_, err = a.api.BookAppointment(ctx, api.BookAppointmentRequest{
		DoctorID: doctorID,
		Datetime: at.Format(appointmentLayout),
		Reason:   form["reason"],
	})
	if err != nil {
		a.notices.Error(err.Error())
		return err
	}
	a.notices.Success("Appointment requested successfully!")
	a.refreshAppointments(ctx)
	return nil
}

func (a *App) statusHandler(status string) nav.Handler {
	return func(ctx context.Context, form nav.Form) error {
		id, err := strconv.Atoi(strings.TrimSpace(form["id"]))
		if err != nil {
			return a.rejectForm(invalid("Invalid appointment id."))
		}
		msg, err := a.api.UpdateAppointmentStatus(ctx, id, status)
		if err != nil {
			a.notices.Error(err.Error())
			return err
		}
		a.notices.Success(msg)
		a.screen.UpdateRow(PanelDoctorAppointments, strconv.Itoa(id), func(cells []string) {
			if len(cells) > apptActionCol {
				cells[apptStatusCol] = status
				cells[apptActionCol] = "Handled"
			}
		})
		return nil
	}
}

// recordID returns the form's id when it is a positive integer.
func recordID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return "", false
	}
	return strconv.Itoa(n), true
}

func (a *App) handleSelectPatient(ctx context.Context, form nav.Form) error {
	id, ok := recordID(form["id"])
	if !ok {
		return a.rejectForm(invalid("No patient selected."))
	}
	a.setEphemeral(ctx, KeySelectedPatientID, id)
	a.setEphemeral(ctx, KeySelectedPatientName, strings.TrimSpace(form["name"]))
	a.ctrl.NavigateTo(ctx, nav.PatientHistoryViewer)
	return nil
}

func (a *App) handleViewDetails(ctx context.Context, form nav.Form) error {
	id, ok := recordID(form["id"])
	if !ok {
		return a.rejectForm(invalid("No prediction selected."))
	}

	a.screen.SetHidden(PanelPredictionDetails, false)
	a.screen.Loading(PanelPredictionDetails, "Loading details...")

	var callErr error
	fetch := func(ctx context.Context) (*api.PredictionDetails, error) {
		return a.api.PredictionDetails(ctx, id)
	}
	sequencer.Run(ctx, a.seq, SeqPredictionDetails, fetch, func(d *api.PredictionDetails, err error) {
		if err != nil {
			a.fail(PanelPredictionDetails, "Could not load details.", err)
			callErr = err
			return
		}
		a.screen.Lines(PanelPredictionDetails, detailLines(d)...)
		a.screen.SetTitle(PanelNoteForm, "Add/Edit Doctor's Note")
		a.screen.SetRef(PanelNoteForm, strconv.Itoa(d.ID))
		a.screen.Lines(PanelNoteForm, d.DoctorNote)
		a.screen.SetHidden(PanelNoteForm, false)
	})
	return callErr
}

func detailLines(d *api.PredictionDetails) []string {
	lines := []string{
		fmt.Sprintf("Result: %s (%s)", d.Result, d.Probability),
		d.Timestamp,
	}
	keys := make([]string, 0, len(d.Inputs))
	for k := range d.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", label(k), d.Inputs[k]))
	}
	return lines
}

func (a *App) handleSaveNote(ctx context.Context, form nav.Form) error {
	raw := form["id"]
	if strings.TrimSpace(raw) == "" {
		if p, ok := a.screen.Panel(PanelNoteForm); ok {
			raw = p.Ref
		}
	}
	id, ok := recordID(raw)
	if !ok {
		return a.rejectForm(invalid("Open a prediction before saving a note."))
	}
	if !a.screen.TryBusy(BusyNote) {
		return ErrBusy
	}
	defer a.screen.SetBusy(BusyNote, false)

	note := form["note"]
	if _, err := a.api.SavePredictionNote(ctx, id, note); err != nil {
		a.notices.Error(err.Error())
		return err
	}
	a.notices.Success("Note saved successfully!")
	if p, ok := a.screen.Panel(PanelNoteForm); ok && p.Ref == id {
		a.screen.Lines(PanelNoteForm, note)
	}
	return nil
}

// handleLogout invalidates every request still in flight before wiping the
// session, so none of them can apply to whoever logs in next.
func (a *App) handleLogout(ctx context.Context, _ nav.Form) error {
	a.seq.Reset()
	if err := a.session.Clear(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("logout did not fully clear storage")
	}
	a.screen.Reset()
	a.ctrl.NavigateTo(ctx, nav.Home)
	return nil
}
