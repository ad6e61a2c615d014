package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cardiocare/cardiocare/internal/api"
	"github.com/cardiocare/cardiocare/internal/nav"
	"github.com/cardiocare/cardiocare/internal/sequencer"
)

func (a *App) registerRefreshers() {
	a.ctrl.OnRefresh(nav.Result, a.refreshResult)
	a.ctrl.OnRefresh(nav.PredictionHistory, a.refreshHistory)
	a.ctrl.OnRefresh(nav.Recommendations, a.refreshRecommendations)
	a.ctrl.OnRefresh(nav.Appointments, func(ctx context.Context) {
		a.refreshDoctors(ctx)
		a.refreshAppointments(ctx)
	})
	a.ctrl.OnRefresh(nav.ManageAppointments, a.refreshDoctorAppointments)
	a.ctrl.OnRefresh(nav.ViewPredictions, a.refreshPatients)
	a.ctrl.OnRefresh(nav.PatientHistoryViewer, a.refreshPatientHistory)
	a.ctrl.OnRefresh(nav.ManageRecommendations, a.refreshDoctorNotes)
}

// refreshResult restores the result panels from the cached payload, which
// is all that survives a reload of the tab.
func (a *App) refreshResult(ctx context.Context) {
	if p, ok := a.pending.Payload(ctx); ok {
		a.showResult(p)
	}
}

func (a *App) showResult(p nav.Payload) {
	a.screen.SetHidden(PanelResultError, true)
	a.screen.Lines(PanelResultContent,
		"Based on the information provided, our model predicts:",
		p.Prediction,
		fmt.Sprintf("(Probability: %s)", p.Probability),
	)
	a.screen.Lines(PanelResultList, p.Recommendations...)
}

func historyTable(rows []api.HistoryEntry, withID bool) ([]string, []Row) {
	cols := []string{"Date", "Result", "Probability"}
	if withID {
		cols = append([]string{"ID"}, cols...)
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		id := strconv.Itoa(r.ID)
		cells := []string{r.Timestamp, r.Result, r.Probability}
		if withID {
			cells = append([]string{id}, cells...)
		}
		out = append(out, Row{ID: id, Cells: cells})
	}
	return cols, out
}

func (a *App) refreshHistory(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelHistory, "Loading history...")
	sequencer.Run(ctx, a.seq, SeqHistory, a.api.History, func(rows []api.HistoryEntry, err error) {
		if err != nil {
			a.fail(PanelHistory, "Could not load history.", err)
			return
		}
		if len(rows) == 0 {
			a.screen.Message(PanelHistory, "No prediction history found.")
			return
		}
		cols, out := historyTable(rows, false)
		a.screen.Table(PanelHistory, cols, out)
	})
}

func (a *App) refreshRecommendations(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelRecommendations, "Loading recommendations...")
	sequencer.Run(ctx, a.seq, SeqRecommendations, a.api.Recommendations, func(groups []api.RecommendationGroup, err error) {
		if err != nil {
			a.fail(PanelRecommendations, "Could not load recommendations.", err)
			return
		}
		if len(groups) == 0 {
			a.screen.Message(PanelRecommendations, "No recommendations available yet. Make a prediction first!")
			return
		}
		var lines []string
		for _, g := range groups {
			lines = append(lines, fmt.Sprintf("Prediction on %s -> %s", g.Timestamp, g.Result))
			for _, r := range g.Recommendations {
				lines = append(lines, "  - "+r)
			}
		}
		a.screen.Lines(PanelRecommendations, lines...)
	})
}

func (a *App) refreshDoctors(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelDoctorSelect, "Loading doctors...")
	sequencer.Run(ctx, a.seq, SeqDoctors, a.api.Doctors, func(docs []api.Doctor, err error) {
		if err != nil {
			a.fail(PanelDoctorSelect, "Error loading doctors", err)
			return
		}
		if len(docs) == 0 {
			a.screen.Message(PanelDoctorSelect, "No doctors available")
			return
		}
		rows := make([]Row, 0, len(docs))
		for _, d := range docs {
			id := strconv.Itoa(d.ID)
			rows = append(rows, Row{ID: id, Cells: []string{id, d.Name}})
		}
		a.screen.Table(PanelDoctorSelect, []string{"ID", "Doctor"}, rows)
	})
}

func (a *App) refreshAppointments(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelAppointments, "Loading appointments...")
	sequencer.Run(ctx, a.seq, SeqAppointments, a.api.Appointments, func(appts []api.Appointment, err error) {
		if err != nil {
			a.fail(PanelAppointments, "Could not load appointments.", err)
			return
		}
		if len(appts) == 0 {
			a.screen.Message(PanelAppointments, "No appointments found.")
			return
		}
		rows := make([]Row, 0, len(appts))
		for _, ap := range appts {
			rows = append(rows, Row{
				ID:    strconv.Itoa(ap.ID),
				Cells: []string{ap.DoctorName, ap.Datetime, orNA(ap.Reason), ap.Status},
			})
		}
		a.screen.Table(PanelAppointments, []string{"Doctor", "Date & Time", "Reason", "Status"}, rows)
	})
}

// Column positions in the doctor appointments table.
const (
	apptStatusCol = 4
	apptActionCol = 5
)

func (a *App) refreshDoctorAppointments(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelDoctorAppointments, "Loading appointments...")
	sequencer.Run(ctx, a.seq, SeqDoctorAppointments, a.api.DoctorAppointments, func(appts []api.DoctorAppointment, err error) {
		if err != nil {
			a.fail(PanelDoctorAppointments, "Could not load appointments.", err)
			return
		}
		if len(appts) == 0 {
			a.screen.Message(PanelDoctorAppointments, "No appointments found.")
			return
		}
		rows := make([]Row, 0, len(appts))
		for _, ap := range appts {
			id := strconv.Itoa(ap.ID)
			action := "Handled"
			if ap.Status == api.StatusPending {
				action = "approve | reject"
			}
			rows = append(rows, Row{
				ID:    id,
				Cells: []string{id, ap.PatientName, ap.Datetime, orNA(ap.Reason), ap.Status, action},
			})
		}
		a.screen.Table(PanelDoctorAppointments, []string{"ID", "Patient", "Date & Time", "Reason", "Status", "Action"}, rows)
	})
}

func (a *App) refreshPatients(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelPatientList, "Loading patients...")
	sequencer.Run(ctx, a.seq, SeqPatients, a.api.DoctorPatients, func(patients []api.Patient, err error) {
		if err != nil {
			a.fail(PanelPatientList, "Could not load patients.", err)
			return
		}
		if len(patients) == 0 {
			a.screen.Message(PanelPatientList, "No patients found.")
			return
		}
		rows := make([]Row, 0, len(patients))
		for _, p := range patients {
			id := strconv.Itoa(p.ID)
			age := "N/A"
			if p.Age != nil && *p.Age != 0 {
				age = strconv.Itoa(*p.Age)
			}
			rows = append(rows, Row{
				ID:    id,
				Cells: []string{id, p.FullName, age, strOrNA(p.Gender), strOrNA(p.Phone)},
			})
		}
		a.screen.Table(PanelPatientList, []string{"ID", "Name", "Age", "Gender", "Phone"}, rows)
	})
}

func (a *App) refreshPatientHistory(ctx context.Context) {
	id := a.ephemeral(ctx, KeySelectedPatientID)
	name := a.ephemeral(ctx, KeySelectedPatientName)
	if name == "" {
		name = "Patient"
	}

	a.screen.SetTitle(PanelPatientHistory, "History for: "+name)
	a.screen.Loading(PanelPatientHistory, "Loading history...")
	a.screen.SetHidden(PanelPredictionDetails, true)
	a.screen.SetHidden(PanelNoteForm, true)

	if id == "" {
		a.screen.Failed(PanelPatientHistory, "No patient selected. Go back to the patient list.")
		return
	}

	fetch := func(ctx context.Context) ([]api.HistoryEntry, error) {
		return a.api.PatientHistory(ctx, id)
	}
	sequencer.Run(ctx, a.seq, SeqPatientHistory, fetch, func(rows []api.HistoryEntry, err error) {
		if err != nil {
			a.fail(PanelPatientHistory, "Could not load history.", err)
			return
		}
		if len(rows) == 0 {
			a.screen.Message(PanelPatientHistory, "No prediction history found for this patient.")
			return
		}
		cols, out := historyTable(rows, true)
		a.screen.Table(PanelPatientHistory, cols, out)
	})
}

func (a *App) refreshDoctorNotes(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}
	a.screen.Loading(PanelDoctorNotes, "Loading all notes...")
	sequencer.Run(ctx, a.seq, SeqDoctorNotes, a.api.DoctorNotes, func(notes []api.DoctorNote, err error) {
		if err != nil {
			a.fail(PanelDoctorNotes, "Could not load notes.", err)
			return
		}
		if len(notes) == 0 {
			a.screen.Message(PanelDoctorNotes, `No notes found. You can add notes from the "View Patient Predictions" page.`)
			return
		}
		rows := make([]Row, 0, len(notes))
		for _, n := range notes {
			rows = append(rows, Row{
				ID:    strconv.Itoa(n.PredictionID),
				Cells: []string{strconv.Itoa(n.PatientID), n.PatientName, n.Timestamp, n.Result, n.Note},
			})
		}
		a.screen.Table(PanelDoctorNotes, []string{"Patient ID", "Patient", "Date", "Result", "Note"}, rows)
	})
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func strOrNA(s *string) string {
	if s == nil {
		return "N/A"
	}
	return orNA(*s)
}
