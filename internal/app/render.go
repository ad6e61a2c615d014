package app

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cardiocare/cardiocare/internal/nav"
)

var pageTitles = map[nav.Location]string{
	nav.Home:                  "CardioCare",
	nav.About:                 "About CardioCare",
	nav.Login:                 "Log In",
	nav.Register:              "Create an Account",
	nav.PatientDashboard:      "Patient Dashboard",
	nav.DoctorDashboard:       "Doctor Dashboard",
	nav.NewPrediction:         "New Prediction",
	nav.Result:                "Prediction Result",
	nav.PredictionHistory:     "Prediction History",
	nav.Recommendations:       "Your Recommendations",
	nav.Appointments:          "Appointments",
	nav.ViewPredictions:       "Patients",
	nav.PatientHistoryViewer:  "Patient History",
	nav.ManageRecommendations: "Doctor's Notes",
	nav.ManageAppointments:    "Manage Appointments",
}

var pageText = map[nav.Location][]string{
	nav.Home: {
		"Know your heart. Predict your cardiovascular risk in minutes.",
		"Log in or register to get started.",
	},
	nav.About: {
		"CardioCare estimates heart disease risk from a short lifestyle and health survey",
		"and connects patients with doctors for follow-up.",
		"Predictions are informational and are not a medical diagnosis.",
	},
	nav.Login: {
		"submit email=<email> password=<password>",
	},
	nav.Register: {
		"submit full_name=<name> email=<email> password=<password> role=patient|doctor",
		"  patients: age= gender= phone=",
		"  doctors:  specialization= experience_years= clinic_address=",
	},
	nav.PatientDashboard: {
		"go new-prediction       take the health survey",
		"go prediction-history   your past predictions",
		"go recommendations      advice based on your predictions",
		"go appointments         book and track appointments",
	},
	nav.DoctorDashboard: {
		"go view-predictions         patients and their predictions",
		"go manage-appointments      approve or reject requests",
		"go manage-recommendations   notes you have written",
	},
	nav.NewPrediction: {
		"submit with every survey field as key=value:",
		"  " + strings.Join(SurveyFields[:4], " "),
		"  " + strings.Join(SurveyFields[4:8], " "),
		"  " + strings.Join(SurveyFields[8:11], " "),
		"  " + strings.Join(SurveyFields[11:], " "),
	},
	nav.Appointments: {
		"submit doctor_id=<id> datetime=YYYY-MM-DDTHH:MM reason=<text>",
	},
	nav.ManageAppointments: {
		"approve <id> | reject <id>",
	},
	nav.ViewPredictions: {
		"select-patient <id> <name>",
	},
	nav.PatientHistoryViewer: {
		"details <prediction id> | note <prediction id> <text>",
	},
	nav.ManageRecommendations: {
		"select-patient <patient id> <name>",
	},
}

var pagePanels = map[nav.Location][]string{
	nav.Result:                {PanelResultContent, PanelResultList, PanelResultError},
	nav.PredictionHistory:     {PanelHistory},
	nav.Recommendations:       {PanelRecommendations},
	nav.Appointments:          {PanelDoctorSelect, PanelAppointments},
	nav.ManageAppointments:    {PanelDoctorAppointments},
	nav.ViewPredictions:       {PanelPatientList},
	nav.PatientHistoryViewer:  {PanelPatientHistory, PanelPredictionDetails, PanelNoteForm},
	nav.ManageRecommendations: {PanelDoctorNotes},
}

// Render writes the visible page, scrolled to the controller's offset,
// followed by the notice banner if one is showing.
func (a *App) Render(w io.Writer) error {
	page := a.ctrl.Current()

	var body bytes.Buffer
	a.renderPage(&body, page)

	var out bytes.Buffer
	out.WriteString(a.navBar())
	out.WriteString("\n")

	skip := a.ctrl.ScrollOffset()
	sc := bufio.NewScanner(&body)
	for i := 0; sc.Scan(); i++ {
		if i < skip {
			continue
		}
		out.WriteString(sc.Text())
		out.WriteString("\n")
	}

	if n, ok := a.notices.Current(); ok {
		fmt.Fprintf(&out, "\n[%s %s]\n", n.Title(), n.Message)
	}

	_, err := w.Write(out.Bytes())
	return err
}

func (a *App) navBar() string {
	aff := a.screen.Affordances()
	var links []string
	add := func(enabled bool, name string) {
		if enabled {
			links = append(links, name)
		}
	}
	add(aff.Home, string(nav.Home))
	add(aff.About, string(nav.About))
	add(aff.Login, string(nav.Login))
	add(aff.Register, string(nav.Register))
	if aff.UserMenu {
		role := a.session.Current().Role
		links = append(links, string(nav.Dashboard(role)), "logout")
	}
	return "[" + strings.Join(links, "] [") + "]"
}

func (a *App) renderPage(w io.Writer, page nav.Location) {
	fmt.Fprintf(w, "== %s ==\n", pageTitles[page])
	for _, line := range pageText[page] {
		fmt.Fprintln(w, line)
	}
	for _, name := range pagePanels[page] {
		p, ok := a.screen.Panel(name)
		if !ok || p.Hidden {
			continue
		}
		renderPanel(w, p)
	}
	if busy := a.screen.BusyFlags(); len(busy) > 0 {
		fmt.Fprintf(w, "(working: %s)\n", strings.Join(busy, ", "))
	}
	if events := a.ctrl.Events(); len(events) > 0 {
		fmt.Fprintf(w, "actions: %s\n", strings.Join(events, ", "))
	}
}

func renderPanel(w io.Writer, p Panel) {
	if p.Status == StatusIdle && p.Title == "" {
		return
	}
	fmt.Fprintln(w)
	if p.Title != "" {
		fmt.Fprintf(w, "-- %s --\n", p.Title)
	}
	switch {
	case p.Message != "":
		if p.Status == StatusFailed {
			fmt.Fprintf(w, "! %s\n", p.Message)
		} else {
			fmt.Fprintln(w, p.Message)
		}
	case len(p.Columns) > 0:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(p.Columns, "\t"))
		for _, r := range p.Rows {
			fmt.Fprintln(tw, strings.Join(r.Cells, "\t"))
		}
		tw.Flush()
	default:
		for _, l := range p.Lines {
			fmt.Fprintln(w, l)
		}
	}
}
