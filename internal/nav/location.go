package nav

import (
	"strings"

	"github.com/cardiocare/cardiocare/internal/session"
)

// Location is one page the client can show.
type Location string

const (
	Home                  Location = "home"
	Login                 Location = "login"
	Register              Location = "register"
	PatientDashboard      Location = "patient-dashboard"
	DoctorDashboard       Location = "doctor-dashboard"
	NewPrediction         Location = "new-prediction"
	Result                Location = "result"
	PredictionHistory     Location = "prediction-history"
	Recommendations       Location = "recommendations"
	Appointments          Location = "appointments"
	ViewPredictions       Location = "view-predictions"
	PatientHistoryViewer  Location = "patient-history-viewer"
	ManageRecommendations Location = "manage-recommendations"
	ManageAppointments    Location = "manage-appointments"
	About                 Location = "about"

	// AnyLocation registers a handler that applies on every page.
	AnyLocation Location = "*"
)

// Access is the class of sessions allowed to see a location.
type Access int

const (
	// Open locations are always reachable.
	Open Access = iota
	// PublicOnly locations are reachable only while logged out.
	PublicOnly
	// Protected locations are reachable only while logged in.
	Protected
)

func (a Access) String() string {
	switch a {
	case PublicOnly:
		return "public-only"
	case Protected:
		return "protected"
	default:
		return "open"
	}
}

var access = map[Location]Access{
	Home:                  Open,
	About:                 Open,
	Login:                 PublicOnly,
	Register:              PublicOnly,
	PatientDashboard:      Protected,
	DoctorDashboard:       Protected,
	NewPrediction:         Protected,
	Result:                Protected,
	PredictionHistory:     Protected,
	Recommendations:       Protected,
	Appointments:          Protected,
	ViewPredictions:       Protected,
	PatientHistoryViewer:  Protected,
	ManageRecommendations: Protected,
	ManageAppointments:    Protected,
}

// Locations returns every navigable location in a stable order.
func Locations() []Location {
	return []Location{
		Home, Login, Register, PatientDashboard, DoctorDashboard, NewPrediction,
		Result, PredictionHistory, Recommendations, Appointments, ViewPredictions,
		PatientHistoryViewer, ManageRecommendations, ManageAppointments, About,
	}
}

// AccessOf returns the access class of l. Unknown locations are open.
func AccessOf(l Location) Access {
	return access[l]
}

// Known reports whether l is in the closed set of locations.
func Known(l Location) bool {
	_, ok := access[l]
	return ok
}

// ParseLocation turns a fragment such as "#login" or "login" into a
// Location. Empty and unrecognized input resolve to Home.
func ParseLocation(raw string) Location {
	l := Location(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if !Known(l) {
		return Home
	}
	return l
}

// Dashboard is the landing page for an authenticated role.
func Dashboard(role session.Role) Location {
	if role == session.RoleDoctor {
		return DoctorDashboard
	}
	return PatientDashboard
}

// Allowed reports whether l satisfies its access class for sess.
func Allowed(l Location, sess session.Session) bool {
	switch AccessOf(l) {
	case PublicOnly:
		return !sess.Authenticated()
	case Protected:
		return sess.Authenticated()
	default:
		return true
	}
}
