package app

import (
	"sort"
	"sync"

	"github.com/cardiocare/cardiocare/internal/session"
)

// Panel names.
const (
	PanelResultContent      = "result-content"
	PanelResultList         = "result-list"
	PanelResultError        = "result-error"
	PanelHistory            = "history"
	PanelRecommendations    = "recommendations"
	PanelDoctorSelect       = "doctor-select"
	PanelAppointments       = "appointments"
	PanelDoctorAppointments = "doctor-appointments"
	PanelPatientList        = "patient-list"
	PanelPatientHistory     = "patient-history"
	PanelPredictionDetails  = "prediction-details"
	PanelNoteForm           = "note-form"
	PanelDoctorNotes        = "doctor-notes"
)

// Busy flags of submit buttons.
const (
	BusyLogin       = "login"
	BusyRegister    = "register"
	BusyPrediction  = "prediction"
	BusyAppointment = "appointment"
	BusyNote        = "note"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

// Row is one table row. ID addresses the row for in-place updates.
type Row struct {
	ID    string
	Cells []string
}

// Panel is a named region of a page. It shows either a message (loading,
// empty or failure text), a table, or free lines.
type Panel struct {
	Name    string
	Status  Status
	Title   string
	Message string
	Columns []string
	Rows    []Row
	Lines   []string
	Hidden  bool
	// Ref is an opaque reference the panel was built for, such as the
	// prediction a note form edits.
	Ref string
}

func (p Panel) clone() Panel {
	out := p
	out.Columns = append([]string(nil), p.Columns...)
	out.Lines = append([]string(nil), p.Lines...)
	out.Rows = make([]Row, len(p.Rows))
	for i, r := range p.Rows {
		out.Rows[i] = Row{ID: r.ID, Cells: append([]string(nil), r.Cells...)}
	}
	return out
}

// Screen is the mutable view model shared by navigation, refreshes and
// handlers. All methods are safe for concurrent use.
type Screen struct {
	mu          sync.RWMutex
	panels      map[string]*Panel
	busy        map[string]bool
	affordances session.Affordances
}

func NewScreen() *Screen {
	return &Screen{
		panels:      make(map[string]*Panel),
		busy:        make(map[string]bool),
		affordances: session.AffordancesFor(session.Session{}),
	}
}

// update runs fn on the named panel, creating it when missing.
func (s *Screen) update(name string, fn func(p *Panel)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[name]
	if !ok {
		p = &Panel{Name: name}
		s.panels[name] = p
	}
	fn(p)
}

func (s *Screen) Loading(name, msg string) {
	s.update(name, func(p *Panel) {
		*p = Panel{Name: name, Title: p.Title, Ref: p.Ref, Status: StatusLoading, Message: msg}
	})
}

// Message shows text in place of content, e.g. an empty-state line.
func (s *Screen) Message(name, msg string) {
	s.update(name, func(p *Panel) {
		*p = Panel{Name: name, Title: p.Title, Ref: p.Ref, Status: StatusReady, Message: msg}
	})
}

func (s *Screen) Failed(name, msg string) {
	s.update(name, func(p *Panel) {
		*p = Panel{Name: name, Title: p.Title, Ref: p.Ref, Status: StatusFailed, Message: msg}
	})
}

func (s *Screen) Table(name string, columns []string, rows []Row) {
	s.update(name, func(p *Panel) {
		*p = Panel{Name: name, Title: p.Title, Ref: p.Ref, Status: StatusReady, Columns: columns, Rows: rows}
	})
}

func (s *Screen) Lines(name string, lines ...string) {
	s.update(name, func(p *Panel) {
		*p = Panel{Name: name, Title: p.Title, Ref: p.Ref, Status: StatusReady, Lines: lines}
	})
}

func (s *Screen) SetTitle(name, title string) {
	s.update(name, func(p *Panel) { p.Title = title })
}

func (s *Screen) SetRef(name, ref string) {
	s.update(name, func(p *Panel) { p.Ref = ref })
}

func (s *Screen) SetHidden(name string, hidden bool) {
	s.update(name, func(p *Panel) { p.Hidden = hidden })
}

// Clear empties a panel's content and keeps its title.
func (s *Screen) Clear(name string) {
	s.update(name, func(p *Panel) {
		*p = Panel{Name: name, Title: p.Title, Hidden: p.Hidden}
	})
}

// UpdateRow edits the cells of the row with the given id in place. It
// reports whether the row was found.
func (s *Screen) UpdateRow(name, id string, fn func(cells []string)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[name]
	if !ok {
		return false
	}
	for i := range p.Rows {
		if p.Rows[i].ID == id {
			fn(p.Rows[i].Cells)
			return true
		}
	}
	return false
}

// Panel returns a copy of the named panel.
func (s *Screen) Panel(name string) (Panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[name]
	if !ok {
		return Panel{Name: name}, false
	}
	return p.clone(), true
}

// Reset drops every panel and busy flag.
func (s *Screen) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels = make(map[string]*Panel)
	s.busy = make(map[string]bool)
}

// TryBusy sets the busy flag and reports false if it was already set.
func (s *Screen) TryBusy(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[name] {
		return false
	}
	s.busy[name] = true
	return true
}

func (s *Screen) SetBusy(name string, busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[name] = busy
}

func (s *Screen) Busy(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy[name]
}

// BusyFlags lists the set busy flags in order.
func (s *Screen) BusyFlags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k, v := range s.busy {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Screen) SetAffordances(a session.Affordances) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affordances = a
}

func (s *Screen) Affordances() session.Affordances {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.affordances
}
