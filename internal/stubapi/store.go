package stubapi

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cardiocare/cardiocare/internal/api"
)

const (
	rolePatient = "patient"
	roleDoctor  = "doctor"
)

type user struct {
	ID           int
	FullName     string
	Email        string
	PasswordHash []byte
	Role         string
	CreatedAt    time.Time

	// patient details
	Age    *int
	Gender *string
	Phone  *string

	// doctor details
	Specialization  *string
	ExperienceYears *int
	ClinicAddress   *string
}

type prediction struct {
	ID          int
	UserID      int
	Result      string
	Probability float64
	Timestamp   time.Time
	Inputs      map[string]interface{}
	DoctorNote  string
}

type appointment struct {
	ID        int
	PatientID int
	DoctorID  int
	At        time.Time
	Reason    string
	Status    string
	CreatedAt time.Time
}

// memStore holds every table of the stub backend. Ids are assigned from a
// single counter per table starting at 1.
type memStore struct {
	mu           sync.RWMutex
	users        map[int]*user
	byEmail      map[string]int
	predictions  map[int]*prediction
	appointments map[int]*appointment
	nextUser     int
	nextPred     int
	nextAppt     int
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[int]*user),
		byEmail:      make(map[string]int),
		predictions:  make(map[int]*prediction),
		appointments: make(map[int]*appointment),
	}
}

// addUser stores u and returns its id, or false when the email is taken.
func (m *memStore) counts() (users, predictions, appointments int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), len(m.predictions), len(m.appointments)
}

func (m *memStore) addUser(u *user) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, taken := m.byEmail[key]; taken {
		return 0, false
	}
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = u
	m.byEmail[key] = u.ID
	return u.ID, true
}

func (m *memStore) userByEmail(email string) (*user, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, false
	}
	return m.users[id], true
}

// userWithRole returns the user only if it has the given role.
func (m *memStore) userWithRole(id int, role string) (*user, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok || u.Role != role {
		return nil, false
	}
	return u, true
}

func (m *memStore) usersWithRole(role string) []*user {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*user
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) addPrediction(p *prediction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPred++
	p.ID = m.nextPred
	m.predictions[p.ID] = p
	return p.ID
}

// predictionsFor returns a user's predictions, newest first.
func (m *memStore) predictionsFor(userID int) []prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []prediction
	for _, p := range m.predictions {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sortNewestFirst(out)
	return out
}

func (m *memStore) prediction(id int) (prediction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.predictions[id]
	if !ok {
		return prediction{}, false
	}
	return *p, true
}

func (m *memStore) setNote(id int, note string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.predictions[id]
	if !ok {
		return false
	}
	p.DoctorNote = note
	return true
}

// notedPredictions returns every prediction carrying a doctor note, newest
// first.
func (m *memStore) notedPredictions() []prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []prediction
	for _, p := range m.predictions {
		if p.DoctorNote != "" {
			out = append(out, *p)
		}
	}
	sortNewestFirst(out)
	return out
}

func (m *memStore) addAppointment(a *appointment) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAppt++
	a.ID = m.nextAppt
	m.appointments[a.ID] = a
	return a.ID
}

// appointmentsWhere returns matching appointments ordered by time, ascending
// or descending.
func (m *memStore) appointmentsWhere(match func(*appointment) bool, asc bool) []appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []appointment
	for _, a := range m.appointments {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		if asc {
			return out[i].At.Before(out[j].At)
		}
		return out[i].At.After(out[j].At)
	})
	return out
}

func (m *memStore) appointment(id int) (appointment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return appointment{}, false
	}
	return *a, true
}

func (m *memStore) setStatus(id int, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appointments[id]; ok {
		a.Status = status
	}
}

func (m *memStore) userName(id int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u.FullName
	}
	return ""
}

func sortNewestFirst(ps []prediction) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Timestamp.Equal(ps[j].Timestamp) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].Timestamp.After(ps[j].Timestamp)
	})
}

func sortPatients(ps []api.Patient) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].FullName < ps[j].FullName })
}
