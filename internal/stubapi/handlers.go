package stubapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/cardiocare/cardiocare/internal/api"
)

const (
	listTimeLayout    = "2006-01-02 03:04 PM"
	detailTimeLayout  = "2006-01-02 15:04:05"
	noteDateLayout    = "2006-01-02"
	bookingTimeLayout = "2006-01-02T15:04"
)

func messageBody(msg string) api.Message { return api.Message{Message: msg} }
func errorBody(msg string) api.Message   { return api.Message{Error: msg} }
func msgBody(msg string) api.Message     { return api.Message{Msg: msg} }

// requireDoctor rejects callers whose account is not a doctor.
func (s *Server) requireDoctor(msg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := s.store.userWithRole(currentUserID(c), roleDoctor); !ok {
				return c.JSON(http.StatusForbidden, errorBody(msg))
			}
			return next(c)
		}
	}
}

type registerBody struct {
	FullName        *string `json:"full_name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	Role            *string `json:"role"`
	Age             *int    `json:"age"`
	Gender          *string `json:"gender"`
	Phone           *string `json:"phone"`
	Specialization  *string `json:"specialization"`
	ExperienceYears *int    `json:"experience_years"`
	ClinicAddress   *string `json:"clinic_address"`
}

func (s *Server) register(c echo.Context) error {
	var body registerBody
	if err := c.Bind(&body); err != nil || body.Email == nil || body.Password == nil || body.FullName == nil || body.Role == nil {
		return c.JSON(http.StatusBadRequest, messageBody("Missing required fields"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), s.bcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
	}

	u := &user{
		FullName:     *body.FullName,
		Email:        *body.Email,
		PasswordHash: hash,
		Role:         *body.Role,
		CreatedAt:    s.now(),
	}
	switch u.Role {
	case rolePatient:
		u.Age, u.Gender, u.Phone = body.Age, body.Gender, body.Phone
	case roleDoctor:
		u.Specialization, u.ExperienceYears, u.ClinicAddress = body.Specialization, body.ExperienceYears, body.ClinicAddress
	}

	if _, ok := s.store.addUser(u); !ok {
		return c.JSON(http.StatusConflict, messageBody("Email already registered"))
	}
	return c.JSON(http.StatusCreated, messageBody("User registered successfully"))
}

func (s *Server) login(c echo.Context) error {
	var body struct {
		Email    *string `json:"email"`
		Password *string `json:"password"`
	}
	if err := c.Bind(&body); err != nil || body.Email == nil || body.Password == nil {
		return c.JSON(http.StatusBadRequest, messageBody("Missing email or password"))
	}

	u, ok := s.store.userByEmail(*body.Email)
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(*body.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, messageBody("Invalid credentials"))
	}

	token, err := s.issueToken(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, api.LoginResponse{AccessToken: token, UserRole: u.Role})
}

var surveyFields = []string{
	"General_Health", "Checkup", "Exercise", "Smoking_History",
	"Alcohol_Consumption", "Fruit_Consumption", "Green_Vegetables_Consumption", "FriedPotato_Consumption",
	"BMI", "Sex", "Age_Category", "Diabetes", "Depression", "Arthritis", "Skin_Cancer", "Other_Cancer",
}

func (s *Server) predict(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil || len(strings.TrimSpace(string(raw))) == 0 {
		return c.JSON(http.StatusBadRequest, messageBody("No input data provided."))
	}

	var inputs map[string]interface{}
	if err := json.Unmarshal(raw, &inputs); err == nil && len(inputs) == 0 {
		return c.JSON(http.StatusBadRequest, messageBody("No input data provided."))
	}
	var survey api.PredictionInput
	invalid := json.Unmarshal(raw, &survey) != nil
	for _, f := range surveyFields {
		if _, ok := inputs[f]; !ok {
			invalid = true
			break
		}
	}
	if invalid {
		return c.JSON(http.StatusBadRequest, messageBody("Invalid input data. Please check the form and try again."))
	}

	p := score(survey)
	result := classify(p)
	s.store.addPrediction(&prediction{
		UserID:      currentUserID(c),
		Result:      result,
		Probability: p,
		Timestamp:   s.now(),
		Inputs:      inputs,
	})

	return c.JSON(http.StatusOK, api.PredictionResult{
		Prediction:      result,
		Probability:     formatProbability(p),
		Recommendations: recommendationsFor(inputs, result),
	})
}

func historyRows(ps []prediction) []api.HistoryEntry {
	rows := make([]api.HistoryEntry, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, api.HistoryEntry{
			ID:          p.ID,
			Result:      p.Result,
			Probability: formatProbability(p.Probability),
			Timestamp:   p.Timestamp.Format(listTimeLayout),
		})
	}
	return rows
}

func (s *Server) history(c echo.Context) error {
	return c.JSON(http.StatusOK, historyRows(s.store.predictionsFor(currentUserID(c))))
}

func (s *Server) recommendations(c echo.Context) error {
	ps := s.store.predictionsFor(currentUserID(c))
	out := make([]api.RecommendationGroup, 0, len(ps))
	for _, p := range ps {
		out = append(out, api.RecommendationGroup{
			Timestamp:       p.Timestamp.Format(listTimeLayout),
			Result:          p.Result,
			Recommendations: recommendationsFor(p.Inputs, p.Result),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) doctors(c echo.Context) error {
	docs := s.store.usersWithRole(roleDoctor)
	out := make([]api.Doctor, 0, len(docs))
	for _, d := range docs {
		spec := "General"
		if d.Specialization != nil && *d.Specialization != "" {
			spec = *d.Specialization
		}
		out = append(out, api.Doctor{ID: d.ID, Name: fmt.Sprintf("%s (%s)", d.FullName, spec)})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) bookAppointment(c echo.Context) error {
	var body struct {
		DoctorID interface{} `json:"doctor_id"`
		Datetime string      `json:"datetime"`
		Reason   string      `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Doctor and datetime are required"))
	}

	var doctorID int
	switch v := body.DoctorID.(type) {
	case float64:
		doctorID = int(v)
	case string:
		if v == "" {
			body.DoctorID = nil
			break
		}
		id, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("Invalid Doctor ID format"))
		}
		doctorID = id
	}
	if body.DoctorID == nil || doctorID == 0 || body.Datetime == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Doctor and datetime are required"))
	}

	if _, ok := s.store.userWithRole(doctorID, roleDoctor); !ok {
		return c.JSON(http.StatusNotFound, errorBody("Selected doctor not found"))
	}

	at, err := parseBookingTime(body.Datetime, s.now().Location())
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid datetime format. Use YYYY-MM-DDTHH:MM"))
	}
	if !at.After(s.now()) {
		return c.JSON(http.StatusBadRequest, errorBody("Appointment date must be in the future"))
	}

	s.store.addAppointment(&appointment{
		PatientID: currentUserID(c),
		DoctorID:  doctorID,
		At:        at,
		Reason:    body.Reason,
		Status:    api.StatusPending,
		CreatedAt: s.now(),
	})
	return c.JSON(http.StatusCreated, messageBody("Appointment requested successfully"))
}

func parseBookingTime(v string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{bookingTimeLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", v)
}

func (s *Server) patientAppointments(c echo.Context) error {
	uid := currentUserID(c)
	appts := s.store.appointmentsWhere(func(a *appointment) bool { return a.PatientID == uid }, false)
	out := make([]api.Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, api.Appointment{
			ID:         a.ID,
			DoctorName: s.store.userName(a.DoctorID),
			Datetime:   a.At.Format(listTimeLayout),
			Reason:     a.Reason,
			Status:     a.Status,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) doctorAppointments(c echo.Context) error {
	uid := currentUserID(c)
	if _, ok := s.store.userWithRole(uid, roleDoctor); !ok {
		return c.JSON(http.StatusForbidden, errorBody("Access forbidden: Not a doctor"))
	}
	appts := s.store.appointmentsWhere(func(a *appointment) bool { return a.DoctorID == uid }, true)
	out := make([]api.DoctorAppointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, api.DoctorAppointment{
			ID:          a.ID,
			PatientName: s.store.userName(a.PatientID),
			Datetime:    a.At.Format(listTimeLayout),
			Reason:      a.Reason,
			Status:      a.Status,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) updateAppointmentStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if body.Status != api.StatusApproved && body.Status != api.StatusRejected {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid status provided"))
	}

	a, ok := s.store.appointment(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Appointment not found"))
	}
	if a.DoctorID != currentUserID(c) {
		return c.JSON(http.StatusForbidden, errorBody("Unauthorized"))
	}

	s.store.setStatus(id, body.Status)
	return c.JSON(http.StatusOK, messageBody(fmt.Sprintf("Appointment %d updated to %s", id, body.Status)))
}

func (s *Server) patients(c echo.Context) error {
	ps := s.store.usersWithRole(rolePatient)
	out := make([]api.Patient, 0, len(ps))
	for _, p := range ps {
		out = append(out, api.Patient{ID: p.ID, FullName: p.FullName, Age: p.Age, Gender: p.Gender, Phone: p.Phone})
	}
	sortPatients(out)
	return c.JSON(http.StatusOK, out)
}

func (s *Server) patientHistory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}
	if _, ok := s.store.userWithRole(id, rolePatient); !ok {
		return c.JSON(http.StatusNotFound, errorBody("Patient not found"))
	}
	return c.JSON(http.StatusOK, historyRows(s.store.predictionsFor(id)))
}

func (s *Server) predictionDetails(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}
	p, ok := s.store.prediction(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Prediction not found"))
	}
	return c.JSON(http.StatusOK, api.PredictionDetails{
		ID:          p.ID,
		Timestamp:   p.Timestamp.Format(detailTimeLayout),
		Result:      p.Result,
		Probability: formatProbability(p.Probability),
		Inputs:      p.Inputs,
		DoctorNote:  p.DoctorNote,
	})
}

func (s *Server) saveNote(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if !s.store.setNote(id, body.Note) {
		return c.JSON(http.StatusNotFound, errorBody("Prediction not found"))
	}
	return c.JSON(http.StatusOK, messageBody("Note saved successfully"))
}

func (s *Server) doctorNotes(c echo.Context) error {
	ps := s.store.notedPredictions()
	out := make([]api.DoctorNote, 0, len(ps))
	for _, p := range ps {
		out = append(out, api.DoctorNote{
			PredictionID: p.ID,
			PatientID:    p.UserID,
			PatientName:  s.store.userName(p.UserID),
			Timestamp:    p.Timestamp.Format(noteDateLayout),
			Result:       p.Result,
			Note:         p.DoctorNote,
		})
	}
	return c.JSON(http.StatusOK, out)
}
