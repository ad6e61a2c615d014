package api

// RegisterRequest is the sign-up form. Patient and doctor extras are sent
// only when set.
type RegisterRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	Age             *int   `json:"age,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Specialization  string `json:"specialization,omitempty"`
	ExperienceYears *int   `json:"experience_years,omitempty"`
	ClinicAddress   string `json:"clinic_address,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserRole    string `json:"userRole"`
}

// PredictionInput is the health survey submitted for a risk prediction.
type PredictionInput struct {
	GeneralHealth              string  `json:"General_Health"`
	Checkup                    string  `json:"Checkup"`
	Exercise                   string  `json:"Exercise"`
	SmokingHistory             string  `json:"Smoking_History"`
	AlcoholConsumption         int     `json:"Alcohol_Consumption"`
	FruitConsumption           int     `json:"Fruit_Consumption"`
	GreenVegetablesConsumption int     `json:"Green_Vegetables_Consumption"`
	FriedPotatoConsumption     int     `json:"FriedPotato_Consumption"`
	BMI                        float64 `json:"BMI"`
	Sex                        string  `json:"Sex"`
	AgeCategory                string  `json:"Age_Category"`
	Diabetes                   string  `json:"Diabetes"`
	Depression                 string  `json:"Depression"`
	Arthritis                  string  `json:"Arthritis"`
	SkinCancer                 string  `json:"Skin_Cancer"`
	OtherCancer                string  `json:"Other_Cancer"`
}

type PredictionResult struct {
	Prediction      string   `json:"prediction"`
	Probability     string   `json:"probability"`
	Recommendations []string `json:"recommendations"`
}

type HistoryEntry struct {
	ID          int    `json:"id"`
	Result      string `json:"result"`
	Probability string `json:"probability"`
	Timestamp   string `json:"timestamp"`
}

type RecommendationGroup struct {
	Timestamp       string   `json:"timestamp"`
	Result          string   `json:"result"`
	Recommendations []string `json:"recommendations"`
}

type Doctor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type BookAppointmentRequest struct {
	DoctorID int    `json:"doctor_id"`
	Datetime string `json:"datetime"`
	Reason   string `json:"reason"`
}

type Appointment struct {
	ID         int    `json:"id"`
	DoctorName string `json:"doctor_name"`
	Datetime   string `json:"datetime"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
}

type DoctorAppointment struct {
	ID          int    `json:"id"`
	PatientName string `json:"patient_name"`
	Datetime    string `json:"datetime"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
}

// Appointment statuses a doctor may set.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

type Patient struct {
	ID       int     `json:"id"`
	FullName string  `json:"full_name"`
	Age      *int    `json:"age"`
	Gender   *string `json:"gender"`
	Phone    *string `json:"phone"`
}

type PredictionDetails struct {
	ID          int                    `json:"id"`
	Timestamp   string                 `json:"timestamp"`
	Result      string                 `json:"result"`
	Probability string                 `json:"probability"`
	Inputs      map[string]interface{} `json:"inputs"`
	DoctorNote  string                 `json:"doctor_note"`
}

type DoctorNote struct {
	PredictionID int    `json:"prediction_id"`
	PatientID    int    `json:"patient_id"`
	PatientName  string `json:"patient_name"`
	Timestamp    string `json:"timestamp"`
	Result       string `json:"result"`
	Note         string `json:"note"`
}

// Message is the body of write endpoints and of every error response.
type Message struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Msg     string `json:"msg,omitempty"`
}

// Text returns the first non-empty message field.
func (m Message) Text() string {
	switch {
	case m.Message != "":
		return m.Message
	case m.Error != "":
		return m.Error
	default:
		return m.Msg
	}
}
