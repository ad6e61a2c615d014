// Package api is the HTTP client for the CardioCare backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Error is a failed backend call. Message is what the user should see: the
// server's own message when it sent one, otherwise a per-operation fallback.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, 0 when there is none.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// TokenSource returns the bearer token for authenticated calls.
type TokenSource func() string

type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	logger  zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, token TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		token:   token,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type call struct {
	op       string
	method   string
	path     string
	body     interface{}
	out      interface{}
	auth     bool
	fallback string
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return &Error{Op: cl.op, Message: cl.fallback, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return &Error{Op: cl.op, Message: cl.fallback, Err: err}
	}
	rid := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", rid)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.auth && c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", cl.op).Str("request_id", rid).Msg("request failed")
		return &Error{Op: cl.op, Message: cl.fallback, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: cl.op, Status: resp.StatusCode, Message: cl.fallback, Err: err}
	}

	c.logger.Debug().
		Str("op", cl.op).
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", rid).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := cl.fallback
		var m Message
		if json.Unmarshal(raw, &m) == nil && m.Text() != "" {
			msg = m.Text()
		}
		return &Error{Op: cl.op, Status: resp.StatusCode, Message: msg}
	}

	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return &Error{Op: cl.op, Status: resp.StatusCode, Message: "Invalid response from server", Err: err}
	}
	return nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var m Message
	err := c.do(ctx, call{op: "register", method: http.MethodPost, path: "/register", body: req, out: &m, fallback: "Registration failed"})
	return m.Text(), err
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/login", body: LoginRequest{Email: email, Password: password}, out: &out, fallback: "Login failed"})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Predict(ctx context.Context, in PredictionInput) (*PredictionResult, error) {
	var out PredictionResult
	if err := c.do(ctx, call{op: "predict", method: http.MethodPost, path: "/predict", body: in, out: &out, auth: true, fallback: "Prediction failed"}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.do(ctx, call{op: "history", method: http.MethodGet, path: "/history", out: &out, auth: true, fallback: "Failed to fetch history"})
	return out, err
}

func (c *Client) Recommendations(ctx context.Context) ([]RecommendationGroup, error) {
	var out []RecommendationGroup
	err := c.do(ctx, call{op: "recommendations", method: http.MethodGet, path: "/recommendations", out: &out, auth: true, fallback: "Failed to fetch recommendations"})
	return out, err
}

func (c *Client) Doctors(ctx context.Context) ([]Doctor, error) {
	var out []Doctor
	err := c.do(ctx, call{op: "doctors", method: http.MethodGet, path: "/doctors", out: &out, auth: true, fallback: "Failed to fetch doctors"})
	return out, err
}

func (c *Client) BookAppointment(ctx context.Context, req BookAppointmentRequest) (string, error) {
	var m Message
	err := c.do(ctx, call{op: "book_appointment", method: http.MethodPost, path: "/appointments", body: req, out: &m, auth: true, fallback: "Failed to book appointment"})
	return m.Text(), err
}

func (c *Client) Appointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	err := c.do(ctx, call{op: "appointments", method: http.MethodGet, path: "/appointments", out: &out, auth: true, fallback: "Failed to fetch appointments"})
	return out, err
}

func (c *Client) DoctorAppointments(ctx context.Context) ([]DoctorAppointment, error) {
	var out []DoctorAppointment
	err := c.do(ctx, call{op: "doctor_appointments", method: http.MethodGet, path: "/doctor/appointments", out: &out, auth: true, fallback: "Failed to fetch appointments"})
	return out, err
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id int, status string) (string, error) {
	var m Message
	err := c.do(ctx, call{op: "update_appointment", method: http.MethodPut, path: fmt.Sprintf("/appointments/%d", id), body: map[string]string{"status": status}, out: &m, auth: true, fallback: "Failed to update status"})
	return m.Text(), err
}

func (c *Client) DoctorPatients(ctx context.Context) ([]Patient, error) {
	var out []Patient
	err := c.do(ctx, call{op: "doctor_patients", method: http.MethodGet, path: "/doctor/patients", out: &out, auth: true, fallback: "Failed to fetch patients"})
	return out, err
}

func (c *Client) PatientHistory(ctx context.Context, patientID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.do(ctx, call{op: "patient_history", method: http.MethodGet, path: "/doctor/patient_history/" + url.PathEscape(patientID), out: &out, auth: true, fallback: "Failed to fetch history"})
	return out, err
}

func (c *Client) PredictionDetails(ctx context.Context, predictionID string) (*PredictionDetails, error) {
	var out PredictionDetails
	if err := c.do(ctx, call{op: "prediction_details", method: http.MethodGet, path: "/doctor/prediction_details/" + url.PathEscape(predictionID), out: &out, auth: true, fallback: "Failed to fetch details"}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SavePredictionNote(ctx context.Context, predictionID, note string) (string, error) {
	var m Message
	err := c.do(ctx, call{op: "save_note", method: http.MethodPut, path: "/doctor/prediction_note/" + url.PathEscape(predictionID), body: map[string]string{"note": note}, out: &m, auth: true, fallback: "Failed to save note"})
	return m.Text(), err
}

func (c *Client) DoctorNotes(ctx context.Context) ([]DoctorNote, error) {
	var out []DoctorNote
	err := c.do(ctx, call{op: "doctor_notes", method: http.MethodGet, path: "/doctor/recommendations", out: &out, auth: true, fallback: "Failed to fetch notes"})
	return out, err
}
