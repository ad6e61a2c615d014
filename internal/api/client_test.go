package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", func() string { return token })
}

func TestClient_Login_NoBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no Authorization header on login, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		var body LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Email != "a@b.c" || body.Password != "pw" {
			t.Errorf("unexpected body %+v", body)
		}
		json.NewEncoder(w).Encode(LoginResponse{AccessToken: "tok", UserRole: "doctor"})
	}, "ignored")

	resp, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccessToken != "tok" || resp.UserRole != "doctor" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClient_BearerOnProtectedCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Write([]byte(`[{"id":1,"result":"Low Risk","probability":"12.50%","timestamp":"2024-01-01 10:00:00"}]`))
	}, "secret")

	rows, err := c.History(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Result != "Low Risk" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", 400, `{"message":"Missing fields"}`, "Missing fields"},
		{"error field", 500, `{"error":"boom"}`, "boom"},
		{"msg field", 401, `{"msg":"Token has expired"}`, "Token has expired"},
		{"message wins over error", 400, `{"message":"first","error":"second"}`, "first"},
		{"empty json", 500, `{}`, "Failed to fetch history"},
		{"non json", 502, `<html>bad gateway</html>`, "Failed to fetch history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, "tok")

			_, err := c.History(context.Background())
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.Message != tt.want {
				t.Errorf("expected message %q, got %q", tt.want, apiErr.Message)
			}
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if StatusOf(err) != tt.status {
				t.Errorf("StatusOf() = %d, want %d", StatusOf(err), tt.status)
			}
		})
	}
}

func TestClient_NetworkFailureUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, nil)
	_, err := c.Doctors(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Failed to fetch doctors" {
		t.Errorf("expected fallback message, got %q", err.Error())
	}
	if StatusOf(err) != 0 {
		t.Errorf("expected status 0, got %d", StatusOf(err))
	}
}

func TestClient_PredictSendsSurvey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(raw) != 16 {
			t.Errorf("expected 16 survey fields, got %d", len(raw))
		}
		if raw["BMI"] != 24.5 {
			t.Errorf("expected BMI 24.5, got %v", raw["BMI"])
		}
		if raw["FriedPotato_Consumption"] != float64(3) {
			t.Errorf("expected FriedPotato_Consumption 3, got %v", raw["FriedPotato_Consumption"])
		}
		json.NewEncoder(w).Encode(PredictionResult{Prediction: "Low Risk", Probability: "10.00%", Recommendations: []string{"Keep going"}})
	}, "tok")

	res, err := c.Predict(context.Background(), PredictionInput{BMI: 24.5, FriedPotatoConsumption: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Prediction != "Low Risk" || len(res.Recommendations) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestClient_UpdateAppointmentStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/appointments/7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != StatusApproved {
			t.Errorf("expected status Approved, got %q", body["status"])
		}
		w.Write([]byte(`{"message":"Appointment Approved successfully"}`))
	}, "tok")

	msg, err := c.UpdateAppointmentStatus(context.Background(), 7, StatusApproved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Appointment Approved successfully" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestClient_InvalidSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}, "tok")

	_, err := c.Recommendations(context.Background())
	if err == nil || err.Error() != "Invalid response from server" {
		t.Errorf("expected invalid response error, got %v", err)
	}
}

func TestMessage_Text(t *testing.T) {
	if (Message{Msg: "x"}).Text() != "x" {
		t.Error("expected msg fallback")
	}
	if (Message{}).Text() != "" {
		t.Error("expected empty text")
	}
}

func TestClient_EscapesPathIDs(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		want string
	}{
		{"patient history", func(c *Client) error {
			_, err := c.PatientHistory(context.Background(), "../../predict")
			return err
		}, "/api/doctor/patient_history/..%2F..%2Fpredict"},
		{"prediction details", func(c *Client) error {
			_, err := c.PredictionDetails(context.Background(), "1/2")
			return err
		}, "/api/doctor/prediction_details/1%2F2"},
		{"prediction note", func(c *Client) error {
			_, err := c.SavePredictionNote(context.Background(), "5?x=1", "n")
			return err
		}, "/api/doctor/prediction_note/5%3Fx=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.EscapedPath()
				w.Write([]byte(`{}`))
			}, "tok")
			tt.call(c)
			if got != tt.want {
				t.Errorf("escaped path = %q, want %q", got, tt.want)
			}
		})
	}
}
