package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cardiocare/cardiocare/internal/platform/storage"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()

	first := NewStore(durable, storage.NewMemoryStore())
	if err := first.Save(ctx, "t1", RoleDoctor); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh store over the same durable medium is a page reload.
	second := NewStore(durable, storage.NewMemoryStore())
	second.Load(ctx)
	got := second.Current()
	if got.Token != "t1" || got.Role != RoleDoctor {
		t.Errorf("Load = %+v, want token t1 role doctor", got)
	}
	if !second.IsAuthenticated() {
		t.Error("expected authenticated after Load")
	}
}

func TestLoad_DegradesToLoggedOut(t *testing.T) {
	tests := []struct {
		name   string
		record string
		set    bool
	}{
		{"absent", "", false},
		{"not json", "{token:", true},
		{"empty token", `{"token":"","role":"patient"}`, true},
		{"unknown role", `{"token":"t1","role":"admin"}`, true},
		{"missing role", `{"token":"t1"}`, true},
		{"wrong types", `{"token":42,"role":true}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			durable := storage.NewMemoryStore()
			if tt.set {
				_ = durable.Set(ctx, DurableKey, tt.record)
			}
			s := NewStore(durable, storage.NewMemoryStore())
			s.Load(ctx)
			if s.IsAuthenticated() {
				t.Errorf("expected logged out, got %+v", s.Current())
			}
			if s.Current().Role != RoleNone {
				t.Errorf("role = %q, want none", s.Current().Role)
			}
		})
	}
}

type brokenStore struct{ storage.MemoryStore }

var errBroken = errors.New("quota exceeded")

func (b *brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (b *brokenStore) Set(context.Context, string, string) error         { return errBroken }
func (b *brokenStore) Delete(context.Context, string) error              { return errBroken }

func TestLoad_UnreadableStorage(t *testing.T) {
	s := NewStore(&brokenStore{}, storage.NewMemoryStore())
	s.Load(context.Background())
	if s.IsAuthenticated() {
		t.Error("expected logged out when durable storage fails")
	}
}

func TestSave_PersistFailureStillUpdatesMemory(t *testing.T) {
	s := NewStore(&brokenStore{}, storage.NewMemoryStore())
	err := s.Save(context.Background(), "t1", RolePatient)
	if !errors.Is(err, errBroken) {
		t.Fatalf("Save error = %v, want %v", err, errBroken)
	}
	if got := s.Current(); got.Token != "t1" || got.Role != RolePatient {
		t.Errorf("in-memory session = %+v, want t1/patient", got)
	}
}

func TestClear_WipesSessionAndEphemeralState(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	ephemeral := storage.NewMemoryStore()

	s := NewStore(durable, ephemeral)
	_ = s.Save(ctx, "t1", RoleDoctor)
	_ = ephemeral.Set(ctx, "pending_result", "true")
	_ = ephemeral.Set(ctx, "selected_patient_id", "7")

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("still authenticated after Clear")
	}
	if ephemeral.Len() != 0 {
		t.Errorf("ephemeral keys survived Clear: %d", ephemeral.Len())
	}

	// Fresh load after logout stays logged out.
	reloaded := NewStore(durable, storage.NewMemoryStore())
	reloaded.Load(ctx)
	if reloaded.IsAuthenticated() {
		t.Error("logged-in session came back after Clear + Load")
	}
}

func TestClear_ReportsStorageErrors(t *testing.T) {
	s := NewStore(&brokenStore{}, storage.NewMemoryStore())
	_ = s.Save(context.Background(), "t1", RolePatient)
	if err := s.Clear(context.Background()); !errors.Is(err, errBroken) {
		t.Errorf("Clear error = %v, want %v", err, errBroken)
	}
	if s.IsAuthenticated() {
		t.Error("in-memory session must be cleared even when storage fails")
	}
}

func TestObserverReceivesAffordances(t *testing.T) {
	ctx := context.Background()
	var seen []Affordances
	s := NewStore(storage.NewMemoryStore(), storage.NewMemoryStore(),
		WithObserver(func(a Affordances) { seen = append(seen, a) }))

	s.Load(ctx)
	_ = s.Save(ctx, "t1", RolePatient)
	_ = s.Clear(ctx)

	if len(seen) != 3 {
		t.Fatalf("observer calls = %d, want 3", len(seen))
	}
	loggedOut := Affordances{Home: true, About: true, Login: true, Register: true}
	loggedIn := Affordances{UserMenu: true}
	if seen[0] != loggedOut {
		t.Errorf("after Load: %+v, want %+v", seen[0], loggedOut)
	}
	if seen[1] != loggedIn {
		t.Errorf("after Save: %+v, want %+v", seen[1], loggedIn)
	}
	if seen[2] != loggedOut {
		t.Errorf("after Clear: %+v, want %+v", seen[2], loggedOut)
	}
}

func TestLoad_DropsExpiredJWT(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	token := createTestToken(t, jwt.RegisteredClaims{
		Subject:   "3",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	})

	durable := storage.NewMemoryStore()
	_ = NewStore(durable, storage.NewMemoryStore()).Save(ctx, token, RolePatient)

	s := NewStore(durable, storage.NewMemoryStore(), WithClock(func() time.Time { return now }))
	s.Load(ctx)
	if s.IsAuthenticated() {
		t.Error("expected expired token to be dropped")
	}
	if _, ok, _ := durable.Get(ctx, DurableKey); ok {
		t.Error("expected expired record to be removed")
	}
}

func TestClaims(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	token := createTestToken(t, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	s := NewStore(storage.NewMemoryStore(), storage.NewMemoryStore())
	if _, ok := s.Claims(); ok {
		t.Error("expected no claims while logged out")
	}

	_ = s.Save(ctx, token, RolePatient)
	claims, ok := s.Claims()
	if !ok {
		t.Fatal("expected claims for JWT token")
	}
	if claims.Subject != "42" {
		t.Errorf("subject = %q, want 42", claims.Subject)
	}

	_ = s.Save(ctx, "opaque-token", RolePatient)
	if _, ok := s.Claims(); ok {
		t.Error("expected no claims for opaque token")
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"patient": RolePatient, "doctor": RoleDoctor} {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Errorf("ParseRole(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseRole("nurse"); ok {
		t.Error("ParseRole(nurse) should fail")
	}
}
