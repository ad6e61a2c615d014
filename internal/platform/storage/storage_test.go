package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// Shared test-suite that can run against ANY Store implementation
// ---------------------------------------------------------------------------

func runStoreTests(t *testing.T, name string, newStore func(t *testing.T) Store) {
	t.Run(name+"/SetAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if err := store.Set(ctx, "session", `{"token":"t1"}`); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, ok, err := store.Get(ctx, "session")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok || got != `{"token":"t1"}` {
			t.Errorf("Get = %q, %v; want stored value", got, ok)
		}
	})

	t.Run(name+"/GetMissing", func(t *testing.T) {
		store := newStore(t)
		got, ok, err := store.Get(context.Background(), "nope")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok || got != "" {
			t.Errorf("Get missing = %q, %v; want empty, false", got, ok)
		}
	})

	t.Run(name+"/Overwrite", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.Set(ctx, "k", "v1")
		_ = store.Set(ctx, "k", "v2")
		got, _, _ := store.Get(ctx, "k")
		if got != "v2" {
			t.Errorf("Get = %q, want v2", got)
		}
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.Set(ctx, "k", "v")
		if err := store.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, _ := store.Get(ctx, "k"); ok {
			t.Error("expected key to be gone after Delete")
		}
		if err := store.Delete(ctx, "never-set"); err != nil {
			t.Errorf("Delete of missing key: %v", err)
		}
	})

	t.Run(name+"/Clear", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.Set(ctx, "a", "1")
		_ = store.Set(ctx, "b", "2")
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		for _, k := range []string{"a", "b"} {
			if _, ok, _ := store.Get(ctx, k); ok {
				t.Errorf("key %q survived Clear", k)
			}
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, "Memory", func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	runStoreTests(t, "File", func(t *testing.T) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "state", "durable.json"))
	})
}

func TestWriteThroughOverMemory(t *testing.T) {
	runStoreTests(t, "WriteThrough", func(t *testing.T) Store {
		return NewWriteThrough(NewMemoryStore())
	})
}

func TestPGStoreWithMock(t *testing.T) {
	runStoreTests(t, "PG", func(t *testing.T) Store {
		return NewPGStore(newMockPGConn(), "default")
	})
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.json")
	ctx := context.Background()

	if err := NewFileStore(path).Set(ctx, "session", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := NewFileStore(path).Get(ctx, "session")
	if err != nil || !ok || got != "x" {
		t.Errorf("second instance Get = %q, %v, %v", got, ok, err)
	}
}

func TestFileStore_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err := NewFileStore(path).Get(context.Background(), "session")
	if err == nil {
		t.Fatal("expected decode error for malformed file")
	}
}

// failingStore fails every write and read.
type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }
func (f failingStore) Delete(context.Context, string) error              { return f.err }
func (f failingStore) Clear(context.Context) error                       { return f.err }

func TestWriteThrough_DegradesToMemory(t *testing.T) {
	boom := errors.New("disk full")
	w := NewWriteThrough(failingStore{err: boom})
	ctx := context.Background()

	err := w.Set(ctx, "session", "v")
	if !errors.Is(err, boom) {
		t.Fatalf("Set error = %v, want wrapped %v", err, boom)
	}
	got, ok, err := w.Get(ctx, "session")
	if err != nil || !ok || got != "v" {
		t.Errorf("Get after failed persist = %q, %v, %v; want in-memory value", got, ok, err)
	}

	if err := w.Delete(ctx, "session"); !errors.Is(err, boom) {
		t.Errorf("Delete error = %v, want wrapped %v", err, boom)
	}
	if _, ok, _ := w.Get(ctx, "session"); ok {
		t.Error("expected tombstone to hide deleted key")
	}
}

func TestWriteThrough_ClearHidesBackingValues(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()
	_ = backing.Set(ctx, "pending_result", "true")

	w := NewWriteThrough(failingClear{backing})
	if err := w.Clear(ctx); err == nil {
		t.Fatal("expected clear error from backing store")
	}
	if _, ok, _ := w.Get(ctx, "pending_result"); ok {
		t.Error("value from backing store visible after Clear")
	}
}

type failingClear struct{ *MemoryStore }

func (failingClear) Clear(context.Context) error { return errors.New("read-only") }

func TestWriteThrough_ReadsBackingOnce(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()
	_ = backing.Set(ctx, "k", "v")

	w := NewWriteThrough(backing)
	if got, ok, _ := w.Get(ctx, "k"); !ok || got != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	_ = backing.Delete(ctx, "k")
	if got, ok, _ := w.Get(ctx, "k"); !ok || got != "v" {
		t.Errorf("expected cached value after backing change, got %q, %v", got, ok)
	}
}

// ---------------------------------------------------------------------------
// mock pgConn
// ---------------------------------------------------------------------------

type mockPGConn struct {
	mu   sync.Mutex
	rows map[string]map[string]string
}

func newMockPGConn() *mockPGConn {
	return &mockPGConn{rows: make(map[string]map[string]string)}
}

type mockRow struct {
	value string
	err   error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

func (m *mockPGConn) QueryRow(_ context.Context, sql string, args ...any) pgRow {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !strings.HasPrefix(strings.TrimSpace(sql), "SELECT value") {
		return &mockRow{err: errors.New("unexpected query")}
	}
	ns, key := args[0].(string), args[1].(string)
	v, ok := m.rows[ns][key]
	if !ok {
		return &mockRow{err: errors.New("no rows in result set")}
	}
	return &mockRow{value: v}
}

func (m *mockPGConn) Exec(_ context.Context, sql string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sql = strings.TrimSpace(sql)
	switch {
	case strings.HasPrefix(sql, "INSERT INTO client_state"):
		ns, key, value := args[0].(string), args[1].(string), args[2].(string)
		if m.rows[ns] == nil {
			m.rows[ns] = make(map[string]string)
		}
		m.rows[ns][key] = value
	case strings.HasPrefix(sql, "DELETE FROM client_state WHERE namespace = $1 AND key = $2"):
		delete(m.rows[args[0].(string)], args[1].(string))
	case strings.HasPrefix(sql, "DELETE FROM client_state WHERE namespace = $1"):
		delete(m.rows, args[0].(string))
	case strings.HasPrefix(sql, "CREATE TABLE"):
	default:
		return errors.New("unexpected statement: " + sql)
	}
	return nil
}

func TestPGStore_NamespacesAreIsolated(t *testing.T) {
	conn := newMockPGConn()
	ctx := context.Background()
	a := NewPGStore(conn, "alice")
	b := NewPGStore(conn, "bob")

	_ = a.Set(ctx, "session", "a")
	_ = b.Set(ctx, "session", "b")
	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "session"); ok {
		t.Error("alice session survived Clear")
	}
	if got, ok, _ := b.Get(ctx, "session"); !ok || got != "b" {
		t.Errorf("bob session = %q, %v; want untouched", got, ok)
	}
}

func TestPGStore_Migrate(t *testing.T) {
	if err := NewPGStore(newMockPGConn(), "default").Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestPGStore_GetPropagatesErrors(t *testing.T) {
	store := NewPGStore(errConn{}, "default")
	if _, _, err := store.Get(context.Background(), "session"); err == nil {
		t.Fatal("expected error")
	}
}

type errConn struct{}

func (errConn) QueryRow(context.Context, string, ...any) pgRow {
	return &mockRow{err: errors.New("connection refused")}
}
func (errConn) Exec(context.Context, string, ...any) error { return errors.New("connection refused") }
