package main

import (
	"path/filepath"
	"testing"
)

func TestTabPath(t *testing.T) {
	tests := []struct {
		name    string
		tab     string
		want    string
		wantErr bool
	}{
		{"default", "default", filepath.Join("/state", "tab-default.json"), false},
		{"dashes and digits", "tab-2_b", filepath.Join("/state", "tab-tab-2_b.json"), false},
		{"empty", "", "", true},
		{"path traversal", "../session", "", true},
		{"space", "my tab", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tabPath("/state", tt.tab)
			if (err != nil) != tt.wantErr {
				t.Fatalf("tabPath(%q) error = %v, wantErr %v", tt.tab, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("tabPath(%q) = %q, want %q", tt.tab, got, tt.want)
			}
		})
	}
}

func TestRootCommands(t *testing.T) {
	want := map[string]bool{"shell": false, "exec": false, "whoami": false, "stub-backend": false, "migrate": false}
	for _, c := range []interface{ Name() string }{shellCmd(), execCmd(), whoamiCmd(), stubBackendCmd(), migrateCmd()} {
		if _, ok := want[c.Name()]; !ok {
			t.Errorf("unexpected command %q", c.Name())
		}
		want[c.Name()] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing command %q", name)
		}
	}
}
