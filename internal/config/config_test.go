package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		DefaultProfile: "work",
		Profiles: map[string]Profile{
			"work": {BaseURL: "https://chat.example.com/api", Token: "t0k", Username: "alice", PageSize: 10},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if got := loaded.Profiles["work"]; got.Token != "t0k" || got.PageSize != 10 {
		t.Errorf("profile = %+v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
	dir, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if perm := dir.Mode().Perm(); perm != 0700 {
		t.Errorf("dir permission = %o, want 0700", perm)
	}
}

func TestLoadHandWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `default_profile = "main"

[profiles.main]
base_url = "http://localhost:8080"
ws_url = "ws://localhost:8080/ws"
token = "secret"
username = "alice"
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p, err := cfg.Profile("main")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.PageSize != DefaultPageSize || p.ImageMaxDimension != DefaultImageMaxDimension {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", p.LogLevel)
	}
}

func TestProfileErrors(t *testing.T) {
	cfg := &Config{Profiles: map[string]Profile{
		"relative": {BaseURL: "/api", Username: "a"},
		"badws":    {BaseURL: "http://x", WSURL: "http://x/ws", Username: "a"},
		"anon":     {BaseURL: "http://x"},
	}}
	tests := []struct {
		name    string
		wantErr string
	}{
		{"missing", "not found"},
		{"relative", "absolute URL"},
		{"badws", "ws or wss"},
		{"anon", "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cfg.Profile(tt.name)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Profile(%q) error = %v, want containing %q", tt.name, err, tt.wantErr)
			}
		})
	}
}
