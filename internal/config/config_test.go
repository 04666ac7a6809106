package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "STORE_DRIVER", "SESSION_BACKEND", "CHAT_PLATFORM", "REDIS_DB",
		"JIRA_TIMEOUT_SECONDS", "JIRA_CONNECT_TIMEOUT_SECONDS", "TRACKER_LABELS",
		"JIRA_CF_INCIDENT_TYPE", "JIRA_CF_INCIDENT_TYPE_KIND", "JIRA_FIELDS_FILE",
		"JIRA_ISSUE_TYPE_MAIN", "JIRA_OPT_YES", "JIRA_OPT_NO", "SESSION_KEY_PREFIX")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, "postgres")
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("Session.Backend = %q, want %q", cfg.Session.Backend, "memory")
	}
	if cfg.Session.KeyPrefix != "intake:session:" {
		t.Errorf("Session.KeyPrefix = %q", cfg.Session.KeyPrefix)
	}
	if cfg.Chat.Platform != "telegram" {
		t.Errorf("Chat.Platform = %q, want %q", cfg.Chat.Platform, "telegram")
	}
	if cfg.Tracker.TimeoutSeconds != 30 || cfg.Tracker.ConnectTimeoutSeconds != 15 {
		t.Errorf("tracker timeouts = %d/%d, want 30/15", cfg.Tracker.TimeoutSeconds, cfg.Tracker.ConnectTimeoutSeconds)
	}
	if len(cfg.Tracker.Labels) != 2 || cfg.Tracker.Labels[0] != "ptb" || cfg.Tracker.Labels[1] != "auto-ticket" {
		t.Errorf("Labels = %v", cfg.Tracker.Labels)
	}
	if cfg.Tracker.IssueTypeName != "Task" {
		t.Errorf("IssueTypeName = %q, want Task", cfg.Tracker.IssueTypeName)
	}
	if cfg.Tracker.YesLabel != "Да" || cfg.Tracker.NoLabel != "Нет" {
		t.Errorf("yes/no = %q/%q", cfg.Tracker.YesLabel, cfg.Tracker.NoLabel)
	}
	f := cfg.Tracker.Fields.IncidentType
	if f.Enabled() {
		t.Errorf("IncidentType enabled without id: %+v", f)
	}
	if f.Kind != KindSelect {
		t.Errorf("IncidentType.Kind = %q, want %q", f.Kind, KindSelect)
	}
	if got := cfg.Tracker.OptionLabel("KIA_CEED"); got != "Kia Ceed" {
		t.Errorf("OptionLabel(KIA_CEED) = %q", got)
	}
	if got := cfg.Tracker.OptionLabel("OTHER"); got != "OTHER" {
		t.Errorf("OptionLabel(OTHER) = %q", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t, "JIRA_FIELDS_FILE", "REDIS_DB")
	t.Setenv("JIRA_BASE_URL", "https://jira.example.com/")
	t.Setenv("JIRA_EMAIL", "bot@example.com")
	t.Setenv("JIRA_API_TOKEN", "secret")
	t.Setenv("JIRA_CF_BRAND", "customfield_10010")
	t.Setenv("JIRA_CF_BRAND_KIND", "MultiSelect")
	t.Setenv("TRACKER_LABELS", "ops, roadside ,")
	t.Setenv("CHAT_PLATFORM", "Discord")
	t.Setenv("STORE_DRIVER", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracker.BaseURL != "https://jira.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.Tracker.BaseURL)
	}
	if !cfg.Tracker.Configured() {
		t.Error("Configured() = false, want true")
	}
	brand := cfg.Tracker.Fields.Brand
	if brand.ID != "customfield_10010" || brand.Kind != KindMultiSelect {
		t.Errorf("Brand = %+v", brand)
	}
	if len(cfg.Tracker.Labels) != 2 || cfg.Tracker.Labels[1] != "roadside" {
		t.Errorf("Labels = %v", cfg.Tracker.Labels)
	}
	if cfg.Chat.Platform != "discord" {
		t.Errorf("Chat.Platform = %q, want discord", cfg.Chat.Platform)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestLoadRejectsUnknownPlatform(t *testing.T) {
	clearEnv(t, "JIRA_FIELDS_FILE", "REDIS_DB")
	t.Setenv("CHAT_PLATFORM", "irc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestLoadRejectsBadFieldKind(t *testing.T) {
	clearEnv(t, "JIRA_FIELDS_FILE", "REDIS_DB", "CHAT_PLATFORM")
	t.Setenv("JIRA_CF_NOTES_KIND", "markdown")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown field kind")
	}
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric REDIS_DB")
	}
}

func TestFieldMapFileOverridesEnv(t *testing.T) {
	clearEnv(t, "REDIS_DB", "CHAT_PLATFORM", "JIRA_CF_NOTES_KIND")
	t.Setenv("JIRA_CF_LOCATION", "customfield_1")
	t.Setenv("JIRA_CF_NOTES", "customfield_2")

	path := filepath.Join(t.TempDir(), "fields.yaml")
	content := `
location:
  id: customfield_99
  kind: adf
notes:
  id: customfield_100
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("JIRA_FIELDS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Tracker.Fields.Location; got.ID != "customfield_99" || got.Kind != KindADF {
		t.Errorf("Location = %+v", got)
	}
	if got := cfg.Tracker.Fields.Notes; got.ID != "customfield_100" || got.Kind != KindText {
		t.Errorf("Notes = %+v, want kind inherited from env default", got)
	}
}

func TestFieldMapFileMissing(t *testing.T) {
	clearEnv(t, "REDIS_DB")
	t.Setenv("JIRA_FIELDS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing field map file")
	}
}

func TestParseFieldMapInvalid(t *testing.T) {
	if _, err := ParseFieldMap([]byte("location: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDispatchConfigured(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"0", false},
		{"-100123", true},
	}
	for _, tt := range tests {
		if got := (DispatchConfig{ChatID: tt.id}).Configured(); got != tt.want {
			t.Errorf("Configured(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
