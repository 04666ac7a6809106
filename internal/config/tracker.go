package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FieldKind controls how a value is shaped for a tracker custom field.
type FieldKind string

const (
	KindText        FieldKind = "text"
	KindSelect      FieldKind = "select"
	KindMultiSelect FieldKind = "multiselect"
	KindADF         FieldKind = "adf"
	KindDate        FieldKind = "date"
	KindTime        FieldKind = "time"
	KindDateTime    FieldKind = "datetime"
)

// FieldMapping binds one logical value to a tracker custom field id.
// An empty ID leaves the field out of payloads.
type FieldMapping struct {
	ID   string    `yaml:"id"`
	Kind FieldKind `yaml:"kind" validate:"omitempty,oneof=text select multiselect adf date time datetime"`
}

// Enabled reports whether the field has a tracker id.
func (f FieldMapping) Enabled() bool { return f.ID != "" }

// TrackerFields is the full custom-field mapping.
type TrackerFields struct {
	IncidentType    FieldMapping `yaml:"incident_type"`
	Brand           FieldMapping `yaml:"brand"`
	VehiclePlate    FieldMapping `yaml:"vehicle_plate"`
	TrailerPlate    FieldMapping `yaml:"trailer_plate"`
	Location        FieldMapping `yaml:"location"`
	ProblemDesc     FieldMapping `yaml:"problem_desc"`
	Notes           FieldMapping `yaml:"notes"`
	IncidentDate    FieldMapping `yaml:"incident_date"`
	IncidentTime    FieldMapping `yaml:"incident_time"`
	RequireMechanic FieldMapping `yaml:"flag_require_mechanic"`
	ProblemSolved   FieldMapping `yaml:"flag_problem_solved"`
	RequireRecovery FieldMapping `yaml:"flag_require_recovery"`
}

// TrackerConfig is the immutable issue tracker setup, read once at startup.
type TrackerConfig struct {
	BaseURL               string
	Email                 string
	APIToken              string
	ProjectKey            string
	IssueTypeID           string
	IssueTypeName         string
	SubtaskTypeID         string
	SubtaskTypeName       string
	LinkType              string
	Labels                []string
	TimeoutSeconds        int
	ConnectTimeoutSeconds int
	YesLabel              string
	NoLabel               string
	// OptionLabels maps choice codes to tracker option values.
	OptionLabels map[string]string
	Fields       TrackerFields
}

// Configured reports whether credentials and the base URL are present.
func (t TrackerConfig) Configured() bool {
	return t.BaseURL != "" && t.Email != "" && t.APIToken != ""
}

// Timeout is the overall request bound.
func (t TrackerConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ConnectTimeout bounds dialing the tracker.
func (t TrackerConfig) ConnectTimeout() time.Duration {
	return time.Duration(t.ConnectTimeoutSeconds) * time.Second
}

// OptionLabel returns the tracker option value for a choice code.
func (t TrackerConfig) OptionLabel(code string) string {
	if label, ok := t.OptionLabels[code]; ok {
		return label
	}
	return code
}

func loadTracker() (TrackerConfig, error) {
	cfg := TrackerConfig{
		BaseURL:               strings.TrimRight(os.Getenv("JIRA_BASE_URL"), "/"),
		Email:                 os.Getenv("JIRA_EMAIL"),
		APIToken:              os.Getenv("JIRA_API_TOKEN"),
		ProjectKey:            os.Getenv("JIRA_PROJECT_KEY"),
		IssueTypeID:           os.Getenv("JIRA_ISSUE_TYPE_MAIN_ID"),
		IssueTypeName:         getEnv("JIRA_ISSUE_TYPE_MAIN", "Task"),
		SubtaskTypeID:         os.Getenv("JIRA_SUBTASK_TYPE_ID"),
		SubtaskTypeName:       getEnv("JIRA_SUBTASK_TYPE", "Sub-task"),
		LinkType:              os.Getenv("JIRA_LINK_TYPE"),
		Labels:                getEnvAsList("TRACKER_LABELS", []string{"ptb", "auto-ticket"}),
		TimeoutSeconds:        getEnvAsInt("JIRA_TIMEOUT_SECONDS", 30),
		ConnectTimeoutSeconds: getEnvAsInt("JIRA_CONNECT_TIMEOUT_SECONDS", 15),
		YesLabel:              getEnv("JIRA_OPT_YES", "Да"),
		NoLabel:               getEnv("JIRA_OPT_NO", "Нет"),
		OptionLabels: map[string]string{
			"DTP":      getEnv("JIRA_OPT_INCIDENT_TYPE__DTP", "ДТП"),
			"BREAK":    getEnv("JIRA_OPT_INCIDENT_TYPE__BREAK", "Поломка"),
			"KIA_CEED": getEnv("JIRA_OPT_BRAND__KIA_CEED", "Kia Ceed"),
			"SITRAK":   getEnv("JIRA_OPT_BRAND__SITRAK", "Sitrak"),
		},
		Fields: TrackerFields{
			IncidentType:    envField("JIRA_CF_INCIDENT_TYPE", KindSelect),
			Brand:           envField("JIRA_CF_BRAND", KindSelect),
			VehiclePlate:    envField("JIRA_CF_PLATE_VATS", KindText),
			TrailerPlate:    envField("JIRA_CF_PLATE_REF", KindText),
			Location:        envField("JIRA_CF_LOCATION", KindText),
			ProblemDesc:     envField("JIRA_CF_PROBLEM_DESC", KindText),
			Notes:           envField("JIRA_CF_NOTES", KindText),
			IncidentDate:    envField("JIRA_CF_INCIDENT_DATE", KindDate),
			IncidentTime:    envField("JIRA_CF_INCIDENT_TIME", KindTime),
			RequireMechanic: envField("JIRA_CF_FLAG_REQUIRE_MECH", KindSelect),
			ProblemSolved:   envField("JIRA_CF_FLAG_PROBLEM_SOLVED", KindSelect),
			RequireRecovery: envField("JIRA_CF_FLAG_REQUIRE_RA", KindSelect),
		},
	}

	if path := os.Getenv("JIRA_FIELDS_FILE"); path != "" {
		fields, err := LoadFieldMapFile(path)
		if err != nil {
			return TrackerConfig{}, err
		}
		cfg.Fields = mergeFields(cfg.Fields, fields)
	}
	return cfg, nil
}

func envField(key string, fallback FieldKind) FieldMapping {
	return FieldMapping{
		ID:   os.Getenv(key),
		Kind: FieldKind(strings.ToLower(getEnv(key+"_KIND", string(fallback)))),
	}
}

// LoadFieldMapFile reads a YAML custom-field mapping.
func LoadFieldMapFile(path string) (TrackerFields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrackerFields{}, fmt.Errorf("config: read field map %s: %w", path, err)
	}
	return ParseFieldMap(data)
}

// ParseFieldMap parses YAML field-map bytes.
func ParseFieldMap(data []byte) (TrackerFields, error) {
	var fields TrackerFields
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return TrackerFields{}, fmt.Errorf("config: parse field map: %w", err)
	}
	return fields, nil
}

// mergeFields applies every file entry that names a field id.
func mergeFields(base, override TrackerFields) TrackerFields {
	pick := func(b, o FieldMapping) FieldMapping {
		if o.ID == "" {
			return b
		}
		if o.Kind == "" {
			o.Kind = b.Kind
		}
		return o
	}
	return TrackerFields{
		IncidentType:    pick(base.IncidentType, override.IncidentType),
		Brand:           pick(base.Brand, override.Brand),
		VehiclePlate:    pick(base.VehiclePlate, override.VehiclePlate),
		TrailerPlate:    pick(base.TrailerPlate, override.TrailerPlate),
		Location:        pick(base.Location, override.Location),
		ProblemDesc:     pick(base.ProblemDesc, override.ProblemDesc),
		Notes:           pick(base.Notes, override.Notes),
		IncidentDate:    pick(base.IncidentDate, override.IncidentDate),
		IncidentTime:    pick(base.IncidentTime, override.IncidentTime),
		RequireMechanic: pick(base.RequireMechanic, override.RequireMechanic),
		ProblemSolved:   pick(base.ProblemSolved, override.ProblemSolved),
		RequireRecovery: pick(base.RequireRecovery, override.RequireRecovery),
	}
}
