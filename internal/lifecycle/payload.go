package lifecycle

import (
	"strings"
	"time"

	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/plate"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
	dateTimeLayout = "2006-01-02T15:04:05.000+0000"
)

// Summary is the one-line tracker title: "[incident] brand — plate".
// The plate part is left out when the plate is unset or unparsable.
func Summary(d *domain.Draft) string {
	itype := orDash(domain.OptionLabel(domain.FieldIncidentType, domain.StringValue(d.IncidentType)))
	brand := orDash(domain.OptionLabel(domain.FieldBrand, domain.StringValue(d.Brand)))
	summary := "[" + itype + "] " + brand
	if display := plate.DisplayValue(d.VehiclePlate); display != plate.Placeholder {
		summary += " — " + display
	}
	return summary
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// PayloadBuilder shapes tracker field payloads from drafts.
type PayloadBuilder struct {
	cfg config.TrackerConfig
	now func() time.Time
}

// NewPayloadBuilder binds the immutable tracker configuration.
func NewPayloadBuilder(cfg config.TrackerConfig, now func() time.Time) PayloadBuilder {
	if now == nil {
		now = time.Now
	}
	return PayloadBuilder{cfg: cfg, now: now}
}

// Main builds the main record payload. Custom fields appear only when their
// tracker id is configured.
func (b PayloadBuilder) Main(d *domain.Draft) tracker.Fields {
	fields := tracker.Fields{
		"project": map[string]string{"key": b.cfg.ProjectKey},
		"summary": Summary(d),
		"labels":  append([]string{}, b.cfg.Labels...),
	}
	if b.cfg.IssueTypeID != "" {
		fields["issuetype"] = map[string]string{"id": b.cfg.IssueTypeID}
	} else {
		fields["issuetype"] = map[string]string{"name": b.cfg.IssueTypeName}
	}

	f := b.cfg.Fields
	b.put(fields, f.IncidentType, d.IncidentType, b.optionDisplay(d.IncidentType))
	b.put(fields, f.Brand, d.Brand, b.optionDisplay(d.Brand))
	b.put(fields, f.VehiclePlate, d.VehiclePlate, plateDisplay(d.VehiclePlate))
	if !domain.IsSizeConstrained(d.Brand) {
		b.put(fields, f.TrailerPlate, d.TrailerPlate, plateDisplay(d.TrailerPlate))
	}
	b.put(fields, f.Location, d.Location, nil)
	b.put(fields, f.ProblemDesc, d.ProblemDesc, nil)
	b.put(fields, f.Notes, d.Notes, nil)

	created := d.CreatedAt.UTC()
	if f.IncidentDate.Enabled() && f.IncidentDate.Kind == config.KindDate {
		fields[f.IncidentDate.ID] = created.Format(dateLayout)
	}
	if f.IncidentTime.Enabled() {
		if f.IncidentTime.Kind == config.KindDateTime {
			fields[f.IncidentTime.ID] = created.Format(dateTimeLayout)
		} else {
			fields[f.IncidentTime.ID] = created.Format(timeLayout)
		}
	}

	for _, flag := range []config.FieldMapping{f.RequireMechanic, f.ProblemSolved, f.RequireRecovery} {
		if isSelectFlag(flag) {
			fields[flag.ID] = map[string]string{"value": b.cfg.NoLabel}
		}
	}
	return fields
}

// SubRecordShape selects how the parent and issue type are identified.
type SubRecordShape struct {
	Label      string
	ParentByID bool
	TypeByID   bool
}

// SubRecordShapes is the fixed attempt order for sub-record creation.
var SubRecordShapes = []SubRecordShape{
	{Label: "parent.id + issuetype.id", ParentByID: true, TypeByID: true},
	{Label: "parent.id + issuetype.name", ParentByID: true},
	{Label: "parent.key + issuetype.id", TypeByID: true},
	{Label: "parent.key + issuetype.name"},
}

// SubRecordParent is what the sub-record payload needs to know about the
// main record.
type SubRecordParent struct {
	ID         string
	Key        string
	ProjectKey string
}

// SubRecord builds one sub-record payload shape.
func (b PayloadBuilder) SubRecord(kind domain.SubRecordKind, summary string, parent SubRecordParent, typeID string, shape SubRecordShape) tracker.Fields {
	parentRef := map[string]string{"key": parent.Key}
	if shape.ParentByID && parent.ID != "" {
		parentRef = map[string]string{"id": parent.ID}
	}

	issueType := map[string]string{"name": b.subtaskTypeName()}
	if shape.TypeByID && typeID != "" {
		issueType = map[string]string{"id": typeID}
	}

	labels := append(append([]string{}, b.cfg.Labels...), kind.Label())
	return tracker.Fields{
		"project":   map[string]string{"key": parent.ProjectKey},
		"summary":   summary,
		"parent":    parentRef,
		"issuetype": issueType,
		"labels":    labels,
	}
}

// FlagPatch sets a yes/no select flag to "yes". ok is false when the flag is
// not configured as a select field.
func (b PayloadBuilder) FlagPatch(flag config.FieldMapping) (tracker.Fields, bool) {
	if !isSelectFlag(flag) {
		return nil, false
	}
	return tracker.Fields{flag.ID: map[string]string{"value": b.cfg.YesLabel}}, true
}

func (b PayloadBuilder) subtaskTypeName() string {
	if b.cfg.SubtaskTypeName != "" {
		return b.cfg.SubtaskTypeName
	}
	return "Sub-task"
}

func (b PayloadBuilder) optionDisplay(code *string) *string {
	if code == nil || *code == "" {
		return nil
	}
	label := b.cfg.OptionLabel(*code)
	return &label
}

func plateDisplay(v *string) *string {
	if v == nil {
		return nil
	}
	display := plate.Display(*v)
	return &display
}

func isSelectFlag(flag config.FieldMapping) bool {
	return flag.Enabled() && flag.Kind == config.KindSelect
}

// put stores a shaped custom field value. Empty values are left out.
func (b PayloadBuilder) put(fields tracker.Fields, m config.FieldMapping, raw, display *string) {
	if !m.Enabled() {
		return
	}
	if v, ok := b.shape(m.Kind, raw, display); ok {
		fields[m.ID] = v
	}
}

func (b PayloadBuilder) shape(kind config.FieldKind, raw, display *string) (any, bool) {
	if raw == nil && display == nil {
		return nil, false
	}
	preferred := domain.StringValue(display)
	if preferred == "" {
		preferred = domain.StringValue(raw)
	}

	switch kind {
	case config.KindSelect:
		v := strings.TrimSpace(preferred)
		if v == "" {
			return nil, false
		}
		return map[string]string{"value": v}, true
	case config.KindMultiSelect:
		v := strings.TrimSpace(preferred)
		if v == "" {
			return []map[string]string{}, true
		}
		return []map[string]string{{"value": v}}, true
	case config.KindADF:
		if preferred == "" {
			return nil, false
		}
		return adfDocument(preferred), true
	case config.KindDate:
		return b.now().UTC().Format(dateLayout), true
	case config.KindTime:
		return b.now().UTC().Format(timeLayout), true
	case config.KindDateTime:
		return b.now().UTC().Format(dateTimeLayout), true
	}
	if preferred == "" {
		return nil, false
	}
	return preferred, true
}

// adfDocument wraps plain text in an Atlassian document, one paragraph per line.
func adfDocument(text string) map[string]any {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	content := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		content = append(content, map[string]any{
			"type":    "paragraph",
			"content": []map[string]string{{"type": "text", "text": line}},
		})
	}
	return map[string]any{"type": "doc", "version": 1, "content": content}
}
