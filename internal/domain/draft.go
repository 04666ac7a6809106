package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldKey names one answer collected by the intake wizard.
type FieldKey string

const (
	FieldIncidentType FieldKey = "incident_type"
	FieldBrand        FieldKey = "brand"
	FieldVehiclePlate FieldKey = "vehicle_plate"
	FieldTrailerPlate FieldKey = "trailer_plate"
	FieldLocation     FieldKey = "location"
	FieldProblemDesc  FieldKey = "problem_desc"
	FieldNotes        FieldKey = "notes"
)

// RefKey names an external tracker record attached to a draft.
type RefKey string

const (
	RefMain     RefKey = "tracker_main"
	RefMechanic RefKey = "tracker_mechanic"
	RefRecovery RefKey = "tracker_recovery"
)

// Column is a nullable draft column addressable by the draft store.
type Column string

// Column returns the storage column for the field.
func (k FieldKey) Column() Column { return Column(k) }

// Column returns the storage column for the reference.
func (r RefKey) Column() Column { return Column(r) }

var writableColumns = map[Column]struct{}{
	FieldIncidentType.Column(): {},
	FieldBrand.Column():        {},
	FieldVehiclePlate.Column(): {},
	FieldTrailerPlate.Column(): {},
	FieldLocation.Column():     {},
	FieldProblemDesc.Column():  {},
	FieldNotes.Column():        {},
	RefMain.Column():           {},
	RefMechanic.Column():       {},
	RefRecovery.Column():       {},
}

// IsWritable reports whether the column may be written field-by-field.
func (c Column) IsWritable() bool {
	_, ok := writableColumns[c]
	return ok
}

// Draft is one in-progress intake ticket. Optional values stay nil until set.
type Draft struct {
	ID        string
	UserID    string
	Username  string
	CreatedAt time.Time

	IncidentType *string
	Brand        *string
	VehiclePlate *string
	TrailerPlate *string
	Location     *string
	ProblemDesc  *string
	Notes        *string

	StatusDone map[StatusKey]time.Time
	ClosedAt   *time.Time

	MainKey     *string
	MechanicKey *string
	RecoveryKey *string
}

// NewDraft builds an empty draft for the given user.
func NewDraft(userID, username string, now time.Time) *Draft {
	return &Draft{
		ID:         NewDraftID(),
		UserID:     userID,
		Username:   username,
		CreatedAt:  now.UTC(),
		StatusDone: make(map[StatusKey]time.Time),
	}
}

// NewDraftID returns a short random identifier. Collisions are not handled;
// the store rejects a duplicate insert.
func NewDraftID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Value returns the current value of a wizard field.
func (d *Draft) Value(key FieldKey) *string {
	switch key {
	case FieldIncidentType:
		return d.IncidentType
	case FieldBrand:
		return d.Brand
	case FieldVehiclePlate:
		return d.VehiclePlate
	case FieldTrailerPlate:
		return d.TrailerPlate
	case FieldLocation:
		return d.Location
	case FieldProblemDesc:
		return d.ProblemDesc
	case FieldNotes:
		return d.Notes
	}
	return nil
}

// SetValue replaces a wizard field value; nil clears it.
func (d *Draft) SetValue(key FieldKey, value *string) {
	switch key {
	case FieldIncidentType:
		d.IncidentType = value
	case FieldBrand:
		d.Brand = value
	case FieldVehiclePlate:
		d.VehiclePlate = value
	case FieldTrailerPlate:
		d.TrailerPlate = value
	case FieldLocation:
		d.Location = value
	case FieldProblemDesc:
		d.ProblemDesc = value
	case FieldNotes:
		d.Notes = value
	}
}

// Ref returns the tracker key stored under the reference.
func (d *Draft) Ref(ref RefKey) *string {
	switch ref {
	case RefMain:
		return d.MainKey
	case RefMechanic:
		return d.MechanicKey
	case RefRecovery:
		return d.RecoveryKey
	}
	return nil
}

// SetRef stores a tracker key under the reference.
func (d *Draft) SetRef(ref RefKey, key string) {
	switch ref {
	case RefMain:
		d.MainKey = &key
	case RefMechanic:
		d.MechanicKey = &key
	case RefRecovery:
		d.RecoveryKey = &key
	}
}

// StringValue dereferences an optional value, returning "" when unset.
func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// IsDone reports whether the milestone was marked.
func (d *Draft) IsDone(key StatusKey) bool {
	_, ok := d.StatusDone[key]
	return ok
}

// IsClosed reports whether the draft was closed locally.
func (d *Draft) IsClosed() bool {
	return d.ClosedAt != nil
}
