package domain

// StatusKey names a field-work milestone on the status board.
type StatusKey string

const (
	StatusArrive     StatusKey = "arrive"
	StatusInspect    StatusKey = "inspect"
	StatusDecision   StatusKey = "decision"
	StatusRepair     StatusKey = "repair"
	StatusEvacuation StatusKey = "evacuation"
	StatusResume     StatusKey = "resume"
)

// Milestone describes one status board entry.
type Milestone struct {
	Key   StatusKey
	Label string
}

// StatusFlow is the fixed display order of milestones. Any milestone may be
// marked independently of the others.
var StatusFlow = []Milestone{
	{Key: StatusArrive, Label: "RA прибыл на место"},
	{Key: StatusInspect, Label: "RA провел осмотр ВАТС"},
	{Key: StatusDecision, Label: "Приняли решение о работах"},
	{Key: StatusRepair, Label: "Ремонт завершен"},
	{Key: StatusEvacuation, Label: "Эвакуировали ВАТС"},
	{Key: StatusResume, Label: "Движение возобновлено"},
}

// IsMilestone reports whether key is part of the status flow.
func IsMilestone(key StatusKey) bool {
	for _, m := range StatusFlow {
		if m.Key == key {
			return true
		}
	}
	return false
}

// SubRecordKind distinguishes the two follow-up sub-tasks.
type SubRecordKind string

const (
	SubRecordMechanic SubRecordKind = "mechanic"
	SubRecordRecovery SubRecordKind = "recovery"
)

// Ref returns the draft reference that stores the sub-record key.
func (k SubRecordKind) Ref() RefKey {
	if k == SubRecordMechanic {
		return RefMechanic
	}
	return RefRecovery
}

// Title is the human name used in summaries and reports.
func (k SubRecordKind) Title() string {
	if k == SubRecordMechanic {
		return "Дежмех"
	}
	return "RA"
}

// Label is the tracker label attached to the sub-record.
func (k SubRecordKind) Label() string {
	if k == SubRecordMechanic {
		return "mech"
	}
	return "ra"
}
