package domain

// InputKind tells the wizard how a step accepts input.
type InputKind string

const (
	InputChoice       InputKind = "choice"
	InputText         InputKind = "text"
	InputVehiclePlate InputKind = "plate"
	InputTrailerPlate InputKind = "plate_trailer"
)

// Incident type codes.
const (
	IncidentAccident  = "DTP"
	IncidentBreakdown = "BREAK"
)

// Brand codes. BrandKiaCeed is the size-constrained variant: a three-digit
// vehicle plate and no trailer.
const (
	BrandKiaCeed = "KIA_CEED"
	BrandSitrak  = "SITRAK"
)

// Option is one (label, code) pair of a choice step.
type Option struct {
	Label string
	Code  string
}

// StepDescriptor is the static metadata of one wizard step.
type StepDescriptor struct {
	Key     FieldKey
	Prompt  string
	Kind    InputKind
	Options []Option
	// Title is the short name used in previews and edit menus.
	Title string
}

// StepOrder is the full ordered step list before brand filtering.
var StepOrder = []FieldKey{
	FieldIncidentType,
	FieldBrand,
	FieldVehiclePlate,
	FieldTrailerPlate,
	FieldLocation,
	FieldProblemDesc,
	FieldNotes,
}

var steps = map[FieldKey]StepDescriptor{
	FieldIncidentType: {
		Key:    FieldIncidentType,
		Prompt: "Выберите тип происшествия:",
		Kind:   InputChoice,
		Options: []Option{
			{Label: "ДТП", Code: IncidentAccident},
			{Label: "Поломка", Code: IncidentBreakdown},
		},
		Title: "Тип происшествия",
	},
	FieldBrand: {
		Key:    FieldBrand,
		Prompt: "Выберите тип ВАТС:",
		Kind:   InputChoice,
		Options: []Option{
			{Label: "Kia Ceed", Code: BrandKiaCeed},
			{Label: "Sitrak", Code: BrandSitrak},
		},
		Title: "Марка ВАТС",
	},
	FieldVehiclePlate: {
		Key:    FieldVehiclePlate,
		Prompt: "Укажите госномер ВАТС (буква + 3/4 цифры + 2 буквы + 2/3 цифры)",
		Kind:   InputVehiclePlate,
		Title:  "Госномер ВАТС",
	},
	FieldTrailerPlate: {
		Key:    FieldTrailerPlate,
		Prompt: "Укажите госномер рефа/пп (2 буквы + 4 цифры + 2/3 цифры)",
		Kind:   InputTrailerPlate,
		Title:  "Госномер рефа/пп",
	},
	FieldLocation: {
		Key:    FieldLocation,
		Prompt: "Местоположение ВАТС (координаты/ориентиры)",
		Kind:   InputText,
		Title:  "Местоположение",
	},
	FieldProblemDesc: {
		Key:    FieldProblemDesc,
		Prompt: "Напишите подробности проблемы",
		Kind:   InputText,
		Title:  "Описание проблемы",
	},
	FieldNotes: {
		Key:    FieldNotes,
		Prompt: "Особые отметки, примечание",
		Kind:   InputText,
		Title:  "Особые отметки",
	},
}

// Step looks up the descriptor for a field key.
func Step(key FieldKey) (StepDescriptor, bool) {
	s, ok := steps[key]
	return s, ok
}

// IsStep reports whether key names a wizard step.
func IsStep(key FieldKey) bool {
	_, ok := steps[key]
	return ok
}

// OptionLabel maps a choice code to its display label. Unknown codes are
// returned unchanged.
func OptionLabel(key FieldKey, code string) string {
	s, ok := steps[key]
	if !ok {
		return code
	}
	for _, o := range s.Options {
		if o.Code == code {
			return o.Label
		}
	}
	return code
}

// HasOption reports whether code is one of the step's choices.
func HasOption(key FieldKey, code string) bool {
	s, ok := steps[key]
	if !ok {
		return false
	}
	for _, o := range s.Options {
		if o.Code == code {
			return true
		}
	}
	return false
}

// IsSizeConstrained reports whether the brand uses the short plate format
// and has no trailer.
func IsSizeConstrained(brand *string) bool {
	return brand != nil && *brand == BrandKiaCeed
}
