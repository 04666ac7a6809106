package presenter

import (
	"strings"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
)

// ActionKind is what a button press asks for.
type ActionKind int

const (
	ActBack ActionKind = iota + 1
	ActSkip
	ActSet
	ActOpenEdit
	ActCreate
	ActEditField
	ActEditCancel
	ActContinue
	ActMechanic
	ActSolved
	ActRecovery
	ActEscalate
	ActStatus
	ActClose
)

// Action is a decoded button payload. Payloads stay well under Telegram's
// 64-byte callback limit.
type Action struct {
	Kind    ActionKind
	Field   domain.FieldKey
	Code    string
	DraftID string
	Status  domain.StatusKey
}

var draftActions = map[string]ActionKind{
	"cont":   ActContinue,
	"mech":   ActMechanic,
	"solved": ActSolved,
	"ra":     ActRecovery,
	"evac":   ActEscalate,
}

// Encode renders the button payload.
func (a Action) Encode() string {
	switch a.Kind {
	case ActBack:
		return "nav|back|" + string(a.Field)
	case ActSkip:
		return "nav|skip|" + string(a.Field)
	case ActSet:
		return "set|" + string(a.Field) + "|" + a.Code
	case ActOpenEdit:
		return "summary|edit"
	case ActCreate:
		return "summary|create"
	case ActEditField:
		return "edit|field|" + string(a.Field)
	case ActEditCancel:
		return "edit|cancel"
	case ActStatus:
		return "st|" + a.DraftID + "|" + string(a.Status)
	case ActClose:
		return "close|" + a.DraftID
	}
	for name, kind := range draftActions {
		if kind == a.Kind {
			return "act|" + name + "|" + a.DraftID
		}
	}
	return ""
}

// ParseAction decodes a button payload. ok is false for unknown payloads.
func ParseAction(data string) (Action, bool) {
	parts := strings.SplitN(data, "|", 3)
	arg := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	switch parts[0] {
	case "nav":
		switch arg(1) {
		case "back":
			return Action{Kind: ActBack, Field: domain.FieldKey(arg(2))}, true
		case "skip":
			return Action{Kind: ActSkip, Field: domain.FieldKey(arg(2))}, true
		}
	case "set":
		if len(parts) == 3 {
			return Action{Kind: ActSet, Field: domain.FieldKey(parts[1]), Code: parts[2]}, true
		}
	case "summary":
		switch arg(1) {
		case "edit":
			return Action{Kind: ActOpenEdit}, true
		case "create":
			return Action{Kind: ActCreate}, true
		}
	case "edit":
		switch arg(1) {
		case "field":
			if len(parts) == 3 {
				return Action{Kind: ActEditField, Field: domain.FieldKey(parts[2])}, true
			}
		case "cancel":
			return Action{Kind: ActEditCancel}, true
		}
	case "act":
		if kind, ok := draftActions[arg(1)]; ok && len(parts) == 3 {
			return Action{Kind: kind, DraftID: parts[2]}, true
		}
	case "st":
		if len(parts) == 3 {
			return Action{Kind: ActStatus, DraftID: parts[1], Status: domain.StatusKey(parts[2])}, true
		}
	case "close":
		if len(parts) >= 2 && parts[1] != "" {
			return Action{Kind: ActClose, DraftID: strings.Join(parts[1:], "|")}, true
		}
	}
	return Action{}, false
}
