// Package presenter renders wizard and lifecycle state as chat screens.
// Every function is pure: same draft in, same screen out.
package presenter

import (
	"errors"
	"html"
	"strings"

	"github.com/Stagnxzione/ra-userbot/internal/chat"
	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/lifecycle"
	"github.com/Stagnxzione/ra-userbot/internal/plate"
	"github.com/Stagnxzione/ra-userbot/internal/wizard"
)

const (
	labelSkip        = "🚫 Не указывать"
	labelBack        = "⬅ Назад"
	labelBackPreview = "⬅ Назад к итогу"
)

func screen(text string, kb chat.Keyboard) chat.Screen {
	return chat.Screen{Text: text, HTML: true, Keyboard: kb}
}

func row(label string, a Action) []chat.Button {
	return []chat.Button{{Label: label, Data: a.Encode()}}
}

func esc(s string) string { return html.EscapeString(s) }

// Start is the first screen of a fresh draft.
func Start() chat.Screen {
	return screen("Пожалуйста, выбери тип происшествия:", ChoiceMenu(domain.FieldIncidentType))
}

// ChoiceMenu lists the options of a choice step. Every step but the first
// also offers skip and back.
func ChoiceMenu(key domain.FieldKey) chat.Keyboard {
	desc, _ := domain.Step(key)
	var kb chat.Keyboard
	for _, o := range desc.Options {
		kb = append(kb, row(o.Label, Action{Kind: ActSet, Field: key, Code: o.Code}))
	}
	if key != domain.FieldIncidentType {
		kb = append(kb, NavMenu(key)...)
	}
	return kb
}

// NavMenu is the skip/back keyboard of a free-text step.
func NavMenu(key domain.FieldKey) chat.Keyboard {
	return chat.Keyboard{
		row(labelSkip, Action{Kind: ActSkip, Field: key}),
		row(labelBack, Action{Kind: ActBack, Field: key}),
	}
}

// Step asks for one field.
func Step(key domain.FieldKey) chat.Screen {
	desc, _ := domain.Step(key)
	if desc.Kind == domain.InputChoice {
		return screen(desc.Prompt, ChoiceMenu(key))
	}
	return screen(desc.Prompt, NavMenu(key))
}

// Outcome renders the screen that follows a wizard transition. Ignored
// outcomes have no screen; ok is false.
func Outcome(out wizard.Outcome, d *domain.Draft) (chat.Screen, bool) {
	switch out.Kind {
	case wizard.AskStep:
		return Step(out.Step), true
	case wizard.ShowPreview:
		return Preview(d), true
	case wizard.Rejected:
		return Rejection(out), true
	}
	return chat.Screen{}, false
}

// Rejection re-prompts after invalid input.
func Rejection(out wizard.Outcome) chat.Screen {
	var text string
	switch {
	case out.Reason == wizard.RejectEmpty:
		text = "❌<b>Пустое значение</b>❌ \nВведите текст или нажмите <b>«Не указывать»</b>"
	case out.Step == domain.FieldTrailerPlate:
		text = "❌ <b>Неверный формат</b> ❌\nОжидается: " + out.Hint.Format +
			"\nПример: " + out.Hint.Example + "\nМожно использовать латиницу или кириллицу."
	default:
		text = "❌ <b>Ошибка в госномере</b> ❌\nОжидается: " + out.Hint.Format +
			"\nПример: " + out.Hint.Example +
			"\nМожно использовать латиницу или кириллицу — важны только количество и порядок."
	}
	return screen(text, NavMenu(out.Step))
}

// fieldValue renders one draft value for the preview.
func fieldValue(d *domain.Draft, key domain.FieldKey) string {
	desc, _ := domain.Step(key)
	v := d.Value(key)
	switch desc.Kind {
	case domain.InputChoice:
		if v == nil || *v == "" {
			return plate.Placeholder
		}
		return esc(domain.OptionLabel(key, *v))
	case domain.InputVehiclePlate, domain.InputTrailerPlate:
		return plate.DisplayValue(v)
	}
	if v == nil || *v == "" {
		return plate.Placeholder
	}
	return esc(*v)
}

// PreviewFields returns one "Title: <b>value</b>" line per active step.
func PreviewFields(d *domain.Draft) []string {
	active := wizard.ActiveSteps(d)
	lines := make([]string, 0, len(active))
	for _, key := range active {
		desc, _ := domain.Step(key)
		lines = append(lines, desc.Title+": <b>"+fieldValue(d, key)+"</b>")
	}
	return lines
}

// PreviewText is the summary shown before filing.
func PreviewText(d *domain.Draft) string {
	lines := []string{
		"⚠️ <b>Проверьте данные ⚠️</b>",
		"",
		"<b>Заявка #" + esc(d.ID) + "</b>",
	}
	lines = append(lines, PreviewFields(d)...)
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// Preview is the summary with edit and create actions.
func Preview(d *domain.Draft) chat.Screen {
	return screen(PreviewText(d), chat.Keyboard{
		row(" ✍️ Внести изменения", Action{Kind: ActOpenEdit}),
		row("✅ Создать заявку", Action{Kind: ActCreate}),
	})
}

// EditList offers every active step for editing.
func EditList(d *domain.Draft) chat.Screen {
	var kb chat.Keyboard
	for _, key := range wizard.ActiveSteps(d) {
		desc, _ := domain.Step(key)
		kb = append(kb, row(desc.Title, Action{Kind: ActEditField, Field: key}))
	}
	kb = append(kb, row(labelBackPreview, Action{Kind: ActEditCancel}))
	return screen("Выберите пункт для изменения:", kb)
}

// AfterCreate offers continuing or requesting a mechanic.
func AfterCreate(d *domain.Draft) chat.Keyboard {
	return chat.Keyboard{
		row("Продолжить", Action{Kind: ActContinue, DraftID: d.ID}),
		row("Требуется помощь дежмеха (сабтаск)", Action{Kind: ActMechanic, DraftID: d.ID}),
	}
}

// MainActions offers "solved" or requesting recovery assistance.
func MainActions(d *domain.Draft) chat.Keyboard {
	return chat.Keyboard{
		row("✅ Проблема решена", Action{Kind: ActSolved, DraftID: d.ID}),
		row("🧰 Требуется RA (сабтаск)", Action{Kind: ActRecovery, DraftID: d.ID}),
	}
}

// StatusMenu is the escalation button, one button per milestone and close.
func StatusMenu(d *domain.Draft) chat.Keyboard {
	kb := chat.Keyboard{row("🚚 Требуется эвакуатор", Action{Kind: ActEscalate, DraftID: d.ID})}
	for _, m := range domain.StatusFlow {
		label := "⬜️ " + m.Label
		if d.IsDone(m.Key) {
			label = "✅ " + m.Label
		}
		kb = append(kb, row(label, Action{Kind: ActStatus, DraftID: d.ID, Status: m.Key}))
	}
	kb = append(kb, row("Закрыть заявку", Action{Kind: ActClose, DraftID: d.ID}))
	return kb
}

// StatusHeader names the draft and every filed tracker key.
func StatusHeader(d *domain.Draft) string {
	var refs []string
	if d.MainKey != nil {
		refs = append(refs, "Jira: "+esc(*d.MainKey))
	}
	if d.MechanicKey != nil {
		refs = append(refs, "Дежмех: "+esc(*d.MechanicKey))
	}
	if d.RecoveryKey != nil {
		refs = append(refs, "RA: "+esc(*d.RecoveryKey))
	}
	header := "✅ Заявка #" + esc(d.ID) + " — статусный экран"
	if len(refs) > 0 {
		header += "\n" + strings.Join(refs, " | ")
	}
	return header
}

// StatusBoard is the post-recovery screen.
func StatusBoard(d *domain.Draft) chat.Screen {
	return screen(StatusHeader(d), StatusMenu(d))
}

// Created confirms the main record.
func Created(d *domain.Draft, key string) chat.Screen {
	return screen("✅ Заявка #"+esc(d.ID)+" создана.\nJira: <b>"+esc(key)+"</b>", AfterCreate(d))
}

// CreateFailed shows the tracker diagnostic for a failed main record.
func CreateFailed(err error) chat.Screen {
	detail := "Неизвестная ошибка"
	if err != nil && err.Error() != "" {
		detail = err.Error()
	}
	return screen("⚠️ Не удалось создать задачу в Jira.\n<pre>"+esc(detail)+"</pre>", nil)
}

// Continue shows the main actions.
func Continue(d *domain.Draft) chat.Screen {
	key := plate.Placeholder
	if d.MainKey != nil {
		key = esc(*d.MainKey)
	}
	return screen("Выберите действие (Jira: "+key+")", MainActions(d))
}

// MechanicCreated confirms the mechanic sub-record.
func MechanicCreated(d *domain.Draft, key string) chat.Screen {
	return screen("Дежмех (сабтаск) создан: "+esc(key)+". Выберите действие:", MainActions(d))
}

// SubRecordFailure explains why a sub-record could not be filed.
func SubRecordFailure(kind domain.SubRecordKind, err error) chat.Screen {
	switch {
	case errors.Is(err, lifecycle.ErrNoMainRecord):
		if kind == domain.SubRecordMechanic {
			return screen("Сначала создайте основную задачу в Jira.", nil)
		}
		return screen("Сначала создайте основную задачу (нет родителя для RA).", nil)
	case errors.Is(err, lifecycle.ErrTrackerNotConfigured):
		return screen(esc(err.Error()), nil)
	}

	var parentErr *lifecycle.ParentError
	if errors.As(err, &parentErr) {
		return screen("⚠️ Не удалось получить данные родителя "+esc(parentErr.Key)+
			".\n<pre>"+esc(parentErr.Err.Error())+"</pre>", nil)
	}

	var subErr *lifecycle.SubRecordError
	if errors.As(err, &subErr) {
		return screen("⚠️ <pre>"+esc(AttemptsReport(subErr))+"</pre>", nil)
	}
	return Failure()
}

// AttemptsReport is the plain-text breakdown of every failed attempt.
func AttemptsReport(e *lifecycle.SubRecordError) string {
	head := "Не удалось создать подзадачу RA. Отчёт по попыткам:"
	if e.Kind == domain.SubRecordMechanic {
		head = "Не удалось создать подзадачу «Дежмех». Отчёт по попыткам:"
	}
	sections := []string{head}
	if e.Attempts != nil {
		sections = append(sections, e.Attempts.Error())
	}
	if e.ConfigHint {
		sections = append(sections,
			"",
			"Проверь настройки проекта в Jira:",
			"— Схема типов проекта «"+e.ProjectKey+"» должна содержать тип «Подзадача».",
			"— Проверь правильность JIRA_SUBTASK_TYPE_ID / JIRA_SUBTASK_TYPE в .env.",
		)
	}
	return strings.Join(sections, "\n\n")
}

// FlagFailed is the follow-up sent when a best-effort flag update failed.
func FlagFailed(kind domain.SubRecordKind, err error) chat.Screen {
	name := "«Требуется RA»"
	if kind == domain.SubRecordMechanic {
		name = "«Требуется дежмех»"
	}
	return screen("⚠️ Не удалось обновить флаг "+name+": "+esc(err.Error()), nil)
}

// Solved confirms the solved flag, or explains why it failed.
func Solved(err error) chat.Screen {
	switch {
	case err == nil:
		return screen("✅ Отмечено как «Проблема решена».", nil)
	case errors.Is(err, lifecycle.ErrNoMainRecord):
		return screen("Сначала создайте основную задачу.", nil)
	}
	return screen("⚠️ Не удалось выставить «Проблема решена»: "+esc(err.Error()), nil)
}

// DispatchNotice is the message posted to the dispatcher chat.
func DispatchNotice(d *domain.Draft, inviteURL string) chat.Screen {
	key := plate.Placeholder
	if d.MainKey != nil {
		key = esc(*d.MainKey)
	}
	var kb chat.Keyboard
	if inviteURL != "" {
		kb = chat.Keyboard{{{Label: "Открыть беседу", URL: inviteURL}}}
	}
	return screen("🚨 Требуется диспетчер по заявке #"+esc(d.ID)+". Jira: "+key, kb)
}

// EscalationSent confirms the dispatcher request and keeps the status board.
func EscalationSent(d *domain.Draft) chat.Screen {
	return screen("🧷 Запрос диспетчеру отправлен.", StatusMenu(d))
}

// ConfigMissing reports a hard-stop configuration gap.
func ConfigMissing(err error) chat.Screen {
	return screen(esc(strings.TrimSpace(err.Error())), nil)
}

// Closed confirms the local close.
func Closed() chat.Screen {
	return screen("✅ Заявка закрыта локально. (В Jira закрытие не выполнялось)", nil)
}

// Failure is the generic reply when an interaction failed internally.
func Failure() chat.Screen {
	return screen("⚠️ Не удалось обработать действие. Повторите попытку.", nil)
}

// WebAppNotice relays a WebApp button press to the user.
func WebAppNotice(action string) chat.Screen {
	return chat.Screen{Text: "📩 Пользователь нажал кнопку в WebApp! (действие: " + action + ")"}
}
