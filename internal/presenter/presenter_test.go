package presenter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/lifecycle"
	"github.com/Stagnxzione/ra-userbot/internal/plate"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
	"github.com/Stagnxzione/ra-userbot/internal/wizard"
)

func strPtr(s string) *string { return &s }

func kiaDraft() *domain.Draft {
	d := domain.NewDraft("42", "driver", time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC))
	d.ID = "abcd1234"
	d.IncidentType = strPtr(domain.IncidentAccident)
	d.Brand = strPtr(domain.BrandKiaCeed)
	d.VehiclePlate = strPtr("А123ВС77")
	d.Location = strPtr("Тверь <центр>")
	d.ProblemDesc = strPtr("Удар в бампер")
	return d
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		data string
		want Action
	}{
		{"nav|back|brand", Action{Kind: ActBack, Field: domain.FieldBrand}},
		{"nav|skip|notes", Action{Kind: ActSkip, Field: domain.FieldNotes}},
		{"nav|back", Action{Kind: ActBack}},
		{"set|brand|KIA_CEED", Action{Kind: ActSet, Field: domain.FieldBrand, Code: "KIA_CEED"}},
		{"summary|edit", Action{Kind: ActOpenEdit}},
		{"summary|create", Action{Kind: ActCreate}},
		{"edit|field|location", Action{Kind: ActEditField, Field: domain.FieldLocation}},
		{"edit|cancel", Action{Kind: ActEditCancel}},
		{"act|cont|abcd1234", Action{Kind: ActContinue, DraftID: "abcd1234"}},
		{"act|mech|abcd1234", Action{Kind: ActMechanic, DraftID: "abcd1234"}},
		{"act|solved|abcd1234", Action{Kind: ActSolved, DraftID: "abcd1234"}},
		{"act|ra|abcd1234", Action{Kind: ActRecovery, DraftID: "abcd1234"}},
		{"act|evac|abcd1234", Action{Kind: ActEscalate, DraftID: "abcd1234"}},
		{"st|abcd1234|repair", Action{Kind: ActStatus, DraftID: "abcd1234", Status: domain.StatusRepair}},
		{"close|abcd1234", Action{Kind: ActClose, DraftID: "abcd1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, ok := ParseAction(tt.data)
			if !ok || got != tt.want {
				t.Fatalf("ParseAction = %+v, %v, want %+v", got, ok, tt.want)
			}
			if tt.data != "nav|back" {
				if enc := got.Encode(); enc != tt.data {
					t.Errorf("Encode = %q, want %q", enc, tt.data)
				}
			}
		})
	}
}

func TestParseActionRejects(t *testing.T) {
	for _, data := range []string{"", "bogus", "set|brand", "act|fly|x", "act|cont", "st|x", "close|", "edit|field", "summary|x"} {
		if a, ok := ParseAction(data); ok {
			t.Errorf("ParseAction(%q) = %+v, want rejection", data, a)
		}
	}
}

func TestPreviewForKiaHasSixFieldLines(t *testing.T) {
	d := kiaDraft()
	fields := PreviewFields(d)
	want := []string{
		"Тип происшествия: <b>ДТП</b>",
		"Марка ВАТС: <b>Kia Ceed</b>",
		"Госномер ВАТС: <b>А123ВС 77</b>",
		"Местоположение: <b>Тверь &lt;центр&gt;</b>",
		"Описание проблемы: <b>Удар в бампер</b>",
		"Особые отметки: <b>—</b>",
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %q", fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, fields[i], want[i])
		}
	}

	text := PreviewText(d)
	if !strings.HasPrefix(text, "⚠️ <b>Проверьте данные ⚠️</b>\n\n<b>Заявка #abcd1234</b>\n") {
		t.Errorf("preview = %q", text)
	}
	if strings.Contains(text, "рефа") {
		t.Error("trailer line shown for size-constrained brand")
	}
}

func TestPreviewShowsTrailerForOtherBrands(t *testing.T) {
	d := kiaDraft()
	d.Brand = strPtr(domain.BrandSitrak)
	fields := PreviewFields(d)
	if len(fields) != 7 || fields[3] != "Госномер рефа/пп: <b>—</b>" {
		t.Errorf("fields = %q", fields)
	}
}

func TestPreviewMenu(t *testing.T) {
	s := Preview(kiaDraft())
	if !s.HTML || len(s.Keyboard) != 2 {
		t.Fatalf("screen = %+v", s)
	}
	if s.Keyboard[0][0].Data != "summary|edit" || s.Keyboard[1][0].Data != "summary|create" {
		t.Errorf("keyboard = %+v", s.Keyboard)
	}
}

func TestChoiceMenus(t *testing.T) {
	first := ChoiceMenu(domain.FieldIncidentType)
	if len(first) != 2 {
		t.Errorf("incident menu rows = %d, want 2 (no skip/back)", len(first))
	}
	brand := ChoiceMenu(domain.FieldBrand)
	if len(brand) != 4 || brand[2][0].Data != "nav|skip|brand" || brand[3][0].Data != "nav|back|brand" {
		t.Errorf("brand menu = %+v", brand)
	}
	if s := Step(domain.FieldLocation); len(s.Keyboard) != 2 || s.Text != "Местоположение ВАТС (координаты/ориентиры)" {
		t.Errorf("location step = %+v", s)
	}
}

func TestEditListUsesActiveSteps(t *testing.T) {
	s := EditList(kiaDraft())
	if len(s.Keyboard) != 7 {
		t.Fatalf("rows = %d, want 6 steps + back", len(s.Keyboard))
	}
	if last := s.Keyboard[6][0]; last.Data != "edit|cancel" || last.Label != "⬅ Назад к итогу" {
		t.Errorf("last row = %+v", last)
	}
	for _, r := range s.Keyboard {
		if r[0].Data == "edit|field|trailer_plate" {
			t.Error("trailer step offered for size-constrained brand")
		}
	}
}

func TestRejectionScreens(t *testing.T) {
	kia := strPtr(domain.BrandKiaCeed)
	vehicle := Rejection(wizard.Outcome{Kind: wizard.Rejected, Step: domain.FieldVehiclePlate, Reason: wizard.RejectPlate, Hint: plate.VehicleHint(kia)})
	if !strings.Contains(vehicle.Text, "Ожидается: Буква + 3 цифры + 2 буквы + 2–3 цифры\nПример: A123BC 77") {
		t.Errorf("vehicle rejection = %q", vehicle.Text)
	}
	trailer := Rejection(wizard.Outcome{Kind: wizard.Rejected, Step: domain.FieldTrailerPlate, Reason: wizard.RejectPlate, Hint: plate.TrailerHint()})
	if !strings.HasPrefix(trailer.Text, "❌ <b>Неверный формат</b> ❌") {
		t.Errorf("trailer rejection = %q", trailer.Text)
	}
	empty := Rejection(wizard.Outcome{Kind: wizard.Rejected, Step: domain.FieldNotes, Reason: wizard.RejectEmpty})
	if !strings.Contains(empty.Text, "Пустое значение") || empty.Keyboard[0][0].Data != "nav|skip|notes" {
		t.Errorf("empty rejection = %+v", empty)
	}
}

func TestOutcomeIgnored(t *testing.T) {
	if _, ok := Outcome(wizard.Outcome{Kind: wizard.Ignored}, kiaDraft()); ok {
		t.Error("ignored outcome produced a screen")
	}
}

func TestStatusBoard(t *testing.T) {
	d := kiaDraft()
	d.SetRef(domain.RefMain, "RA-1")
	d.SetRef(domain.RefRecovery, "RA-3")
	d.StatusDone[domain.StatusArrive] = time.Now()

	s := StatusBoard(d)
	if s.Text != "✅ Заявка #abcd1234 — статусный экран\nJira: RA-1 | RA: RA-3" {
		t.Errorf("header = %q", s.Text)
	}
	if len(s.Keyboard) != len(domain.StatusFlow)+2 {
		t.Fatalf("rows = %d", len(s.Keyboard))
	}
	if got := s.Keyboard[0][0].Data; got != "act|evac|abcd1234" {
		t.Errorf("first row = %q", got)
	}
	if got := s.Keyboard[1][0]; got.Label != "✅ RA прибыл на место" || got.Data != "st|abcd1234|arrive" {
		t.Errorf("arrive row = %+v", got)
	}
	if got := s.Keyboard[2][0].Label; got != "⬜️ RA провел осмотр ВАТС" {
		t.Errorf("inspect row = %q", got)
	}
	if got := s.Keyboard[len(s.Keyboard)-1][0].Data; got != "close|abcd1234" {
		t.Errorf("last row = %q", got)
	}
}

func TestStatusHeaderWithoutRefs(t *testing.T) {
	if got := StatusHeader(kiaDraft()); got != "✅ Заявка #abcd1234 — статусный экран" {
		t.Errorf("header = %q", got)
	}
}

func TestCreateScreens(t *testing.T) {
	d := kiaDraft()
	created := Created(d, "RA-1")
	if created.Text != "✅ Заявка #abcd1234 создана.\nJira: <b>RA-1</b>" || created.Keyboard[1][0].Data != "act|mech|abcd1234" {
		t.Errorf("created = %+v", created)
	}
	failed := CreateFailed(&tracker.APIError{Status: 400, FieldErrors: map[string]string{"summary": "<required>"}})
	want := "⚠️ Не удалось создать задачу в Jira.\n<pre>HTTP 400\nfield errors:\n  - summary: &lt;required&gt;</pre>"
	if failed.Text != want {
		t.Errorf("failed = %q, want %q", failed.Text, want)
	}
	if got := Continue(d).Text; got != "Выберите действие (Jira: —)" {
		t.Errorf("continue = %q", got)
	}
}

func TestSubRecordFailureScreens(t *testing.T) {
	if s := SubRecordFailure(domain.SubRecordMechanic, lifecycle.ErrNoMainRecord); s.Text != "Сначала создайте основную задачу в Jira." {
		t.Errorf("mechanic no main = %q", s.Text)
	}
	if s := SubRecordFailure(domain.SubRecordRecovery, lifecycle.ErrNoMainRecord); s.Text != "Сначала создайте основную задачу (нет родителя для RA)." {
		t.Errorf("recovery no main = %q", s.Text)
	}
	parent := SubRecordFailure(domain.SubRecordMechanic, &lifecycle.ParentError{Key: "RA-1", Err: errors.New("HTTP 404")})
	if parent.Text != "⚠️ Не удалось получить данные родителя RA-1.\n<pre>HTTP 404</pre>" {
		t.Errorf("parent = %q", parent.Text)
	}
}

func TestAttemptsReport(t *testing.T) {
	subErr := &lifecycle.SubRecordError{
		Kind:       domain.SubRecordMechanic,
		ProjectKey: "RA",
		Attempts: &lifecycle.AttemptsError{Failures: []lifecycle.AttemptFailure{
			{Label: "parent.id + issuetype.id", Err: errors.New("HTTP 400")},
			{Label: "parent.id + issuetype.name", Err: errors.New("HTTP 400")},
		}},
		ConfigHint: true,
	}
	want := "Не удалось создать подзадачу «Дежмех». Отчёт по попыткам:\n\n" +
		"[parent.id + issuetype.id]\nHTTP 400\n\n" +
		"[parent.id + issuetype.name]\nHTTP 400\n\n\n\n" +
		"Проверь настройки проекта в Jira:\n\n" +
		"— Схема типов проекта «RA» должна содержать тип «Подзадача».\n\n" +
		"— Проверь правильность JIRA_SUBTASK_TYPE_ID / JIRA_SUBTASK_TYPE в .env."
	if got := AttemptsReport(subErr); got != want {
		t.Errorf("report = %q\nwant %q", got, want)
	}

	subErr.ConfigHint = false
	subErr.Kind = domain.SubRecordRecovery
	if got := AttemptsReport(subErr); strings.Contains(got, "Проверь настройки") || !strings.HasPrefix(got, "Не удалось создать подзадачу RA.") {
		t.Errorf("report = %q", got)
	}
}

func TestDispatchNotice(t *testing.T) {
	d := kiaDraft()
	d.SetRef(domain.RefMain, "RA-1")
	s := DispatchNotice(d, "https://t.me/+abc")
	if s.Text != "🚨 Требуется диспетчер по заявке #abcd1234. Jira: RA-1" {
		t.Errorf("text = %q", s.Text)
	}
	if len(s.Keyboard) != 1 || s.Keyboard[0][0].URL != "https://t.me/+abc" {
		t.Errorf("keyboard = %+v", s.Keyboard)
	}
	if bare := DispatchNotice(d, ""); bare.Keyboard != nil {
		t.Errorf("keyboard without invite = %+v", bare.Keyboard)
	}
}

func TestSolvedScreens(t *testing.T) {
	if got := Solved(nil).Text; got != "✅ Отмечено как «Проблема решена»." {
		t.Errorf("solved = %q", got)
	}
	if got := Solved(errors.New("HTTP 403")).Text; got != "⚠️ Не удалось выставить «Проблема решена»: HTTP 403" {
		t.Errorf("solved failure = %q", got)
	}
	if got := FlagFailed(domain.SubRecordRecovery, errors.New("x")).Text; got != "⚠️ Не удалось обновить флаг «Требуется RA»: x" {
		t.Errorf("flag failure = %q", got)
	}
}
