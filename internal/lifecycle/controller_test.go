package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/events"
	"github.com/Stagnxzione/ra-userbot/internal/repository"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
)

type trackerUpdate struct {
	Key    string
	Fields tracker.Fields
}

type fakeTracker struct {
	createFn    func(n int, fields tracker.Fields) (string, error)
	created     []tracker.Fields
	updates     []trackerUpdate
	updateErr   error
	links       [][3]string
	record      *tracker.Record
	getErr      error
	types       []tracker.IssueType
	typesCalled int
	required    []tracker.RequiredField
}

func (f *fakeTracker) Create(ctx context.Context, fields tracker.Fields) (string, error) {
	f.created = append(f.created, fields)
	if f.createFn != nil {
		return f.createFn(len(f.created), fields)
	}
	return "RA-1", nil
}

func (f *fakeTracker) Update(ctx context.Context, key string, fields tracker.Fields) error {
	f.updates = append(f.updates, trackerUpdate{Key: key, Fields: fields})
	return f.updateErr
}

func (f *fakeTracker) Link(ctx context.Context, outwardKey, inwardKey, relation string) error {
	f.links = append(f.links, [3]string{outwardKey, inwardKey, relation})
	return nil
}

func (f *fakeTracker) Get(ctx context.Context, key string) (*tracker.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.record != nil {
		return f.record, nil
	}
	return &tracker.Record{ID: "10001", Key: key, ProjectKey: "RA"}, nil
}

func (f *fakeTracker) ListTypes(ctx context.Context) ([]tracker.IssueType, error) {
	f.typesCalled++
	return f.types, nil
}

func (f *fakeTracker) RequiredFields(ctx context.Context, projectKey, issueTypeID string) ([]tracker.RequiredField, error) {
	return f.required, nil
}

type fakeDispatch struct {
	inviteErr error
	notified  []string
}

func (f *fakeDispatch) ChatID() string { return "-100500" }

func (f *fakeDispatch) Invite(ctx context.Context) (string, error) {
	if f.inviteErr != nil {
		return "", f.inviteErr
	}
	return "https://t.me/+invite", nil
}

func (f *fakeDispatch) Notify(ctx context.Context, d *domain.Draft, inviteURL string) error {
	f.notified = append(f.notified, d.ID+"|"+inviteURL)
	return nil
}

func testStore(t *testing.T) repository.DraftRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return repository.NewGormDraftRepository(db)
}

type harness struct {
	ctrl     *Controller
	tracker  *fakeTracker
	store    repository.DraftRepository
	dispatch *fakeDispatch
	events   []events.Event
	draft    *domain.Draft
}

func newHarness(t *testing.T, mutate func(cfg *config.TrackerConfig)) *harness {
	t.Helper()
	h := &harness{tracker: &fakeTracker{}, store: testStore(t), dispatch: &fakeDispatch{}}
	cfg := baseTrackerConfig()
	cfg.SubtaskTypeID = "5"
	if mutate != nil {
		mutate(&cfg)
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(ctx context.Context, e events.Event) error {
			h.events = append(h.events, e)
			return nil
		})
	}

	ctrl, err := NewController(Options{
		Tracker:    h.tracker,
		Store:      h.store,
		Config:     cfg,
		Dispatch:   h.dispatch,
		Dispatcher: dispatcher,
		Now:        func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl

	h.draft = completedDraft()
	if err := h.store.Create(context.Background(), h.draft); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return h
}

func (h *harness) withMain(t *testing.T) {
	t.Helper()
	if _, err := h.ctrl.CreateMain(context.Background(), h.draft); err != nil {
		t.Fatalf("CreateMain: %v", err)
	}
	h.tracker.created = nil
	h.events = nil
}

func TestCreateMainStoresKey(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	key, err := h.ctrl.CreateMain(ctx, h.draft)
	if err != nil {
		t.Fatalf("CreateMain: %v", err)
	}
	if key != "RA-1" || domain.StringValue(h.draft.MainKey) != "RA-1" {
		t.Errorf("key = %q, draft main = %v", key, h.draft.MainKey)
	}
	stored, err := h.store.Get(ctx, h.draft.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if domain.StringValue(stored.MainKey) != "RA-1" {
		t.Errorf("stored main = %v", stored.MainKey)
	}
	if len(h.events) != 1 || h.events[0].Type != events.EventTicketFiled {
		t.Errorf("events = %+v", h.events)
	}

	again, err := h.ctrl.CreateMain(ctx, h.draft)
	if err != nil || again != "RA-1" {
		t.Fatalf("second CreateMain = %q, %v", again, err)
	}
	if len(h.tracker.created) != 1 {
		t.Errorf("tracker called %d times, want 1", len(h.tracker.created))
	}
}

func TestCreateMainFailureLeavesDraft(t *testing.T) {
	h := newHarness(t, nil)
	h.tracker.createFn = func(int, tracker.Fields) (string, error) {
		return "", &tracker.APIError{Status: 400, Messages: []string{"bad"}}
	}

	_, err := h.ctrl.CreateMain(context.Background(), h.draft)
	var apiErr *tracker.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *tracker.APIError", err)
	}
	if h.draft.MainKey != nil {
		t.Error("main key set after failure")
	}
	stored, _ := h.store.Get(context.Background(), h.draft.ID)
	if stored.MainKey != nil {
		t.Error("main key stored after failure")
	}

	h.tracker.createFn = nil
	if _, err := h.ctrl.CreateMain(context.Background(), h.draft); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestCreateMainWithoutCredentials(t *testing.T) {
	h := newHarness(t, func(cfg *config.TrackerConfig) { cfg.APIToken = "" })
	_, err := h.ctrl.CreateMain(context.Background(), h.draft)
	if !errors.Is(err, ErrTrackerNotConfigured) {
		t.Fatalf("err = %v, want ErrTrackerNotConfigured", err)
	}
	if len(h.tracker.created) != 0 {
		t.Error("tracker called without credentials")
	}
}

func TestCreateSubRecordFirstShapeWins(t *testing.T) {
	h := newHarness(t, func(cfg *config.TrackerConfig) {
		cfg.Fields.RequireMechanic = config.FieldMapping{ID: "cf_mech", Kind: config.KindSelect}
		cfg.LinkType = "Relates"
	})
	h.withMain(t)
	h.tracker.createFn = func(int, tracker.Fields) (string, error) { return "RA-2", nil }

	res, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordMechanic)
	if err != nil {
		t.Fatalf("CreateSubRecord: %v", err)
	}
	if res.Key != "RA-2" || res.Attempt != "parent.id + issuetype.id" || res.Reused {
		t.Errorf("result = %+v", res)
	}
	if got := h.tracker.created[0]["summary"]; got != "Дежмех — [Поломка] Sitrak — А1234ВС 77" {
		t.Errorf("summary = %v", got)
	}
	if domain.StringValue(h.draft.MechanicKey) != "RA-2" {
		t.Errorf("mechanic key = %v", h.draft.MechanicKey)
	}
	if len(h.tracker.updates) != 1 || h.tracker.updates[0].Key != "RA-1" {
		t.Errorf("flag updates = %+v", h.tracker.updates)
	}
	if len(h.tracker.links) != 1 || h.tracker.links[0] != [3]string{"RA-1", "RA-2", "Relates"} {
		t.Errorf("links = %v", h.tracker.links)
	}
	if len(h.events) != 1 || h.events[0].Type != events.EventSubRecordFiled {
		t.Errorf("events = %+v", h.events)
	}
}

func TestCreateSubRecordFallsThroughShapes(t *testing.T) {
	h := newHarness(t, nil)
	h.withMain(t)
	h.tracker.createFn = func(n int, fields tracker.Fields) (string, error) {
		if n < 3 {
			return "", &tracker.APIError{Status: 400}
		}
		return "RA-3", nil
	}

	res, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordRecovery)
	if err != nil {
		t.Fatalf("CreateSubRecord: %v", err)
	}
	if res.Attempt != "parent.key + issuetype.id" || len(h.tracker.created) != 3 {
		t.Errorf("attempt = %q after %d calls", res.Attempt, len(h.tracker.created))
	}
	if domain.StringValue(h.draft.RecoveryKey) != "RA-3" {
		t.Errorf("recovery key = %v", h.draft.RecoveryKey)
	}
	if len(h.tracker.updates) != 0 {
		t.Error("flag updated without a mapping")
	}
}

func TestCreateSubRecordAggregatesFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.withMain(t)
	h.tracker.createFn = func(n int, fields tracker.Fields) (string, error) {
		return "", &tracker.APIError{Status: 400, Messages: []string{"attempt failed"}}
	}

	_, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordMechanic)
	var subErr *SubRecordError
	if !errors.As(err, &subErr) {
		t.Fatalf("err = %v, want *SubRecordError", err)
	}
	if !subErr.ConfigHint || subErr.ProjectKey != "RA" {
		t.Errorf("sub error = %+v", subErr)
	}

	labels := []string{
		"[parent.id + issuetype.id]",
		"[parent.id + issuetype.name]",
		"[parent.key + issuetype.id]",
		"[parent.key + issuetype.name]",
	}
	report := err.Error()
	last := -1
	for _, l := range labels {
		i := strings.Index(report, l)
		if i <= last {
			t.Fatalf("label %s out of order in %q", l, report)
		}
		last = i
	}
	if n := strings.Count(report, "HTTP 400\nerrorMessages:\n  - attempt failed"); n != 4 {
		t.Errorf("sections = %d, want 4", n)
	}
	if h.draft.MechanicKey != nil {
		t.Error("mechanic key set after failure")
	}
}

func TestCreateSubRecordHintSuppressedWithRequiredFields(t *testing.T) {
	h := newHarness(t, nil)
	h.withMain(t)
	h.tracker.required = []tracker.RequiredField{{ID: "summary"}}
	h.tracker.createFn = func(int, tracker.Fields) (string, error) { return "", errors.New("nope") }

	_, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordMechanic)
	var subErr *SubRecordError
	if !errors.As(err, &subErr) || subErr.ConfigHint {
		t.Fatalf("err = %#v", err)
	}
}

func TestCreateSubRecordGuessesType(t *testing.T) {
	h := newHarness(t, func(cfg *config.TrackerConfig) { cfg.SubtaskTypeID = "" })
	h.withMain(t)
	h.tracker.types = []tracker.IssueType{{ID: "1", Name: "Task"}, {ID: "9", Name: "Подзадача", Subtask: true}}

	if _, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordMechanic); err != nil {
		t.Fatalf("CreateSubRecord: %v", err)
	}
	if h.tracker.typesCalled != 1 {
		t.Errorf("ListTypes calls = %d", h.tracker.typesCalled)
	}
	if got := flatten(h.tracker.created[0]["issuetype"]); got != "id=9" {
		t.Errorf("issuetype = %s", got)
	}
}

func TestCreateSubRecordPreconditions(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordMechanic); !errors.Is(err, ErrNoMainRecord) {
		t.Fatalf("err = %v, want ErrNoMainRecord", err)
	}

	h.withMain(t)
	h.tracker.getErr = &tracker.NetworkError{Err: errors.New("timeout")}
	_, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordMechanic)
	var parentErr *ParentError
	if !errors.As(err, &parentErr) || parentErr.Key != "RA-1" {
		t.Fatalf("err = %v, want *ParentError", err)
	}
	if len(h.tracker.created) != 0 {
		t.Error("create attempted without parent")
	}
}

func TestCreateSubRecordReusesExisting(t *testing.T) {
	h := newHarness(t, nil)
	h.withMain(t)
	h.draft.SetRef(domain.RefRecovery, "RA-9")

	res, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordRecovery)
	if err != nil {
		t.Fatalf("CreateSubRecord: %v", err)
	}
	if !res.Reused || res.Key != "RA-9" || len(h.tracker.created) != 0 {
		t.Errorf("result = %+v, creates = %d", res, len(h.tracker.created))
	}
}

func TestFlagFailureDoesNotUndoSubRecord(t *testing.T) {
	h := newHarness(t, func(cfg *config.TrackerConfig) {
		cfg.Fields.RequireRecovery = config.FieldMapping{ID: "cf_ra", Kind: config.KindSelect}
	})
	h.withMain(t)
	h.tracker.updateErr = errors.New("HTTP 400")

	res, err := h.ctrl.CreateSubRecord(context.Background(), h.draft, domain.SubRecordRecovery)
	if err != nil {
		t.Fatalf("CreateSubRecord: %v", err)
	}
	if res.FlagErr == nil {
		t.Error("flag failure not reported")
	}
	if h.draft.RecoveryKey == nil {
		t.Error("sub-record dropped after flag failure")
	}
}

func TestMarkSolved(t *testing.T) {
	h := newHarness(t, func(cfg *config.TrackerConfig) {
		cfg.Fields.ProblemSolved = config.FieldMapping{ID: "cf_solved", Kind: config.KindSelect}
	})
	ctx := context.Background()
	if err := h.ctrl.MarkSolved(ctx, h.draft); !errors.Is(err, ErrNoMainRecord) {
		t.Fatalf("err = %v, want ErrNoMainRecord", err)
	}

	h.withMain(t)
	if err := h.ctrl.MarkSolved(ctx, h.draft); err != nil {
		t.Fatalf("MarkSolved: %v", err)
	}
	if len(h.tracker.updates) != 1 || flatten(h.tracker.updates[0].Fields["cf_solved"]) != "value=Да" {
		t.Errorf("updates = %+v", h.tracker.updates)
	}

	h.tracker.updateErr = errors.New("HTTP 403")
	if err := h.ctrl.MarkSolved(ctx, h.draft); err == nil {
		t.Error("expected update failure to surface")
	}
}

func TestMarkSolvedWithoutFlagIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.withMain(t)
	if err := h.ctrl.MarkSolved(context.Background(), h.draft); err != nil {
		t.Fatalf("MarkSolved: %v", err)
	}
	if len(h.tracker.updates) != 0 {
		t.Error("update sent without a flag mapping")
	}
}

func TestMarkStatusTwice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	repeat, err := h.ctrl.MarkStatus(ctx, h.draft, domain.StatusRepair)
	if err != nil || repeat {
		t.Fatalf("first MarkStatus = %v, %v", repeat, err)
	}
	repeat, err = h.ctrl.MarkStatus(ctx, h.draft, domain.StatusRepair)
	if err != nil || !repeat {
		t.Fatalf("second MarkStatus = %v, %v", repeat, err)
	}

	stored, _ := h.store.Get(ctx, h.draft.ID)
	if len(stored.StatusDone) != 1 {
		t.Errorf("done set = %v", stored.StatusDone)
	}
	history, err := h.store.ListStatusHistory(ctx, h.draft.ID)
	if err != nil {
		t.Fatalf("ListStatusHistory: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history = %d entries, want 2", len(history))
	}

	if _, err := h.ctrl.MarkStatus(ctx, h.draft, "teleport"); !errors.Is(err, ErrUnknownMilestone) {
		t.Errorf("err = %v, want ErrUnknownMilestone", err)
	}
}

func TestMarkStatusOutOfOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.ctrl.MarkStatus(ctx, h.draft, domain.StatusResume); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}
	if !h.draft.IsDone(domain.StatusResume) || h.draft.IsDone(domain.StatusArrive) {
		t.Errorf("done = %v", h.draft.StatusDone)
	}
}

func TestEscalate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	withInvite, err := h.ctrl.Escalate(ctx, h.draft)
	if err != nil || !withInvite {
		t.Fatalf("Escalate = %v, %v", withInvite, err)
	}
	h.dispatch.inviteErr = errors.New("not enough rights")
	withInvite, err = h.ctrl.Escalate(ctx, h.draft)
	if err != nil || withInvite {
		t.Fatalf("Escalate without invite = %v, %v", withInvite, err)
	}

	want := []string{h.draft.ID + "|https://t.me/+invite", h.draft.ID + "|"}
	if len(h.dispatch.notified) != 2 || h.dispatch.notified[0] != want[0] || h.dispatch.notified[1] != want[1] {
		t.Errorf("notified = %v, want %v", h.dispatch.notified, want)
	}
}

func TestEscalateWithoutChannel(t *testing.T) {
	ctrl, err := NewController(Options{Store: testStore(t)})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if _, err := ctrl.Escalate(context.Background(), completedDraft()); !errors.Is(err, ErrDispatchNotConfigured) {
		t.Fatalf("err = %v, want ErrDispatchNotConfigured", err)
	}
}

func TestCloseIsLocal(t *testing.T) {
	h := newHarness(t, nil)
	h.withMain(t)
	ctx := context.Background()

	if err := h.ctrl.Close(ctx, h.draft); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !h.draft.IsClosed() {
		t.Error("draft not closed")
	}
	stored, _ := h.store.Get(ctx, h.draft.ID)
	if stored.ClosedAt == nil || !stored.ClosedAt.Equal(fixedNow) {
		t.Errorf("closed_at = %v", stored.ClosedAt)
	}
	if len(h.tracker.created)+len(h.tracker.updates) != 0 {
		t.Error("close reached the tracker")
	}
}
