// Package lifecycle files a finished draft with the issue tracker and drives
// the follow-up actions: sub-records, flags, milestones, escalation, close.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/events"
	"github.com/Stagnxzione/ra-userbot/internal/repository"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
	"github.com/Stagnxzione/ra-userbot/pkg/util"
)

var (
	// ErrTrackerNotConfigured stops every tracker operation when credentials are absent.
	ErrTrackerNotConfigured = util.NewConfigMissing("Не задана конфигурация Jira (JIRA_BASE_URL, JIRA_EMAIL, JIRA_API_TOKEN).")
	// ErrDispatchNotConfigured stops escalation when no dispatch channel is set.
	ErrDispatchNotConfigured = util.NewConfigMissing("Не задан DISPATCH_CHAT_ID в .env — некуда отправлять сообщение для диспетчера.")
	// ErrNoMainRecord means the action needs a filed main record first.
	ErrNoMainRecord = errors.New("lifecycle: main record not created")
	// ErrUnknownMilestone rejects status keys outside the status flow.
	ErrUnknownMilestone = errors.New("lifecycle: unknown milestone")
)

// ParentError reports that the main record could not be read back.
type ParentError struct {
	Key string
	Err error
}

func (e *ParentError) Error() string { return fmt.Sprintf("parent %s: %v", e.Key, e.Err) }

func (e *ParentError) Unwrap() error { return e.Err }

// SubRecordError is returned when every creation shape failed.
type SubRecordError struct {
	Kind       domain.SubRecordKind
	ProjectKey string
	Attempts   *AttemptsError
	// ConfigHint is set when the tracker reported no required fields for the
	// sub-task type, which usually means the type is missing from the project.
	ConfigHint bool
}

func (e *SubRecordError) Error() string { return e.Attempts.Error() }

func (e *SubRecordError) Unwrap() error { return e.Attempts }

// SubRecordResult describes a filed (or reused) sub-record.
type SubRecordResult struct {
	Key     string
	Reused  bool
	Attempt string
	// FlagErr is a failed best-effort flag update on the main record.
	FlagErr error
	// LinkErr is a failed best-effort issue link.
	LinkErr error
}

// DispatchChannel delivers escalations to the dispatcher chat.
type DispatchChannel interface {
	ChatID() string
	Invite(ctx context.Context) (string, error)
	Notify(ctx context.Context, draft *domain.Draft, inviteURL string) error
}

// Options configures a Controller.
type Options struct {
	Tracker    tracker.Client
	Store      repository.DraftRepository
	Config     config.TrackerConfig
	Dispatch   DispatchChannel
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// Controller sequences tracker and store calls for a finished draft.
type Controller struct {
	tracker    tracker.Client
	store      repository.DraftRepository
	cfg        config.TrackerConfig
	payloads   PayloadBuilder
	dispatch   DispatchChannel
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewController validates options and builds a Controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("lifecycle: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		tracker:    opts.Tracker,
		store:      opts.Store,
		cfg:        opts.Config,
		payloads:   NewPayloadBuilder(opts.Config, opts.Now),
		dispatch:   opts.Dispatch,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		now:        opts.Now,
	}, nil
}

// CreateMain files the main record. A draft that already has one returns the
// stored key. On failure the draft is left untouched and the call may be
// repeated.
func (c *Controller) CreateMain(ctx context.Context, d *domain.Draft) (string, error) {
	if d.MainKey != nil {
		return *d.MainKey, nil
	}
	if err := c.ready(); err != nil {
		return "", err
	}

	fields := c.payloads.Main(d)
	key, err := c.tracker.Create(ctx, fields)
	if err != nil {
		c.logger.Warn("main record rejected", zap.String("draft_id", d.ID), zap.Error(err))
		return "", err
	}
	if err := c.saveRef(ctx, d, domain.RefMain, key); err != nil {
		return "", err
	}

	c.logger.Info("main record filed", zap.String("draft_id", d.ID), zap.String("tracker_key", key))
	c.publish(ctx, events.New(events.EventTicketFiled, d, c.now().UTC(), events.TicketFiledPayload{
		TrackerKey: key,
		Summary:    Summary(d),
	}))
	return key, nil
}

// CreateSubRecord files a mechanic or recovery sub-record under the main
// record, trying every payload shape in order.
func (c *Controller) CreateSubRecord(ctx context.Context, d *domain.Draft, kind domain.SubRecordKind) (SubRecordResult, error) {
	if d.MainKey == nil {
		return SubRecordResult{}, ErrNoMainRecord
	}
	if existing := d.Ref(kind.Ref()); existing != nil {
		return SubRecordResult{Key: *existing, Reused: true}, nil
	}
	if err := c.ready(); err != nil {
		return SubRecordResult{}, err
	}

	mainKey := *d.MainKey
	rec, err := c.tracker.Get(ctx, mainKey)
	if err != nil {
		return SubRecordResult{}, &ParentError{Key: mainKey, Err: err}
	}
	parent := SubRecordParent{ID: rec.ID, Key: mainKey, ProjectKey: rec.ProjectKey}
	if parent.ProjectKey == "" {
		parent.ProjectKey = c.cfg.ProjectKey
	}

	typeID := c.subtaskTypeID(ctx)
	var required []tracker.RequiredField
	if typeID != "" {
		required, err = c.tracker.RequiredFields(ctx, parent.ProjectKey, typeID)
		if err != nil {
			c.logger.Debug("createmeta lookup failed", zap.String("project", parent.ProjectKey), zap.Error(err))
		}
	}

	summary := kind.Title() + " — " + Summary(d)
	attempts := make([]Attempt[string], 0, len(SubRecordShapes))
	for _, shape := range SubRecordShapes {
		fields := c.payloads.SubRecord(kind, summary, parent, typeID, shape)
		attempts = append(attempts, Attempt[string]{
			Label: shape.Label,
			Run: func(ctx context.Context) (string, error) {
				return c.tracker.Create(ctx, fields)
			},
		})
	}

	key, label, err := FirstSuccess(ctx, attempts)
	if err != nil {
		var attemptsErr *AttemptsError
		errors.As(err, &attemptsErr)
		c.logger.Warn("sub-record rejected on every attempt",
			zap.String("draft_id", d.ID),
			zap.String("kind", string(kind)),
			zap.Int("attempts", len(attempts)))
		return SubRecordResult{}, &SubRecordError{
			Kind:       kind,
			ProjectKey: parent.ProjectKey,
			Attempts:   attemptsErr,
			ConfigHint: len(required) == 0,
		}
	}
	if err := c.saveRef(ctx, d, kind.Ref(), key); err != nil {
		return SubRecordResult{}, err
	}

	result := SubRecordResult{Key: key, Attempt: label}
	if patch, ok := c.payloads.FlagPatch(c.subRecordFlag(kind)); ok {
		if err := c.tracker.Update(ctx, mainKey, patch); err != nil {
			c.logger.Warn("flag update failed", zap.String("tracker_key", mainKey), zap.Error(err))
			result.FlagErr = err
		}
	}
	if c.cfg.LinkType != "" {
		if err := c.tracker.Link(ctx, mainKey, key, c.cfg.LinkType); err != nil {
			c.logger.Warn("issue link failed", zap.String("tracker_key", key), zap.Error(err))
			result.LinkErr = err
		}
	}

	c.logger.Info("sub-record filed",
		zap.String("draft_id", d.ID),
		zap.String("kind", string(kind)),
		zap.String("tracker_key", key),
		zap.String("attempt", label))
	c.publish(ctx, events.New(events.EventSubRecordFiled, d, c.now().UTC(), events.SubRecordFiledPayload{
		Kind:       kind,
		ParentKey:  mainKey,
		TrackerKey: key,
		Attempt:    label,
	}))
	return result, nil
}

// MarkSolved flips the "problem solved" flag on the main record. Without a
// configured select flag there is nothing to update and it succeeds.
func (c *Controller) MarkSolved(ctx context.Context, d *domain.Draft) error {
	if d.MainKey == nil {
		return ErrNoMainRecord
	}
	patch, ok := c.payloads.FlagPatch(c.cfg.Fields.ProblemSolved)
	if !ok {
		return nil
	}
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.tracker.Update(ctx, *d.MainKey, patch); err != nil {
		c.logger.Warn("solved flag update failed", zap.String("tracker_key", *d.MainKey), zap.Error(err))
		return err
	}
	return nil
}

// MarkStatus records a milestone. Marking it again keeps the first done time
// but still appends to the status history; repeat reports that case.
func (c *Controller) MarkStatus(ctx context.Context, d *domain.Draft, key domain.StatusKey) (bool, error) {
	if !domain.IsMilestone(key) {
		return false, ErrUnknownMilestone
	}
	now := c.now().UTC()
	repeat := d.IsDone(key)
	if err := c.store.MarkStatusDone(ctx, d.ID, key, now); err != nil {
		return false, fmt.Errorf("lifecycle: mark %s: %w", key, err)
	}
	if !repeat {
		if d.StatusDone == nil {
			d.StatusDone = make(map[domain.StatusKey]time.Time)
		}
		d.StatusDone[key] = now
	}
	c.publish(ctx, events.New(events.EventStatusMarked, d, now, events.StatusMarkedPayload{
		Status: key,
		Repeat: repeat,
	}))
	return repeat, nil
}

// Escalate notifies the dispatcher chat. A failed invite still sends the
// notification, just without a link. It reports whether a link was attached.
func (c *Controller) Escalate(ctx context.Context, d *domain.Draft) (bool, error) {
	if c.dispatch == nil {
		return false, ErrDispatchNotConfigured
	}

	invite, err := c.dispatch.Invite(ctx)
	if err != nil {
		c.logger.Warn("dispatch invite failed", zap.String("draft_id", d.ID), zap.Error(err))
		invite = ""
	}
	if err := c.dispatch.Notify(ctx, d, invite); err != nil {
		return false, fmt.Errorf("lifecycle: notify dispatcher: %w", err)
	}

	withInvite := invite != ""
	c.publish(ctx, events.New(events.EventDispatcherNotified, d, c.now().UTC(), events.DispatcherNotifiedPayload{
		ChatID:     c.dispatch.ChatID(),
		WithInvite: withInvite,
	}))
	return withInvite, nil
}

// Close marks the draft closed locally. The tracker is not touched.
func (c *Controller) Close(ctx context.Context, d *domain.Draft) error {
	now := c.now().UTC()
	if err := c.store.Close(ctx, d.ID, now); err != nil {
		return fmt.Errorf("lifecycle: close %s: %w", d.ID, err)
	}
	d.ClosedAt = &now
	c.publish(ctx, events.New(events.EventDraftClosed, d, now, nil))
	return nil
}

func (c *Controller) ready() error {
	if c.tracker == nil || !c.cfg.Configured() {
		return ErrTrackerNotConfigured
	}
	return nil
}

func (c *Controller) subtaskTypeID(ctx context.Context) string {
	if c.cfg.SubtaskTypeID != "" {
		return c.cfg.SubtaskTypeID
	}
	types, err := c.tracker.ListTypes(ctx)
	if err != nil {
		c.logger.Warn("issue type lookup failed", zap.Error(err))
		return ""
	}
	for _, t := range types {
		if t.Subtask {
			return t.ID
		}
	}
	return ""
}

func (c *Controller) subRecordFlag(kind domain.SubRecordKind) config.FieldMapping {
	if kind == domain.SubRecordMechanic {
		return c.cfg.Fields.RequireMechanic
	}
	return c.cfg.Fields.RequireRecovery
}

func (c *Controller) saveRef(ctx context.Context, d *domain.Draft, ref domain.RefKey, key string) error {
	if err := c.store.SaveField(ctx, d.ID, ref.Column(), &key); err != nil {
		return fmt.Errorf("lifecycle: store %s: %w", ref, err)
	}
	d.SetRef(ref, key)
	return nil
}

func (c *Controller) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
