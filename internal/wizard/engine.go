package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/events"
	"github.com/Stagnxzione/ra-userbot/internal/plate"
	"github.com/Stagnxzione/ra-userbot/internal/repository"
)

// OutcomeKind tells the caller what to show next.
type OutcomeKind int

const (
	// AskStep prompts for Outcome.Step.
	AskStep OutcomeKind = iota
	// ShowPreview renders the summary with edit/create actions.
	ShowPreview
	// Rejected re-prompts Outcome.Step with a format hint; nothing changed.
	Rejected
	// Ignored means the input did not apply to the current state.
	Ignored
)

// RejectReason explains a Rejected outcome.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectPlate
	RejectEmpty
)

// Outcome is the result of one wizard transition.
type Outcome struct {
	Kind   OutcomeKind
	Step   domain.FieldKey
	Reason RejectReason
	Hint   plate.Hint
}

// EngineOpts configures an Engine.
type EngineOpts struct {
	Store      repository.DraftRepository
	Sessions   SessionStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// Engine owns every live session slot and applies transitions to them.
// Each mutation is persisted before the outcome is returned.
type Engine struct {
	store      repository.DraftRepository
	sessions   SessionStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.Mutex
	live map[string]*Session
}

// NewEngine validates options and builds an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("wizard: store is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = NewMemorySessionStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      opts.Store,
		sessions:   opts.Sessions,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		now:        opts.Now,
		live:       make(map[string]*Session),
	}, nil
}

// Lookup returns the active session, re-hydrating it from the session store
// and the draft store after a restart. ok is false when none exists.
func (e *Engine) Lookup(ctx context.Context, sessionID string) (*Session, bool, error) {
	e.mu.Lock()
	s, ok := e.live[sessionID]
	e.mu.Unlock()
	if ok {
		return s, true, nil
	}

	st, ok, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	draft, err := e.store.Get(ctx, st.DraftID)
	if errors.Is(err, repository.ErrNotFound) {
		e.logger.Warn("session points at missing draft",
			zap.String("session_id", sessionID), zap.String("draft_id", st.DraftID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("wizard: load draft %s: %w", st.DraftID, err)
	}

	s = newSession(sessionID, draft, st)
	e.mu.Lock()
	e.live[sessionID] = s
	e.mu.Unlock()
	return s, true, nil
}

// GetOrCreate returns the active session or starts a new one.
func (e *Engine) GetOrCreate(ctx context.Context, sessionID string, user User) (*Session, bool, error) {
	s, ok, err := e.Lookup(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return s, false, nil
	}
	s, err = e.Start(ctx, sessionID, user)
	return s, true, err
}

// Start creates a fresh draft and makes it the session's only active draft.
// A previous draft stays in the store untouched.
func (e *Engine) Start(ctx context.Context, sessionID string, user User) (*Session, error) {
	draft := domain.NewDraft(user.ID, user.Username, e.now())
	if err := e.store.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("wizard: create draft: %w", err)
	}

	s := newSession(sessionID, draft, State{DraftID: draft.ID})
	e.mu.Lock()
	e.live[sessionID] = s
	e.mu.Unlock()
	if err := e.persistState(ctx, s); err != nil {
		return nil, err
	}

	e.logger.Info("draft started",
		zap.String("session_id", sessionID),
		zap.String("draft_id", draft.ID),
		zap.String("user_id", user.ID))
	e.publish(ctx, events.New(events.EventDraftStarted, draft, draft.CreatedAt, nil))
	return s, nil
}

// Accept handles free text typed at the current step.
func (e *Engine) Accept(ctx context.Context, s *Session, text string) (Outcome, error) {
	key := s.CurrentKey()
	desc, _ := domain.Step(key)

	var value string
	switch desc.Kind {
	case domain.InputVehiclePlate, domain.InputTrailerPlate:
		norm, ok := plate.Normalize(desc.Kind, text, s.Draft.Brand)
		if !ok {
			hint := plate.TrailerHint()
			if desc.Kind == domain.InputVehiclePlate {
				hint = plate.VehicleHint(s.Draft.Brand)
			}
			return Outcome{Kind: Rejected, Step: key, Reason: RejectPlate, Hint: hint}, nil
		}
		value = norm
	case domain.InputText:
		value = strings.TrimSpace(text)
		if value == "" {
			return Outcome{Kind: Rejected, Step: key, Reason: RejectEmpty}, nil
		}
	default:
		// Choice steps only take menu selections.
		return Outcome{Kind: AskStep, Step: key}, nil
	}

	if err := e.write(ctx, s, key, &value); err != nil {
		return Outcome{}, err
	}
	return e.finish(ctx, s)
}

// Skip clears the given step (or the current one when key is not active)
// and moves on from the current position. A button left on an older prompt
// clears its own field without moving the user back.
func (e *Engine) Skip(ctx context.Context, s *Session, key domain.FieldKey) (Outcome, error) {
	if indexOf(s.Active(), key) < 0 {
		key = s.CurrentKey()
	}
	if err := e.write(ctx, s, key, nil); err != nil {
		return Outcome{}, err
	}
	return e.finish(ctx, s)
}

// Set applies a menu selection for a choice step.
func (e *Engine) Set(ctx context.Context, s *Session, field domain.FieldKey, code string) (Outcome, error) {
	desc, ok := domain.Step(field)
	if !ok || desc.Kind != domain.InputChoice || !domain.HasOption(field, code) {
		return Outcome{Kind: Ignored}, nil
	}

	prev := s.CurrentKey()
	if err := e.write(ctx, s, field, &code); err != nil {
		return Outcome{}, err
	}
	if field == domain.FieldBrand && !s.Jump(prev) {
		// The brand dropped the step the user was on.
		s.step = 0
	}

	if s.editing {
		s.editing = false
		return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
	}
	if s.CurrentKey() == field {
		if s.IsLast() {
			return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
		}
		s.Advance()
	} else if s.IsLast() {
		// An older choice pressed while on the last step goes to the preview.
		return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
	}
	return e.outcome(ctx, s, Outcome{Kind: AskStep, Step: s.CurrentKey()})
}

// EnterEdit jumps to a step and arms the return-to-preview flag.
func (e *Engine) EnterEdit(ctx context.Context, s *Session, key domain.FieldKey) (Outcome, error) {
	if !s.Jump(key) {
		return Outcome{Kind: Ignored}, nil
	}
	s.editing = true
	return e.outcome(ctx, s, Outcome{Kind: AskStep, Step: key})
}

// CancelEdit returns to the preview from the edit menu.
func (e *Engine) CancelEdit(ctx context.Context, s *Session) (Outcome, error) {
	s.editing = false
	return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
}

// Back leaves edit mode for the preview, or moves to the step before key.
func (e *Engine) Back(ctx context.Context, s *Session, key domain.FieldKey) (Outcome, error) {
	if s.editing {
		s.editing = false
		return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
	}
	if i := indexOf(s.Active(), key); i >= 0 {
		s.step = clamp(i-1, len(s.Active()))
	} else {
		s.Retreat()
	}
	return e.outcome(ctx, s, Outcome{Kind: AskStep, Step: s.CurrentKey()})
}

// finish routes after a stored answer: preview when editing or at the end,
// else the next step.
func (e *Engine) finish(ctx context.Context, s *Session) (Outcome, error) {
	if s.editing {
		s.editing = false
		return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
	}
	if s.IsLast() {
		return e.outcome(ctx, s, Outcome{Kind: ShowPreview})
	}
	s.Advance()
	return e.outcome(ctx, s, Outcome{Kind: AskStep, Step: s.CurrentKey()})
}

func (e *Engine) outcome(ctx context.Context, s *Session, out Outcome) (Outcome, error) {
	if err := e.persistState(ctx, s); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// write stores one field value, then appends the audit row. The in-memory
// draft changes only after the column write succeeds.
func (e *Engine) write(ctx context.Context, s *Session, key domain.FieldKey, value *string) error {
	if err := e.store.SaveField(ctx, s.Draft.ID, key.Column(), value); err != nil {
		return fmt.Errorf("wizard: save %s: %w", key, err)
	}
	s.Draft.SetValue(key, value)
	if err := e.store.LogInput(ctx, s.Draft.ID, key, value, e.now().UTC()); err != nil {
		return fmt.Errorf("wizard: log %s: %w", key, err)
	}
	e.logger.Debug("field stored",
		zap.String("draft_id", s.Draft.ID),
		zap.String("field", string(key)),
		zap.Bool("cleared", value == nil))
	return nil
}

func (e *Engine) persistState(ctx context.Context, s *Session) error {
	s.Index()
	if err := e.sessions.Save(ctx, s.ID, s.State()); err != nil {
		return fmt.Errorf("wizard: save session %s: %w", s.ID, err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Publish(ctx, event); err != nil {
		e.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
