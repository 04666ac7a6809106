// Package bot runs the chat interaction loop: every platform update is one
// unit of work that drives the wizard or the ticket lifecycle and answers
// with a screen.
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/chat"
	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/lifecycle"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
	"github.com/Stagnxzione/ra-userbot/internal/presenter"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
	"github.com/Stagnxzione/ra-userbot/internal/wizard"
	"github.com/Stagnxzione/ra-userbot/pkg/util"
)

const startCommand = "start"

// Options configures a Bot.
type Options struct {
	Platform   chat.Platform
	Engine     *wizard.Engine
	Controller *lifecycle.Controller
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Bot routes updates from one platform.
type Bot struct {
	platform   chat.Platform
	engine     *wizard.Engine
	controller *lifecycle.Controller
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New validates options and builds a Bot.
func New(opts Options) (*Bot, error) {
	if opts.Platform == nil || opts.Engine == nil || opts.Controller == nil {
		return nil, errors.New("bot: platform, engine and controller are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Bot{
		platform:   opts.Platform,
		engine:     opts.Engine,
		controller: opts.Controller,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With(zap.String("platform", opts.Platform.Name())),
	}, nil
}

// SessionID keys the wizard session of one user in one chat.
func SessionID(chatID, userID string) string {
	return chatID + ":" + userID
}

// Run connects the platform and handles updates one at a time until ctx is
// cancelled or the platform stops delivering.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.platform.Connect(ctx); err != nil {
		return err
	}
	updates, err := b.platform.Listen(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			_ = b.Handle(ctx, u)
		}
	}
}

// Handle processes one update. Internal failures are logged and answered
// with a generic line; the error is returned for callers that care.
func (b *Bot) Handle(ctx context.Context, u chat.Update) error {
	if !u.Private {
		return nil
	}

	var err error
	switch u.Kind {
	case chat.UpdateCommand:
		if u.Command == startCommand {
			err = b.start(ctx, u)
		}
	case chat.UpdateText:
		err = b.onText(ctx, u)
	case chat.UpdateCallback:
		err = b.onCallback(ctx, u)
	}

	b.metrics.RecordUpdate(u.Kind.String(), err != nil)
	if err != nil {
		b.logger.Error("update failed",
			zap.String("session_id", SessionID(u.ChatID, u.UserID)),
			zap.String("kind", u.Kind.String()),
			zap.Error(err))
		if _, sendErr := b.platform.Send(ctx, u.ChatID, presenter.Failure()); sendErr != nil {
			b.logger.Warn("failure notice not delivered", zap.Error(sendErr))
		}
	}
	return err
}

// NotifyUser relays a WebApp button press to the user's private chat.
func (b *Bot) NotifyUser(ctx context.Context, userID, action string) error {
	if _, err := b.platform.Send(ctx, userID, presenter.WebAppNotice(action)); err != nil {
		return fmt.Errorf("bot: notify %s: %w", userID, err)
	}
	return nil
}

func (b *Bot) start(ctx context.Context, u chat.Update) error {
	if _, err := b.engine.Start(ctx, SessionID(u.ChatID, u.UserID), user(u)); err != nil {
		return err
	}
	_, err := b.platform.Send(ctx, u.ChatID, presenter.Start())
	return err
}

func user(u chat.Update) wizard.User {
	return wizard.User{ID: u.UserID, Username: u.Username}
}

// session returns the active session; ok is false when a fresh draft was
// started instead.
func (b *Bot) session(ctx context.Context, u chat.Update) (*wizard.Session, bool, error) {
	s, ok, err := b.engine.Lookup(ctx, SessionID(u.ChatID, u.UserID))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, b.start(ctx, u)
	}
	return s, true, nil
}

func (b *Bot) onText(ctx context.Context, u chat.Update) error {
	s, ok, err := b.session(ctx, u)
	if err != nil || !ok {
		return err
	}
	out, err := b.engine.Accept(ctx, s, u.Text)
	if err != nil {
		return err
	}
	if screen, ok := presenter.Outcome(out, s.Draft); ok {
		_, err = b.platform.Send(ctx, u.ChatID, screen)
	}
	return err
}

func (b *Bot) onCallback(ctx context.Context, u chat.Update) error {
	if err := b.platform.Acknowledge(ctx, u.CallbackID); err != nil {
		b.logger.Warn("callback not acknowledged", zap.Error(err))
	}

	s, ok, err := b.session(ctx, u)
	if err != nil || !ok {
		return err
	}
	action, ok := presenter.ParseAction(u.Data)
	if !ok {
		b.logger.Debug("unknown callback payload", zap.String("data", u.Data))
		return nil
	}
	// Buttons of an older draft are dead once a new one started.
	if action.DraftID != "" && action.DraftID != s.Draft.ID {
		return nil
	}

	d := s.Draft
	switch action.Kind {
	case presenter.ActBack:
		return b.wizardStep(ctx, u, d)(b.engine.Back(ctx, s, action.Field))
	case presenter.ActSkip:
		return b.wizardStep(ctx, u, d)(b.engine.Skip(ctx, s, action.Field))
	case presenter.ActSet:
		return b.wizardStep(ctx, u, d)(b.engine.Set(ctx, s, action.Field, action.Code))
	case presenter.ActEditField:
		return b.wizardStep(ctx, u, d)(b.engine.EnterEdit(ctx, s, action.Field))
	case presenter.ActEditCancel:
		return b.wizardStep(ctx, u, d)(b.engine.CancelEdit(ctx, s))
	case presenter.ActOpenEdit:
		return b.edit(ctx, u, presenter.EditList(d))
	case presenter.ActCreate:
		return b.createMain(ctx, u, d)
	case presenter.ActContinue:
		return b.edit(ctx, u, presenter.Continue(d))
	case presenter.ActMechanic:
		return b.createSubRecord(ctx, u, d, domain.SubRecordMechanic)
	case presenter.ActRecovery:
		return b.createSubRecord(ctx, u, d, domain.SubRecordRecovery)
	case presenter.ActSolved:
		err := b.controller.MarkSolved(ctx, d)
		if err != nil && !userFacing(err) {
			return err
		}
		return b.edit(ctx, u, presenter.Solved(err))
	case presenter.ActStatus:
		return b.markStatus(ctx, u, d, action.Status)
	case presenter.ActEscalate:
		return b.escalate(ctx, u, d)
	case presenter.ActClose:
		if err := b.controller.Close(ctx, d); err != nil {
			return err
		}
		return b.edit(ctx, u, presenter.Closed())
	}
	return nil
}

// wizardStep renders a wizard transition into the pressed message.
func (b *Bot) wizardStep(ctx context.Context, u chat.Update, d *domain.Draft) func(wizard.Outcome, error) error {
	return func(out wizard.Outcome, err error) error {
		if err != nil {
			return err
		}
		screen, ok := presenter.Outcome(out, d)
		if !ok {
			return nil
		}
		return b.edit(ctx, u, screen)
	}
}

func (b *Bot) createMain(ctx context.Context, u chat.Update, d *domain.Draft) error {
	key, err := b.controller.CreateMain(ctx, d)
	if err != nil {
		if !userFacing(err) {
			return err
		}
		return b.edit(ctx, u, presenter.CreateFailed(err))
	}
	return b.edit(ctx, u, presenter.Created(d, key))
}

func (b *Bot) createSubRecord(ctx context.Context, u chat.Update, d *domain.Draft, kind domain.SubRecordKind) error {
	res, err := b.controller.CreateSubRecord(ctx, d, kind)
	if err != nil {
		if !userFacing(err) {
			return err
		}
		return b.edit(ctx, u, presenter.SubRecordFailure(kind, err))
	}

	screen := presenter.StatusBoard(d)
	if kind == domain.SubRecordMechanic {
		screen = presenter.MechanicCreated(d, res.Key)
	}
	if err := b.edit(ctx, u, screen); err != nil {
		return err
	}
	if res.FlagErr != nil {
		_, err := b.platform.Send(ctx, u.ChatID, presenter.FlagFailed(kind, res.FlagErr))
		return err
	}
	return nil
}

func (b *Bot) markStatus(ctx context.Context, u chat.Update, d *domain.Draft, key domain.StatusKey) error {
	if _, err := b.controller.MarkStatus(ctx, d, key); err != nil {
		if errors.Is(err, lifecycle.ErrUnknownMilestone) {
			return nil
		}
		return err
	}
	return b.editMenu(ctx, u, presenter.StatusMenu(d))
}

func (b *Bot) escalate(ctx context.Context, u chat.Update, d *domain.Draft) error {
	if _, err := b.controller.Escalate(ctx, d); err != nil {
		if errors.Is(err, lifecycle.ErrDispatchNotConfigured) {
			return b.edit(ctx, u, presenter.ConfigMissing(err))
		}
		return err
	}
	return b.edit(ctx, u, presenter.EscalationSent(d))
}

// edit replaces the pressed message, falling back to a new message when the
// update carries no message reference.
func (b *Bot) edit(ctx context.Context, u chat.Update, screen chat.Screen) error {
	if u.Message.MessageID == "" {
		_, err := b.platform.Send(ctx, u.ChatID, screen)
		return err
	}
	return ignoreNotModified(b.platform.Edit(ctx, u.Message, screen))
}

func (b *Bot) editMenu(ctx context.Context, u chat.Update, kb chat.Keyboard) error {
	if u.Message.MessageID == "" {
		return nil
	}
	return ignoreNotModified(b.platform.EditMenu(ctx, u.Message, kb))
}

func ignoreNotModified(err error) error {
	if chat.IsNotModified(err) {
		return nil
	}
	return err
}

// userFacing reports whether err is a tracker or configuration outcome the
// user should read, rather than an internal failure.
func userFacing(err error) bool {
	var (
		apiErr    *tracker.APIError
		netErr    *tracker.NetworkError
		decodeErr *tracker.DecodeError
		domainErr *util.DomainError
		parentErr *lifecycle.ParentError
		subErr    *lifecycle.SubRecordError
	)
	return errors.Is(err, lifecycle.ErrNoMainRecord) ||
		errors.As(err, &apiErr) ||
		errors.As(err, &netErr) ||
		errors.As(err, &decodeErr) ||
		errors.As(err, &domainErr) ||
		errors.As(err, &parentErr) ||
		errors.As(err, &subErr)
}
