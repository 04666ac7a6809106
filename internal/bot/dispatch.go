package bot

import (
	"context"

	"github.com/Stagnxzione/ra-userbot/internal/chat"
	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/domain"
	"github.com/Stagnxzione/ra-userbot/internal/lifecycle"
	"github.com/Stagnxzione/ra-userbot/internal/presenter"
)

// dispatchChannel posts escalations to the dispatcher chat on the same
// platform the users talk to.
type dispatchChannel struct {
	platform chat.Platform
	chatID   string
}

// NewDispatch returns the dispatcher channel, or nil when no destination is
// configured so escalation reports the gap instead of failing silently.
func NewDispatch(p chat.Platform, cfg config.DispatchConfig) lifecycle.DispatchChannel {
	if !cfg.Configured() {
		return nil
	}
	return &dispatchChannel{platform: p, chatID: cfg.ChatID}
}

func (d *dispatchChannel) ChatID() string { return d.chatID }

func (d *dispatchChannel) Invite(ctx context.Context) (string, error) {
	return d.platform.CreateInvite(ctx, d.chatID)
}

func (d *dispatchChannel) Notify(ctx context.Context, draft *domain.Draft, inviteURL string) error {
	_, err := d.platform.Send(ctx, d.chatID, presenter.DispatchNotice(draft, inviteURL))
	return err
}
