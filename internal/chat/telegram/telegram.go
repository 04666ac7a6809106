// Package telegram implements chat.Platform over the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/chat"
)

const platformName = "telegram"

// botAPI abstracts the tgbotapi.BotAPI methods we use, enabling test mocks.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Opts holds parameters for creating an Adapter.
type Opts struct {
	Token       string
	PollTimeout int
	Logger      *zap.Logger
	// For testing: inject a mock API instead of the real Bot API.
	API botAPI
}

// Adapter implements chat.Platform for Telegram.
type Adapter struct {
	api         botAPI
	token       string
	pollTimeout int
	logger      *zap.Logger

	mu        sync.Mutex
	connected bool
	closed    bool
	cancel    context.CancelFunc
}

// New creates a Telegram Adapter.
func New(opts Opts) (*Adapter, error) {
	if opts.API == nil && opts.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	return &Adapter{
		api:         opts.API,
		token:       opts.Token,
		pollTimeout: opts.PollTimeout,
		logger:      opts.Logger,
	}, nil
}

func (a *Adapter) Name() string { return platformName }

// Connect authenticates the bot token (getMe).
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.api == nil {
		bot, err := tgbotapi.NewBotAPI(a.token)
		if err != nil {
			return fmt.Errorf("telegram: authorize: %w", err)
		}
		a.logger.Info("telegram authorized", zap.String("username", bot.Self.UserName))
		a.api = bot
	}
	a.connected = true
	return nil
}

// Listen starts long polling and converts Telegram updates.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.Update, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("telegram: not connected")
	}
	listenCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = a.pollTimeout
	updates := a.api.GetUpdatesChan(cfg)

	out := make(chan chat.Update, 100)
	go func() {
		defer close(out)
		for {
			select {
			case <-listenCtx.Done():
				a.api.StopReceivingUpdates()
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				converted, ok := convertUpdate(u)
				if !ok {
					continue
				}
				select {
				case out <- converted:
				case <-listenCtx.Done():
					a.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out, nil
}

// Send posts an HTML message with an optional inline keyboard.
func (a *Adapter) Send(ctx context.Context, chatID string, screen chat.Screen) (chat.MessageRef, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return chat.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(id, screen.Text)
	if screen.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if markup, ok := buildMarkup(screen.Keyboard); ok {
		msg.ReplyMarkup = markup
	}

	sent, err := a.api.Send(msg)
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("telegram: send: %w", err)
	}
	return chat.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

// Edit replaces the message text and keyboard.
func (a *Adapter) Edit(ctx context.Context, ref chat.MessageRef, screen chat.Screen) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, screen.Text)
	if screen.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if markup, ok := buildMarkup(screen.Keyboard); ok {
		edit.ReplyMarkup = &markup
	}
	return a.request("edit", edit)
}

// EditMenu replaces only the inline keyboard.
func (a *Adapter) EditMenu(ctx context.Context, ref chat.MessageRef, keyboard chat.Keyboard) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	markup, _ := buildMarkup(keyboard)
	return a.request("edit menu", tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, markup))
}

// CreateInvite creates a new invite link. The bot must be an admin of the
// chat with the invite permission.
func (a *Adapter) CreateInvite(ctx context.Context, chatID string) (string, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return "", err
	}
	resp, err := a.api.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: id},
	})
	if err != nil {
		return "", fmt.Errorf("telegram: create invite: %w", err)
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("telegram: decode invite: %w", err)
	}
	return link.InviteLink, nil
}

// Acknowledge answers a callback query.
func (a *Adapter) Acknowledge(ctx context.Context, callbackID string) error {
	return a.request("answer callback", tgbotapi.NewCallback(callbackID, ""))
}

// Close stops polling.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) request(op string, c tgbotapi.Chattable) error {
	if _, err := a.api.Request(c); err != nil {
		if isNotModified(err) {
			return chat.ErrNotModified
		}
		return fmt.Errorf("telegram: %s: %w", op, err)
	}
	return nil
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// convertUpdate maps a Telegram update. Updates without a sender or chat
// are dropped.
func convertUpdate(u tgbotapi.Update) (chat.Update, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil {
			return chat.Update{}, false
		}
		out := chat.Update{
			Kind:     chat.UpdateText,
			ChatID:   strconv.FormatInt(m.Chat.ID, 10),
			UserID:   strconv.FormatInt(m.From.ID, 10),
			Username: m.From.UserName,
			Private:  m.Chat.IsPrivate(),
			Text:     m.Text,
		}
		if m.IsCommand() {
			out.Kind = chat.UpdateCommand
			out.Command = m.Command()
			out.Text = m.CommandArguments()
		}
		return out, true

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return chat.Update{}, false
		}
		chatID := strconv.FormatInt(q.Message.Chat.ID, 10)
		return chat.Update{
			Kind:       chat.UpdateCallback,
			ChatID:     chatID,
			UserID:     strconv.FormatInt(q.From.ID, 10),
			Username:   q.From.UserName,
			Private:    q.Message.Chat.IsPrivate(),
			CallbackID: q.ID,
			Data:       q.Data,
			Message:    chat.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(q.Message.MessageID)},
		}, true
	}
	return chat.Update{}, false
}

// buildMarkup converts a keyboard. ok is false for an empty keyboard.
func buildMarkup(kb chat.Keyboard) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(kb) == 0 {
		return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q", chatID)
	}
	return id, nil
}

func parseRef(ref chat.MessageRef) (int64, int, error) {
	chatID, err := parseChatID(ref.ChatID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid message id %q", ref.MessageID)
	}
	return chatID, msgID, nil
}
