// Package discord implements chat.Platform for Discord using the Gateway WebSocket.
// Keyboards become message components and button presses arrive as
// component interactions.
package discord

import (
	"context"
	"fmt"
	"html"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/chat"
)

const (
	platformName = "discord"
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff for rate-limited calls.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
	// Discord allows 5 action rows of 5 buttons each.
	maxRows       = 5
	maxRowButtons = 5
	// inviteMaxAge is how long a dispatcher invite stays valid, in seconds.
	inviteMaxAge = 24 * 60 * 60
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelInviteCreate(channelID string, i discordgo.Invite, options ...discordgo.RequestOption) (*discordgo.Invite, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageEditComplex(m, options...)
}
func (r *realSession) ChannelInviteCreate(channelID string, i discordgo.Invite, options ...discordgo.RequestOption) (*discordgo.Invite, error) {
	return r.s.ChannelInviteCreate(channelID, i, options...)
}
func (r *realSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return r.s.InteractionRespond(interaction, resp, options...)
}

// Adapter implements chat.Platform for Discord.
type Adapter struct {
	sess     session
	botToken string
	logger   *zap.Logger

	mu          sync.Mutex
	connected   bool
	closed      bool
	cancelFunc  context.CancelFunc
	removers    []func()
	pending     map[string]*discordgo.Interaction
	baseBackoff time.Duration
	maxBackoff  time.Duration

	emitMu    sync.RWMutex
	inbound   chan chat.Update
	drained   bool
	listenCtx context.Context
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string
	Logger   *zap.Logger
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Adapter{
		sess:        opts.Session,
		botToken:    opts.BotToken,
		logger:      opts.Logger,
		pending:     make(map[string]*discordgo.Interaction),
		inbound:     make(chan chat.Update, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

func (a *Adapter) Name() string { return platformName }

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	a.removers = append(a.removers, a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.logger.Info("discord connected", zap.String("username", r.User.Username), zap.String("user_id", r.User.ID))
	}))
	a.removers = append(a.removers, a.sess.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		a.logger.Warn("discord gateway disconnected, discordgo will auto-reconnect")
	}))

	if err := a.sess.Open(); err != nil {
		// Connect may be retried; drop the handlers so they are not doubled.
		for _, remove := range a.removers {
			remove()
		}
		a.removers = nil
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// Listen registers message and interaction handlers. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.Update, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}

	listenCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel
	a.emitMu.Lock()
	a.listenCtx = listenCtx
	a.emitMu.Unlock()

	a.removers = append(a.removers,
		a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if u, ok := convertMessage(m); ok {
				a.emit(u)
			}
		}),
		a.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			a.handleInteraction(i)
		}),
	)
	return a.inbound, nil
}

// Send posts a message with optional buttons.
func (a *Adapter) Send(ctx context.Context, chatID string, screen chat.Screen) (chat.MessageRef, error) {
	if err := a.ready(); err != nil {
		return chat.MessageRef{}, err
	}
	data := &discordgo.MessageSend{
		Content:    renderText(screen),
		Components: buildComponents(screen.Keyboard),
	}

	var msg *discordgo.Message
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msg, apiErr = a.sess.ChannelMessageSendComplex(chatID, data)
		return apiErr
	})
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("discord: send message: %w", err)
	}
	return chat.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

// Edit replaces the message content and its components.
func (a *Adapter) Edit(ctx context.Context, ref chat.MessageRef, screen chat.Screen) error {
	edit := discordgo.NewMessageEdit(ref.ChatID, ref.MessageID).SetContent(renderText(screen))
	components := buildComponents(screen.Keyboard)
	edit.Components = &components
	return a.edit(ctx, edit)
}

// EditMenu replaces only the components.
func (a *Adapter) EditMenu(ctx context.Context, ref chat.MessageRef, keyboard chat.Keyboard) error {
	edit := discordgo.NewMessageEdit(ref.ChatID, ref.MessageID)
	components := buildComponents(keyboard)
	edit.Components = &components
	return a.edit(ctx, edit)
}

func (a *Adapter) edit(ctx context.Context, edit *discordgo.MessageEdit) error {
	if err := a.ready(); err != nil {
		return err
	}
	err := a.retryOnRateLimit(ctx, func() error {
		_, apiErr := a.sess.ChannelMessageEditComplex(edit)
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: edit message: %w", err)
	}
	return nil
}

// CreateInvite creates a unique invite to the channel. The bot needs the
// Create Invite permission there.
func (a *Adapter) CreateInvite(ctx context.Context, chatID string) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	var inv *discordgo.Invite
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		inv, apiErr = a.sess.ChannelInviteCreate(chatID, discordgo.Invite{MaxAge: inviteMaxAge, Unique: true})
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: create invite: %w", err)
	}
	return "https://discord.gg/" + inv.Code, nil
}

// Acknowledge defers the update of the message the pressed button belongs to.
// Unknown or already answered interactions are ignored.
func (a *Adapter) Acknowledge(ctx context.Context, callbackID string) error {
	a.mu.Lock()
	i, ok := a.pending[callbackID]
	delete(a.pending, callbackID)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	err := a.sess.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		return fmt.Errorf("discord: acknowledge interaction: %w", err)
	}
	return nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	for _, remove := range a.removers {
		remove()
	}
	a.removers = nil
	sess := a.sess
	a.mu.Unlock()

	a.emitMu.Lock()
	a.drained = true
	close(a.inbound)
	a.emitMu.Unlock()

	if sess != nil {
		return sess.Close()
	}
	return nil
}

func (a *Adapter) ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return fmt.Errorf("discord: not connected")
	}
	return nil
}

// emit delivers an update unless the adapter is shutting down.
func (a *Adapter) emit(u chat.Update) {
	a.emitMu.RLock()
	defer a.emitMu.RUnlock()
	if a.drained || a.listenCtx == nil {
		return
	}
	select {
	case a.inbound <- u:
	case <-a.listenCtx.Done():
	}
}

func (a *Adapter) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	user := interactionUser(i.Interaction)
	if user == nil {
		return
	}

	a.mu.Lock()
	a.pending[i.ID] = i.Interaction
	a.mu.Unlock()

	u := chat.Update{
		Kind:       chat.UpdateCallback,
		ChatID:     i.ChannelID,
		UserID:     user.ID,
		Username:   user.Username,
		Private:    i.GuildID == "",
		CallbackID: i.ID,
		Data:       i.MessageComponentData().CustomID,
	}
	if i.Message != nil {
		u.Message = chat.MessageRef{ChatID: i.ChannelID, MessageID: i.Message.ID}
	}
	a.emit(u)
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// convertMessage maps a gateway message. Bot authors are dropped, which
// also filters the adapter's own messages.
func convertMessage(m *discordgo.MessageCreate) (chat.Update, bool) {
	if m.Message == nil || m.Author == nil || m.Author.Bot {
		return chat.Update{}, false
	}
	u := chat.Update{
		Kind:     chat.UpdateText,
		ChatID:   m.ChannelID,
		UserID:   m.Author.ID,
		Username: m.Author.Username,
		Private:  m.GuildID == "",
		Text:     m.Content,
	}
	if strings.HasPrefix(m.Content, "/") {
		cmd, args, _ := strings.Cut(strings.TrimPrefix(m.Content, "/"), " ")
		if cmd != "" {
			u.Kind = chat.UpdateCommand
			u.Command = cmd
			u.Text = strings.TrimSpace(args)
		}
	}
	return u, true
}

var htmlToMarkdown = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<i>", "*", "</i>", "*",
	"<code>", "`", "</code>", "`",
)

// renderText converts the HTML subset screens use into Discord markdown.
func renderText(screen chat.Screen) string {
	if !screen.HTML {
		return screen.Text
	}
	return html.UnescapeString(htmlToMarkdown.Replace(screen.Text))
}

// buildComponents converts a keyboard into action rows. Keyboards taller
// than Discord allows are repacked row-major into full rows.
func buildComponents(kb chat.Keyboard) []discordgo.MessageComponent {
	rows := kb
	if len(rows) > maxRows {
		rows = repack(kb)
	}
	components := make([]discordgo.MessageComponent, 0, len(rows))
	for _, r := range rows {
		buttons := make([]discordgo.MessageComponent, 0, len(r))
		for _, b := range r {
			if len(buttons) == maxRowButtons {
				break
			}
			buttons = append(buttons, buildButton(b))
		}
		if len(buttons) > 0 {
			components = append(components, discordgo.ActionsRow{Components: buttons})
		}
	}
	return components
}

func repack(kb chat.Keyboard) chat.Keyboard {
	var flat []chat.Button
	for _, r := range kb {
		flat = append(flat, r...)
	}
	var out chat.Keyboard
	for len(flat) > 0 && len(out) < maxRows {
		n := min(len(flat), maxRowButtons)
		out = append(out, flat[:n])
		flat = flat[n:]
	}
	return out
}

func buildButton(b chat.Button) discordgo.Button {
	if b.URL != "" {
		return discordgo.Button{Label: b.Label, Style: discordgo.LinkButton, URL: b.URL}
	}
	return discordgo.Button{Label: b.Label, Style: discordgo.SecondaryButton, CustomID: b.Data}
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}
		a.logger.Warn("discord rate limited",
			zap.Int("attempt", attempt+1), zap.Int("max_retries", maxRetries), zap.Duration("retry_in", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
