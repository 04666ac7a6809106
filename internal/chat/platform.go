// Package chat defines the messaging platform contract the bot talks through.
package chat

import (
	"context"
	"errors"
)

// ErrNotModified is returned when an edit would leave a message unchanged.
// Callers treat it as success.
var ErrNotModified = errors.New("chat: message is not modified")

// IsNotModified reports whether err is (or wraps) ErrNotModified.
func IsNotModified(err error) bool {
	return errors.Is(err, ErrNotModified)
}

// Platform is implemented by each chat transport (Telegram, Discord).
type Platform interface {
	// Name identifies the platform in logs and metrics.
	Name() string

	// Connect establishes the platform session.
	Connect(ctx context.Context) error

	// Listen returns inbound updates. The channel is closed when ctx is done
	// or the platform is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan Update, error)

	// Send posts a new message with an optional keyboard.
	Send(ctx context.Context, chatID string, screen Screen) (MessageRef, error)

	// Edit replaces the text and keyboard of an existing message.
	Edit(ctx context.Context, ref MessageRef, screen Screen) error

	// EditMenu replaces only the keyboard of an existing message.
	EditMenu(ctx context.Context, ref MessageRef, keyboard Keyboard) error

	// CreateInvite returns a fresh joinable link for a chat.
	CreateInvite(ctx context.Context, chatID string) (string, error)

	// Acknowledge answers a button press so the client stops its spinner.
	Acknowledge(ctx context.Context, callbackID string) error

	// Close shuts the platform session down.
	Close() error
}

// UpdateKind distinguishes inbound interactions.
type UpdateKind int

const (
	UpdateText UpdateKind = iota
	UpdateCommand
	UpdateCallback
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateCommand:
		return "command"
	case UpdateCallback:
		return "callback"
	}
	return "text"
}

// Update is one inbound user interaction.
type Update struct {
	Kind     UpdateKind
	ChatID   string
	UserID   string
	Username string
	// Private is true for one-to-one chats with the bot.
	Private bool
	// Text is the message body, or the command argument for commands.
	Text    string
	Command string
	// CallbackID and Data are set for button presses.
	CallbackID string
	Data       string
	// Message is the message carrying the pressed button.
	Message MessageRef
}

// MessageRef addresses a sent message.
type MessageRef struct {
	ChatID    string
	MessageID string
}

// Button is one keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Screen is one rendered message.
type Screen struct {
	Text string
	// HTML marks Text as using the <b>/<pre> subset of HTML.
	HTML     bool
	Keyboard Keyboard
}
