package chat

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// SentMessage records a Send call.
type SentMessage struct {
	Ref    MessageRef
	Screen Screen
}

// EditedMessage records an Edit or EditMenu call. Screen.Text is empty for
// menu-only edits.
type EditedMessage struct {
	Ref      MessageRef
	Screen   Screen
	MenuOnly bool
}

// MockPlatform implements Platform for tests. It records outbound calls and
// lets tests push updates with Inject.
type MockPlatform struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan Update
	sent      []SentMessage
	edited    []EditedMessage
	acked     []string
	counter   int

	// InviteErr, SendErr and EditErr make the matching calls fail.
	InviteErr error
	SendErr   error
	EditErr   error
}

// NewMockPlatform creates a MockPlatform with a buffered inbound channel.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{inbound: make(chan Update, 100)}
}

func (m *MockPlatform) Name() string { return "mock" }

// Connect marks the platform as connected.
func (m *MockPlatform) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock platform: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound channel. Must be called after Connect.
func (m *MockPlatform) Listen(ctx context.Context) (<-chan Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock platform: not connected")
	}
	return m.inbound, nil
}

// Inject queues an inbound update.
func (m *MockPlatform) Inject(u Update) {
	m.inbound <- u
}

// Send records the message and assigns it a sequential id.
func (m *MockPlatform) Send(ctx context.Context, chatID string, screen Screen) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return MessageRef{}, m.SendErr
	}
	m.counter++
	ref := MessageRef{ChatID: chatID, MessageID: strconv.Itoa(m.counter)}
	m.sent = append(m.sent, SentMessage{Ref: ref, Screen: screen})
	return ref, nil
}

// Edit records a text edit.
func (m *MockPlatform) Edit(ctx context.Context, ref MessageRef, screen Screen) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	m.edited = append(m.edited, EditedMessage{Ref: ref, Screen: screen})
	return nil
}

// EditMenu records a keyboard-only edit.
func (m *MockPlatform) EditMenu(ctx context.Context, ref MessageRef, keyboard Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	m.edited = append(m.edited, EditedMessage{Ref: ref, Screen: Screen{Keyboard: keyboard}, MenuOnly: true})
	return nil
}

// CreateInvite returns a deterministic link unless InviteErr is set.
func (m *MockPlatform) CreateInvite(ctx context.Context, chatID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InviteErr != nil {
		return "", m.InviteErr
	}
	return "https://invite.example/" + chatID, nil
}

// Acknowledge records the callback id.
func (m *MockPlatform) Acknowledge(ctx context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, callbackID)
	return nil
}

// Close closes the inbound channel.
func (m *MockPlatform) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// Sent returns a copy of all sent messages.
func (m *MockPlatform) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// Edited returns a copy of all edits.
func (m *MockPlatform) Edited() []EditedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EditedMessage(nil), m.edited...)
}

// Acked returns acknowledged callback ids.
func (m *MockPlatform) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}
