package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMockPlatformLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMockPlatform()

	if _, err := m.Listen(ctx); err == nil {
		t.Fatal("Listen before Connect should fail")
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ch, err := m.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	m.Inject(Update{Kind: UpdateText, ChatID: "1", Text: "hi"})
	if u := <-ch; u.Text != "hi" {
		t.Errorf("update = %+v", u)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestMockPlatformRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMockPlatform()

	ref, err := m.Send(ctx, "7", Screen{Text: "a"})
	if err != nil || ref.MessageID != "1" || ref.ChatID != "7" {
		t.Fatalf("Send = %+v, %v", ref, err)
	}
	if err := m.EditMenu(ctx, ref, Keyboard{{{Label: "x", Data: "y"}}}); err != nil {
		t.Fatalf("EditMenu: %v", err)
	}
	if err := m.Acknowledge(ctx, "cb-1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	if len(m.Sent()) != 1 || len(m.Edited()) != 1 || !m.Edited()[0].MenuOnly {
		t.Errorf("sent = %+v, edited = %+v", m.Sent(), m.Edited())
	}
	if got := m.Acked(); len(got) != 1 || got[0] != "cb-1" {
		t.Errorf("acked = %v", got)
	}

	m.InviteErr = errors.New("no rights")
	if _, err := m.CreateInvite(ctx, "-100"); err == nil {
		t.Error("expected invite error")
	}
}

func TestIsNotModified(t *testing.T) {
	if !IsNotModified(fmt.Errorf("telegram: edit: %w", ErrNotModified)) {
		t.Error("wrapped ErrNotModified not detected")
	}
	if IsNotModified(errors.New("Bad Request: chat not found")) {
		t.Error("unrelated error detected as not modified")
	}
}

func TestUpdateKindString(t *testing.T) {
	for kind, want := range map[UpdateKind]string{UpdateText: "text", UpdateCommand: "command", UpdateCallback: "callback"} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
