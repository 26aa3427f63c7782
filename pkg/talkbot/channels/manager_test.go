package channels

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeChannel is a minimal in-memory Channel for manager tests.
type fakeChannel struct {
	name       string
	connectErr error
	connected  bool
	incoming   chan *IncomingMessage
	sent       []*OutgoingMessage
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, incoming: make(chan *IncomingMessage, 8)}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.connected = false
	close(f.incoming)
	return nil
}

func (f *fakeChannel) Send(ctx context.Context, to string, msg *OutgoingMessage) (string, error) {
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("%s-%d", f.name, len(f.sent)), nil
}

func (f *fakeChannel) Receive() <-chan *IncomingMessage { return f.incoming }
func (f *fakeChannel) IsConnected() bool                { return f.connected }
func (f *fakeChannel) MaxTextLen() int                  { return 4096 }
func (f *fakeChannel) Health() HealthStatus             { return HealthStatus{Connected: f.connected} }

func TestRegisterDuplicate(t *testing.T) {
	m := NewManager(nil)
	if err := m.Register(newFakeChannel("telegram")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.Register(newFakeChannel("telegram")); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestStartAggregatesMessages(t *testing.T) {
	m := NewManager(nil)
	a := newFakeChannel("telegram")
	b := newFakeChannel("discord")
	m.Register(a)
	m.Register(b)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	a.incoming <- &IncomingMessage{Channel: "telegram", Content: "from-a"}
	b.incoming <- &IncomingMessage{Channel: "discord", Content: "from-b"}

	got := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case msg := <-m.Messages():
			got[msg.Content] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for aggregated message")
		}
	}
	if !got["from-a"] || !got["from-b"] {
		t.Errorf("missing messages, got %v", got)
	}

	m.Stop()
}

func TestStopClosesStreamAndReturns(t *testing.T) {
	m := NewManager(nil)
	a := newFakeChannel("telegram")
	b := newFakeChannel("discord")
	m.Register(a)
	m.Register(b)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; listen goroutines still blocked")
	}

	if _, open := <-m.Messages(); open {
		t.Error("aggregated stream should be closed after Stop")
	}
	if a.connected || b.connected {
		t.Error("channels should be disconnected after Stop")
	}
}

func TestStartToleratesPartialFailure(t *testing.T) {
	m := NewManager(nil)
	bad := newFakeChannel("discord")
	bad.connectErr = fmt.Errorf("invalid token")
	good := newFakeChannel("telegram")
	m.Register(bad)
	m.Register(good)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start should succeed with one working channel: %v", err)
	}
	if !good.connected {
		t.Error("working channel should be connected")
	}
	m.Stop()
}

func TestStartFailsWhenAllChannelsFail(t *testing.T) {
	m := NewManager(nil)
	bad := newFakeChannel("telegram")
	bad.connectErr = fmt.Errorf("invalid token")
	m.Register(bad)

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error when no channel connects")
	}
}

func TestSendRoutesToNamedChannel(t *testing.T) {
	m := NewManager(nil)
	ch := newFakeChannel("telegram")
	m.Register(ch)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	id, err := m.Send(context.Background(), "telegram", "42", &OutgoingMessage{Content: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id == "" {
		t.Error("Send should return the platform message ID")
	}
	if len(ch.sent) != 1 || ch.sent[0].Content != "hi" {
		t.Errorf("message not delivered to channel: %+v", ch.sent)
	}

	if _, err := m.Send(context.Background(), "missing", "42", &OutgoingMessage{}); err == nil {
		t.Error("expected error for unknown channel")
	}
}
