package gateway

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/synapticlabs/synaptic/internal/api"
	"github.com/synapticlabs/synaptic/internal/bus"
	"github.com/synapticlabs/synaptic/internal/config"
	"github.com/synapticlabs/synaptic/internal/session"
)

type mockAssistant struct {
	mu       sync.Mutex
	requests []api.AskRequest
	answer   string
	convID   string
	err      error
}

func (m *mockAssistant) Ask(ctx context.Context, req api.AskRequest) (*api.AskResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &api.AskResponse{Answer: m.answer, ConversationID: m.convID}, nil
}

func (m *mockAssistant) recorded() []api.AskRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]api.AskRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func testGateway(t *testing.T, mock *mockAssistant, cfg *config.Config) *Gateway {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Channels.WebUI.Enabled = false
	}
	g, err := NewWithOptions(cfg, &session.Session{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, Options{
		AssistantFactory: func(*config.Config) (Assistant, error) { return mock, nil },
	})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return g
}

func TestNew_RequiresSession(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.WebUI.Enabled = false
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error without a session")
	}
}

func TestHandleInbound_ConversationContinuity(t *testing.T) {
	mock := &mockAssistant{answer: "hi", convID: "c1"}
	g := testGateway(t, mock, nil)
	ctx := context.Background()

	first := g.handleInbound(ctx, &bus.InboundMessage{Channel: "telegram", ChatID: "42", Content: "hello"})
	if first != "hi" {
		t.Errorf("answer = %q, want hi", first)
	}

	g.handleInbound(ctx, &bus.InboundMessage{Channel: "telegram", ChatID: "42", Content: "again"})
	g.handleInbound(ctx, &bus.InboundMessage{Channel: "telegram", ChatID: "99", Content: "other chat"})

	reqs := mock.recorded()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	if reqs[0].ConversationID != "" {
		t.Errorf("first message should start a new conversation, got %q", reqs[0].ConversationID)
	}
	if reqs[0].UserID != "u1" {
		t.Errorf("user id = %q, want u1", reqs[0].UserID)
	}
	if reqs[1].ConversationID != "c1" {
		t.Errorf("second message should continue c1, got %q", reqs[1].ConversationID)
	}
	if reqs[2].ConversationID != "" {
		t.Errorf("different chat must not share the conversation, got %q", reqs[2].ConversationID)
	}
}

func TestHandleInbound_BackendError(t *testing.T) {
	mock := &mockAssistant{err: fmt.Errorf("connection refused")}
	g := testGateway(t, mock, nil)

	result := g.handleInbound(context.Background(), &bus.InboundMessage{Channel: "webui", ChatID: "webui-1", Content: "hello"})
	if result == "" {
		t.Fatal("error should produce a user-facing message")
	}
	if result == "hello" {
		t.Errorf("result = %q", result)
	}
}

func TestEnsureDigestJob(t *testing.T) {
	mock := &mockAssistant{answer: "digest"}
	cfg := config.DefaultConfig()
	cfg.Channels.WebUI.Enabled = false
	cfg.Digest = config.DigestConfig{Enabled: true, Channel: "telegram", To: "42"}
	g := testGateway(t, mock, cfg)

	if err := g.ensureDigestJob(); err != nil {
		t.Fatalf("ensureDigestJob: %v", err)
	}
	jobs := g.cron.ListJobs()
	if len(jobs) != 1 || jobs[0].Name != digestJobName {
		t.Fatalf("jobs = %v", jobs)
	}
	if !jobs[0].Payload.Deliver || jobs[0].Payload.Channel != "telegram" || jobs[0].Payload.To != "42" {
		t.Errorf("payload = %+v", jobs[0].Payload)
	}
	if jobs[0].Payload.Message != config.DefaultDigestPrompt {
		t.Errorf("prompt = %q", jobs[0].Payload.Message)
	}

	// Idempotent across restarts.
	if err := g.ensureDigestJob(); err != nil {
		t.Fatal(err)
	}
	if len(g.cron.ListJobs()) != 1 {
		t.Error("digest job duplicated")
	}
}

func TestEnsureDigestJob_Disabled(t *testing.T) {
	mock := &mockAssistant{}
	g := testGateway(t, mock, nil)

	if err := g.ensureDigestJob(); err != nil {
		t.Fatal(err)
	}
	if len(g.cron.ListJobs()) != 0 {
		t.Error("digest job created while disabled")
	}
}

func TestRun_SignalShutdown(t *testing.T) {
	mock := &mockAssistant{answer: "ok"}
	t.Setenv("HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Channels.WebUI.Enabled = false

	sigCh := make(chan os.Signal, 1)
	g, err := NewWithOptions(cfg, &session.Session{UserID: "u1"}, Options{
		AssistantFactory: func(*config.Config) (Assistant, error) { return mock, nil },
		SignalChan:       sigCh,
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not shut down on signal")
	}
}

func TestProcessLoop_RoundTrip(t *testing.T) {
	mock := &mockAssistant{answer: "pong", convID: "c1"}
	g := testGateway(t, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan bus.OutboundMessage, 1)
	g.bus.SubscribeOutbound("telegram", func(msg bus.OutboundMessage) { got <- msg })
	go g.bus.DispatchOutbound(ctx)
	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{Channel: "telegram", SenderID: "42", ChatID: "42", Content: "ping"}

	select {
	case msg := <-got:
		if msg.Content != "pong" || msg.ChatID != "42" {
			t.Errorf("outbound = %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no outbound reply")
	}
}
