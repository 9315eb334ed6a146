// Package gateway runs the long-lived serve mode: it pumps channel
// messages through the backend chat API and keeps per-chat conversation
// continuity, plus the scheduled digest job.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/synapticlabs/synaptic/internal/api"
	"github.com/synapticlabs/synaptic/internal/bus"
	"github.com/synapticlabs/synaptic/internal/channel"
	"github.com/synapticlabs/synaptic/internal/config"
	"github.com/synapticlabs/synaptic/internal/cron"
	"github.com/synapticlabs/synaptic/internal/session"
)

const digestJobName = "daily_digest"

// Assistant is the chat surface the gateway talks to (allows mocking in
// tests).
type Assistant interface {
	Ask(ctx context.Context, req api.AskRequest) (*api.AskResponse, error)
}

// AssistantFactory creates an Assistant instance.
type AssistantFactory func(cfg *config.Config) (Assistant, error)

// Options for creating a Gateway.
type Options struct {
	AssistantFactory AssistantFactory
	SignalChan       chan os.Signal // for testing signal handling
}

// DefaultAssistantFactory connects to the configured backend.
func DefaultAssistantFactory(cfg *config.Config) (Assistant, error) {
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend url is not configured")
	}
	return api.NewClient(cfg.Backend.URL), nil
}

type Gateway struct {
	cfg       *config.Config
	sess      *session.Session
	bus       *bus.MessageBus
	assistant Assistant
	channels  *channel.ChannelManager
	cron      *cron.Service

	mu         sync.Mutex
	convByChat map[string]string // session key -> conversation id

	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config, sess *session.Session) (*Gateway, error) {
	return NewWithOptions(cfg, sess, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, sess *session.Session, opts Options) (*Gateway, error) {
	if sess == nil {
		return nil, fmt.Errorf("serve mode requires a signed-in session")
	}

	g := &Gateway{
		cfg:        cfg,
		sess:       sess,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		convByChat: make(map[string]string),
		signalChan: opts.SignalChan,
	}

	factory := opts.AssistantFactory
	if factory == nil {
		factory = DefaultAssistantFactory
	}
	assistant, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	g.assistant = assistant

	g.cron = cron.NewService(filepath.Join(config.ConfigDir(), "data", "cron", "jobs.json"))
	g.cron.OnJob = func(job cron.CronJob) (string, error) {
		resp, err := g.assistant.Ask(context.Background(), api.AskRequest{
			UserID:  g.sess.UserID,
			Message: job.Payload.Message,
		})
		if err != nil {
			return "", err
		}
		if job.Payload.Deliver && job.Payload.Channel != "" {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.To,
				Content: resp.Answer,
			}
		}
		return resp.Answer, nil
	}

	chMgr, err := channel.NewChannelManager(cfg.Channels, cfg.Gateway, g.bus)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// ensureDigestJob registers the daily digest when enabled in config.
func (g *Gateway) ensureDigestJob() error {
	if !g.cfg.Digest.Enabled {
		return nil
	}
	for _, job := range g.cron.ListJobs() {
		if job.Name == digestJobName {
			return nil
		}
	}

	prompt := g.cfg.Digest.Prompt
	if prompt == "" {
		prompt = config.DefaultDigestPrompt
	}
	_, err := g.cron.AddJob(digestJobName,
		cron.Schedule{Kind: "cron", Expr: "0 0 9 * * *"},
		cron.Payload{
			Message: prompt,
			Deliver: true,
			Channel: g.cfg.Digest.Channel,
			To:      g.cfg.Digest.To,
		})
	return err
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.cron.Start(ctx); err != nil {
		log.Printf("[gateway] cron start warning: %v", err)
	}
	if err := g.ensureDigestJob(); err != nil {
		log.Printf("[gateway] ensure digest job warning: %v", err)
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

			result := g.handleInbound(ctx, &msg)
			if result != "" {
				g.bus.Outbound <- bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: result,
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleInbound asks the backend and tracks the conversation id per
// session key, so each chat keeps its own thread across messages.
func (g *Gateway) handleInbound(ctx context.Context, msg *bus.InboundMessage) string {
	key := msg.SessionKey()

	g.mu.Lock()
	convID := g.convByChat[key]
	g.mu.Unlock()

	resp, err := g.assistant.Ask(ctx, api.AskRequest{
		UserID:         g.sess.UserID,
		Message:        msg.Content,
		ConversationID: convID,
	})
	if err != nil {
		log.Printf("[gateway] ask error: %v", err)
		return "Sorry, I couldn't reach the assistant backend. Please try again."
	}

	if resp.ConversationID != "" {
		g.mu.Lock()
		g.convByChat[key] = resp.ConversationID
		g.mu.Unlock()
	}

	return resp.Answer
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	_ = g.channels.StopAll()
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
