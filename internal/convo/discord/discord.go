// Package discord implements the convo Adapter for Discord using the
// Gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ovalle/bedel/internal/convo"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements convo.Adapter for Discord via the Gateway WebSocket.
type Adapter struct {
	sess          session
	botToken      string
	channelID     string // when set, only messages from this channel are accepted
	botUserID     string
	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan convo.InboundMessage
	removeHandler func()
	baseBackoff   time.Duration
	maxBackoff    time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // optional channel restriction and default target
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	a := &Adapter{
		botToken:    opts.BotToken,
		channelID:   opts.ChannelID,
		inbound:     make(chan convo.InboundMessage, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

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

	// Create real session if not injected (production path).
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	// Capture the bot user ID on connect/reconnect for self-filtering.
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages from Discord. Registers a
// message handler on the Gateway session. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan convo.InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	remove := a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})
	a.mu.Lock()
	a.removeHandler = remove
	a.mu.Unlock()

	return a.inbound, nil
}

// Send delivers a message to Discord. Quick-reply options are rendered as
// a numbered list under the text, since plain messages carry no keyboards.
func (a *Adapter) Send(ctx context.Context, msg convo.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}

	content := renderMessage(msg)
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(channelID, content)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// handleMessage converts a Discord message event to an InboundMessage.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	a.mu.Lock()
	botID := a.botUserID
	restrict := a.channelID
	a.mu.Unlock()

	if m.Author.ID == botID {
		return
	}
	// When a channel restriction is configured, ignore other channels.
	if restrict != "" && m.ChannelID != restrict {
		return
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)

	a.inbound <- convo.InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		Timestamp: ts,
	}
}

// renderMessage flattens an OutboundMessage to Discord message content.
func renderMessage(msg convo.OutboundMessage) string {
	if len(msg.Options) == 0 {
		return msg.Text
	}
	var b strings.Builder
	b.WriteString(msg.Text)
	b.WriteString("\n")
	for _, opt := range msg.Options {
		fmt.Fprintf(&b, "\n• %s", opt)
	}
	return b.String()
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
			return err // not a rate limit error
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}
		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
