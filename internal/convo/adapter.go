// Package convo implements the conversation core of the Bedel helpdesk
// bot: per-user sessions, the guided ticket flow, intent routing, ticket
// submission, and the dispatcher that ties them to a chat platform.
package convo

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message
// sending/receiving for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string    // e.g. "slack", "discord"
	ChannelID string    // platform-specific channel identifier
	UserID    string    // platform-specific user identifier, stable per user
	UserName  string    // human-readable username
	Text      string    // raw message text
	Timestamp time.Time // when the message was sent
}

// OutboundMessage represents a message to be sent to the chat platform.
// Options, when present, is a closed set of replies the user is expected
// to pick from; adapters without native quick replies render them as text.
type OutboundMessage struct {
	ChannelID string   // target channel
	Text      string   // message text
	Options   []string // optional quick-reply choices
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
