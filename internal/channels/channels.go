// Package channels defines the channel-neutral message types exchanged
// between the chat platform adapter and the bridge core.
package channels

import "context"

// InboundMessage is one message received from the chat platform.
type InboundMessage struct {
	ChannelID  string
	MessageID  string
	Text       string
	SenderID   string
	SenderName string
}

// OutboundMessage is one message to deliver to the chat platform.
type OutboundMessage struct {
	ChannelID string
	Text      string
}

// ChannelConfig carries adapter credentials.
type ChannelConfig struct {
	Token string
}

// Channel is a connected chat platform adapter.
type Channel interface {
	Connect(ctx context.Context, cfg ChannelConfig) error
	Disconnect() error
	Send(ctx context.Context, msg OutboundMessage) error
	// Typing signals the platform that a reply is being prepared.
	Typing(channelID string) error
	// SetPresence updates the bot's activity line.
	SetPresence(activity string) error
	SetHandler(fn func(InboundMessage))
}
