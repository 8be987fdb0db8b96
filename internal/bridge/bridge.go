// Package bridge relays one Discord channel's messages to and from a
// SillyTavern session and interprets the bot's chat commands.
package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tavernbridge/tavernbridge/internal/channels"
	"github.com/tavernbridge/tavernbridge/internal/logging"
	"github.com/tavernbridge/tavernbridge/internal/webui"
)

// Tavern is the capability surface the bridge needs from the web UI
// session. webui.Session implements it; tests substitute a fake.
type Tavern interface {
	Submit(ctx context.Context, text string) error
	AwaitResponse(ctx context.Context, timeout time.Duration) (string, error)
	SetCharacter(ctx context.Context, name string) error
	SetPersona(ctx context.Context, name string) error
	Character() string
	Close() error
}

// Notifier is the outbound half of the chat platform adapter.
type Notifier interface {
	Send(ctx context.Context, msg channels.OutboundMessage) error
	Typing(channelID string) error
	SetPresence(activity string) error
}

// Connector creates a fresh Tavern session with the given character
// active. Used for the initial connection and for !reconnect.
type Connector func(ctx context.Context, character string) (Tavern, error)

// Options configures the bridge.
type Options struct {
	ChannelID       string
	Prefix          string
	Character       string // character selected at startup
	ResponseTimeout time.Duration
	UsePersonas     bool
	Personas        map[string]string // sender ID -> persona name
}

// Bridge is the single point of serialization between inbound messages
// and the browser session. The mutex is the in-flight gate: one
// submit/await cycle at a time, reconnect and character switches
// included.
type Bridge struct {
	ctx     context.Context
	opts    Options
	notify  Notifier
	connect Connector

	mu     sync.Mutex // in-flight gate; guards tavern and character
	tavern Tavern
	// character is the name reconnect restores. Seeded from Options,
	// updated on every successful !character switch.
	character string
}

// New creates a bridge. Call Connect before wiring it to a channel.
func New(ctx context.Context, opts Options, notify Notifier, connect Connector) *Bridge {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	return &Bridge{
		ctx:       ctx,
		opts:      opts,
		notify:    notify,
		connect:   connect,
		character: opts.Character,
	}
}

// Connect establishes the initial browser session. Failures here are
// fatal to startup; the caller aborts before any Discord connection.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.connect(ctx, b.character)
	if err != nil {
		return err
	}
	b.tavern = t
	return nil
}

// Close releases the browser session.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tavern == nil {
		return nil
	}
	err := b.tavern.Close()
	b.tavern = nil
	return err
}

// Character returns the active character, or "" when disconnected.
func (b *Bridge) Character() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tavern == nil {
		return ""
	}
	return b.tavern.Character()
}

// HandleMessage processes one inbound message. The channel adapter calls
// it off the gateway goroutine, so it may block for the duration of a
// relay; concurrent calls for the same channel are rejected with a busy
// reply instead of interleaving browser access.
func (b *Bridge) HandleMessage(m channels.InboundMessage) {
	if m.ChannelID != b.opts.ChannelID {
		return
	}

	if strings.HasPrefix(m.Text, b.opts.Prefix) {
		b.handleCommand(m)
		return
	}

	if !b.mu.TryLock() {
		b.reply(m.ChannelID, "⏳ Still waiting on the previous message. Please try again in a moment.")
		return
	}
	defer b.mu.Unlock()

	b.relay(m)
}

// relay runs one persona→submit→await→reply cycle. Caller holds the
// gate. Exactly one message is posted back: the response or an error.
func (b *Bridge) relay(m channels.InboundMessage) {
	id := uuid.NewString()[:8]
	logging.Infof("[%s] relaying message from %s", id, m.SenderName)

	if b.tavern == nil {
		b.reply(m.ChannelID, "⚠️ Not connected to SillyTavern. Use "+b.opts.Prefix+"reconnect.")
		return
	}

	_ = b.notify.Typing(m.ChannelID)

	if b.opts.UsePersonas {
		persona := b.opts.Personas[m.SenderID]
		if persona == "" {
			persona = m.SenderName
		}
		if err := b.tavern.SetPersona(b.ctx, persona); err != nil {
			if errors.Is(err, webui.ErrSessionLost) {
				b.reportError(m.ChannelID, err)
				return
			}
			// Persona switching is best-effort.
			logging.Warnf("[%s] persona switch failed: %v", id, err)
		}
	}

	if err := b.tavern.Submit(b.ctx, m.Text); err != nil {
		logging.Errorf("[%s] submit failed: %v", id, err)
		b.reportError(m.ChannelID, err)
		return
	}

	text, err := b.tavern.AwaitResponse(b.ctx, b.opts.ResponseTimeout)
	if err != nil {
		logging.Errorf("[%s] no response: %v", id, err)
		b.reportError(m.ChannelID, err)
		return
	}

	logging.Infof("[%s] relayed response (%d chars)", id, len(text))
	b.reply(m.ChannelID, text)
}

// reportError renders a failure as a single user-visible message named
// by kind. The channel is never left silently unanswered.
func (b *Bridge) reportError(channelID string, err error) {
	var msg string
	switch {
	case errors.Is(err, webui.ErrTimeout):
		msg = "⏳ Timed out waiting for SillyTavern's reply. Try again."
	case errors.Is(err, webui.ErrSessionLost):
		msg = "⚠️ Browser session lost. Use " + b.opts.Prefix + "reconnect to restore it."
	case errors.Is(err, webui.ErrElementNotFound):
		msg = "⚠️ Could not find SillyTavern's chat controls. The page layout may have changed."
	default:
		msg = "❌ Something went wrong relaying that message."
	}
	b.reply(channelID, msg)
}

func (b *Bridge) reply(channelID, text string) {
	if err := b.notify.Send(b.ctx, channels.OutboundMessage{ChannelID: channelID, Text: text}); err != nil {
		logging.Errorf("failed to send reply: %v", err)
	}
}
