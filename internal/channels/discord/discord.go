package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tavernbridge/tavernbridge/internal/channels"
	"github.com/tavernbridge/tavernbridge/internal/logging"

	"github.com/bwmarrin/discordgo"
)

// Discord's message length limit, with headroom for safety.
const maxMessageLen = 1990

// Pause between chunks of a split reply.
const chunkDelay = 500 * time.Millisecond

// Compile-time check: Adapter implements channels.Channel
var _ channels.Channel = (*Adapter)(nil)

// Adapter implements the Channel interface for Discord
type Adapter struct {
	session *discordgo.Session
	handler func(channels.InboundMessage)
	mu      sync.RWMutex
}

// New creates a new Discord adapter
func New() *Adapter {
	return &Adapter{}
}

// Connect establishes connection to Discord
func (a *Adapter) Connect(ctx context.Context, cfg channels.ChannelConfig) error {
	if cfg.Token == "" {
		return fmt.Errorf("discord bot token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	// Register message handler
	session.AddHandler(a.messageHandler)

	// Open connection
	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	a.session = session

	logging.Infof("discord bot connected as %s", session.State.User.Username)
	return nil
}

// Disconnect closes the connection
func (a *Adapter) Disconnect() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

// Send delivers text to a Discord channel, splitting it into chunks when
// it exceeds Discord's message length limit.
func (a *Adapter) Send(ctx context.Context, msg channels.OutboundMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord bot not connected")
	}

	chunks := chunkText(msg.Text, maxMessageLen)
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chunkDelay):
			}
		}
		if _, err := a.session.ChannelMessageSend(msg.ChannelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Typing shows Discord's typing indicator in the channel.
func (a *Adapter) Typing(channelID string) error {
	if a.session == nil {
		return fmt.Errorf("discord bot not connected")
	}
	return a.session.ChannelTyping(channelID)
}

// SetPresence updates the bot's activity line ("Playing <activity>").
func (a *Adapter) SetPresence(activity string) error {
	if a.session == nil {
		return fmt.Errorf("discord bot not connected")
	}
	return a.session.UpdateGameStatus(0, activity)
}

// SetHandler sets the callback for incoming messages
func (a *Adapter) SetHandler(fn func(channels.InboundMessage)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = fn
}

// messageHandler handles incoming Discord messages
func (a *Adapter) messageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from the bot itself
	if m.Author.ID == s.State.User.ID {
		return
	}

	inbound := channels.InboundMessage{
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
		Text:       m.Content,
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()

	if handler != nil {
		// Run off the gateway goroutine so a slow relay never stalls
		// event delivery.
		go handler(inbound)
	}
}

// chunkText splits text into pieces of at most limit runes each, so a
// multi-byte character is never cut in half.
func chunkText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
