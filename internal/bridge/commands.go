package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tavernbridge/tavernbridge/internal/channels"
	"github.com/tavernbridge/tavernbridge/internal/logging"
	"github.com/tavernbridge/tavernbridge/internal/webui"
)

// handleCommand dispatches a prefixed message. Commands that touch the
// browser session take the full in-flight gate, waiting for any relay in
// progress rather than tearing the session down mid-submit.
func (b *Bridge) handleCommand(m channels.InboundMessage) {
	body := strings.TrimPrefix(m.Text, b.opts.Prefix)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		b.replyUnknown(m.ChannelID, body)
		return
	}

	switch fields[0] {
	case "help":
		b.reply(m.ChannelID, b.helpText())
	case "status":
		b.replyStatus(m.ChannelID)
	case "reconnect":
		b.reconnect(m.ChannelID)
	case "character":
		name := strings.TrimSpace(strings.TrimPrefix(body, "character"))
		b.changeCharacter(m.ChannelID, name)
	default:
		b.replyUnknown(m.ChannelID, fields[0])
	}
}

func (b *Bridge) helpText() string {
	p := b.opts.Prefix
	return "Talk to the active SillyTavern character by typing in this channel.\n" +
		"Commands:\n" +
		"`" + p + "help` — show this message\n" +
		"`" + p + "status` — connection state and active character\n" +
		"`" + p + "character <name>` — switch the active character\n" +
		"`" + p + "reconnect` — tear down and recreate the browser session"
}

func (b *Bridge) replyStatus(channelID string) {
	b.mu.Lock()
	connected := b.tavern != nil
	character := ""
	if connected {
		character = b.tavern.Character()
	}
	b.mu.Unlock()

	var sb strings.Builder
	if connected {
		sb.WriteString("✅ Connected to SillyTavern.\n")
		sb.WriteString("Current character: `" + character + "`\n")
	} else {
		sb.WriteString("❌ Not connected to SillyTavern.\n")
	}
	if b.opts.UsePersonas {
		sb.WriteString("Persona mode: enabled")
	} else {
		sb.WriteString("Persona mode: disabled")
	}
	b.reply(channelID, sb.String())
}

func (b *Bridge) replyUnknown(channelID, attempted string) {
	p := b.opts.Prefix
	b.reply(channelID, fmt.Sprintf("❓ Unknown command %q. Valid commands: `%shelp`, `%sstatus`, `%scharacter <name>`, `%sreconnect`.",
		attempted, p, p, p, p))
}

// reconnect discards the current session and creates a fresh one with
// the currently tracked character, so a !character switch survives. The
// old handle is always released before the new one is created; on
// failure the bridge is left cleanly disconnected, never dangling.
func (b *Bridge) reconnect(channelID string) {
	b.reply(channelID, "Reconnecting to SillyTavern...")

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tavern != nil {
		if err := b.tavern.Close(); err != nil {
			logging.Warnf("error closing old session: %v", err)
		}
		b.tavern = nil
	}

	t, err := b.connect(b.ctx, b.character)
	if err != nil {
		logging.Errorf("reconnect failed: %v", err)
		b.reply(channelID, "❌ Failed to reconnect to SillyTavern. Check the logs and configuration.")
		return
	}
	b.tavern = t

	b.reply(channelID, "✅ Reconnected to SillyTavern with character: `"+t.Character()+"`")
	_ = b.notify.SetPresence("with " + t.Character())
}

// changeCharacter switches the active character. On a miss the current
// character is left unchanged and the reply names the attempted value.
func (b *Bridge) changeCharacter(channelID, name string) {
	if name == "" {
		b.reply(channelID, "Usage: `"+b.opts.Prefix+"character <name>`")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tavern == nil {
		b.reply(channelID, "⚠️ Not connected to SillyTavern. Use "+b.opts.Prefix+"reconnect first.")
		return
	}

	if err := b.tavern.SetCharacter(b.ctx, name); err != nil {
		if errors.Is(err, webui.ErrCharacterNotFound) {
			b.reply(channelID, fmt.Sprintf("❌ Character %q not found. Check the name in SillyTavern.", name))
			return
		}
		b.reportError(channelID, err)
		return
	}

	b.character = name
	b.reply(channelID, "✅ Switched character to: `"+name+"`")
	_ = b.notify.SetPresence("with " + name)
}
