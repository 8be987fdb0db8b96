package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tavernbridge/tavernbridge/internal/webui"
)

func TestHelpCommand(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	b, notify := newTestBridge(t, tavern, Options{})

	b.HandleMessage(inbound("!help"))

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "character <name>")
	require.Contains(t, sends[0].Text, "reconnect")
	require.Empty(t, tavern.Calls(), "help must not touch the session")
}

func TestStatusCommand(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	b, notify := newTestBridge(t, tavern, Options{UsePersonas: true})

	b.HandleMessage(inbound("!status"))

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "Seraphina")
	require.Contains(t, sends[0].Text, "Persona mode: enabled")
}

func TestUnknownCommand(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	b, notify := newTestBridge(t, tavern, Options{})

	b.HandleMessage(inbound("!frobnicate"))

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "Unknown command")
	require.Contains(t, sends[0].Text, "!help")
	require.Empty(t, tavern.Calls(), "unknown commands are not forwarded to the web UI")
}

func TestCustomPrefix(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	b, notify := newTestBridge(t, tavern, Options{Prefix: "$"})

	m := inbound("$help")
	b.HandleMessage(m)

	require.Len(t, notify.Sends(), 1)
	require.Empty(t, tavern.Calls())

	// With a $ prefix, "!help" is just conversation.
	b.HandleMessage(inbound("!help"))
	require.Equal(t, []string{"submit:!help", "await"}, tavern.Calls())
}

func TestCharacterCommandSuccess(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	b, notify := newTestBridge(t, tavern, Options{})

	b.HandleMessage(inbound("!character Luna Moon"))

	require.Equal(t, []string{"character:Luna Moon"}, tavern.Calls())
	require.Equal(t, "Luna Moon", tavern.Character())

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "Luna Moon")

	notify.mu.Lock()
	presence := append([]string(nil), notify.presence...)
	notify.mu.Unlock()
	require.Equal(t, []string{"with Luna Moon"}, presence)
}

func TestCharacterCommandNotFound(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	tavern.setCharErr = fmt.Errorf("%q: %w", "Nonexistent", webui.ErrCharacterNotFound)
	b, notify := newTestBridge(t, tavern, Options{})

	b.HandleMessage(inbound("!character Nonexistent"))

	require.Equal(t, "Seraphina", tavern.Character(), "current character must be unchanged")

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "Nonexistent")
	require.Contains(t, sends[0].Text, "not found")
}

func TestCharacterCommandMissingName(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	b, notify := newTestBridge(t, tavern, Options{})

	b.HandleMessage(inbound("!character"))

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "Usage")
	require.Empty(t, tavern.Calls())
}

func TestReconnectReplacesSession(t *testing.T) {
	old := newFakeTavern("Seraphina")
	fresh := newFakeTavern("Seraphina")

	sessions := []*fakeTavern{old, fresh}
	var handed int
	notify := &fakeNotifier{}
	b := New(context.Background(), Options{ChannelID: testChannel, ResponseTimeout: time.Second}, notify,
		func(ctx context.Context, character string) (Tavern, error) {
			s := sessions[handed]
			handed++
			return s, nil
		})
	require.NoError(t, b.Connect(context.Background()))

	b.HandleMessage(inbound("!reconnect"))

	require.Equal(t, 1, old.closed, "old session released exactly once")
	require.Equal(t, 0, fresh.closed)
	require.Equal(t, 2, handed)

	sends := notify.Sends()
	require.Len(t, sends, 2) // announcement + result
	require.Contains(t, sends[1].Text, "Reconnected")

	// New session serves subsequent messages.
	b.HandleMessage(inbound("hello"))
	require.Empty(t, old.Calls())
	require.Equal(t, []string{"submit:hello", "await"}, fresh.Calls())
}

func TestReconnectRestoresSwitchedCharacter(t *testing.T) {
	old := newFakeTavern("Seraphina")
	var requested []string
	notify := &fakeNotifier{}
	b := New(context.Background(), Options{ChannelID: testChannel, ResponseTimeout: time.Second, Character: "Seraphina"}, notify,
		func(ctx context.Context, character string) (Tavern, error) {
			requested = append(requested, character)
			if len(requested) == 1 {
				return old, nil
			}
			return newFakeTavern(character), nil
		})
	require.NoError(t, b.Connect(context.Background()))

	b.HandleMessage(inbound("!character Luna"))
	b.HandleMessage(inbound("!reconnect"))

	// The fresh session is opened with the switched character, not the
	// startup one.
	require.Equal(t, []string{"Seraphina", "Luna"}, requested)
	require.Equal(t, "Luna", b.Character())

	sends := notify.Sends()
	require.Contains(t, sends[len(sends)-1].Text, "Luna")
}

func TestReconnectFailureLeavesCleanState(t *testing.T) {
	old := newFakeTavern("Seraphina")
	first := true
	notify := &fakeNotifier{}
	b := New(context.Background(), Options{ChannelID: testChannel, ResponseTimeout: time.Second}, notify,
		func(ctx context.Context, character string) (Tavern, error) {
			if first {
				first = false
				return old, nil
			}
			return nil, errors.New("browser would not start")
		})
	require.NoError(t, b.Connect(context.Background()))

	b.HandleMessage(inbound("!reconnect"))

	require.Equal(t, 1, old.closed, "old session must be released even on failure")

	sends := notify.Sends()
	require.Len(t, sends, 2)
	require.Contains(t, sends[1].Text, "Failed to reconnect")

	// Bridge is cleanly disconnected, not dangling: a relay attempt is
	// answered with a clear message instead of touching the old handle.
	b.HandleMessage(inbound("hello"))
	require.Empty(t, old.Calls())
	require.Contains(t, notify.Sends()[2].Text, "Not connected")
}

func TestReconnectWaitsForInFlightRelay(t *testing.T) {
	tavern := newFakeTavern("Seraphina")
	tavern.submitStarted = make(chan struct{})
	tavern.submitRelease = make(chan struct{})
	b, _ := newTestBridge(t, tavern, Options{})

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		b.HandleMessage(inbound("hello"))
	}()
	<-tavern.submitStarted

	reconnectDone := make(chan struct{})
	go func() {
		defer close(reconnectDone)
		b.HandleMessage(inbound("!reconnect"))
	}()

	// The gate is held by the relay: the session must not be torn down
	// mid-submit.
	time.Sleep(100 * time.Millisecond)
	tavern.mu.Lock()
	closed := tavern.closed
	tavern.mu.Unlock()
	require.Equal(t, 0, closed, "reconnect must wait for the in-flight exchange")

	close(tavern.submitRelease)
	<-relayDone
	<-reconnectDone

	tavern.mu.Lock()
	closed = tavern.closed
	tavern.mu.Unlock()
	require.Equal(t, 1, closed)
}

func TestCharacterCommandWhenDisconnected(t *testing.T) {
	notify := &fakeNotifier{}
	b := New(context.Background(), Options{ChannelID: testChannel, ResponseTimeout: time.Second}, notify,
		func(ctx context.Context, character string) (Tavern, error) {
			return nil, errors.New("no browser")
		})
	// Never connected.

	b.HandleMessage(inbound("!character Luna"))

	sends := notify.Sends()
	require.Len(t, sends, 1)
	require.Contains(t, sends[0].Text, "Not connected")
}
