package webui

import "strings"

// message is a snapshot of one chat message element. The session builds
// these from the live DOM; the scanning logic below is pure so it can be
// tested without a browser.
type message struct {
	// ID is the element's id attribute, its mesid attribute, or the
	// element index as a string when neither is present.
	ID string
	// Character is the speaking character, from the ch or ch_name
	// attribute. Empty for user-authored messages.
	Character string
	Text      string
}

// markerIndex returns the index of the message with the given ID, or -1
// if the marker is not present (chat reloaded, history trimmed).
func markerIndex(msgs []message, marker string) int {
	if marker == "" {
		return -1
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == marker {
			return i
		}
	}
	return -1
}

// pickResponse scans for messages after the marker spoken by the given
// character. When several arrived between polls it returns the last one
// and a marker past everything seen, so stale replies are never
// re-delivered.
func pickResponse(msgs []message, marker, character string) (reply message, newMarker string, ok bool) {
	// An empty Character marks a user-authored message, so without an
	// active character nothing can match; otherwise the message just
	// submitted would be echoed back as the reply.
	if character == "" {
		return message{}, marker, false
	}
	start := markerIndex(msgs, marker) + 1

	for i := start; i < len(msgs); i++ {
		if strings.TrimSpace(msgs[i].Character) == character {
			reply = msgs[i]
			ok = true
		}
	}
	if !ok {
		return message{}, marker, false
	}
	return reply, msgs[len(msgs)-1].ID, true
}

// lastMarker returns the ID of the newest message, or "" for an empty chat.
func lastMarker(msgs []message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].ID
}
