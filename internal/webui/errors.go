// Package webui drives SillyTavern's web interface through a browser
// session, exposing the small set of operations the bridge needs:
// submit a message, wait for the reply, switch character, switch persona.
package webui

import "errors"

// Failure kinds surfaced to the bridge. All are recoverable at the
// channel level; the bridge renders them as user-facing messages.
var (
	ErrElementNotFound   = errors.New("element not found")
	ErrSessionLost       = errors.New("browser session lost")
	ErrTimeout           = errors.New("timed out waiting for response")
	ErrCharacterNotFound = errors.New("character not found")
)
