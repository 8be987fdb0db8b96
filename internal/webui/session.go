package webui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/tavernbridge/tavernbridge/internal/logging"
)

// Engine identifies the browser engine driving the session.
type Engine string

const (
	EngineChrome  Engine = "chrome"
	EngineEdge    Engine = "edge"
	EngineFirefox Engine = "firefox"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultNavTimeout   = 30 * time.Second
	defaultSettleDelay  = 2 * time.Second

	// Pause after typing /persona, matching SillyTavern's command
	// processing delay before the input can be inspected again.
	personaDelay = 500 * time.Millisecond
)

// Config configures a browser session against one SillyTavern instance.
type Config struct {
	URL            string
	Character      string // initial character, selected during Connect
	Engine         Engine
	ExecutablePath string // explicit browser binary, optional
	Headless       bool
	Selectors      Selectors

	// PollInterval and NavTimeout are injectable for tests; zero values
	// fall back to the defaults above.
	PollInterval time.Duration
	NavTimeout   time.Duration
	SettleDelay  time.Duration
}

// Session is one live browser connection to SillyTavern. It is not safe
// for concurrent use: the bridge serializes all access behind its
// in-flight gate.
type Session struct {
	mu  sync.Mutex
	cfg Config

	browser playwright.Browser
	page    playwright.Page

	character string
	marker    string
	closed    bool
}

var (
	// Playwright instance (singleton), shared across reconnects.
	pwOnce     sync.Once
	pwInstance *playwright.Playwright
	pwErr      error
)

func getPlaywright() (*playwright.Playwright, error) {
	pwOnce.Do(func() {
		if err := playwright.Install(); err != nil {
			pwErr = fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		pw, err := playwright.Run()
		if err != nil {
			pwErr = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		pwInstance = pw
	})
	return pwInstance, pwErr
}

// Connect launches the configured browser engine, navigates to
// SillyTavern, waits for the chat input, and selects the initial
// character. On any failure the half-open session is torn down.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}

	pw, err := getPlaywright()
	if err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg}

	browser, err := launch(pw, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", cfg.Engine, err)
	}
	s.browser = browser

	page, err := browser.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page

	logging.Infof("navigating to SillyTavern at %s", cfg.URL)
	if _, err := page.Goto(cfg.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(cfg.NavTimeout.Milliseconds())),
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", cfg.URL, err)
	}

	// The chat input is the signal that the interface has finished loading.
	if _, err := page.WaitForSelector(cfg.Selectors.MessageInput, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(cfg.NavTimeout.Milliseconds())),
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("SillyTavern interface did not load: %w", err)
	}

	if cfg.Character != "" {
		if err := s.SetCharacter(ctx, cfg.Character); err != nil {
			_ = s.Close()
			return nil, err
		}
	} else if msgs, err := s.snapshotMessages(); err == nil {
		s.marker = lastMarker(msgs)
	}

	logging.Infof("connected to SillyTavern, active character: %s", s.character)
	return s, nil
}

func launch(pw *playwright.Playwright, cfg Config) (playwright.Browser, error) {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}

	switch cfg.Engine {
	case EngineFirefox:
		return pw.Firefox.Launch(opts)
	case EngineEdge:
		if opts.ExecutablePath == nil {
			opts.Channel = playwright.String("msedge")
		}
		return pw.Chromium.Launch(opts)
	default:
		return pw.Chromium.Launch(opts)
	}
}

// Close tears the session down. Safe to call more than once; the browser
// handle is released exactly once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			return fmt.Errorf("failed to close browser: %w", err)
		}
	}
	return nil
}

// Character returns the currently selected character.
func (s *Session) Character() string {
	return s.character
}

// Submit types text into the chat input and sends it the way a user
// would. The response marker is advanced first so only messages that
// appear after this submit count as the reply.
func (s *Session) Submit(ctx context.Context, text string) error {
	if err := s.alive(); err != nil {
		return err
	}

	sel := s.cfg.Selectors
	input := s.page.Locator(sel.MessageInput)
	n, err := input.Count()
	if err != nil {
		return s.classify(err, ErrElementNotFound)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", sel.MessageInput, ErrElementNotFound)
	}

	if msgs, err := s.snapshotMessages(); err == nil {
		s.marker = lastMarker(msgs)
	}

	if err := input.Fill(text); err != nil {
		return s.classify(err, ErrElementNotFound)
	}
	if err := input.Press("Enter"); err != nil {
		return s.classify(err, ErrElementNotFound)
	}
	return nil
}

// AwaitResponse polls the chat log until a new message from the active
// character appears, the timeout elapses, or ctx is cancelled. Polling
// skips turns while SillyTavern's typing indicator is visible. A final
// scan runs at the deadline so a reply that landed during the last
// interval is not dropped.
func (s *Session) AwaitResponse(ctx context.Context, timeout time.Duration) (string, error) {
	if err := s.alive(); err != nil {
		return "", err
	}
	if s.character == "" {
		return "", fmt.Errorf("no active character: %w", ErrCharacterNotFound)
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			if text, ok := s.scanOnce(); ok {
				return text, nil
			}
			return "", ErrTimeout
		case <-ticker.C:
			if err := s.alive(); err != nil {
				return "", err
			}
			if visible, _ := s.page.Locator(s.cfg.Selectors.TypingIndicator).First().IsVisible(); visible {
				continue
			}
			if text, ok := s.scanOnce(); ok {
				return text, nil
			}
		}
	}
}

// SetCharacter switches the active character by exact, case-sensitive
// name match in the character list.
func (s *Session) SetCharacter(ctx context.Context, name string) error {
	if err := s.alive(); err != nil {
		return err
	}

	sel := s.cfg.Selectors
	timeoutMs := playwright.Float(float64(s.cfg.NavTimeout.Milliseconds()))

	if err := s.page.Locator(sel.CharacterSelect).First().Click(playwright.LocatorClickOptions{Timeout: timeoutMs}); err != nil {
		return s.classify(err, ErrElementNotFound)
	}
	if _, err := s.page.WaitForSelector(sel.CharacterList, playwright.PageWaitForSelectorOptions{Timeout: timeoutMs}); err != nil {
		return s.classify(err, ErrElementNotFound)
	}

	items, err := s.page.QuerySelectorAll(sel.CharacterItem)
	if err != nil {
		return s.classify(err, ErrElementNotFound)
	}

	for _, item := range items {
		nameEl, err := item.QuerySelector(sel.CharacterName)
		if err != nil || nameEl == nil {
			continue
		}
		text, err := nameEl.TextContent()
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != name {
			continue
		}

		if err := item.Click(); err != nil {
			return s.classify(err, ErrElementNotFound)
		}
		s.character = name

		// Let the UI swap chats before re-anchoring the marker.
		sleepCtx(ctx, s.cfg.SettleDelay)
		if msgs, err := s.snapshotMessages(); err == nil {
			s.marker = lastMarker(msgs)
		}
		logging.Infof("selected character: %s", name)
		return nil
	}

	// Close the list again so the page stays usable.
	_ = s.page.Keyboard().Press("Escape")
	return fmt.Errorf("%q: %w", name, ErrCharacterNotFound)
}

// SetPersona issues SillyTavern's /persona slash command. Best-effort:
// the only correction applied is clearing a leftover command from the
// input box; there is no retry.
func (s *Session) SetPersona(ctx context.Context, name string) error {
	if err := s.alive(); err != nil {
		return err
	}

	input := s.page.Locator(s.cfg.Selectors.MessageInput)
	command := "/persona " + name
	if err := input.Fill(command); err != nil {
		return s.classify(err, ErrElementNotFound)
	}
	if err := input.Press("Enter"); err != nil {
		return s.classify(err, ErrElementNotFound)
	}

	sleepCtx(ctx, personaDelay)
	if v, err := input.InputValue(); err == nil && v == command {
		_ = input.Fill("")
	}
	return nil
}

func (s *Session) scanOnce() (string, bool) {
	msgs, err := s.snapshotMessages()
	if err != nil {
		return "", false
	}
	reply, newMarker, ok := pickResponse(msgs, s.marker, s.character)
	if !ok {
		return "", false
	}
	s.marker = newMarker
	return strings.TrimSpace(reply.Text), true
}

// snapshotMessages reads the chat log into plain structs.
func (s *Session) snapshotMessages() ([]message, error) {
	handles, err := s.page.QuerySelectorAll(s.cfg.Selectors.Message)
	if err != nil {
		return nil, s.classify(err, ErrElementNotFound)
	}

	msgs := make([]message, 0, len(handles))
	for i, h := range handles {
		m := message{ID: strconv.Itoa(i)}
		if id, err := h.GetAttribute("id"); err == nil && id != "" {
			m.ID = id
		} else if mesid, err := h.GetAttribute("mesid"); err == nil && mesid != "" {
			m.ID = mesid
		}
		if ch, err := h.GetAttribute("ch_name"); err == nil && ch != "" {
			m.Character = ch
		} else if ch, err := h.GetAttribute("ch"); err == nil && ch != "" {
			m.Character = ch
		}
		if textEl, err := h.QuerySelector(s.cfg.Selectors.MessageText); err == nil && textEl != nil {
			if text, err := textEl.TextContent(); err == nil {
				m.Text = text
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *Session) alive() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed || s.browser == nil || !s.browser.IsConnected() {
		return ErrSessionLost
	}
	return nil
}

// classify maps a raw driver error onto the failure taxonomy: a dead
// connection is always ErrSessionLost, anything else wraps fallback.
func (s *Session) classify(err error, fallback error) error {
	if err == nil {
		return nil
	}
	if s.browser == nil || !s.browser.IsConnected() {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
