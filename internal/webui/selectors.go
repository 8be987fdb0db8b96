package webui

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors locates the SillyTavern DOM elements the session interacts
// with. The defaults match SillyTavern's stock layout; any subset can be
// overridden from a YAML file so a layout change is a config edit, not a
// rebuild.
type Selectors struct {
	MessageInput    string `yaml:"message_input"`
	Message         string `yaml:"message"`
	MessageText     string `yaml:"message_text"`
	TypingIndicator string `yaml:"typing_indicator"`
	CharacterSelect string `yaml:"character_select"`
	CharacterList   string `yaml:"character_list"`
	CharacterItem   string `yaml:"character_item"`
	CharacterName   string `yaml:"character_name"`
}

// DefaultSelectors returns selectors for SillyTavern's stock layout.
func DefaultSelectors() Selectors {
	return Selectors{
		MessageInput:    "#send_textarea",
		Message:         ".mes",
		MessageText:     ".mes_text",
		TypingIndicator: ".typing_indicator",
		CharacterSelect: ".character_select",
		CharacterList:   "#character-selector-list",
		CharacterItem:   ".character_select_item",
		CharacterName:   ".ch_name",
	}
}

// LoadSelectors reads overrides from a YAML file on top of the defaults.
// An empty path returns the defaults unchanged.
func LoadSelectors(path string) (Selectors, error) {
	s := DefaultSelectors()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}
