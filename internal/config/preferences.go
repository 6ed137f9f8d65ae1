package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Preferences is the small persisted JSON document of display preferences.
// The core consumes it (timestamp rendering); the UI layer produces it.
// There is no ambient global: callers pass the value explicitly to the
// formatting functions.
type Preferences struct {
	// TimestampMode is "local", "utc" or "custom".
	TimestampMode string `json:"timestamp_mode"`
	// CustomFormat is a Go time layout used when TimestampMode is "custom".
	CustomFormat string `json:"custom_format"`
	// ShowRelative appends a short relative time such as "2d ago".
	ShowRelative bool `json:"show_relative"`
	// Timezone is "system" or an IANA timezone name.
	Timezone string `json:"timezone"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		TimestampMode: "local",
		CustomFormat:  "2006-01-02 15:04:05 MST",
		ShowRelative:  true,
		Timezone:      "system",
	}
}

// LoadPreferences reads the preferences document, merging whatever keys it
// carries over the defaults. A missing or malformed file yields the
// defaults; preferences are never worth failing startup over.
func LoadPreferences(path string) Preferences {
	prefs := DefaultPreferences()
	data, err := os.ReadFile(path)
	if err != nil {
		return prefs
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences()
	}
	return prefs
}

// SavePreferences persists the document with two-space indentation.
func SavePreferences(path string, prefs Preferences) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
