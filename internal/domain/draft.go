package domain

import "strings"

// Style selects the tone of the rewrite.
type Style string

const (
	StyleCalmClear Style = "CalmClear"
	StyleFirmFair  Style = "FirmFair"
)

// ParseStyle maps the wire value to a Style. Unknown values fall back to
// StyleCalmClear.
func ParseStyle(raw string) Style {
	switch strings.TrimSpace(raw) {
	case "Firm & Fair", string(StyleFirmFair):
		return StyleFirmFair
	default:
		return StyleCalmClear
	}
}

// Label is the human-readable tone name used in prompts.
func (s Style) Label() string {
	if s == StyleFirmFair {
		return "Firm & Fair"
	}
	return "Calm & Clear"
}

// DraftMessage is the user's outgoing text before rewriting. It lives for a
// single request and is never stored.
type DraftMessage struct {
	Text  string
	Style Style
}

// SafeguardRule names the guard that produced a verdict.
type SafeguardRule string

const (
	RuleNone         SafeguardRule = ""
	RuleInvalidInput SafeguardRule = "invalid_input"
	RuleTooLong      SafeguardRule = "too_long"
	RuleAttachment   SafeguardRule = "attachment"
	RuleThreat       SafeguardRule = "threat"
)

// SafeguardVerdict is the classifier's decision for one draft.
type SafeguardVerdict struct {
	Safe        bool          `json:"safe"`
	CleanedText string        `json:"cleanedText,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Rule        SafeguardRule `json:"rule,omitempty"`
}
