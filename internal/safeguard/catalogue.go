package safeguard

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Catalogue is the versioned set of phrase tables the classifier is compiled
// from.
type Catalogue struct {
	Version     int         `yaml:"version"`
	Threats     ThreatTable `yaml:"threats"`
	Attachments []string    `yaml:"attachments"`
	Injections  []string    `yaml:"injections"`
	Fillers     []string    `yaml:"fillers"`
}

// ThreatTable lists direct physical-harm phrases. Order matters: earlier
// entries win when two alternatives start at the same position.
type ThreatTable struct {
	Phrases    []string       `yaml:"phrases"`
	Standalone []string       `yaml:"standalone"`
	Objects    []ThreatObject `yaml:"objects"`
}

// ThreatObject is a "<verb> your <target>" family.
type ThreatObject struct {
	Verb    string   `yaml:"verb"`
	Targets []string `yaml:"targets"`
}

// DefaultCatalogue returns the catalogue embedded in the binary.
func DefaultCatalogue() (Catalogue, error) {
	return LoadCatalogue(defaultCatalogue)
}

// LoadCatalogue decodes and validates a YAML catalogue.
func LoadCatalogue(raw []byte) (Catalogue, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return Catalogue{}, fmt.Errorf("safeguard: decode catalogue: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return Catalogue{}, err
	}
	return cat, nil
}

// Validate reports the first structural problem in the catalogue.
func (c Catalogue) Validate() error {
	if c.Version <= 0 {
		return errors.New("safeguard: catalogue version must be positive")
	}
	if len(c.Threats.Phrases)+len(c.Threats.Standalone)+len(c.Threats.Objects) == 0 {
		return errors.New("safeguard: catalogue has no threat entries")
	}
	for i, o := range c.Threats.Objects {
		if strings.TrimSpace(o.Verb) == "" || len(o.Targets) == 0 {
			return fmt.Errorf("safeguard: threat object %d needs a verb and targets", i)
		}
	}
	if len(c.Attachments) == 0 {
		return errors.New("safeguard: catalogue has no attachment patterns")
	}
	for _, f := range c.Fillers {
		if f != strings.ToLower(f) || strings.ContainsAny(f, " \t") {
			return fmt.Errorf("safeguard: filler %q must be a single lower-case word", f)
		}
	}
	return nil
}

// wordGap matches the run of separators between two words, including
// non-ASCII spaces such as NBSP and U+3000.
const wordGap = `[\s\p{Z}\x{FEFF}]+`

// wordSequence turns "kill you" into kill, wordGap, you.
func wordSequence(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, wordGap)
}

func alternatives(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(strings.TrimSpace(w)))
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

func (t ThreatTable) pattern() string {
	alts := make([]string, 0, len(t.Phrases)+len(t.Standalone)+len(t.Objects))
	for _, p := range t.Phrases {
		alts = append(alts, wordSequence(p))
	}
	for _, s := range t.Standalone {
		alts = append(alts, wordSequence(s))
	}
	for _, o := range t.Objects {
		alts = append(alts, regexp.QuoteMeta(o.Verb)+wordGap+`your`+wordGap+alternatives(o.Targets))
	}
	return boundedAlternation(alts)
}

func boundedAlternation(alts []string) string {
	wrapped := make([]string, len(alts))
	for i, a := range alts {
		wrapped[i] = "(?:" + a + ")"
	}
	return `(?i)\b(?:` + strings.Join(wrapped, "|") + `)\b`
}
