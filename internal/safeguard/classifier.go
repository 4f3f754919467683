// Package safeguard decides whether a draft may be forwarded to the
// generator, and strips prompt-injection phrases from the drafts it lets
// through.
package safeguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"clancha/internal/domain"
)

// MaxLength is the longest draft, in code points, that is accepted.
const MaxLength = 1000

const (
	ReasonInvalidInput = "Invalid input"
	ReasonTooLong      = "Message too long. Max 1000 characters."
	ReasonAttachment   = "Clancha does not allow pictures or attachments for safeguarding reasons, so this message won't be sent."
	ReasonThreat       = "This message cannot be rewritten because it contains a direct threat of harm, so it won't be sent to the other parent."
)

// Classifier is a compiled catalogue. It holds no mutable state and is safe
// for concurrent use.
type Classifier struct {
	version    int
	threat     *regexp.Regexp
	attachment *regexp.Regexp
	injections []*regexp.Regexp
	fillers    map[string]struct{}
}

// New compiles cat into a Classifier.
func New(cat Catalogue) (*Classifier, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	threat, err := regexp.Compile(cat.Threats.pattern())
	if err != nil {
		return nil, fmt.Errorf("safeguard: compile threat pattern: %w", err)
	}
	attachment, err := regexp.Compile(boundedAlternation(cat.Attachments))
	if err != nil {
		return nil, fmt.Errorf("safeguard: compile attachment pattern: %w", err)
	}
	injections := make([]*regexp.Regexp, 0, len(cat.Injections))
	for _, phrase := range cat.Injections {
		if strings.TrimSpace(phrase) == "" {
			return nil, errors.New("safeguard: empty injection phrase")
		}
		re, err := regexp.Compile(`(?i)` + wordSequence(phrase))
		if err != nil {
			return nil, fmt.Errorf("safeguard: compile injection %q: %w", phrase, err)
		}
		injections = append(injections, re)
	}
	fillers := make(map[string]struct{}, len(cat.Fillers))
	for _, f := range cat.Fillers {
		fillers[f] = struct{}{}
	}
	return &Classifier{
		version:    cat.Version,
		threat:     threat,
		attachment: attachment,
		injections: injections,
		fillers:    fillers,
	}, nil
}

// Version is the catalogue version the classifier was compiled from.
func (c *Classifier) Version() int {
	return c.version
}

// Classify applies the guards in order and returns the first rejection, or a
// safe verdict carrying the sanitized text. The sanitized text is guarded
// again, since deleting an injection phrase can join the words around it.
func (c *Classifier) Classify(text string) domain.SafeguardVerdict {
	if text == "" || !utf8.ValidString(text) {
		return reject(domain.RuleInvalidInput, ReasonInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxLength {
		return reject(domain.RuleTooLong, ReasonTooLong)
	}
	if v, blocked := c.guard(text); blocked {
		return v
	}
	cleaned := c.Sanitize(text)
	if cleaned != text {
		if v, blocked := c.guard(cleaned); blocked {
			return v
		}
	}
	return domain.SafeguardVerdict{Safe: true, CleanedText: cleaned}
}

func (c *Classifier) guard(text string) (domain.SafeguardVerdict, bool) {
	folded := foldSpace(text)
	if c.attachment.MatchString(folded) {
		return reject(domain.RuleAttachment, ReasonAttachment), true
	}
	if c.threat.MatchString(folded) && len(c.Residue(folded)) == 0 {
		return reject(domain.RuleThreat, ReasonThreat), true
	}
	return domain.SafeguardVerdict{}, false
}

// foldSpace maps every Unicode space, and the BOM, to an ASCII space. The
// rune count is unchanged.
func foldSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if r != ' ' && (unicode.IsSpace(r) || unicode.Is(unicode.Z, r) || r == '\uFEFF') {
			return ' '
		}
		return r
	}, s)
}

// Residue removes every threat phrase from text and returns the remaining
// lower-cased, punctuation-free tokens that are not filler words.
func (c *Classifier) Residue(text string) []string {
	rest := strings.ToLower(c.threat.ReplaceAllString(foldSpace(text), " "))
	var words []string
	for _, tok := range strings.Fields(rest) {
		w := alnum(tok)
		if w == "" {
			continue
		}
		if _, filler := c.fillers[w]; filler {
			continue
		}
		words = append(words, w)
	}
	return words
}

// Sanitize deletes known prompt-injection phrases until none are left.
func (c *Classifier) Sanitize(text string) string {
	for {
		before := text
		for _, re := range c.injections {
			text = re.ReplaceAllString(text, "")
		}
		if text == before {
			return text
		}
	}
}

func alnum(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func reject(rule domain.SafeguardRule, reason string) domain.SafeguardVerdict {
	return domain.SafeguardVerdict{Safe: false, Reason: reason, Rule: rule}
}

var defaultClassifier = mustDefault()

func mustDefault() *Classifier {
	cat, err := DefaultCatalogue()
	if err != nil {
		panic(err)
	}
	c, err := New(cat)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the classifier compiled from the embedded catalogue.
func Default() *Classifier {
	return defaultClassifier
}

// Classify runs the default classifier.
func Classify(text string) domain.SafeguardVerdict {
	return defaultClassifier.Classify(text)
}
