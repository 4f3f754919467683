// Package replyshape flags generated text that reads like an answer to the
// draft instead of a rewrite of it.
package replyshape

import (
	"regexp"
	"strings"
)

// Openers are matched case-insensitively at the start of the trimmed text.
var Openers = []string{
	"thanks",
	"thank you",
	"i understand",
	"i’m sorry",
	"i'm sorry",
	"that sounds",
}

// Phrases are matched case-insensitively as whole words anywhere in the text.
var Phrases = []string{
	"you should",
	"i suggest",
	"the reason",
	"what you can do",
}

var indicators = compile(Openers, Phrases)

func compile(openers, phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(openers)+len(phrases))
	for _, o := range openers {
		out = append(out, regexp.MustCompile(`(?i)^`+regexp.QuoteMeta(o)))
	}
	for _, p := range phrases {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return out
}

// LooksLikeReply reports whether text matches any reply indicator.
func LooksLikeReply(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, re := range indicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
