// Package voice turns recognized utterances into session control tokens.
package voice

import (
	"strconv"
	"strings"
	"unicode"
)

// DefaultBreakSeconds is the break length used when an answer has no digits.
const DefaultBreakSeconds = 10

// MaxBreakSeconds is the longest break an answer can ask for. Longer answers
// are treated as misheard and give DefaultBreakSeconds.
const MaxBreakSeconds = 3600

// Kind is the type of a control token.
type Kind int

const (
	BreakRequested Kind = iota + 1
	DurationAnswer
	DoneRequested
)

func (k Kind) String() string {
	switch k {
	case BreakRequested:
		return "break"
	case DurationAnswer:
		return "duration"
	case DoneRequested:
		return "done"
	default:
		return "none"
	}
}

// Command is one control token. Seconds is set for DurationAnswer only.
// Break numbers the break request a token belongs to, starting at 1; it is
// zero for tokens that did not come from a Listener.
type Command struct {
	Kind    Kind
	Seconds int
	Break   int
}

var breakPhrases = []string{"i'm tired", "need a break", "pause", "stop", "break time"}

var donePhrases = []string{"i'm done", "i am done"}

// ParseCommand classifies an utterance as a break or done request. It returns
// false for anything else.
func ParseCommand(text string) (Command, bool) {
	t := normalize(text)
	if t == "" {
		return Command{}, false
	}
	for _, p := range donePhrases {
		if strings.Contains(t, p) {
			return Command{Kind: DoneRequested}, true
		}
	}
	for _, p := range breakPhrases {
		if strings.Contains(t, p) {
			return Command{Kind: BreakRequested}, true
		}
	}
	return Command{}, false
}

// ParseDuration reads a break length in seconds from an answer by
// concatenating every digit in it. Answers without digits, or whose digits
// do not form a number in 1..MaxBreakSeconds, give DefaultBreakSeconds.
func ParseDuration(text string) int {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil || n <= 0 || n > MaxBreakSeconds {
		return DefaultBreakSeconds
	}
	return n
}

// normalize lower-cases the text, folds typographic apostrophes and collapses
// whitespace so phrase matching is insensitive to recognizer formatting.
func normalize(text string) string {
	t := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return strings.Join(strings.FieldsFunc(t, unicode.IsSpace), " ")
}
