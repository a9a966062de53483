// Package parser converts player input into Command structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strconv"
	"strings"
)

// Canonical verbs.
const (
	VerbWho    = "who"
	VerbTalk   = "talk"
	VerbNext   = "next"
	VerbChoose = "choose"
	VerbBye    = "bye"
	VerbHelp   = "help"
	VerbQuit   = "quit"
)

// Command is a parsed line of input.
type Command struct {
	// Verb is a canonical verb, a slash command such as "/force", or the
	// first word as typed if it is neither. Empty for blank input.
	Verb string

	// Object is the talk target with articles and "to"/"with" removed.
	Object string

	// Number is the 1-based choice for VerbChoose, or 0 if none was given.
	Number int

	// Args holds the words after a slash command, case preserved.
	Args []string
}

// IsMeta reports whether the command is a slash command.
func (c Command) IsMeta() bool {
	return strings.HasPrefix(c.Verb, "/")
}

var verbAliases = map[string]string{
	// Who
	"look":   VerbWho,
	"l":      VerbWho,
	"people": VerbWho,
	"npcs":   VerbWho,

	// Talk
	"speak":    VerbTalk,
	"chat":     VerbTalk,
	"greet":    VerbTalk,
	"ask":      VerbTalk,
	"converse": VerbTalk,
	"t":        VerbTalk,

	// Next
	"n":        VerbNext,
	"continue": VerbNext,
	"c":        VerbNext,
	"more":     VerbNext,

	// Choose
	"pick":   VerbChoose,
	"select": VerbChoose,
	"option": VerbChoose,
	"say":    VerbChoose,

	// Bye
	"leave":    VerbBye,
	"goodbye":  VerbBye,
	"farewell": VerbBye,
	"end":      VerbBye,

	// Misc
	"?":    VerbHelp,
	"h":    VerbHelp,
	"q":    VerbQuit,
	"exit": VerbQuit,
}

var prepositions = map[string]bool{
	"to": true, "with": true, "at": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// Parse converts a raw input line into a Command.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return Command{}
	}

	// Slash commands keep their arguments verbatim.
	if strings.HasPrefix(input, "/") {
		fields := strings.Fields(input)
		return Command{Verb: strings.ToLower(fields[0]), Args: fields[1:]}
	}

	words := strings.Fields(strings.ToLower(input))

	// Bare number: choose that option.
	if len(words) == 1 {
		if n, err := strconv.Atoi(words[0]); err == nil {
			return Command{Verb: VerbChoose, Number: n}
		}
	}

	// Apply verb aliases.
	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := words[1:]

	switch verb {
	case VerbTalk:
		rest = stripArticles(stripLeadingPreposition(rest))
		return Command{Verb: verb, Object: strings.Join(rest, " ")}
	case VerbChoose:
		return Command{Verb: verb, Number: lastNumber(rest)}
	}
	return Command{Verb: verb, Object: strings.Join(stripArticles(rest), " ")}
}

// stripLeadingPreposition turns "to the innkeeper" into "the innkeeper".
func stripLeadingPreposition(words []string) []string {
	if len(words) > 0 && prepositions[words[0]] {
		return words[1:]
	}
	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// lastNumber returns the last word parsed as an integer, so "option 2" and
// "2" both give 2. It returns 0 when there is no number.
func lastNumber(words []string) int {
	for i := len(words) - 1; i >= 0; i-- {
		if n, err := strconv.Atoi(strings.TrimSuffix(words[i], ".")); err == nil {
			return n
		}
	}
	return 0
}
