package changes

import (
	"regexp"
	"strings"
)

// AnonAuthor is the author id recorded for command tags with no known author.
const AnonAuthor = "anon"

// maxCommandDepth bounds how deep a command tag path can nest: the tagging
// author, up to four tokens, and the commenting thing id compete for six
// levels total.
const maxCommandDepth = 6

var commandRE = regexp.MustCompile(`^!\w`)

// IsCommand reports whether a content body is a moderation command: the
// first line starts with the command sigil.
func IsCommand(body string) bool {
	return commandRE.MatchString(body)
}

// TokenizeCommand splits the first line of a command body into its tokens,
// with the sigil stripped from the leading token.
func TokenizeCommand(body string) []string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimPrefix(line, "!")
	fields := strings.Fields(line)
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// BuildCommandMap converts one recognized command comment into a command map
// rooted at the tagging author. Returns nil if the body is not a command.
func BuildCommandMap(authorID, thingID, body string, timestamp float64) CommandMap {
	if !IsCommand(body) {
		return nil
	}
	if authorID == "" {
		authorID = AnonAuthor
	}

	path := append([]string{authorID}, TokenizeCommand(body)...)
	path = append(path, thingID)
	if len(path) > maxCommandDepth {
		path = path[:maxCommandDepth]
	}

	leaf := &CommandNode{Timestamp: timestamp}
	node := leaf
	for i := len(path) - 1; i >= 1; i-- {
		node = &CommandNode{Children: map[string]*CommandNode{path[i]: node}}
	}
	return CommandMap{path[0]: node}
}
