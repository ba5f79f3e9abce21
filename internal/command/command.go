// Package command parses the restricted quick-command grammar typed into chat.
//
// Input is split on whitespace; the first token is the command word and the
// rest are positional parameters. Only the words in the command table are
// recognized. Parameters are opaque strings: interpreting them (as a search
// query, a TMDB id, ...) is up to the caller.
package command

import (
	"strings"
)

// Prefix marks chat input that is routed to local command handling.
const Prefix = "/"

// Command is a recognized quick command word, including the leading slash.
type Command string

// The closed set of quick commands.
const (
	Search    Command = "/search"
	Download  Command = "/download"
	Subscribe Command = "/subscribe"
	Status    Command = "/status"
)

// Definition describes a command for help text and completion.
type Definition struct {
	Command     Command
	Label       string
	Description string
}

var table = []Definition{
	{Command: Search, Label: "Search", Description: "Search for movies or TV shows"},
	{Command: Download, Label: "Download", Description: "Add a download link"},
	{Command: Subscribe, Label: "Subscribe", Description: "Create a new subscription"},
	{Command: Status, Label: "Status", Description: "Get system status"},
}

// All returns the command table in display order.
func All() []Definition {
	out := make([]Definition, len(table))
	copy(out, table)
	return out
}

// Lookup returns the definition for word, if it is a known command.
func Lookup(word string) (Definition, bool) {
	for _, def := range table {
		if string(def.Command) == word {
			return def, true
		}
	}
	return Definition{}, false
}

// Request is the result of parsing chat input.
type Request struct {
	Command Command
	Params  []string
}

// IsZero reports whether the input did not parse as a known command.
func (r Request) IsZero() bool {
	return r.Command == ""
}

// IsCommand reports whether input takes the command path, known or not.
func IsCommand(input string) bool {
	return strings.HasPrefix(input, Prefix)
}

// Split tokenizes input without validating the command word.
func Split(input string) (word string, params []string) {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return "", []string{}
	}
	return tokens[0], tokens[1:]
}

// Parse returns the command and its parameters. It returns a zero Request
// with empty params when input does not start with "/" or when the first
// token is not a known command.
func Parse(input string) Request {
	if !IsCommand(input) {
		return Request{Params: []string{}}
	}

	word, params := Split(input)
	def, ok := Lookup(word)
	if !ok {
		return Request{Params: []string{}}
	}

	return Request{Command: def.Command, Params: params}
}

// Format is the inverse of Parse: the command followed by its params, joined
// by single spaces. Params containing whitespace do not survive a round trip.
func Format(cmd Command, params []string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(cmd))
	parts = append(parts, params...)
	return strings.Join(parts, " ")
}

// String returns the input form of the request.
func (r Request) String() string {
	return Format(r.Command, r.Params)
}
