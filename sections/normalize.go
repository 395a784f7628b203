package sections

import "strings"

// whitespaceEscapes turns escaped and literal newlines/tabs into spaces.
// Escaped sequences show up when pages embed JSON-encoded strings in markup.
var whitespaceEscapes = strings.NewReplacer(
	`\n`, " ",
	`\t`, " ",
	"\n", " ",
	"\t", " ",
)

// Normalize collapses escaped or literal newline and tab sequences and runs
// of whitespace into single spaces, then trims the result.
func Normalize(s string) string {
	return strings.Join(strings.Fields(whitespaceEscapes.Replace(s)), " ")
}
