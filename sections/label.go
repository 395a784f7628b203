package sections

import (
	"strings"

	"github.com/use-agent/sieve/dom"
	"github.com/use-agent/sieve/models"
)

// labelWords is how many words of body text a generated label keeps.
const labelWords = 7

// GenerateLabel picks a human-readable label for a section: the first
// heading, then aria-label, then the opening words of the text, then a
// name derived from the tag.
func GenerateLabel(el dom.Element, content models.SectionContent) string {
	if len(content.Headings) > 0 {
		return content.Headings[0]
	}
	if el != nil {
		if aria, ok := el.Attr("aria-label"); ok && aria != "" {
			return aria
		}
	}
	if words := strings.Fields(content.Text); len(words) > 0 {
		if len(words) >= labelWords {
			return strings.Join(words[:labelWords], " ") + "..."
		}
		return strings.Join(words, " ")
	}

	tag := "section"
	if el != nil && el.Tag() != "" {
		tag = el.Tag()
	}
	return strings.ToUpper(tag[:1]) + tag[1:] + " Content"
}
