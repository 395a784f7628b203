package sections

import (
	"strings"

	"github.com/use-agent/sieve/dom"
	"github.com/use-agent/sieve/models"
)

// classRule is one entry of the classification table. A rule matches when the
// element's tag is in tags, its role equals role, or its class/id contains
// keyword (case-insensitive). Empty fields never match.
type classRule struct {
	tags    []string
	role    string
	keyword string
	result  models.SectionType
}

// classRules is evaluated top to bottom; the first match wins. Keyword rules
// are ordered so that an element matching several keywords resolves to the
// earliest one.
var classRules = []classRule{
	{tags: []string{"header"}, role: "banner", result: models.SectionNav},
	{tags: []string{"nav"}, role: "navigation", result: models.SectionNav},
	{tags: []string{"footer"}, role: "contentinfo", result: models.SectionFooter},
	{keyword: "hero", result: models.SectionHero},
	{keyword: "pricing", result: models.SectionPricing},
	{keyword: "faq", result: models.SectionFAQ},
	{keyword: "grid", result: models.SectionGrid},
	{keyword: "list", result: models.SectionList},
}

func (r classRule) matches(tag, role, class, id string) bool {
	for _, t := range r.tags {
		if tag == t {
			return true
		}
	}
	if r.role != "" && role == r.role {
		return true
	}
	if r.keyword != "" && (strings.Contains(class, r.keyword) || strings.Contains(id, r.keyword)) {
		return true
	}
	return false
}

// Classify maps a container element to a section type, falling back to
// defaultType when no rule matches.
func Classify(el dom.Element, defaultType models.SectionType) models.SectionType {
	if el == nil {
		return defaultType
	}
	role, _ := el.Attr("role")
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	tag := el.Tag()
	class = strings.ToLower(class)
	id = strings.ToLower(id)

	for _, r := range classRules {
		if r.matches(tag, role, class, id) {
			return r.result
		}
	}
	return defaultType
}
