package models

import "time"

// SectionType is the classification assigned to an extracted page region.
type SectionType string

const (
	SectionMain    SectionType = "main"
	SectionNav     SectionType = "nav"
	SectionFooter  SectionType = "footer"
	SectionHero    SectionType = "hero"
	SectionPricing SectionType = "pricing"
	SectionFAQ     SectionType = "faq"
	SectionGrid    SectionType = "grid"
	SectionList    SectionType = "list"
	SectionSection SectionType = "section"
	SectionUnknown SectionType = "unknown"
)

// Phase identifies the pipeline stage an ErrorEntry was recorded in.
type Phase string

const (
	PhaseFetch  Phase = "fetch"
	PhaseRender Phase = "render"
	PhaseParse  Phase = "parse"
)

// PageResult is the root output of a scrape. The orchestrator builds it and
// never touches it again once returned.
type PageResult struct {
	URL          string         `json:"url"`
	ScrapedAt    time.Time      `json:"scrapedAt"`
	Meta         PageMeta       `json:"meta"`
	Sections     []Section      `json:"sections"`
	Interactions InteractionLog `json:"interactions"`
	Errors       []ErrorEntry   `json:"errors"`
}

// AddError appends an error entry. Entries are never removed or replaced.
func (r *PageResult) AddError(phase Phase, message string) {
	r.Errors = append(r.Errors, ErrorEntry{Message: message, Phase: phase})
}

// PageMeta is derived once from the winning document.
type PageMeta struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Language    string  `json:"language"`
	Canonical   *string `json:"canonical"`
}

// DefaultPageMeta returns the metadata used before any document is parsed.
func DefaultPageMeta() PageMeta {
	return PageMeta{Language: "en"}
}

// Section is a classified, labeled fragment of page content.
type Section struct {
	ID        string         `json:"id"`
	Type      SectionType    `json:"type"`
	Label     string         `json:"label"`
	SourceURL string         `json:"sourceUrl"`
	Content   SectionContent `json:"content"`
	RawHTML   string         `json:"rawHtml"`
	Truncated bool           `json:"truncated"`

	// Markdown is only filled when the caller asked for it.
	Markdown string `json:"markdown,omitempty"`
}

// SectionContent holds the normalized data pulled out of a section.
type SectionContent struct {
	Headings []string     `json:"headings"`
	Text     string       `json:"text"`
	Links    []Link       `json:"links"`
	Images   []Image      `json:"images"`
	Lists    [][]string   `json:"lists"`
	Tables   [][][]string `json:"tables"`
}

// EmptySectionContent returns content with every collection non-nil so it
// serializes as empty arrays rather than null.
func EmptySectionContent() SectionContent {
	return SectionContent{
		Headings: []string{},
		Links:    []Link{},
		Images:   []Image{},
		Lists:    [][]string{},
		Tables:   [][][]string{},
	}
}

// Link represents a hyperlink extracted from a section.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Image represents an image element extracted from a section.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// InteractionLog records what the browser driver did while rendering.
type InteractionLog struct {
	Clicks  []string `json:"clicks"`
	Scrolls int      `json:"scrolls"`
	Pages   []string `json:"pages"`
}

// NewInteractionLog returns the log for a page that has only been visited once.
func NewInteractionLog(url string) InteractionLog {
	return InteractionLog{
		Clicks: []string{},
		Pages:  []string{url},
	}
}

// AddPage records a visited URL unless it is already present.
func (l *InteractionLog) AddPage(url string) bool {
	for _, p := range l.Pages {
		if p == url {
			return false
		}
	}
	l.Pages = append(l.Pages, url)
	return true
}

// ErrorEntry is a non-fatal failure recorded during a scrape.
type ErrorEntry struct {
	Message string `json:"message"`
	Phase   Phase  `json:"phase"`
}
