package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/sieve/models"
)

// Pattern locates an element: a CSS selector, optionally narrowed to
// elements whose text contains Text (case-insensitive).
type Pattern struct {
	Selector string
	Text     string
}

// String is the identifier recorded in the interaction log.
func (p Pattern) String() string {
	if p.Text == "" {
		return p.Selector
	}
	return fmt.Sprintf("%s:has-text(%q)", p.Selector, p.Text)
}

func button(text string) Pattern { return Pattern{Selector: "button", Text: text} }

var (
	overlayPatterns = []Pattern{
		button("Accept"),
		button("Accept all"),
		button("I agree"),
		button("OK"),
		{Selector: `[aria-label*="cookie" i] button`},
		{Selector: `[id*="cookie" i] button`},
		{Selector: `[class*="cookie" i] button`},
		{Selector: `[aria-label="Close"]`},
		{Selector: `button[aria-label*="close" i]`},
		{Selector: `.modal-close`},
		{Selector: `.close-button`},
	}

	tabPatterns = []Pattern{
		{Selector: `[role="tab"]`},
		{Selector: `button[aria-selected]`},
		{Selector: `.tab-button`},
		{Selector: `[class*="tab" i]:not([role="tabpanel"])`},
	}

	loadMorePatterns = []Pattern{
		button("Load more"),
		button("Show more"),
		button("View more"),
		button("Load More"),
		button("Show More"),
		{Selector: `[aria-label*="load more" i]`},
		{Selector: `[class*="load-more" i]`},
		{Selector: `[class*="show-more" i]`},
	}

	paginationPatterns = []Pattern{
		{Selector: "a", Text: "Next"},
		{Selector: "a", Text: "next"},
		{Selector: `[aria-label*="next" i]`},
		{Selector: `[rel="next"]`},
		{Selector: `.pagination .next`},
		{Selector: `.pager .next`},
	}
)

// Outcome is the result of a single heuristic attempt.
type Outcome int

const (
	// Skipped means nothing actionable was found.
	Skipped Outcome = iota
	// Applied means the action was performed.
	Applied
	// Failed means the page returned an error while trying.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Step names the heuristics in the order they run.
const (
	StepOverlay    = "overlay"
	StepTabs       = "tabs"
	StepLoadMore   = "load_more"
	StepPagination = "pagination"
	StepScroll     = "scroll"
)

// Attempt records one try of one heuristic.
type Attempt struct {
	Step    string
	Target  string
	Outcome Outcome
	Err     error
}

// Report aggregates every attempt made while applying a Policy.
type Report struct {
	Attempts []Attempt
}

func (r *Report) add(step, target string, outcome Outcome, err error) Outcome {
	r.Attempts = append(r.Attempts, Attempt{Step: step, Target: target, Outcome: outcome, Err: err})
	return outcome
}

// Count returns how many attempts of step ended with outcome. An empty step
// counts across all steps.
func (r Report) Count(step string, outcome Outcome) int {
	n := 0
	for _, a := range r.Attempts {
		if (step == "" || a.Step == step) && a.Outcome == outcome {
			n++
		}
	}
	return n
}

// Delays are the pauses taken after each kind of successful action.
type Delays struct {
	AfterOverlay    time.Duration
	AfterTab        time.Duration
	AfterLoadMore   time.Duration
	AfterPagination time.Duration
	AfterScroll     time.Duration
}

// Policy is the fixed sequence of best-effort UI actions applied to a
// rendered page: overlay dismissal, tab cycling, load-more expansion,
// pagination following and infinite-scroll triggering.
type Policy struct {
	Overlays   []Pattern
	Tabs       []Pattern
	LoadMore   []Pattern
	Pagination []Pattern

	MaxTabs        int
	MaxLoadMore    int
	MaxPaginations int
	MaxScrolls     int
	SettleTimeout  time.Duration
	Delays         Delays
}

// DefaultPolicy returns the standard rule tables, limits and delays.
func DefaultPolicy() Policy {
	return Policy{
		Overlays:       overlayPatterns,
		Tabs:           tabPatterns,
		LoadMore:       loadMorePatterns,
		Pagination:     paginationPatterns,
		MaxTabs:        3,
		MaxLoadMore:    3,
		MaxPaginations: 3,
		MaxScrolls:     3,
		SettleTimeout:  3 * time.Second,
		Delays: Delays{
			AfterOverlay:    500 * time.Millisecond,
			AfterTab:        time.Second,
			AfterLoadMore:   2 * time.Second,
			AfterPagination: 2 * time.Second,
			AfterScroll:     2 * time.Second,
		},
	}
}

// Apply runs every heuristic in order against s, recording clicks, visited
// pages and scrolls into rec. Failures never abort the sequence; they are
// logged and reported. Apply stops early only when ctx is done.
func (p Policy) Apply(ctx context.Context, s Surface, rec *models.InteractionLog, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}
	a := &applier{ctx: ctx, policy: p, surface: s, rec: rec, logger: logger.With("phase", models.PhaseRender)}

	steps := []func(){a.dismissOverlay, a.cycleTabs, a.expandLoadMore, a.followPagination, a.triggerScroll}
	for _, step := range steps {
		if ctx.Err() != nil {
			a.logger.Debug("interaction policy interrupted", "error", ctx.Err())
			break
		}
		step()
	}

	if n := a.report.Count("", Failed); n > 0 {
		a.logger.Debug("interaction attempts failed", "count", n)
	}
	return a.report
}

type applier struct {
	ctx     context.Context
	policy  Policy
	surface Surface
	rec     *models.InteractionLog
	logger  *slog.Logger
	report  Report
}

// tryClick clicks the first match of pat when it is visible and, if
// requireHref is set, carries a non-empty href.
func (a *applier) tryClick(step string, pat Pattern, requireHref bool) Outcome {
	id := pat.String()
	target, err := a.surface.First(pat)
	if err != nil {
		return a.report.add(step, id, Failed, err)
	}
	if target == nil {
		return a.report.add(step, id, Skipped, nil)
	}
	return a.clickTarget(step, id, target, requireHref)
}

func (a *applier) clickTarget(step, id string, target Target, requireHref bool) Outcome {
	visible, err := target.Visible()
	if err != nil {
		return a.report.add(step, id, Failed, err)
	}
	if !visible {
		return a.report.add(step, id, Skipped, nil)
	}
	if requireHref {
		href, err := target.Attr("href")
		if err != nil {
			return a.report.add(step, id, Failed, err)
		}
		if href == "" {
			return a.report.add(step, id, Skipped, nil)
		}
	}
	if err := target.Click(); err != nil {
		a.logger.Debug("click failed", "step", step, "target", id, "error", err)
		return a.report.add(step, id, Failed, err)
	}
	return a.report.add(step, id, Applied, nil)
}

// dismissOverlay clicks the first visible overlay control, at most one.
func (a *applier) dismissOverlay() {
	for _, pat := range a.policy.Overlays {
		if a.tryClick(StepOverlay, pat, false) == Applied {
			a.logger.Info("closed overlay", "target", pat.String())
			sleep(a.ctx, a.policy.Delays.AfterOverlay)
			return
		}
	}
}

// cycleTabs clicks up to MaxTabs visible matches of the first tab pattern
// that matches anything.
func (a *applier) cycleTabs() {
	for _, pat := range a.policy.Tabs {
		targets, err := a.surface.All(pat)
		if err != nil {
			a.report.add(StepTabs, pat.String(), Failed, err)
			continue
		}
		if len(targets) == 0 {
			continue
		}
		a.logger.Info("found tabs", "target", pat.String(), "count", len(targets))
		for i := 0; i < len(targets) && i < a.policy.MaxTabs; i++ {
			id := fmt.Sprintf("%s[%d]", pat.String(), i)
			if a.clickTarget(StepTabs, id, targets[i], false) == Applied {
				a.rec.Clicks = append(a.rec.Clicks, id)
				sleep(a.ctx, a.policy.Delays.AfterTab)
			}
		}
		return
	}
}

// expandLoadMore runs up to MaxLoadMore rounds, each clicking the first
// visible load-more control. A round without a click ends the loop.
func (a *applier) expandLoadMore() {
	for round := 0; round < a.policy.MaxLoadMore; round++ {
		if !a.clickFirst(StepLoadMore, a.policy.LoadMore, false, a.policy.Delays.AfterLoadMore) {
			return
		}
	}
}

// followPagination follows up to MaxPaginations next-page links, recording
// each resulting location once.
func (a *applier) followPagination() {
	for i := 0; i < a.policy.MaxPaginations; i++ {
		if !a.clickFirst(StepPagination, a.policy.Pagination, true, a.policy.Delays.AfterPagination) {
			return
		}
		current, err := a.surface.URL()
		if err != nil {
			a.report.add(StepPagination, "location", Failed, err)
			continue
		}
		if a.rec.AddPage(current) {
			a.logger.Info("followed pagination", "page", current)
		}
	}
}

// clickFirst tries patterns in order and stops at the first applied click,
// recording it and pausing for delay.
func (a *applier) clickFirst(step string, patterns []Pattern, requireHref bool, delay time.Duration) bool {
	for _, pat := range patterns {
		if a.tryClick(step, pat, requireHref) != Applied {
			continue
		}
		if step != StepPagination {
			a.rec.Clicks = append(a.rec.Clicks, pat.String())
		}
		a.logger.Info("clicked", "step", step, "target", pat.String())
		sleep(a.ctx, delay)
		return true
	}
	return false
}

// triggerScroll scrolls to the bottom up to MaxScrolls times, stopping once
// the document height stops growing.
func (a *applier) triggerScroll() {
	previous := 0
	for i := 0; i < a.policy.MaxScrolls; i++ {
		height, err := a.surface.ScrollHeight()
		if err != nil {
			a.report.add(StepScroll, "height", Failed, err)
			return
		}
		if i > 0 && height == previous {
			a.report.add(StepScroll, "height", Skipped, nil)
			return
		}
		if err := a.surface.ScrollToBottom(); err != nil {
			a.report.add(StepScroll, "bottom", Failed, err)
			return
		}
		a.rec.Scrolls++
		a.report.add(StepScroll, "bottom", Applied, nil)
		sleep(a.ctx, a.policy.Delays.AfterScroll)

		if err := a.surface.Settle(a.policy.SettleTimeout); err != nil {
			a.logger.Debug("page did not settle after scroll", "error", err)
		}
		previous = height
	}
}
