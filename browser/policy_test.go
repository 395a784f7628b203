package browser

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/use-agent/sieve/models"
)

type fakeTarget struct {
	visible  bool
	href     string
	clickErr error
	clicks   int
	onClick  func()
}

func (t *fakeTarget) Visible() (bool, error) { return t.visible, nil }

func (t *fakeTarget) Click() error {
	if t.clickErr != nil {
		return t.clickErr
	}
	t.clicks++
	if t.onClick != nil {
		t.onClick()
	}
	return nil
}

func (t *fakeTarget) Attr(name string) (string, error) {
	if name == "href" {
		return t.href, nil
	}
	return "", nil
}

type fakeSurface struct {
	elements map[string][]*fakeTarget
	heights  []int
	scrolled int
	settled  int
	url      string
	firstErr map[string]error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		elements: make(map[string][]*fakeTarget),
		firstErr: make(map[string]error),
		url:      "https://example.com/",
	}
}

func (s *fakeSurface) add(p Pattern, targets ...*fakeTarget) {
	s.elements[p.String()] = append(s.elements[p.String()], targets...)
}

func (s *fakeSurface) First(p Pattern) (Target, error) {
	if err := s.firstErr[p.String()]; err != nil {
		return nil, err
	}
	if ts := s.elements[p.String()]; len(ts) > 0 {
		return ts[0], nil
	}
	return nil, nil
}

func (s *fakeSurface) All(p Pattern) ([]Target, error) {
	var out []Target
	for _, t := range s.elements[p.String()] {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeSurface) ScrollHeight() (int, error) {
	if len(s.heights) == 0 {
		return 0, errors.New("no body")
	}
	i := s.scrolled
	if i >= len(s.heights) {
		i = len(s.heights) - 1
	}
	return s.heights[i], nil
}

func (s *fakeSurface) ScrollToBottom() error {
	s.scrolled++
	return nil
}

func (s *fakeSurface) Settle(time.Duration) error {
	s.settled++
	return context.DeadlineExceeded
}

func (s *fakeSurface) URL() (string, error) { return s.url, nil }

// testPolicy is DefaultPolicy without any pauses.
func testPolicy() Policy {
	p := DefaultPolicy()
	p.Delays = Delays{}
	return p
}

func apply(t *testing.T, s *fakeSurface) (models.InteractionLog, Report) {
	t.Helper()
	rec := models.NewInteractionLog("https://example.com/")
	report := testPolicy().Apply(context.Background(), s, &rec, nil)
	return rec, report
}

func TestPattern_String(t *testing.T) {
	if got := button("Load more").String(); got != `button:has-text("Load more")` {
		t.Errorf("got %q", got)
	}
	if got := (Pattern{Selector: ".next"}).String(); got != ".next" {
		t.Errorf("got %q", got)
	}
}

func TestApply_NothingToDo(t *testing.T) {
	s := newFakeSurface()
	rec, report := apply(t, s)

	if len(rec.Clicks) != 0 || rec.Scrolls != 0 {
		t.Errorf("unexpected interactions: %+v", rec)
	}
	if !reflect.DeepEqual(rec.Pages, []string{"https://example.com/"}) {
		t.Errorf("pages = %v", rec.Pages)
	}
	if report.Count("", Applied) != 0 {
		t.Errorf("applied attempts = %d", report.Count("", Applied))
	}
	if report.Count(StepScroll, Failed) != 1 {
		t.Errorf("scroll height failure not reported")
	}
}

func TestApply_DismissesOnlyFirstVisibleOverlay(t *testing.T) {
	s := newFakeSurface()
	hidden := &fakeTarget{visible: false}
	accept := &fakeTarget{visible: true}
	closeBtn := &fakeTarget{visible: true}
	s.add(button("Accept"), hidden)
	s.add(button("I agree"), accept)
	s.add(Pattern{Selector: ".modal-close"}, closeBtn)

	rec, report := apply(t, s)

	if hidden.clicks != 0 || accept.clicks != 1 || closeBtn.clicks != 0 {
		t.Errorf("clicks: hidden=%d accept=%d close=%d", hidden.clicks, accept.clicks, closeBtn.clicks)
	}
	if report.Count(StepOverlay, Applied) != 1 {
		t.Errorf("overlay applied = %d", report.Count(StepOverlay, Applied))
	}
	if len(rec.Clicks) != 0 {
		t.Errorf("overlay clicks are not interaction clicks: %v", rec.Clicks)
	}
}

func TestApply_OverlayErrorsDoNotStopSearch(t *testing.T) {
	s := newFakeSurface()
	s.firstErr[button("Accept").String()] = errors.New("detached")
	ok := &fakeTarget{visible: true}
	s.add(button("OK"), ok)

	_, report := apply(t, s)

	if ok.clicks != 1 {
		t.Error("later overlay pattern was not tried")
	}
	if report.Count(StepOverlay, Failed) != 1 {
		t.Errorf("failed = %d", report.Count(StepOverlay, Failed))
	}
}

func TestApply_TabsFirstMatchingPatternOnly(t *testing.T) {
	s := newFakeSurface()
	roleTab := Pattern{Selector: `[role="tab"]`}
	s.add(roleTab,
		&fakeTarget{visible: true},
		&fakeTarget{visible: false},
		&fakeTarget{visible: true},
		&fakeTarget{visible: true},
	)
	other := &fakeTarget{visible: true}
	s.add(Pattern{Selector: ".tab-button"}, other)

	rec, _ := apply(t, s)

	want := []string{`[role="tab"][0]`, `[role="tab"][2]`}
	if !reflect.DeepEqual(rec.Clicks, want) {
		t.Errorf("clicks = %v, want %v", rec.Clicks, want)
	}
	if other.clicks != 0 {
		t.Error("later tab pattern should not be tried")
	}
	if s.elements[roleTab.String()][3].clicks != 0 {
		t.Error("clicked beyond the first three matches")
	}
}

func TestApply_LoadMoreRounds(t *testing.T) {
	s := newFakeSurface()
	more := &fakeTarget{visible: true}
	s.add(button("Show more"), more)

	rec, report := apply(t, s)

	if more.clicks != 3 {
		t.Errorf("load more clicked %d times, want 3", more.clicks)
	}
	want := []string{`button:has-text("Show more")`, `button:has-text("Show more")`, `button:has-text("Show more")`}
	if !reflect.DeepEqual(rec.Clicks, want) {
		t.Errorf("clicks = %v", rec.Clicks)
	}
	if report.Count(StepLoadMore, Applied) != 3 {
		t.Errorf("applied = %d", report.Count(StepLoadMore, Applied))
	}
}

func TestApply_LoadMoreStopsWhenNothingVisible(t *testing.T) {
	s := newFakeSurface()
	more := &fakeTarget{visible: true}
	more.onClick = func() { more.visible = false }
	s.add(button("Load more"), more)

	rec, _ := apply(t, s)

	if more.clicks != 1 || len(rec.Clicks) != 1 {
		t.Errorf("expected a single round, got %d clicks (%v)", more.clicks, rec.Clicks)
	}
}

func TestApply_LoadMoreClickFailure(t *testing.T) {
	s := newFakeSurface()
	s.add(button("Load more"), &fakeTarget{visible: true, clickErr: errors.New("covered")})

	rec, report := apply(t, s)

	if len(rec.Clicks) != 0 {
		t.Errorf("failed click recorded: %v", rec.Clicks)
	}
	if report.Count(StepLoadMore, Failed) != 1 {
		t.Errorf("failed = %d", report.Count(StepLoadMore, Failed))
	}
}

func TestApply_PaginationRequiresHref(t *testing.T) {
	s := newFakeSurface()
	dead := &fakeTarget{visible: true}
	s.add(Pattern{Selector: "a", Text: "Next"}, dead)

	rec, report := apply(t, s)

	if dead.clicks != 0 {
		t.Error("link without href was clicked")
	}
	if len(rec.Pages) != 1 {
		t.Errorf("pages = %v", rec.Pages)
	}
	if report.Count(StepPagination, Applied) != 0 {
		t.Error("pagination reported applied")
	}
}

func TestApply_PaginationDedup(t *testing.T) {
	s := newFakeSurface()
	locations := []string{"https://example.com/?page=2", "https://example.com/?page=2", "https://example.com/?page=3"}
	next := &fakeTarget{visible: true, href: "?page=2"}
	i := 0
	next.onClick = func() {
		s.url = locations[i]
		i++
	}
	s.add(Pattern{Selector: `[rel="next"]`}, next)

	rec, _ := apply(t, s)

	if next.clicks != 3 {
		t.Errorf("pagination clicked %d times, want 3", next.clicks)
	}
	want := []string{"https://example.com/", "https://example.com/?page=2", "https://example.com/?page=3"}
	if !reflect.DeepEqual(rec.Pages, want) {
		t.Errorf("pages = %v, want %v", rec.Pages, want)
	}
	if len(rec.Clicks) != 0 {
		t.Errorf("pagination should not add to clicks: %v", rec.Clicks)
	}
}

func TestApply_ScrollStopsWhenHeightUnchanged(t *testing.T) {
	s := newFakeSurface()
	s.heights = []int{1000, 1800, 1800}

	rec, report := apply(t, s)

	if rec.Scrolls != 2 {
		t.Errorf("scrolls = %d, want 2", rec.Scrolls)
	}
	if s.settled != 2 {
		t.Errorf("settle waits = %d", s.settled)
	}
	if report.Count(StepScroll, Applied) != 2 || report.Count(StepScroll, Failed) != 0 {
		t.Errorf("settle timeouts must not count as failures: %+v", report.Attempts)
	}
}

func TestApply_ScrollMax(t *testing.T) {
	s := newFakeSurface()
	s.heights = []int{1000, 2000, 3000, 4000, 5000}

	rec, _ := apply(t, s)

	if rec.Scrolls != 3 {
		t.Errorf("scrolls = %d, want 3", rec.Scrolls)
	}
}

func TestApply_CanceledContext(t *testing.T) {
	s := newFakeSurface()
	more := &fakeTarget{visible: true}
	s.add(button("Load more"), more)
	s.heights = []int{100, 200}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := models.NewInteractionLog("https://example.com/")
	report := testPolicy().Apply(ctx, s, &rec, nil)

	if more.clicks != 0 || rec.Scrolls != 0 || len(report.Attempts) != 0 {
		t.Errorf("policy ran on a canceled context: %+v", report.Attempts)
	}
}

func TestOutcome_String(t *testing.T) {
	for o, want := range map[Outcome]string{Skipped: "skipped", Applied: "applied", Failed: "failed"} {
		if o.String() != want {
			t.Errorf("%d: got %q", o, o.String())
		}
	}
}
