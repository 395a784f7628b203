package browser

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Surface is the part of a live page the interaction policy drives.
type Surface interface {
	// First returns the first element matching p, or nil when nothing matches.
	First(p Pattern) (Target, error)

	// All returns every element matching p's selector in document order.
	All(p Pattern) ([]Target, error)

	// ScrollHeight reports document.body.scrollHeight.
	ScrollHeight() (int, error)

	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom() error

	// Settle waits up to timeout for the page to go quiet.
	Settle(timeout time.Duration) error

	// URL returns the current location.
	URL() (string, error)
}

// Target is a single element on a Surface.
type Target interface {
	Visible() (bool, error)
	Click() error
	Attr(name string) (string, error)
}

// rodSurface drives a rod page. Lookups never wait for elements to appear.
type rodSurface struct {
	page         *rod.Page
	clickTimeout time.Duration
	// hijacked is set when a request router is mounted; WaitRequestIdle
	// conflicts with it, so settling falls back to DOM stability.
	hijacked bool
}

func newRodSurface(page *rod.Page, clickTimeout time.Duration, hijacked bool) *rodSurface {
	return &rodSurface{page: page, clickTimeout: clickTimeout, hijacked: hijacked}
}

func (s *rodSurface) First(p Pattern) (Target, error) {
	page := s.page.Sleeper(rod.NotFoundSleeper)
	var (
		el  *rod.Element
		err error
	)
	if p.Text != "" {
		el, err = page.ElementR(p.Selector, "/"+regexp.QuoteMeta(p.Text)+"/i")
	} else {
		el, err = page.Element(p.Selector)
	}
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rodTarget{el: el, clickTimeout: s.clickTimeout}, nil
}

func (s *rodSurface) All(p Pattern) ([]Target, error) {
	els, err := s.page.Elements(p.Selector)
	if err != nil {
		return nil, err
	}
	out := make([]Target, 0, len(els))
	for _, el := range els {
		out = append(out, &rodTarget{el: el, clickTimeout: s.clickTimeout})
	}
	return out, nil
}

func (s *rodSurface) ScrollHeight() (int, error) {
	res, err := s.page.Eval(`() => document.body ? document.body.scrollHeight : 0`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (s *rodSurface) ScrollToBottom() error {
	_, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *rodSurface) Settle(timeout time.Duration) error {
	p := s.page.Timeout(timeout)
	defer p.CancelTimeout()
	if s.hijacked {
		return p.WaitDOMStable(300*time.Millisecond, 0.1)
	}
	p.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return p.GetContext().Err()
}

func (s *rodSurface) URL() (string, error) {
	if href := evalStringOrEmpty(s.page, `() => window.location.href`); href != "" {
		return href, nil
	}
	info, err := s.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

type rodTarget struct {
	el           *rod.Element
	clickTimeout time.Duration
}

func (t *rodTarget) Visible() (bool, error) {
	return t.el.Visible()
}

func (t *rodTarget) Click() error {
	el := t.el.Timeout(t.clickTimeout)
	defer el.CancelTimeout()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (t *rodTarget) Attr(name string) (string, error) {
	v, err := t.el.Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
