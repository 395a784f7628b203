package browser

import (
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sieve/models"
)

// pageLease is a page borrowed from the pool. Release is idempotent and must
// run on every exit path.
type pageLease struct {
	page    *rod.Page
	once    sync.Once
	release func(*rod.Page)
}

// Release blanks the page and hands it back to the pool. It uses the page
// without any request context so cleanup works after a deadline expired.
func (l *pageLease) Release() {
	l.once.Do(func() { l.release(l.page) })
}

// acquire borrows a page from the pool, creating one when the pool has room.
func (b *Browser) acquire() (*pageLease, error) {
	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			err,
		)
	}
	b.activePages.Add(1)
	return &pageLease{
		page: page,
		release: func(p *rod.Page) {
			defer b.activePages.Add(-1)
			if navErr := p.Navigate("about:blank"); navErr != nil {
				slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
			}
			b.pagePool.Put(p)
		},
	}, nil
}
