package crawler

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/ledger"
	"github.com/JakeFAU/music-crawler/internal/metrics"
)

// Cursor is the pagination state. It only moves forward.
type Cursor struct {
	BaseURL             string
	Page                int
	ConsecutiveFailures int
}

// PageURL is the URL of the page the cursor points at.
func (c Cursor) PageURL() string {
	return c.BaseURL + strconv.Itoa(c.Page)
}

// PageFactory builds the node for one listing page.
type PageFactory func(url string) Scrapable

// PaginatedCrawler walks a listing one page at a time. It never stops on its
// own: callers inspect the returned Cursor and decide when to halt.
type PaginatedCrawler struct {
	cursor  Cursor
	newPage PageFactory
	ledger  *ledger.Ledger
	logger  *zap.Logger
}

// NewPaginatedCrawler starts a crawler at page 1 of baseURL.
func NewPaginatedCrawler(baseURL string, newPage PageFactory, logger *zap.Logger) *PaginatedCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaginatedCrawler{
		cursor:  Cursor{BaseURL: baseURL, Page: 1},
		newPage: newPage,
		ledger:  ledger.New(),
		logger:  logger,
	}
}

// NewReviewCrawler walks the rating listing of profile.
func NewReviewCrawler(deps Deps, profile string) *PaginatedCrawler {
	factory := func(url string) Scrapable {
		return NewReviewPage(deps, profile, url)
	}
	return NewPaginatedCrawler(ReviewURL(deps.siteURL(), profile), factory, deps.logger().Named("paginator"))
}

// Cursor returns the current pagination state.
func (c *PaginatedCrawler) Cursor() Cursor { return c.cursor }

// Ledger returns the run ledger holding every page's entries.
func (c *PaginatedCrawler) Ledger() *ledger.Ledger { return c.ledger }

// ScrapePage scrapes the current page and advances. A failed page, including
// one that panics, counts as a consecutive failure and is skipped; it is
// never retried.
func (c *PaginatedCrawler) ScrapePage(ctx context.Context) Cursor {
	url := c.cursor.PageURL()
	logger := c.logger.With(zap.String("url", url), zap.Int("page", c.cursor.Page))

	err := c.scrape(ctx, url)
	c.cursor.Page++
	if err != nil {
		c.cursor.ConsecutiveFailures++
		logger.Warn("page failed",
			zap.Int("consecutive_failures", c.cursor.ConsecutiveFailures),
			zap.Error(err),
		)
		metrics.ObservePage(metrics.OutcomeFailed)
		return c.cursor
	}
	c.cursor.ConsecutiveFailures = 0
	logger.Info("page scraped")
	metrics.ObservePage(metrics.OutcomeScraped)
	return c.cursor
}

func (c *PaginatedCrawler) scrape(ctx context.Context, url string) (err error) {
	var node Scrapable
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scraping page: %v", r)
			if node != nil {
				c.ledger.Merge(node.State().Ledger)
			}
			c.ledger.Push(ledger.Failure(url, "RYM review page", err))
		}
	}()

	node = c.newPage(url)
	err = Scrape(ctx, node)
	c.ledger.Merge(node.State().Ledger)
	return err
}
