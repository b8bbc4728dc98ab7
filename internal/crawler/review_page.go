package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/ledger"
	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

// Review listing selectors. Row selectors are relative to a listing row.
const (
	reviewRowsSelector       = "table.mbgen > tbody > tr"
	reviewAlbumLinkSelector  = "td.or_q_albumartist_td > div.or_q_albumartist > i > a.album"
	reviewStarsSelector      = "td.or_q_rating_date_s > img"
	reviewIdentifierSelector = "td.or_q_rating_date_s > span"
	reviewDateSelector       = "td.or_q_rating_date_d"
	reviewMonthSelector      = "div.date_element_month"
	reviewDaySelector        = "div.date_element_day"
	reviewYearSelector       = "div.date_element_year"
)

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ReviewURL returns the base of a user's rating listing. Page numbers are
// appended directly.
func ReviewURL(site, username string) string {
	return strings.TrimRight(site, "/") + "/collection/" + username + "/r0.0-5.0/"
}

type pendingReview struct {
	review   music.Review
	albumURL string
	album    *Album
}

// ReviewPage scrapes one page of a user's rating listing. Each review's album
// is scraped on its own; a review whose album fails is dropped while the rest
// of the page carries on.
type ReviewPage struct {
	state   State
	deps    Deps
	profile string
	reviews []pendingReview
	saved   int
	skipped int
}

// NewReviewPage builds a ReviewPage node for the listing page at url
// belonging to profile.
func NewReviewPage(deps Deps, profile, url string) *ReviewPage {
	p := &ReviewPage{deps: deps, profile: profile}
	p.state = newState(KindReviewPage, url, "RYM review page")
	return p
}

// State implements Scrapable.
func (p *ReviewPage) State() *State { return &p.state }

// Reviews returns the reviews that survived dependency resolution.
func (p *ReviewPage) Reviews() []music.Review {
	out := make([]music.Review, 0, len(p.reviews))
	for _, r := range p.reviews {
		out = append(out, r.review)
	}
	return out
}

// Saved reports how many reviews were newly written.
func (p *ReviewPage) Saved() int { return p.saved }

// Existing implements Persistable. Listing pages are never deduplicated.
func (p *ReviewPage) Existing(context.Context) (int64, bool, error) { return 0, false, nil }

// Extract implements Extractable.
func (p *ReviewPage) Extract(ctx context.Context) error {
	doc, err := p.deps.Pages.Fetch(ctx, p.state.URL)
	if err != nil {
		return fetchFailure(err)
	}
	if err := p.extract(doc); err != nil {
		return extractionFailure(err)
	}
	return nil
}

func (p *ReviewPage) extract(doc *document.Document) error {
	rows, err := doc.List(reviewRowsSelector, "review rows", false)
	if err != nil {
		return err
	}
	logger := p.deps.logger().With(zap.String("url", p.state.URL))
	for i, row := range rows {
		// The first row is the table header.
		if i == 0 {
			continue
		}
		rev, err := extractReview(row)
		if err != nil {
			logger.Warn("skipping review row", zap.Int("row", i), zap.Error(err))
			continue
		}
		p.reviews = append(p.reviews, rev)
	}
	return nil
}

func extractReview(row *document.Element) (pendingReview, error) {
	var rev pendingReview

	link, err := row.Element(reviewAlbumLinkSelector, "album link", true)
	if err != nil {
		return rev, err
	}
	rev.albumURL = link.Href()
	if rev.albumURL == "" {
		return rev, errors.New("album link has no href")
	}

	stars, err := row.Element(reviewStarsSelector, "star image", true)
	if err != nil {
		return rev, err
	}
	title := strings.TrimSpace(stars.Attr("title"))
	if title == "" {
		return rev, errors.New("star image has no title")
	}
	if rev.review.Score, err = document.ParseNumber(title); err != nil {
		return rev, fmt.Errorf("star rating: %w", err)
	}

	ident, err := row.Element(reviewIdentifierSelector, "identifier", true)
	if err != nil {
		return rev, err
	}
	rev.review.Identifier = ident.Text()
	if rev.review.Identifier == "" {
		return rev, errors.New("empty review identifier")
	}

	date, err := row.Element(reviewDateSelector, "date element", true)
	if err != nil {
		return rev, err
	}
	if rev.review.Date, err = extractDate(date); err != nil {
		return rev, err
	}
	return rev, nil
}

func extractDate(el *document.Element) (music.Date, error) {
	var d music.Date

	month, err := el.Element(reviewMonthSelector, "month", true)
	if err != nil {
		return d, err
	}
	name := strings.ToLower(month.Text())
	if len(name) >= 3 {
		d.Month = months[name[:3]]
	}
	if d.Month == 0 {
		return d, fmt.Errorf("unknown month %q", month.Text())
	}

	day, err := el.Element(reviewDaySelector, "day", true)
	if err != nil {
		return d, err
	}
	if d.Day, err = day.Int(); err != nil {
		return d, fmt.Errorf("day: %w", err)
	}

	year, err := el.Element(reviewYearSelector, "year", true)
	if err != nil {
		return d, err
	}
	if d.Year, err = year.Int(); err != nil {
		return d, fmt.Errorf("year: %w", err)
	}
	return d, nil
}

// ScrapeDependencies implements DependencyResolvable. It only fails when ctx
// is done; album failures remove their review from the batch.
func (p *ReviewPage) ScrapeDependencies(ctx context.Context) error {
	logger := p.deps.logger().With(zap.String("url", p.state.URL))
	kept := p.reviews[:0]
	for _, rev := range p.reviews {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("review albums: %w", err)
		}
		rev.album = NewAlbum(p.deps, rev.albumURL)
		err := Scrape(ctx, rev.album)
		p.state.Ledger.Merge(rev.album.State().Ledger)
		if err != nil {
			logger.Warn("dropping review, album failed",
				zap.String("identifier", rev.review.Identifier),
				zap.String("album_url", rev.albumURL),
				zap.Error(err),
			)
			continue
		}
		kept = append(kept, rev)
	}
	p.reviews = kept
	return nil
}

// Save implements Persistable. A review that cannot be saved gets its own
// failure entry; the page itself does not fail.
func (p *ReviewPage) Save(ctx context.Context) (int64, error) {
	for i := range p.reviews {
		rev := &p.reviews[i]
		entryURL := p.state.URL + "#" + rev.review.Identifier

		existing, err := p.deps.Store.FindReview(ctx, rev.review.Identifier)
		if err == nil {
			rev.review = existing
			p.skipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.state.Ledger.Push(ledger.Failure(entryURL, "RYM review", fmt.Errorf("find review: %w", err)))
			continue
		}

		saved, err := p.saveReview(ctx, rev)
		if err != nil {
			p.state.Ledger.Push(ledger.Failure(entryURL, "RYM review", err))
			continue
		}
		rev.review = saved
		p.saved++
		p.state.Ledger.Push(ledger.Success(entryURL, "RYM review"))
	}
	return 0, nil
}

func (p *ReviewPage) saveReview(ctx context.Context, rev *pendingReview) (music.Review, error) {
	album, err := p.deps.Store.FindAlbum(ctx, rev.albumURL)
	if err != nil {
		return music.Review{}, fmt.Errorf("album for review %s: %w", rev.review.Identifier, err)
	}
	profile, err := p.deps.Store.FindProfile(ctx, p.profile)
	if err != nil {
		return music.Review{}, fmt.Errorf("profile for review %s: %w", rev.review.Identifier, err)
	}
	rev.review.AlbumID = album.ID
	rev.review.ProfileID = profile.ID
	saved, err := p.deps.Store.SaveReview(ctx, rev.review)
	if err != nil {
		return music.Review{}, fmt.Errorf("save review: %w", err)
	}
	return saved, nil
}

// PrintInfo implements Scrapable.
func (p *ReviewPage) PrintInfo(logger *zap.Logger) {
	logger.Info("review page",
		zap.String("profile", p.profile),
		zap.String("url", p.state.URL),
		zap.Int("reviews", len(p.reviews)),
		zap.Int("saved", p.saved),
		zap.Int("already_stored", p.skipped),
	)
}
