package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/crawler"
	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/ledger"
	memorypublisher "github.com/JakeFAU/music-crawler/internal/publisher/memory"
	"github.com/JakeFAU/music-crawler/internal/storage/memory"
)

const testSite = "https://rym.test"

type fakePages struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
	// onFetch runs before each fetch, outside the lock.
	onFetch func(url string)
}

func (f *fakePages) Fetch(_ context.Context, url string) (*document.Document, error) {
	if f.onFetch != nil {
		f.onFetch(url)
	}
	f.mu.Lock()
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("GET %s: status 404", url)
	}
	return document.Parse(url, []byte(html))
}

func (f *fakePages) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("broker unavailable")
}

func profilePage(name string) string {
	return `<html><body><div class="profile_header">
<span class="profile_username">~` + name + `</span>
<span class="profile_info">29 / Male</span>
</div></body></html>`
}

const emptyListing = `<html><body><table class="mbgen"><tbody><tr><th>Date</th></tr></tbody></table></body></html>`

func listingURL(profile string, page int) string {
	return fmt.Sprintf("%s/collection/%s/r0.0-5.0/%d", testSite, profile, page)
}

func newDeps(pages *fakePages) crawler.Deps {
	return crawler.Deps{
		Pages:   pages,
		Store:   memory.NewRepository(),
		Logger:  zap.NewNop(),
		SiteURL: testSite,
	}
}

func TestRunnerStopsAtFailureThreshold(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{
		testSite + "/~alice":   profilePage("alice"),
		listingURL("alice", 1): emptyListing,
		listingURL("alice", 2): emptyListing,
	}}
	pub := memorypublisher.New()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runner := NewRunner(newDeps(pages), RunnerConfig{
		Profiles:         []string{"alice"},
		FailureThreshold: 2,
		Topic:            "runs",
	}, "run-1", WithPublisher(pub), WithClock(fixedClock{now: start}))

	runLedger, summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{
		testSite + "/~alice",
		listingURL("alice", 1),
		listingURL("alice", 2),
		listingURL("alice", 3),
		listingURL("alice", 4),
	}, pages.fetched())

	entries := runLedger.Entries()
	require.Len(t, entries, 5)
	require.True(t, entries[0].Succeeded)
	require.Equal(t, "RYM profile", entries[0].Description)
	require.True(t, entries[1].Succeeded)
	require.True(t, entries[2].Succeeded)
	require.False(t, entries[3].Succeeded)
	require.False(t, entries[4].Succeeded)

	require.Equal(t, ledger.Summary{Total: 5, Succeeded: 3, Failed: 2}, summary.Summary)
	require.Len(t, summary.Failures, 2)
	require.Equal(t, "run-1", summary.RunID)
	require.Equal(t, start, summary.StartedAt)
	require.False(t, summary.Canceled)
	require.Len(t, summary.Profiles, 1)
	require.Equal(t, 5, summary.Profiles[0].Page)
	require.Equal(t, 2, summary.Profiles[0].ConsecutiveFailures)
	require.True(t, summary.Profiles[0].Done)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "runs", msgs[0].Topic)
	require.Equal(t, summary, msgs[0].Payload)

	require.Equal(t, entries, runner.Entries())
	status := runner.Status()
	require.Equal(t, "run-1", status.RunID)
	require.Equal(t, summary.Summary, status.Summary)
}

func TestRunnerSkipsListingWhenProfileFails(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{
		testSite + "/~bob":   profilePage("bob"),
		listingURL("bob", 1): emptyListing,
	}}
	runner := NewRunner(newDeps(pages), RunnerConfig{
		Profiles:         []string{"ghost", "bob"},
		FailureThreshold: 1,
	}, "run-2")

	runLedger, summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.NotContains(t, pages.fetched(), listingURL("ghost", 1))
	require.Contains(t, pages.fetched(), listingURL("bob", 2))

	failures := runLedger.Failures()
	require.Equal(t, testSite+"/~ghost", failures[0].URL)
	require.Len(t, summary.Profiles, 2)
	require.True(t, summary.Profiles[0].Done)
	require.Zero(t, summary.Profiles[0].Page)
}

func TestRunnerCancellationStillPublishes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pages := &fakePages{
		pages: map[string]string{
			testSite + "/~alice":   profilePage("alice"),
			listingURL("alice", 1): emptyListing,
			listingURL("alice", 2): emptyListing,
			listingURL("alice", 3): emptyListing,
		},
	}
	pages.onFetch = func(url string) {
		if url == listingURL("alice", 2) {
			cancel()
		}
	}
	pub := memorypublisher.New()
	runner := NewRunner(newDeps(pages), RunnerConfig{
		Profiles:         []string{"alice", "bob"},
		FailureThreshold: 3,
	}, "run-3", WithPublisher(pub))

	_, summary, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, summary.Canceled)
	require.NotContains(t, pages.fetched(), listingURL("alice", 3))
	require.NotContains(t, pages.fetched(), testSite+"/~bob")
	require.Len(t, pub.Messages(), 1)
}

func TestRunnerPublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{}}
	runner := NewRunner(newDeps(pages), RunnerConfig{Profiles: []string{"alice"}}, "run-4",
		WithPublisher(failingPublisher{}))

	runLedger, _, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.True(t, runLedger.HasFailures())
}

func TestRunnerUsesCrawlerFactory(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{testSite + "/~alice": profilePage("alice")}}
	var built []string
	factory := func(deps crawler.Deps, profile string) *crawler.PaginatedCrawler {
		built = append(built, profile)
		return crawler.NewPaginatedCrawler("https://other.test/list/", func(url string) crawler.Scrapable {
			return crawler.NewReviewPage(deps, profile, url)
		}, nil)
	}
	runner := NewRunner(newDeps(pages), RunnerConfig{Profiles: []string{"alice"}, FailureThreshold: 1}, "run-5",
		WithCrawlerFactory(factory))

	_, _, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, built)
	require.Contains(t, pages.fetched(), "https://other.test/list/1")
}
