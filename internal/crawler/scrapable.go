package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/ledger"
	"github.com/JakeFAU/music-crawler/internal/metrics"
)

// Extractable fetches a node's document exactly once and extracts its
// required fields. Fetch failures wrap ErrFetch; missing fields wrap
// ErrExtraction.
type Extractable interface {
	Extract(ctx context.Context) error
}

// DependencyResolvable scrapes a node's dependency edges and folds their
// ledgers into the node's own. Whether a failed dependency fails the node is
// the node's policy.
type DependencyResolvable interface {
	ScrapeDependencies(ctx context.Context) error
}

// Persistable looks a node up by natural key and saves it.
type Persistable interface {
	// Existing returns the stored ID when the entity is already persisted.
	Existing(ctx context.Context) (id int64, found bool, err error)
	// Save persists the node and returns the stored ID. Nodes that do not
	// map to a single record return 0.
	Save(ctx context.Context) (int64, error)
}

// Scrapable is one unit of crawl work. Nodes are single-use: construct a
// fresh one per dependency edge.
type Scrapable interface {
	Extractable
	DependencyResolvable
	Persistable
	State() *State
	PrintInfo(logger *zap.Logger)
}

// State is the bookkeeping every node carries.
type State struct {
	URL         string
	Description string
	Kind        string

	PersistedID      int64
	SourcedFromStore bool
	Succeeded        bool
	// Ledger holds this node's outcome and, after dependency resolution, the
	// outcomes of every node beneath it.
	Ledger *ledger.Ledger

	started bool
}

func newState(kind, url, description string) State {
	return State{
		URL:         url,
		Description: description,
		Kind:        kind,
		Ledger:      ledger.New(),
	}
}

func (s *State) succeed(outcome string) {
	s.Succeeded = true
	s.Ledger.Push(ledger.Success(s.URL, s.Description))
	metrics.ObserveScrape(s.Kind, outcome)
}

func (s *State) fail(kind, err error) error {
	scrapeErr := &ScrapeError{Kind: kind, URL: s.URL, Description: s.Description, Err: err}
	s.Ledger.Push(ledger.Failure(s.URL, s.Description, scrapeErr))
	metrics.ObserveScrape(s.Kind, metrics.OutcomeFailed)
	return scrapeErr
}

// Scrape drives node to a terminal state: store lookup, then fetch and
// extraction, dependency resolution, and persistence. A node found in the
// store short-circuits before any fetch. Each call records exactly one ledger
// entry for the node's URL; calling Scrape again returns ErrAlreadyScraped.
func Scrape(ctx context.Context, node Scrapable) error {
	st := node.State()
	if st.started {
		return ErrAlreadyScraped
	}
	st.started = true

	id, found, err := node.Existing(ctx)
	if err != nil {
		return st.fail(ErrPersistence, err)
	}
	if found {
		st.SourcedFromStore = true
		st.PersistedID = id
		st.succeed(metrics.OutcomeStored)
		return nil
	}

	if err := node.Extract(ctx); err != nil {
		return st.fail(classify(err), err)
	}
	if err := node.ScrapeDependencies(ctx); err != nil {
		return st.fail(ErrDependency, err)
	}
	id, err = node.Save(ctx)
	if err != nil {
		return st.fail(ErrPersistence, err)
	}
	st.PersistedID = id
	st.succeed(metrics.OutcomeScraped)
	return nil
}

// scrapeRecovering runs Scrape and turns a panic into a terminal failure of
// node, so a dependency's panic stays inside its parent. Goroutines need it
// because the caller's recover cannot reach them.
func scrapeRecovering(ctx context.Context, node Scrapable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			st := node.State()
			cause := fmt.Errorf("panic scraping %s: %v", st.URL, r)
			if st.Succeeded {
				err = cause
				return
			}
			err = st.fail(classify(cause), cause)
		}
	}()
	return Scrape(ctx, node)
}

// PrintResult logs the terminal state of node.
func PrintResult(logger *zap.Logger, node Scrapable) {
	st := node.State()
	fields := []zap.Field{
		zap.String("kind", st.Kind),
		zap.String("url", st.URL),
		zap.Int64("id", st.PersistedID),
	}
	switch {
	case !st.Succeeded:
		logger.Error("scrape failed", fields...)
	case st.SourcedFromStore:
		logger.Info("scrape unnecessary, record exists in store", fields...)
	default:
		logger.Info("scrape successful", fields...)
	}
}
