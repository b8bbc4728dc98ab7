package crawler

import (
	"errors"
	"fmt"
)

// Error kinds. A *ScrapeError matches exactly one of them via errors.Is.
var (
	// ErrFetch marks network or HTTP failures.
	ErrFetch = errors.New("fetch failed")
	// ErrExtraction marks a fetched document missing required fields.
	ErrExtraction = errors.New("extraction failed")
	// ErrDependency marks a required dependency that could not be scraped.
	ErrDependency = errors.New("dependency failed")
	// ErrPersistence marks a failed store lookup or save.
	ErrPersistence = errors.New("persistence failed")
)

// ErrAlreadyScraped is returned when Scrape is called on a node that already
// reached a terminal state.
var ErrAlreadyScraped = errors.New("node already scraped")

// ScrapeError is the terminal failure of one node.
type ScrapeError struct {
	Kind        error
	URL         string
	Description string
	Err         error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s (%s): %v", e.Description, e.URL, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *ScrapeError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func fetchFailure(err error) error {
	if errors.Is(err, ErrFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFetch, err)
}

func extractionFailure(err error) error {
	if errors.Is(err, ErrExtraction) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExtraction, err)
}

// classify picks the kind for an Extract error; unmarked errors are
// extraction failures.
func classify(err error) error {
	if errors.Is(err, ErrFetch) {
		return ErrFetch
	}
	return ErrExtraction
}
