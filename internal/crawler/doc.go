// Package crawler implements crawl orchestration and dependency resolution:
// the Scrapable contract and its Scrape template, the album, artist, tracks,
// profile, and review-page nodes, and the paginated review crawler.
//
// Every node checks the store for an existing record before touching the
// network, resolves its dependencies depth-first before persisting itself,
// and records exactly one ledger entry for its own URL when it reaches a
// terminal state.
package crawler
