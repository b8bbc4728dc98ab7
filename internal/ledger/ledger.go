// Package ledger records per-URL crawl outcomes for a single run.
package ledger

import "sync"

// Entry is one crawl outcome. Error is empty for successful entries.
type Entry struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Succeeded   bool   `json:"succeeded"`
	Error       string `json:"error,omitempty"`
}

// Success builds a successful Entry.
func Success(url, description string) Entry {
	return Entry{URL: url, Description: description, Succeeded: true}
}

// Failure builds a failed Entry carrying err's message.
func Failure(url, description string, err error) Entry {
	entry := Entry{URL: url, Description: description}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}

// Ledger is an append-only, ordered log of Entry values. The zero value is
// ready to use and safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{}
}

// Push appends entry.
func (l *Ledger) Push(entry Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Merge appends every entry of other, preserving its order. Merging a ledger
// into itself or merging nil is a no-op.
func (l *Ledger) Merge(other *Ledger) {
	if other == nil || other == l {
		return
	}
	entries := other.Entries()
	if len(entries) == 0 {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entries...)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries in insertion order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Failures returns the failed entries in insertion order.
func (l *Ledger) Failures() []Entry {
	return l.filter(false)
}

// Successes returns the successful entries in insertion order.
func (l *Ledger) Successes() []Entry {
	return l.filter(true)
}

// HasFailures reports whether any entry failed.
func (l *Ledger) HasFailures() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if !e.Succeeded {
			return true
		}
	}
	return false
}

// Summary counts successes and failures.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize returns the success/failure counts.
func (l *Ledger) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Summary{Total: len(l.entries)}
	for _, e := range l.entries {
		if e.Succeeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

func (l *Ledger) filter(succeeded bool) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Succeeded == succeeded {
			out = append(out, e)
		}
	}
	return out
}
