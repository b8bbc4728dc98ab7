// Package document wraps goquery with the lookup semantics the scrapers need:
// every lookup names what it is looking for and states whether the element is
// required, so a missing required element surfaces as a typed error while a
// missing optional element simply yields zero values.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrMissingElement is matched by every *MissingError.
var ErrMissingElement = errors.New("required element missing")

// MissingError reports which required element could not be located.
type MissingError struct {
	URL         string
	Selector    string
	Description string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s not found (selector %q) at %s", e.Description, e.Selector, e.URL)
}

// Is lets errors.Is match ErrMissingElement.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissingElement
}

// Document is a parsed HTML page.
type Document struct {
	url  string
	root *Element
}

// Parse builds a Document from raw HTML fetched from pageURL.
func Parse(pageURL string, body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{url: pageURL}
	d.root = &Element{doc: d, sel: doc.Selection, description: "document"}
	return d, nil
}

// URL returns the address the document was fetched from.
func (d *Document) URL() string {
	return d.url
}

// Root returns the top-level element.
func (d *Document) Root() *Element {
	return d.root
}

// Element finds the first match for selector. See Element.Element.
func (d *Document) Element(selector, description string, required bool) (*Element, error) {
	return d.root.Element(selector, description, required)
}

// List finds every match for selector. See Element.List.
func (d *Document) List(selector, description string, required bool) ([]*Element, error) {
	return d.root.List(selector, description, required)
}

// Element is a located node. A nil *Element stands for an optional element
// that was absent; all accessors on it return zero values.
type Element struct {
	doc         *Document
	sel         *goquery.Selection
	description string
}

// Element returns the first descendant matching selector. When nothing
// matches it returns a *MissingError if required, otherwise (nil, nil).
func (e *Element) Element(selector, description string, required bool) (*Element, error) {
	if e == nil {
		return nil, e.missing(selector, description, required)
	}
	match := e.sel.Find(selector).First()
	if match.Length() == 0 {
		return nil, e.missing(selector, description, required)
	}
	return &Element{doc: e.doc, sel: match, description: description}, nil
}

// List returns every descendant matching selector. An empty result is an
// error only when required is set.
func (e *Element) List(selector, description string, required bool) ([]*Element, error) {
	if e == nil {
		return nil, e.missing(selector, description, required)
	}
	matches := e.sel.Find(selector)
	if matches.Length() == 0 {
		return nil, e.missing(selector, description, required)
	}
	out := make([]*Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{doc: e.doc, sel: s, description: description})
	})
	return out, nil
}

// Description returns the human-readable name given at lookup time.
func (e *Element) Description() string {
	if e == nil {
		return ""
	}
	return e.description
}

// Text returns the trimmed text content.
func (e *Element) Text() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.sel.Text())
}

// Attr returns the trimmed attribute value, or "" when absent.
func (e *Element) Attr(name string) string {
	if e == nil {
		return ""
	}
	v, _ := e.sel.Attr(name)
	return strings.TrimSpace(v)
}

// Href returns the href attribute resolved against the document URL.
func (e *Element) Href() string {
	raw := e.Attr("href")
	if raw == "" || e.doc == nil {
		return raw
	}
	base, err := url.Parse(e.doc.url)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// Number parses the text content as a float, tolerating thousands
// separators and trailing units ("1,234 ratings"). Absent elements parse as 0.
func (e *Element) Number() (float64, error) {
	if e == nil {
		return 0, nil
	}
	return ParseNumber(e.Text())
}

// Int is Number truncated to an int.
func (e *Element) Int() (int, error) {
	n, err := e.Number()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (e *Element) missing(selector, description string, required bool) error {
	if !required {
		return nil
	}
	pageURL := ""
	if e != nil && e.doc != nil {
		pageURL = e.doc.url
	}
	return &MissingError{URL: pageURL, Selector: selector, Description: description}
}

// ParseNumber extracts the leading numeric token from s. Empty input is 0.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.NewReplacer(",", "", "#", "").Replace(s)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return n, nil
}
