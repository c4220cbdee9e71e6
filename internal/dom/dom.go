// Package dom abstracts the host page as a queryable, patchable document.
// The pipeline reads and mutates it but never owns its lifecycle: the real
// page is rendered (and re-rendered) by the site itself.
package dom

import "errors"

var ErrNotFound = errors.New("dom: element not found")

type Document interface {
	// Select returns every element matching the CSS selector, in
	// document order.
	Select(selector string) ([]Element, error)
	// SelectOne returns the first match, or ErrNotFound.
	SelectOne(selector string) (Element, error)
}

type Element interface {
	Text() string
	// Attr returns the attribute value, or "" when absent.
	Attr(name string) string
	SetAttr(name, value string)
	SetText(text string)
	Select(selector string) ([]Element, error)
	SelectOne(selector string) (Element, error)
	// AppendHTML parses the fragment and appends it as the last child.
	AppendHTML(fragment string) error
	Remove()
	Parent() (Element, error)
	// OnToggle registers fn to run every time the user toggles this
	// disclosure element, open or closed.
	OnToggle(fn func()) error
}
