package dom

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// toggleIDAttr marks elements with a registered toggle callback so a later
// Toggle call (or a re-run of the pipeline) can find them again.
const toggleIDAttr = "data-toggle-id"

// HTMLDocument is a goquery-backed Document over a static page snapshot.
// It backs the CLI's snapshot mode and every correlation/enrichment test;
// toggle events are delivered in-process via Toggle.
type HTMLDocument struct {
	doc     *goquery.Document
	toggles map[string]func()
}

func NewHTMLDocument(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &HTMLDocument{doc: doc, toggles: make(map[string]func())}, nil
}

func ParseHTML(s string) (*HTMLDocument, error) {
	return NewHTMLDocument(strings.NewReader(s))
}

func (d *HTMLDocument) Select(selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(d, d.doc.FindMatcher(m)), nil
}

func (d *HTMLDocument) SelectOne(selector string) (Element, error) {
	els, err := d.Select(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

// Toggle fires the callback registered on the first element matching the
// selector, standing in for a user click on the disclosure.
func (d *HTMLDocument) Toggle(selector string) error {
	el, err := d.SelectOne(selector)
	if err != nil {
		return err
	}
	fn, ok := d.toggles[el.Attr(toggleIDAttr)]
	if !ok {
		return ErrNotFound
	}
	fn()
	return nil
}

// HTML serializes the (possibly augmented) document back out.
func (d *HTMLDocument) HTML() (string, error) {
	return goquery.OuterHtml(d.doc.Selection)
}

type htmlElement struct {
	doc *HTMLDocument
	sel *goquery.Selection
}

func wrapAll(d *HTMLDocument, sel *goquery.Selection) []Element {
	els := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		els = append(els, &htmlElement{doc: d, sel: s})
	})
	return els
}

func (e *htmlElement) Text() string {
	return e.sel.Text()
}

func (e *htmlElement) Attr(name string) string {
	return e.sel.AttrOr(name, "")
}

func (e *htmlElement) SetAttr(name, value string) {
	e.sel.SetAttr(name, value)
}

func (e *htmlElement) SetText(text string) {
	e.sel.SetText(text)
}

func (e *htmlElement) Select(selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(e.doc, e.sel.FindMatcher(m)), nil
}

func (e *htmlElement) SelectOne(selector string) (Element, error) {
	els, err := e.Select(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

func (e *htmlElement) AppendHTML(fragment string) error {
	e.sel.AppendHtml(fragment)
	return nil
}

// Remove drops the element and releases any toggle callbacks registered on
// it or inside it, so re-runs do not accumulate orphaned entries.
func (e *htmlElement) Remove() {
	e.releaseToggles()
	e.sel.Remove()
}

func (e *htmlElement) releaseToggles() {
	if id := e.Attr(toggleIDAttr); id != "" {
		delete(e.doc.toggles, id)
	}
	e.sel.Find("[" + toggleIDAttr + "]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr(toggleIDAttr); ok {
			delete(e.doc.toggles, id)
		}
	})
}

func (e *htmlElement) Parent() (Element, error) {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil, ErrNotFound
	}
	return &htmlElement{doc: e.doc, sel: p}, nil
}

func (e *htmlElement) OnToggle(fn func()) error {
	id := e.Attr(toggleIDAttr)
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return err
		}
		e.SetAttr(toggleIDAttr, id)
	}
	e.doc.toggles[id] = fn
	return nil
}
