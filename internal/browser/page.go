// Package browser adapts a live CDP-driven page to the dom.Document the
// pipeline consumes, and reads the page's server context object.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"geofeed-assist/internal/config"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/domain"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"
)

// Session owns the browser connection and the feed page tab. Live mode
// attaches to an already-authenticated browser when BROWSER_CONTROL_URL is
// set; otherwise a fresh one is launched.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	logger   zerolog.Logger
}

func Open(cfg *config.Config, logger zerolog.Logger) (*Session, error) {
	var (
		l          *launcher.Launcher
		controlURL = cfg.BrowserControlURL
	)
	if controlURL == "" {
		l = launcher.New().Headless(cfg.Headless)
		launched, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = launched
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: cfg.FeedURL})
	if err != nil {
		_ = b.Close()
		if l != nil {
			l.Cleanup()
		}
		return nil, fmt.Errorf("open feed page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		logger.Warn().Err(err).Msg("feed page load wait failed, continuing")
	}

	logger.Info().Str("feed_url", cfg.FeedURL).Msg("feed page opened")
	return &Session{browser: b, launcher: l, page: page, logger: logger}, nil
}

func (s *Session) Close() {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}

// Document exposes the feed page as the pipeline's document collaborator.
func (s *Session) Document() *PageDocument {
	return &PageDocument{
		page:     s.page,
		logger:   s.logger,
		bindings: make(map[string]func() error),
	}
}

// ServerContext evaluates the session object the page exposes globally.
// Implements service.ContextReader.
func (s *Session) ServerContext(ctx context.Context) (*domain.ServerContext, error) {
	res, err := s.page.Context(ctx).Eval(`() => window.serverParameters`)
	if err != nil {
		return nil, err
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("serverParameters not present on page")
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var sc domain.ServerContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// toggleBindingAttr records the exposed binding name on the element so a
// later Remove can find and release it.
const toggleBindingAttr = "data-toggle-binding"

// PageDocument implements dom.Document on a live page. Queries never block
// waiting for elements to render; readiness polling is the correlator's
// job.
type PageDocument struct {
	page     *rod.Page
	logger   zerolog.Logger
	bindings map[string]func() error
}

func (d *PageDocument) Select(selector string) ([]dom.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &pageElement{doc: d, el: el})
	}
	return out, nil
}

func (d *PageDocument) SelectOne(selector string) (dom.Element, error) {
	els, err := d.Select(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, dom.ErrNotFound
	}
	return els[0], nil
}

type pageElement struct {
	doc *PageDocument
	el  *rod.Element
}

func (e *pageElement) Text() string {
	text, err := e.el.Text()
	if err != nil {
		return ""
	}
	return text
}

func (e *pageElement) Attr(name string) string {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func (e *pageElement) SetAttr(name, value string) {
	_, _ = e.el.Eval(`(name, value) => this.setAttribute(name, value)`, name, value)
}

func (e *pageElement) SetText(text string) {
	_, _ = e.el.Eval(`text => { this.textContent = text }`, text)
}

func (e *pageElement) Select(selector string) ([]dom.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &pageElement{doc: e.doc, el: el})
	}
	return out, nil
}

func (e *pageElement) SelectOne(selector string) (dom.Element, error) {
	els, err := e.Select(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, dom.ErrNotFound
	}
	return els[0], nil
}

func (e *pageElement) AppendHTML(fragment string) error {
	_, err := e.el.Eval(`html => this.insertAdjacentHTML('beforeend', html)`, fragment)
	return err
}

// Remove drops the element and stops any toggle bindings exposed on it or
// inside it, so re-runs do not accumulate orphaned page bindings.
func (e *pageElement) Remove() {
	res, err := e.el.Eval(`attr => {
		const names = [];
		if (this.hasAttribute(attr)) names.push(this.getAttribute(attr));
		for (const el of this.querySelectorAll('[' + attr + ']')) {
			names.push(el.getAttribute(attr));
		}
		return names;
	}`, toggleBindingAttr)
	if err == nil {
		for _, name := range res.Value.Arr() {
			binding := name.Str()
			if stop, ok := e.doc.bindings[binding]; ok {
				_ = stop()
				delete(e.doc.bindings, binding)
			}
		}
	}
	_ = e.el.Remove()
}

func (e *pageElement) Parent() (dom.Element, error) {
	p, err := e.el.Parent()
	if err != nil {
		return nil, dom.ErrNotFound
	}
	return &pageElement{doc: e.doc, el: p}, nil
}

// OnToggle exposes a page-global binding and wires it to the element's
// toggle event. The binding name is random so repeated runs and multiple
// controls never collide.
func (e *pageElement) OnToggle(fn func()) error {
	suffix, err := gonanoid.New()
	if err != nil {
		return err
	}
	binding := "feedAssistToggle_" + suffix

	stop, err := e.doc.page.Expose(binding, func(gson.JSON) (interface{}, error) {
		fn()
		return nil, nil
	})
	if err != nil {
		return err
	}
	e.doc.bindings[binding] = stop

	_, err = e.el.Eval(`(attr, binding) => {
		this.setAttribute(attr, binding);
		this.addEventListener('toggle', () => window[binding]());
	}`, toggleBindingAttr, binding)
	return err
}
