package domain

import (
	"regexp"
	"sort"
)

// ServerContext is the session object the host page exposes as
// window.serverParameters. Captured once at startup, read-only afterwards.
type ServerContext struct {
	UserInfo UserInfo `json:"user:info"`
}

type UserInfo struct {
	ReferenceCode string `json:"referenceCode"`
	Username      string `json:"username"`
}

var refCodePattern = regexp.MustCompile(`^PR.+$`)

// Eligible reports whether the context belongs to a signed-in user with a
// PR-prefixed reference code. Anything else deactivates the whole feature.
func (c *ServerContext) Eligible() bool {
	return c != nil && refCodePattern.MatchString(c.UserInfo.ReferenceCode)
}

// ResolveAlias maps the rendered placeholder "You" to the context user's
// real username. Any other name passes through unchanged.
func (c *ServerContext) ResolveAlias(username string) string {
	if username == "You" {
		return c.UserInfo.Username
	}
	return username
}

// FoundEntry is one qualifying found activity inside a date bucket.
// CacheCode is empty for lab cache finds, which count toward presence but
// are never rendered as links.
type FoundEntry struct {
	CacheCode string
	Username  string
}

// FoundIndex maps a calendar date (YYYY-MM-DD) to the found entries logged
// on that day, in insertion order. Built once per run, read-only afterwards.
type FoundIndex map[string][]FoundEntry

// FoundFor returns the linkable cache codes username logged on day,
// preserving bucket order. Lab cache entries carry no code and are skipped.
func (idx FoundIndex) FoundFor(day, username string) []string {
	var codes []string
	for _, entry := range idx[day] {
		if entry.CacheCode != "" && entry.Username == username {
			codes = append(codes, entry.CacheCode)
		}
	}
	return codes
}

// CacheCodes returns every distinct non-empty cache code in the index.
// Buckets are visited in sorted date order so the result is deterministic.
func (idx FoundIndex) CacheCodes() []string {
	days := make([]string, 0, len(idx))
	for day := range idx {
		days = append(days, day)
	}
	sort.Strings(days)

	seen := make(map[string]struct{})
	var codes []string
	for _, day := range days {
		for _, entry := range idx[day] {
			if entry.CacheCode == "" {
				continue
			}
			if _, ok := seen[entry.CacheCode]; ok {
				continue
			}
			seen[entry.CacheCode] = struct{}{}
			codes = append(codes, entry.CacheCode)
		}
	}
	return codes
}

// FoundStatus classifies the context user's relationship to a cache and
// selects the status icon: owned beats found/DNF, which beat solved.
type FoundStatus int

const (
	StatusNone FoundStatus = iota
	StatusOwned
	StatusFound
	StatusDidNotFind
	StatusSolved
)

func (s FoundStatus) String() string {
	switch s {
	case StatusOwned:
		return "owned"
	case StatusFound:
		return "found"
	case StatusDidNotFind:
		return "did-not-find"
	case StatusSolved:
		return "solved"
	default:
		return "none"
	}
}
