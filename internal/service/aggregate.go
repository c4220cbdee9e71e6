package service

import (
	"strings"

	"geofeed-assist/internal/api"
	"geofeed-assist/internal/domain"
)

// IndexBuilder accumulates qualifying found activities across both
// leaderboard periods. Build returns a snapshot the correlator reads; the
// builder itself is never handed to later stages.
type IndexBuilder struct {
	buckets domain.FoundIndex
}

func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{buckets: make(domain.FoundIndex)}
}

// AddAccounts appends one found entry per FoundIt / FoundLabCache activity.
// Shallow accounts are skipped silently. Existing date buckets are appended
// to, never replaced, so insertion order survives across both periods.
func (b *IndexBuilder) AddAccounts(accounts []api.Account) {
	for _, account := range accounts {
		if account.Activities == nil {
			continue
		}
		for _, activity := range account.Activities {
			code, ok := qualifies(activity)
			if !ok {
				continue
			}
			day := dateKey(activity.LogDateTime)
			b.buckets[day] = append(b.buckets[day], domain.FoundEntry{
				CacheCode: code,
				Username:  account.Username,
			})
		}
	}
}

// Build returns an immutable snapshot. Later AddAccounts calls do not leak
// into snapshots already built.
func (b *IndexBuilder) Build() domain.FoundIndex {
	snapshot := make(domain.FoundIndex, len(b.buckets))
	for day, entries := range b.buckets {
		snapshot[day] = append([]domain.FoundEntry(nil), entries...)
	}
	return snapshot
}

// qualifies filters to the two found activity types. Lab cache finds count
// but carry no linkable code.
func qualifies(activity api.Activity) (string, bool) {
	switch activity.ActivityType {
	case api.ActivityFoundIt:
		return activity.LogObjectCode, true
	case api.ActivityFoundLabCache:
		return "", true
	default:
		return "", false
	}
}

// dateKey truncates an ISO timestamp to its calendar date.
func dateKey(logDateTime string) string {
	if i := strings.IndexByte(logDateTime, 'T'); i >= 0 {
		return logDateTime[:i]
	}
	return logDateTime
}
