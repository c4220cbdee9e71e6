package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerContext_Eligible(t *testing.T) {
	t.Run("PR reference code is eligible", func(t *testing.T) {
		sc := &ServerContext{UserInfo: UserInfo{ReferenceCode: "PR12ABC", Username: "alice"}}
		assert.True(t, sc.Eligible())
	})

	t.Run("non-PR reference code is not", func(t *testing.T) {
		sc := &ServerContext{UserInfo: UserInfo{ReferenceCode: "GC12ABC", Username: "alice"}}
		assert.False(t, sc.Eligible())
	})

	t.Run("bare PR prefix is not enough", func(t *testing.T) {
		sc := &ServerContext{UserInfo: UserInfo{ReferenceCode: "PR"}}
		assert.False(t, sc.Eligible())
	})

	t.Run("empty context is not eligible", func(t *testing.T) {
		var sc *ServerContext
		assert.False(t, sc.Eligible())
		assert.False(t, (&ServerContext{}).Eligible())
	})
}

func TestServerContext_ResolveAlias(t *testing.T) {
	sc := &ServerContext{UserInfo: UserInfo{ReferenceCode: "PR1", Username: "alice"}}

	assert.Equal(t, "alice", sc.ResolveAlias("You"))
	assert.Equal(t, "bob", sc.ResolveAlias("bob"))
	// Only the exact placeholder is aliased.
	assert.Equal(t, "you", sc.ResolveAlias("you"))
}

func TestFoundIndex_FoundFor(t *testing.T) {
	idx := FoundIndex{
		"2024-01-05": {
			{CacheCode: "GC1", Username: "alice"},
			{CacheCode: "", Username: "alice"},
			{CacheCode: "GC2", Username: "bob"},
		},
	}

	t.Run("filters by user and skips lab caches", func(t *testing.T) {
		assert.Equal(t, []string{"GC1"}, idx.FoundFor("2024-01-05", "alice"))
		assert.Equal(t, []string{"GC2"}, idx.FoundFor("2024-01-05", "bob"))
	})

	t.Run("unknown day or user yields nothing", func(t *testing.T) {
		assert.Empty(t, idx.FoundFor("2024-01-06", "alice"))
		assert.Empty(t, idx.FoundFor("2024-01-05", "carol"))
	})

	t.Run("preserves bucket order", func(t *testing.T) {
		multi := FoundIndex{
			"2024-02-01": {
				{CacheCode: "GC9", Username: "alice"},
				{CacheCode: "GC3", Username: "alice"},
				{CacheCode: "GC5", Username: "alice"},
			},
		}
		assert.Equal(t, []string{"GC9", "GC3", "GC5"}, multi.FoundFor("2024-02-01", "alice"))
	})
}

func TestFoundIndex_CacheCodes(t *testing.T) {
	idx := FoundIndex{
		"2024-01-02": {
			{CacheCode: "GC2", Username: "bob"},
			{CacheCode: "GC1", Username: "bob"},
		},
		"2024-01-01": {
			{CacheCode: "GC1", Username: "alice"},
			{CacheCode: "", Username: "alice"},
		},
	}

	// Dates are visited in order, duplicates and lab entries dropped.
	assert.Equal(t, []string{"GC1", "GC2"}, idx.CacheCodes())
	assert.Empty(t, FoundIndex{}.CacheCodes())
}

func TestFoundStatus_String(t *testing.T) {
	assert.Equal(t, "owned", StatusOwned.String())
	assert.Equal(t, "found", StatusFound.String())
	assert.Equal(t, "did-not-find", StatusDidNotFind.String())
	assert.Equal(t, "solved", StatusSolved.String())
	assert.Equal(t, "none", StatusNone.String())
}
