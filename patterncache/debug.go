package patterncache

import (
	"cmp"
	"slices"
	"time"

	"github.com/c2h5oh/datasize"
)

// DebugEntry is the state of a single cached pattern.
type DebugEntry struct {
	// Pattern is the text of the pattern.  It is empty unless the cache is
	// configured with [Config.KeepPatterns].
	Pattern string `json:"pattern,omitempty"`

	// SinceUse is the time passed since the last use of the entry.
	SinceUse time.Duration `json:"since_use"`

	// ID is the identifier of the rule.
	ID uint64 `json:"id"`

	// UsageCount is the number of lookups of the entry.
	UsageCount uint64 `json:"usage_count"`

	// Invalid is true if the pattern failed to compile.
	Invalid bool `json:"invalid"`
}

// DebugInfo is a snapshot of the state of a pattern cache.
type DebugInfo struct {
	// Entries are the cached entries sorted by ID.
	Entries []*DebugEntry `json:"entries"`

	// CompiledCount is the number of valid compiled patterns.
	CompiledCount int `json:"compiled_count"`

	// FailedCount is the number of patterns that failed to compile.
	FailedCount int `json:"failed_count"`

	// PatternSize is the total length of the cached pattern texts.
	PatternSize datasize.ByteSize `json:"pattern_size"`
}

// DebugSnapshot returns the current state of the cache.  It doesn't update the
// usage of the entries.
func (c *Cache) DebugSnapshot() (info *DebugInfo) {
	now := c.clock.Now()
	info = &DebugInfo{}

	c.mu.Lock()
	defer c.mu.Unlock()

	info.Entries = make([]*DebugEntry, 0, len(c.entries))
	for id, e := range c.entries {
		de := &DebugEntry{
			SinceUse:   now.Sub(e.lastUse),
			ID:         id,
			UsageCount: e.usage,
			Invalid:    e.re == nil,
		}

		if c.keepPatterns {
			de.Pattern = e.pattern
		}

		if de.Invalid {
			info.FailedCount++
		} else {
			info.CompiledCount++
		}

		info.PatternSize += datasize.ByteSize(len(e.pattern))
		info.Entries = append(info.Entries, de)
	}

	slices.SortFunc(info.Entries, func(a, b *DebugEntry) (res int) {
		return cmp.Compare(a.ID, b.ID)
	})

	return info
}
