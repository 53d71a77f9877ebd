// Package blockengine contains the content-filtering engine that decides, for
// every request of a browser, whether to block, redirect, or rewrite it, and
// returns the cosmetic resources of the pages.
package blockengine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/patterncache"
	"github.com/AdguardTeam/blockengine/resources"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/c2h5oh/datasize"
)

// Config is the configuration of an [Engine].
type Config struct {
	// Logger is used for logging the operation of the engine.  It must not be
	// nil.
	Logger *slog.Logger

	// Clock is used by the pattern cache.  It must not be nil.
	Clock timeutil.Clock

	// CacheMetrics are the metrics of the pattern cache.  It must not be nil.
	CacheMetrics patterncache.Metrics

	// Resources is the shared storage of the redirect and scriptlet resources.
	// If nil, the engine has its own empty storage.
	Resources *resources.Shared

	// DomainResolver finds the registrable domains of hostnames.  If nil,
	// [rules.PublicSuffixResolver] is used.
	DomainResolver rules.DomainResolver

	// DiscardPolicy is the initial discard policy of the pattern cache.
	DiscardPolicy patterncache.DiscardPolicy

	// KeepPatterns makes [Engine.DebugInfo] include the pattern texts.
	KeepPatterns bool
}

// validate returns an error if c is invalid.
func (c *Config) validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	var errs []error
	if c.Logger == nil {
		errs = append(errs, fmt.Errorf("Logger: %w", errors.ErrNoValue))
	}

	if c.Clock == nil {
		errs = append(errs, fmt.Errorf("Clock: %w", errors.ErrNoValue))
	}

	if c.CacheMetrics == nil {
		errs = append(errs, fmt.Errorf("CacheMetrics: %w", errors.ErrNoValue))
	}

	return errors.Join(errs...)
}

// engineState is the immutable rule state of an engine.
type engineState struct {
	storage  *filterlist.RuleStorage
	network  *NetworkEngine
	cosmetic *CosmeticEngine
	lists    []filterlist.List
}

// newEngineState parses the lists of set into a new state.
func newEngineState(ctx context.Context, set *filterlist.FilterSet) (st *engineState, err error) {
	storage, err := set.NewRuleStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating rule storage: %w", err)
	}

	return &engineState{
		storage:  storage,
		network:  NewNetworkEngine(storage),
		cosmetic: NewCosmeticEngine(storage),
		lists:    set.Lists(),
	}, nil
}

// Engine is the content-filtering engine.  Checking requests and getting
// cosmetic resources is safe for concurrent use.  [Engine.Deserialize] must not
// be called concurrently with other methods.
type Engine struct {
	logger    *slog.Logger
	resolver  rules.DomainResolver
	cache     *patterncache.Cache
	resources *resources.Shared

	// state is the current set of rules.
	state atomic.Pointer[engineState]

	// tagsMu serializes the updates of tags.
	tagsMu *sync.Mutex

	// tags is the immutable set of enabled tags.  Updates replace it.
	tags atomic.Pointer[container.MapSet[string]]
}

// New returns a new engine with the rules from the lists of set.
func New(ctx context.Context, c *Config, set *filterlist.FilterSet) (e *Engine, err error) {
	err = c.validate()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	st, err := newEngineState(ctx, set)
	if err != nil {
		return nil, err
	}

	resolver := c.DomainResolver
	if resolver == nil {
		resolver = rules.PublicSuffixResolver{}
	}

	e = &Engine{
		logger:   c.Logger,
		resolver: resolver,
		cache: patterncache.New(&patterncache.Config{
			Logger:       c.Logger.With(slogutil.KeyPrefix, "pattern_cache"),
			Clock:        c.Clock,
			Metrics:      c.CacheMetrics,
			Policy:       c.DiscardPolicy,
			KeepPatterns: c.KeepPatterns,
		}),
		resources: resourcesOrEmpty(c.Resources),
		tagsMu:    &sync.Mutex{},
	}

	e.state.Store(st)
	e.tags.Store(container.NewMapSet[string]())

	e.logger.DebugContext(
		ctx,
		"engine created",
		"network_rules", st.network.RulesCount,
		"cosmetic_rules", st.cosmetic.RulesCount,
	)

	return e, nil
}

// NewFromRules returns a new engine with the rules from a single filter list
// text.
func NewFromRules(ctx context.Context, c *Config, text string) (e *Engine, err error) {
	if c == nil || c.Logger == nil {
		return nil, fmt.Errorf("engine config: %w", errors.ErrNoValue)
	}

	set := filterlist.NewFilterSet(c.Logger)
	_, err = set.AddList(text, nil)
	if err != nil {
		return nil, fmt.Errorf("adding list: %w", err)
	}

	return New(ctx, c, set)
}

// type check
var _ service.Interface = (*Engine)(nil)

// Start implements the [service.Interface] interface for *Engine.  It starts
// the background cleanup of the pattern cache.
func (e *Engine) Start(ctx context.Context) (err error) {
	return e.cache.Start(ctx)
}

// Shutdown implements the [service.Interface] interface for *Engine.
func (e *Engine) Shutdown(ctx context.Context) (err error) {
	return e.cache.Shutdown(ctx)
}

// RulesCount returns the number of the network and the cosmetic rules.
func (e *Engine) RulesCount() (network, cosmetic int) {
	st := e.state.Load()

	return st.network.RulesCount, st.cosmetic.RulesCount
}

// EnableTag enables the rules with the $tag modifier equal to tag.
func (e *Engine) EnableTag(tag string) {
	e.updateTags(func(tags *container.MapSet[string]) { tags.Add(tag) })
}

// DisableTag disables the rules with the $tag modifier equal to tag.
func (e *Engine) DisableTag(tag string) {
	e.updateTags(func(tags *container.MapSet[string]) { tags.Delete(tag) })
}

// TagExists returns true if tag is enabled.
func (e *Engine) TagExists(tag string) (ok bool) {
	return e.tags.Load().Has(tag)
}

// Tags returns the sorted enabled tags.
func (e *Engine) Tags() (tags []string) {
	tags = e.tags.Load().Values()
	slices.Sort(tags)

	return tags
}

// updateTags replaces the set of tags with a copy modified by f.
func (e *Engine) updateTags(f func(tags *container.MapSet[string])) {
	e.tagsMu.Lock()
	defer e.tagsMu.Unlock()

	tags := container.NewMapSet(e.tags.Load().Values()...)
	f(tags)
	e.tags.Store(tags)
}

// setTags replaces the set of tags with one containing tags.
func (e *Engine) setTags(tags []string) {
	e.tagsMu.Lock()
	defer e.tagsMu.Unlock()

	e.tags.Store(container.NewMapSet(tags...))
}

// UseResources replaces the resources with the ones from the JSON data.  See
// [resources.Parse] for the errors.  If data is invalid, the current resources
// are kept.
func (e *Engine) UseResources(data []byte) (err error) {
	return e.resources.UseJSON(data)
}

// DebugInfo is the diagnostic information about an engine.
type DebugInfo struct {
	// PatternCache is the state of the pattern cache.
	PatternCache *patterncache.DebugInfo `json:"pattern_cache"`

	// RulesCount is the number of stored rules.
	RulesCount int `json:"rules_count"`

	// RulesTextSize is the total size of the texts of the stored rules.
	RulesTextSize datasize.ByteSize `json:"rules_text_size"`
}

// DebugInfo returns the diagnostic information about e.
func (e *Engine) DebugInfo() (info *DebugInfo) {
	st := e.state.Load()

	return &DebugInfo{
		PatternCache:  e.cache.DebugSnapshot(),
		RulesCount:    st.storage.Len(),
		RulesTextSize: st.storage.TextSize(),
	}
}

// DiscardRegex removes the compiled pattern of the rule with the id.  It is
// compiled again on the next use.
func (e *Engine) DiscardRegex(id uint64) {
	e.cache.Discard(id)
}

// SetRegexDiscardPolicy sets the policy of evicting unused compiled patterns.
func (e *Engine) SetRegexDiscardPolicy(p patterncache.DiscardPolicy) {
	e.cache.SetDiscardPolicy(p)
}
