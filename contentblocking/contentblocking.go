// Package contentblocking converts network rules into the WebKit
// content-blocker format, which has a limit on the number of rules.
package contentblocking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/validate"
)

// DefaultMaxRules is the maximum number of rules in a single content-blocker
// list accepted by WebKit.
const DefaultMaxRules = 150_000

// Config is the configuration of a [Converter].
type Config struct {
	// Logger is used to log the skipped rules.  It must not be nil.
	Logger *slog.Logger

	// MaxRules is the maximum length of the converted list.  It must be
	// positive.
	MaxRules int
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

	err = validate.Positive("MaxRules", c.MaxRules)
	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Converter converts network rules into content-blocker rules.
type Converter struct {
	logger   *slog.Logger
	maxRules int
}

// New returns a new properly initialized *Converter.
func New(c *Config) (cv *Converter, err error) {
	err = c.validate()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Converter{
		logger:   c.Logger,
		maxRules: c.MaxRules,
	}, nil
}

// Result is the converted list.
type Result struct {
	// Rules are the converted rules in the order WebKit must apply them.
	Rules []*Rule

	// Skipped is the number of network rules that have no content-blocker
	// equivalent.
	Skipped int

	// Truncated is true if the list has been cut to the maximum length.
	Truncated bool
}

// JSON returns the JSON form of the converted rules as WebKit expects it.
func (res *Result) JSON() (b []byte, err error) {
	return json.Marshal(res.Rules)
}

// ConvertList parses text as a filter list, ignoring the cosmetic rules, and
// converts its network rules.
func (cv *Converter) ConvertList(ctx context.Context, text string) (res *Result, err error) {
	if !utf8.ValidString(text) {
		return nil, filterlist.ErrInvalidUTF8
	}

	sc := filterlist.NewRuleScanner(strings.NewReader(text), 0, &filterlist.ParseOptions{
		RuleTypes: filterlist.RuleTypesNetworkOnly,
	})

	var nrs []*rules.NetworkRule
	for sc.Scan() {
		r, _ := sc.Rule()
		if nr, ok := r.(*rules.NetworkRule); ok {
			nrs = append(nrs, nr)
		}
	}

	err = sc.Err()
	if err != nil {
		return nil, fmt.Errorf("reading list: %w", err)
	}

	return cv.Convert(ctx, nrs), nil
}

// Convert converts nrs.  The blocking rules go first, then the exceptions,
// which cancel them, then the important rules, which exceptions can't cancel.
// The list always ends with the rule allowing first-party documents, and it
// stays the last one after the truncation.
func (cv *Converter) Convert(ctx context.Context, nrs []*rules.NetworkRule) (res *Result) {
	res = &Result{}

	nrs = rules.RemoveBadfilter(nrs)

	var blocks, exceptions, important []*Rule
	for _, nr := range nrs {
		r, err := convertRule(nr)
		if err != nil {
			cv.logger.Log(
				ctx,
				slogutil.LevelTrace,
				"skipping rule",
				"rule", nr.RuleText,
				slogutil.KeyError, err,
			)

			res.Skipped++

			continue
		}

		switch {
		case nr.Whitelist:
			exceptions = append(exceptions, r)
		case nr.IsImportant():
			important = append(important, r)
		default:
			blocks = append(blocks, r)
		}
	}

	res.Rules = make([]*Rule, 0, len(blocks)+len(exceptions)+len(important)+1)
	res.Rules = append(res.Rules, blocks...)
	res.Rules = append(res.Rules, exceptions...)
	res.Rules = append(res.Rules, important...)
	res.Rules = append(res.Rules, ignoreFirstPartyDocuments())

	res.Truncated = truncate(&res.Rules, cv.maxRules)
	if res.Truncated {
		cv.logger.WarnContext(ctx, "content-blocking list truncated", "max", cv.maxRules)
	}

	cv.logger.DebugContext(
		ctx,
		"converted rules",
		"total", len(nrs),
		"converted", len(res.Rules),
		"skipped", res.Skipped,
	)

	return res
}

// truncate cuts the list pointed to by rs to max entries, moving its last
// entry into the last remaining slot.  It returns true if rs was cut.
func truncate(rs *[]*Rule, max int) (ok bool) {
	l := *rs
	if len(l) <= max {
		return false
	}

	l[max-1] = l[len(l)-1]
	clear(l[max:])
	*rs = l[:max]

	return true
}

// errUnsupported is returned for rules that have no content-blocker
// equivalent.
const errUnsupported errors.Error = "no content-blocker equivalent"
