package filterlist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// List is a filter list added to a [FilterSet].
type List struct {
	// Text is the full text of the list.
	Text string

	// Options are the parse options the list was added with.
	Options ParseOptions

	// ID is the identifier of the list within its set.
	ID int
}

// FilterSet is a set of filter lists, each with its own permission mask and
// rule types.  Combining lists is order-independent for the decisions of an
// engine built from the set.  FilterSet is not safe for concurrent use.
type FilterSet struct {
	logger *slog.Logger
	lists  []List
}

// NewFilterSet returns a new empty filter set.  logger must not be nil.
func NewFilterSet(logger *slog.Logger) (s *FilterSet) {
	return &FilterSet{
		logger: logger,
	}
}

// AddList parses text as a filter list and adds it to s.  If opts is nil, all
// rule types are loaded without any permissions.  Invalid rules are skipped
// and counted in md.  If text is not valid UTF-8, the list is rejected with
// [ErrInvalidUTF8].
func (s *FilterSet) AddList(text string, opts *ParseOptions) (md *Metadata, err error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}

	l := List{
		Text: text,
		ID:   len(s.lists),
	}

	if opts != nil {
		l.Options = *opts
	}

	md = ReadMetadata(text)

	sc := NewRuleScanner(strings.NewReader(text), l.ID, &l.Options)
	for sc.Scan() {
		md.RulesCount++
	}

	err = sc.Err()
	if err != nil {
		return nil, fmt.Errorf("reading list: %w", err)
	}

	var lastErr error
	md.InvalidCount, lastErr = sc.Invalid()
	if md.InvalidCount > 0 {
		s.logger.Debug(
			"skipped invalid rules",
			"list_id", l.ID,
			"count", md.InvalidCount,
			slogutil.KeyError, lastErr,
		)
	}

	s.lists = append(s.lists, l)

	return md, nil
}

// Lists returns a copy of the lists added to s.
func (s *FilterSet) Lists() (lists []List) {
	return append([]List(nil), s.lists...)
}

// NewRuleStorage parses all lists of s into a new rule storage.
func (s *FilterSet) NewRuleStorage(ctx context.Context) (rs *RuleStorage, err error) {
	rs = NewRuleStorage()

	var errs []error
	for _, l := range s.lists {
		sc := NewRuleScanner(strings.NewReader(l.Text), l.ID, &l.Options)
		for sc.Scan() {
			r, _ := sc.Rule()
			rs.Add(r)
		}

		if err = sc.Err(); err != nil {
			errs = append(errs, fmt.Errorf("list %d: %w", l.ID, err))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "created rule storage", "lists", len(s.lists), "rules", rs.Len())

	return rs, nil
}
