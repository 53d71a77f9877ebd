package filterlist

import (
	"bufio"
	"io"

	"github.com/AdguardTeam/blockengine/rules"
	"github.com/c2h5oh/datasize"
)

// maxLineSize is the maximum length of a single line of a filter list.
const maxLineSize = 1 * datasize.MB

// RuleScanner implements an interface for reading filtering rules.
type RuleScanner struct {
	// reader is the scanner that reads the list line by line.
	reader *bufio.Scanner

	// currentRule is the last rule read by Scan.
	currentRule rules.Rule

	// lastErr is the last syntax error.
	lastErr error

	// opts are the options of the list.
	opts ParseOptions

	// listID is the ID of the filter list.
	listID int

	// currentLine is the index of the line the current rule was read from.
	currentLine int

	// invalid is the number of lines that could not be parsed.
	invalid int
}

// NewRuleScanner returns a new RuleScanner to read from r.  r is read line by
// line, each line is supposed to be a filtering rule.  If opts is nil, all
// rules are loaded without any permissions.
func NewRuleScanner(r io.Reader, listID int, opts *ParseOptions) (s *RuleScanner) {
	reader := bufio.NewScanner(r)
	reader.Buffer(nil, int(maxLineSize.Bytes()))

	s = &RuleScanner{
		reader:      reader,
		listID:      listID,
		currentLine: -1,
	}

	if opts != nil {
		s.opts = *opts
	}

	return s
}

// Scan advances the RuleScanner to the next rule, which will then be available
// through the Rule method.  It returns false when the scan stops, either by
// reaching the end of the input or an error.  Lines that are not valid rules
// are skipped.
func (s *RuleScanner) Scan() (ok bool) {
	for s.reader.Scan() {
		s.currentLine++

		r, err := rules.NewRule(s.reader.Text(), s.listID)
		if err != nil {
			s.invalid++
			s.lastErr = err

			continue
		}

		if r == nil || !s.opts.RuleTypes.accepts(r) {
			continue
		}

		s.setPermission(r)
		s.currentRule = r

		return true
	}

	s.currentRule = nil

	return false
}

// setPermission sets the permission mask of the list to r.
func (s *RuleScanner) setPermission(r rules.Rule) {
	switch r := r.(type) {
	case *rules.NetworkRule:
		r.Permission = s.opts.Permission
	case *rules.CosmeticRule:
		r.Permission = s.opts.Permission
	}
}

// Rule returns the most recent rule generated by a call to Scan, and the index
// of the line it was read from.
func (s *RuleScanner) Rule() (r rules.Rule, line int) {
	return s.currentRule, s.currentLine
}

// Err returns the first non-EOF error that was encountered by the underlying
// reader.  Syntax errors of single rules are not reported here, see
// [RuleScanner.Invalid].
func (s *RuleScanner) Err() (err error) {
	return s.reader.Err()
}

// Invalid returns the number of lines that could not be parsed so far and the
// last of the syntax errors.
func (s *RuleScanner) Invalid() (n int, lastErr error) {
	return s.invalid, s.lastErr
}
