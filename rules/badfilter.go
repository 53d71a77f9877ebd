package rules

// RemoveBadfilter returns rs without the $badfilter rules and the rules they
// negate.  rs itself is returned if it contains no $badfilter rules.
func RemoveBadfilter(rs []*NetworkRule) (filtered []*NetworkRule) {
	var badfilters []*NetworkRule
	for _, r := range rs {
		if r.IsOptionEnabled(OptionBadfilter) {
			badfilters = append(badfilters, r)
		}
	}

	if len(badfilters) == 0 {
		return rs
	}

	filtered = make([]*NetworkRule, 0, len(rs))

rulesLoop:
	for _, r := range rs {
		if r.IsOptionEnabled(OptionBadfilter) {
			continue
		}

		for _, bf := range badfilters {
			if bf.NegatesBadfilter(r) {
				continue rulesLoop
			}
		}

		filtered = append(filtered, r)
	}

	return filtered
}
