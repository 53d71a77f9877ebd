package filterlist

import (
	"strconv"
	"strings"
	"time"
)

// Metadata is the information from the header of a filter list.
type Metadata struct {
	// Title is the value of the "! Title:" header.
	Title string

	// Homepage is the value of the "! Homepage:" header.
	Homepage string

	// Expires is the update period from the "! Expires:" header.  It is zero
	// if the header is absent or malformed.
	Expires time.Duration

	// RulesCount is the number of rules loaded from the list.
	RulesCount int

	// InvalidCount is the number of lines that could not be parsed.
	InvalidCount int
}

// ReadMetadata reads the header comments of the filter list text.  The header
// ends at the first line that is neither empty nor a comment.
func ReadMetadata(text string) (md *Metadata) {
	md = &Metadata{}

	for len(text) > 0 {
		var line string
		line, text, _ = strings.Cut(text, "\n")

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		} else if line[0] == '[' {
			// "[Adblock Plus 2.0]" headers.
			continue
		} else if line[0] != '!' {
			break
		}

		key, val, ok := strings.Cut(strings.TrimSpace(line[1:]), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			md.Title = val
		case "homepage":
			md.Homepage = val
		case "expires":
			md.Expires = parseExpires(val)
		}
	}

	return md
}

// parseExpires parses values like "4 days (update frequency)" or "12 hours".
func parseExpires(val string) (d time.Duration) {
	fields := strings.Fields(val)
	if len(fields) < 2 {
		return 0
	}

	n, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return 0
	}

	unit := strings.ToLower(fields[1])
	switch {
	case strings.HasPrefix(unit, "day"):
		return time.Duration(n) * 24 * time.Hour
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour
	default:
		return 0
	}
}
