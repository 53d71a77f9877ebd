package resources

import (
	"strconv"
	"strings"
)

// argEscaper escapes scriptlet arguments so that they can be placed inside
// a JavaScript string literal.
var argEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"<", `\x3C`,
)

// fillTemplate replaces the {{1}}, {{2}}, etc. placeholders in tmpl with the
// escaped arguments.  Placeholders without an argument are replaced with empty
// strings.
func fillTemplate(tmpl string, args []string) (code string) {
	b := &strings.Builder{}
	for {
		start := strings.Index(tmpl, "{{")
		if start < 0 {
			break
		}

		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			break
		}

		end += start
		n, err := strconv.Atoi(tmpl[start+2 : end])
		if err != nil || n < 1 {
			b.WriteString(tmpl[:start+2])
			tmpl = tmpl[start+2:]

			continue
		}

		b.WriteString(tmpl[:start])
		if n <= len(args) {
			b.WriteString(argEscaper.Replace(unquoteArg(args[n-1])))
		}

		tmpl = tmpl[end+2:]
	}

	b.WriteString(tmpl)

	return b.String()
}

// unquoteArg removes the matching single or double quotes around arg, if any.
func unquoteArg(arg string) (unquoted string) {
	if len(arg) < 2 {
		return arg
	}

	if q := arg[0]; (q == '\'' || q == '"') && arg[len(arg)-1] == q {
		return arg[1 : len(arg)-1]
	}

	return arg
}
