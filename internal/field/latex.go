package field

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Combining marks for LaTeX accent commands.
var accentMarks = map[string]string{
	"'":  "\u0301",
	"`":  "\u0300",
	"^":  "\u0302",
	"\"": "\u0308",
	"~":  "\u0303",
	"=":  "\u0304",
	".":  "\u0307",
	"c":  "\u0327",
	"v":  "\u030C",
	"u":  "\u0306",
	"H":  "\u030B",
	"r":  "\u030A",
	"k":  "\u0328",
	"d":  "\u0323",
	"b":  "\u0331",
}

var latexSymbols = map[string]string{
	"ss": "ß",
	"ae": "æ",
	"AE": "Æ",
	"oe": "œ",
	"OE": "Œ",
	"aa": "å",
	"AA": "Å",
	"o":  "ø",
	"O":  "Ø",
	"l":  "ł",
	"L":  "Ł",
	"i":  "ı",
	"j":  "ȷ",
}

var (
	symbolAccent = regexp.MustCompile("\\\\(['`^\"~=.])\\s*(?:\\{([^{}]*)\\}|(\\\\?[A-Za-z]))")
	letterAccent = regexp.MustCompile(`\\([cvuHrkdb])(?:\{([^{}]*)\}|\s+([A-Za-z]))`)
	symbolCmd    = regexp.MustCompile(`\\(ss|ae|AE|oe|OE|aa|AA|o|O|l|L|i|j)\b(?:\{\}|[ \t]+)?`)
	styleCmd     = regexp.MustCompile(`\\(?:emph|textit|textbf|textsc|texttt|textrm|textsf|textup|textnormal|mathrm|mathit|mathbf|mathcal|url|mbox)\s*\{`)
	escapedChar  = regexp.MustCompile(`\\([&%$#_])`)
	unescTilde   = regexp.MustCompile(`(^|[^\\])~`)
)

// DecodeLaTeX converts common LaTeX accent and symbol commands to Unicode and
// removes grouping braces. Unknown commands are left in place.
func DecodeLaTeX(s string) string {
	if !strings.ContainsAny(s, `\{}~`) {
		return norm.NFC.String(s)
	}
	s = symbolAccent.ReplaceAllStringFunc(s, func(m string) string {
		sub := symbolAccent.FindStringSubmatch(m)
		return accent(sub[1], sub[2]+sub[3])
	})
	s = letterAccent.ReplaceAllStringFunc(s, func(m string) string {
		sub := letterAccent.FindStringSubmatch(m)
		return accent(sub[1], sub[2]+sub[3])
	})
	s = symbolCmd.ReplaceAllStringFunc(s, func(m string) string {
		return latexSymbols[symbolCmd.FindStringSubmatch(m)[1]]
	})
	s = styleCmd.ReplaceAllString(s, "{")
	s = escapedChar.ReplaceAllString(s, "$1")
	s = unescTilde.ReplaceAllString(s, "$1 ")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return norm.NFC.String(s)
}

func accent(cmd, base string) string {
	switch base {
	case `\i`:
		base = "i"
	case `\j`:
		base = "j"
	}
	mark := accentMarks[cmd]
	if base == "" {
		return cmd
	}
	r := []rune(base)
	// The accent applies to the first letter only.
	return string(r[0]) + mark + string(r[1:])
}
