package normalizer

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9~!@#$%^&*()\-+\[\]{}|;',./<>?\s]`)

// CleanKey strips characters outside the header allow-list.
func CleanKey(key string) string {
	return strings.TrimSpace(unsafeKeyChars.ReplaceAllString(key, ""))
}

func cleanKeys(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[CleanKey(k)] = strings.TrimSpace(v)
	}
	return out
}

var coordinateScale = decimal.NewFromInt(1_000_000)

// ScaleCoordinate converts a fixed-point coordinate scaled by 1e6. Zero, empty
// and unparseable values are unknown.
func ScaleCoordinate(raw string) decimal.NullDecimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Div(coordinateScale))
}

// SanitizeName canonicalizes a company or person name: NFKC form, trimmed,
// inner whitespace collapsed, and all-caps input title-cased.
func SanitizeName(name string) string {
	name = norm.NFKC.String(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if isAllUpper(name) {
		// Casers are stateful, so each call gets its own.
		name = cases.Title(language.AmericanEnglish).String(strings.ToLower(name))
	}
	return name
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

var dateLayouts = []string{"1/2/06", "1/2/2006", "2006-01-02"}

// ParseDate reads M/D/YY, M/D/YYYY or YYYY-MM-DD, ignoring anything after the
// first space. It never fails loudly: unmatched input reports ok=false.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateString formats a parsed date as YYYY-MM-DD, or "" when s does not parse.
func DateString(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}
