package fieldparser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	vendorScanLines     = 10
	vendorFallbackLines = 5
	vendorMaxLen        = 100
	vendorMinLen        = 3
)

var (
	headerWord = regexp.MustCompile(`(?i)^(?:Invoice|Date|Total|Amount|Tax|VAT)`)

	vendorLabel   = regexp.MustCompile(`(?i)(?:From|Bill\s*From|Vendor|Supplier|Company)[:\s]+(.+)`)
	vendorCompany = regexp.MustCompile(`^([A-Z][A-Za-z\s&]+(?:Inc|LLC|Ltd|Pty|Corp|Company)?)`)
)

// lineRule inspects a single trimmed line.
type lineRule struct {
	name  string
	match func(line string) (string, bool)
}

var vendorLineRules = []lineRule{
	{name: "label", match: captureFirst(vendorLabel)},
	{name: "company", match: func(line string) (string, bool) {
		if headerWord.MatchString(line) {
			return "", false
		}
		return captureFirst(vendorCompany)(line)
	}},
}

// resolveVendor scans the first lines trying every rule per line before moving on,
// then falls back to the first plausible non-header line.
func resolveVendor(text string) (string, string, bool) {
	lines := nonBlankLines(text)

	for i, line := range lines {
		if i >= vendorScanLines {
			break
		}
		for _, r := range vendorLineRules {
			if v, ok := r.match(line); ok {
				return truncateRunes(v, vendorMaxLen), r.name, true
			}
		}
	}

	for i, line := range lines {
		if i >= vendorFallbackLines {
			break
		}
		if headerWord.MatchString(line) {
			continue
		}
		n := utf8.RuneCountInString(line)
		if n > vendorMinLen && n < vendorMaxLen {
			return truncateRunes(line, vendorMaxLen), "first_line", true
		}
	}
	return "", "", false
}

func captureFirst(re *regexp.Regexp) func(string) (string, bool) {
	return func(line string) (string, bool) {
		m := re.FindStringSubmatch(line)
		if len(m) < 2 {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
