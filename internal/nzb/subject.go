package nzb

import (
	"html"
	"regexp"
	"strings"
)

var (
	reFileToken = regexp.MustCompile(`\b([^\s"]+\.\w{3,4})\b`)
	reYenc      = regexp.MustCompile(`(?i)\s+yenc.*$`)
	reLead      = regexp.MustCompile(`^\[\d+/\d+\]\s+`)
	reBadChars  = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// FileNameFromSubject extracts a file name from a Usenet subject and removes OS-illegal characters
func FileNameFromSubject(subject string) string {
	res := html.UnescapeString(subject)

	// Try pattern A: Contents inside double quotes
	firstQuote := strings.Index(res, "\"")
	lastQuote := strings.LastIndex(res, "\"")
	if firstQuote != -1 && lastQuote != -1 && firstQuote < lastQuote {
		res = res[firstQuote+1 : lastQuote]
	} else if m := reFileToken.FindAllStringSubmatch(res, -1); len(m) > 0 {
		// Try pattern B: the last token that looks like name.ext
		res = m[len(m)-1][1]
	} else {
		// Try pattern C: Strip Usenet metadata (fallback)
		//  Removes (1/14) or [01/14] and the "yenc" suffix
		res = reYenc.ReplaceAllString(res, "")
		res = reLead.ReplaceAllString(res, "")
	}

	// Final cleanup: remove OS characters
	// Windows/Linux/macOS safety
	res = reBadChars.ReplaceAllString(res, "_")

	return strings.TrimSpace(res)
}
