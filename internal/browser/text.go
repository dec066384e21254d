package browser

import "strings"

// trimText normalizes rendered text the way WebDriver reports it: CRLF folded
// to LF, surrounding whitespace removed from each line and from the whole.
func trimText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
