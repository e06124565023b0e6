// Package provenance reconstructs where a message came from: the relay chain
// recorded in its Received headers and a best-effort guess at the sending ESP.
package provenance

import (
	"regexp"
	"strings"

	"github.com/vdavid/mailtrace/internal/models"
)

const receivedKey = "received"

// ExtractChain returns the raw Received lines in the order they appear in the
// message (most recent hop first). Lines are not reordered, deduplicated or
// parsed. The result is never nil so it encodes as an empty JSON array.
func ExtractChain(lines []models.HeaderLine) []string {
	chain := make([]string, 0)
	for _, line := range lines {
		if line.Key == receivedKey {
			chain = append(chain, line.Line)
		}
	}
	return chain
}

// HopSummary holds the tokens SummarizeHop could pick out of a Received line.
// Any field may be empty.
type HopSummary struct {
	From string `json:"from,omitempty"`
	By   string `json:"by,omitempty"`
	With string `json:"with,omitempty"`
	IP   string `json:"ip,omitempty"`
	Raw  string `json:"raw"`
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	hopFromRe    = regexp.MustCompile(`(?i)\bfrom\s+(\S+)`)
	hopByRe      = regexp.MustCompile(`(?i)\bby\s+(\S+)`)
	hopWithRe    = regexp.MustCompile(`(?i)\bwith\s+(\S+)`)
	hopIPv4Re    = regexp.MustCompile(`\[(\d{1,3}(?:\.\d{1,3}){3})\]`)
)

// SummarizeHop does a best-effort extraction of the from/by/with tokens and
// the first bracketed IPv4 address of a Received line. It is meant for
// display only; the raw line stays the source of truth.
func SummarizeHop(line string) HopSummary {
	one := strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
	return HopSummary{
		From: firstGroup(hopFromRe, one),
		By:   firstGroup(hopByRe, one),
		With: firstGroup(hopWithRe, one),
		IP:   firstGroup(hopIPv4Re, one),
		Raw:  one,
	}
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimRight(m[1], ";")
}
