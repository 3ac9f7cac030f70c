package parsers

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// accountHeaderLines bounds the scan window: broker statements that embed
// an account line always do so in the preamble above the tabular header.
const accountHeaderLines = 10

var accountPattern = regexp.MustCompile(`(?i)For\s*Account[:\s,]*([#A-Za-z0-9]+)`)

// ExtractAccountNumber scans the first lines of the raw file for an
// embedded account marker such as "For Account: #####1234" and returns the
// trailing token with leading hash marks stripped. Returns "" when no
// marker line exists within the window; not every broker format embeds one.
func ExtractAccountNumber(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for i := 0; i < accountHeaderLines && scanner.Scan(); i++ {
		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), "account") {
			continue
		}
		if m := accountPattern.FindStringSubmatch(line); m != nil {
			return strings.TrimLeft(m[1], "#")
		}
	}
	return ""
}
