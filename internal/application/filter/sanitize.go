package filter

import (
	"regexp"
	"strings"
)

var (
	lineBreaks = regexp.MustCompile(`[\r\n]+`)
	mentions   = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
	spaces     = regexp.MustCompile(`[ \t]{2,}`)
)

// SanitizeReply prepares a vendor reply for posting into a Side A group:
// line breaks become spaces and @mentions are removed so the bridge never
// pings people in the group.
func SanitizeReply(body string) string {
	body = lineBreaks.ReplaceAllString(body, " ")
	body = mentions.ReplaceAllString(body, "")
	body = spaces.ReplaceAllString(body, " ")
	return strings.TrimSpace(body)
}
