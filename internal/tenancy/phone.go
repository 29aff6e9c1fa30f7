package tenancy

import (
	"regexp"
	"strings"
)

var (
	channelPrefixes = []string{"whatsapp:", "tel:", "sip:"}
	stripChars      = regexp.MustCompile(`[\s\-.]+`)
	e164Pattern     = regexp.MustCompile(`^\+[0-9]{8,15}$`)
)

// NormalizeE164 strips channel-specific prefixes and punctuation from a raw
// inbound identifier and validates it as an E.164 number (spec.md §4.1).
func NormalizeE164(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, prefix := range channelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			lower = lower[len(prefix):]
			break
		}
	}
	s = stripChars.ReplaceAllString(s, "")
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if !e164Pattern.MatchString(s) {
		return "", ErrInvalidNumber
	}
	return s, nil
}
