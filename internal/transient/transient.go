// Package transient classifies errors as transient (worth one retry) or
// not, per spec.md §7's narrowed error taxonomy (replacing the broad
// catch-and-continue pattern of original_source with a short substring
// list plus one retry, then a loud failure).
package transient

import "strings"

// substrings is the short list spec.md §5 calls for: "connection-level
// errors identified by a short substring list (e.g. 'connection refused',
// 'timeout')".
var substrings = []string{
	"connection refused",
	"timeout",
	"timed out",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"eof",
}

// Is reports whether err looks like a transient I/O failure worth one retry.
func Is(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range substrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
