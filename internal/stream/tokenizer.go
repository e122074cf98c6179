package stream

import (
	"regexp"
	"strings"
)

// The mini-protocol sentinels. A begin sentinel opens a named file block,
// an end sentinel returns the stream to prose.
//
//	@@@FILE:render_php@@@ ... @@@END_FILE@@@
//
// Whitespace around the key is tolerated; the model drifts.
const (
	marker = "@@@"

	beginTag = "FILE"
	endTag   = "END_FILE"

	// maxHold bounds how many trailing characters may be withheld from
	// rendering while they could still complete a sentinel. Anything older
	// is flushed as prose, which bounds rendering latency to a constant.
	maxHold = 192
)

// Tolerated whitespace is spaces and tabs only. Newlines terminate a
// candidate sentinel; this must stay in lockstep with viablePrefix or a
// sentinel split across chunks would leak as prose.
var (
	beginRe = regexp.MustCompile(`@@@[ \t]*FILE[ \t]*:[ \t]*([A-Za-z0-9_.\-]+)[ \t]*@@@`)
	endRe   = regexp.MustCompile(`@@@[ \t]*END_FILE[ \t]*@@@`)
)

// sentinelMatch is one recognized sentinel inside a buffer.
type sentinelMatch struct {
	start, end int    // byte offsets of the whole sentinel
	key        string // raw key for begin sentinels
}

// findBegin locates the first begin-file sentinel in buf.
func findBegin(buf string) (sentinelMatch, bool) {
	loc := beginRe.FindStringSubmatchIndex(buf)
	if loc == nil {
		return sentinelMatch{}, false
	}
	return sentinelMatch{start: loc[0], end: loc[1], key: buf[loc[2]:loc[3]]}, true
}

// findEnd locates the first end-file sentinel in buf.
func findEnd(buf string) (sentinelMatch, bool) {
	loc := endRe.FindStringIndex(buf)
	if loc == nil {
		return sentinelMatch{}, false
	}
	return sentinelMatch{start: loc[0], end: loc[1]}, true
}

// holdbackIndex returns the offset from which buf must be retained because
// the suffix could still be the start of a sentinel split across chunk
// boundaries. Everything before the offset is safe to flush. The suffix is
// bounded by maxHold; a suffix that long without completing is flushed.
func holdbackIndex(buf string, tag string) int {
	from := 0
	if len(buf) > maxHold {
		from = len(buf) - maxHold
	}
	for i := from; i < len(buf); i++ {
		if buf[i] != '@' {
			continue
		}
		if viablePrefix(buf[i:], tag) {
			return i
		}
	}
	return len(buf)
}

// viablePrefix reports whether s could grow into a sentinel for tag once more
// input arrives. It walks the sentinel grammar and succeeds only if s runs
// out before contradicting it.
func viablePrefix(s, tag string) bool {
	// Opening marker.
	n, ok := consumeMarkerPrefix(s)
	if !ok {
		return false
	}
	s = s[n:]
	if n < len(marker) {
		return s == ""
	}
	s = strings.TrimLeft(s, " \t")
	// Tag literal.
	if len(s) < len(tag) {
		return strings.HasPrefix(tag, s)
	}
	if !strings.HasPrefix(s, tag) {
		return false
	}
	s = s[len(tag):]
	s = strings.TrimLeft(s, " \t")
	if tag == beginTag {
		if s == "" {
			return true
		}
		if s[0] != ':' {
			return false
		}
		s = strings.TrimLeft(s[1:], " \t")
		// Key characters.
		for len(s) > 0 && isKeyByte(s[0]) {
			s = s[1:]
		}
		s = strings.TrimLeft(s, " \t")
	}
	if s == "" {
		return true
	}
	// Closing marker prefix must account for the entire remainder, otherwise
	// the candidate already failed to be a sentinel.
	n, ok = consumeMarkerPrefix(s)
	return ok && n == len(s)
}

// consumeMarkerPrefix consumes up to len(marker) leading '@' characters.
func consumeMarkerPrefix(s string) (int, bool) {
	n := 0
	for n < len(s) && n < len(marker) && s[n] == '@' {
		n++
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}

func isKeyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
		c == '_', c == '.', c == '-':
		return true
	}
	return false
}
