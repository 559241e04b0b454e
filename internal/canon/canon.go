// Package canon canonicalizes and validates HTTP/1.x header field names
// and values, RFC 7230 style.
//
// Adapted from badu-http's hdr package: that package backed a
// map[string][]string header type, so canonicalization only needed to
// run on Set/Add/Get. evnet's header pairs preserve insertion order and
// duplicates (see headers.go), so HttpParser canonicalizes every field
// name as it copies the pair onto the message; this package is trimmed to exactly that
// leaf — no Header map type, no wire writer, no time parsing.
package canon

const toLower = 'a' - 'A'

// isTokenTable is a copy of net/http/lex.go's isTokenTable.
// See https://httpwg.github.io/specs/rfc7230.html#rule.token.separators
var isTokenTable = [127]bool{
	'0': true, '1': true, '2': true, '3': true, '4': true, '5': true, '6': true, '7': true,
	'8': true, '9': true,

	'a': true, 'b': true, 'c': true, 'd': true, 'e': true, 'f': true, 'g': true, 'h': true,
	'i': true, 'j': true, 'k': true, 'l': true, 'm': true, 'n': true, 'o': true, 'p': true,
	'q': true, 'r': true, 's': true, 't': true, 'u': true, 'v': true, 'w': true, 'x': true,
	'y': true, 'z': true,

	'A': true, 'B': true, 'C': true, 'D': true, 'E': true, 'F': true, 'G': true, 'H': true,
	'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true, 'O': true, 'P': true,
	'Q': true, 'R': true, 'S': true, 'T': true, 'U': true, 'V': true, 'W': true, 'X': true,
	'Y': true, 'Z': true,

	'!': true, '#': true, '$': true, '%': true, '&': true, '\'': true, '*': true, '+': true,
	'-': true, '.': true, '^': true, '_': true, '`': true, '|': true, '~': true,
}

// commonHeader interns frequently seen canonical header names so
// parsing a request doesn't allocate a new string per header per
// connection.
var commonHeader = map[string]string{
	"Content-Type":      "Content-Type",
	"Content-Length":    "Content-Length",
	"Host":               "Host",
	"Connection":         "Connection",
	"Transfer-Encoding":  "Transfer-Encoding",
	"Accept":             "Accept",
	"Accept-Encoding":    "Accept-Encoding",
	"User-Agent":         "User-Agent",
	"Upgrade":            "Upgrade",
	"Cookie":             "Cookie",
	"Set-Cookie":         "Set-Cookie",
	"Date":               "Date",
}

func validHeaderFieldByte(b byte) bool {
	return int(b) < len(isTokenTable) && isTokenTable[b]
}

// Key returns the canonical format of the MIME header key s: the first
// letter and any letter following a hyphen are upper-cased, the rest
// lower-cased. Invalid input (spaces, non-token bytes) is returned
// unmodified, matching net/http's textproto.CanonicalMIMEHeaderKey.
func Key(s string) string {
	upper := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !validHeaderFieldByte(c) {
			return s
		}
		if upper && 'a' <= c && c <= 'z' {
			return keyFromBytes([]byte(s))
		}
		if !upper && 'A' <= c && c <= 'Z' {
			return keyFromBytes([]byte(s))
		}
		upper = c == '-'
	}
	return s
}

func keyFromBytes(a []byte) string {
	for _, c := range a {
		if validHeaderFieldByte(c) {
			continue
		}
		return string(a)
	}
	upper := true
	for i, c := range a {
		if upper && 'a' <= c && c <= 'z' {
			c -= toLower
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += toLower
		}
		a[i] = c
		upper = c == '-'
	}
	if v := commonHeader[string(a)]; v != "" {
		return v
	}
	return string(a)
}

// ValidFieldName reports whether v is a syntactically valid header
// field name (a non-empty RFC 7230 token).
func ValidFieldName(v string) bool {
	if len(v) == 0 {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !validHeaderFieldByte(v[i]) {
			return false
		}
	}
	return true
}
