package keycodec

import (
	"fmt"
	"strings"
)

const (
	// HierarchySeparator splits a tree key into its levels.
	HierarchySeparator byte = ':'
	// VersionSeparator separates an escaped key from its encoded version.
	VersionSeparator byte = '_'
	// EscapeChar starts a two-character escape sequence.
	EscapeChar byte = '\\'

	// The digit alphabet is drawn from the printable ASCII range.
	firstChar = 32
	charCount = 95
)

var (
	alphabet []byte
	digitOf  [256]int

	// escape code for each reserved character and back again
	escapeCode   = map[byte]byte{VersionSeparator: '0', EscapeChar: '1', HierarchySeparator: '2'}
	unescapeCode = map[byte]byte{}
)

func init() {
	for i := range digitOf {
		digitOf[i] = -1
	}
	for c := firstChar; c < firstChar+charCount; c++ {
		b := byte(c)
		if _, reserved := escapeCode[b]; reserved {
			continue
		}
		digitOf[b] = len(alphabet)
		alphabet = append(alphabet, b)
	}
	for raw, code := range escapeCode {
		unescapeCode[code] = raw
	}
}

// Base returns the number of digits available for integer encoding.
func Base() int {
	return len(alphabet)
}

// EncodeInt writes n in base Base(), least significant digit first. Zero
// encodes to the empty string, so callers shouldn't encode 0 where an empty
// suffix would be ambiguous.
func EncodeInt(n uint64) string {
	var sb strings.Builder
	size := uint64(len(alphabet))
	for n > 0 {
		sb.WriteByte(alphabet[n%size])
		n /= size
	}
	return sb.String()
}

// DecodeInt reverses EncodeInt.
func DecodeInt(s string) (uint64, error) {
	var n uint64
	size := uint64(len(alphabet))
	for i := len(s) - 1; i >= 0; i-- {
		d := digitOf[s[i]]
		if d < 0 {
			return 0, fmt.Errorf("invalid digit %q at position %d", s[i], i)
		}
		n = n*size + uint64(d)
	}
	return n, nil
}

// Escape replaces every reserved character in s with its escape sequence.
// The result never contains a separator character.
func Escape(s string) string {
	if !strings.ContainsAny(s, reserved) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if code, ok := escapeCode[c]; ok {
			sb.WriteByte(EscapeChar)
			sb.WriteByte(code)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Unescape reverses Escape. It fails on escape sequences Escape can't
// produce.
func Unescape(s string) (string, error) {
	if strings.IndexByte(s, EscapeChar) < 0 {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != EscapeChar {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape character at the end of %q", s)
		}
		raw, ok := unescapeCode[s[i+1]]
		if !ok {
			return "", fmt.Errorf("unknown escape sequence %q in %q", s[i:i+2], s)
		}
		sb.WriteByte(raw)
		i++
	}
	return sb.String(), nil
}

// AppendVersion builds the literal key holding the given version of an
// already escaped key.
func AppendVersion(escaped string, version uint64) string {
	return escaped + string(VersionSeparator) + EncodeInt(version)
}

// SuffixKey escapes key and appends the encoded version to it.
func SuffixKey(key string, version uint64) string {
	return AppendVersion(Escape(key), version)
}

// IsBaseKey reports whether a literal backend key carries no version suffix.
func IsBaseKey(literal string) bool {
	return strings.IndexByte(literal, VersionSeparator) < 0
}

const (
	reserved  = string(VersionSeparator) + string(EscapeChar) + string(HierarchySeparator)
	globMetas = "*?[]{}\\"
)

// EscapePattern translates a glob written against caller keys into a glob
// matching the escaped literal keys. Backslash escapes in the pattern keep
// their glob meaning and mark the next character as a literal.
func EscapePattern(pattern string) string {
	var sb strings.Builder
	sb.Grow(len(pattern) + 8)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == EscapeChar && i+1 < len(pattern):
			i++
			writeGlobLiteral(&sb, pattern[i])
		case c == EscapeChar, c == VersionSeparator, c == HierarchySeparator:
			writeGlobLiteral(&sb, c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func writeGlobLiteral(sb *strings.Builder, c byte) {
	if code, ok := escapeCode[c]; ok {
		// a literal backslash followed by the code digit
		sb.WriteString(`\\`)
		sb.WriteByte(code)
		return
	}
	if strings.IndexByte(globMetas, c) >= 0 {
		sb.WriteByte(EscapeChar)
	}
	sb.WriteByte(c)
}
