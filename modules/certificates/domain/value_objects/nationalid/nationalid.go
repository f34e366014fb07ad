// Package nationalid compares national identity numbers (RUT) written with
// or without punctuation.
package nationalid

import (
	"strings"
	"unicode"
)

// Normalize drops dots, dashes and whitespace and uppercases the rest, so
// "12.345.678-k" and "12345678K" compare equal.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Format renders raw the way it is printed on documents: thousands
// separated by dots and the check digit after a dash ("12.345.678-5").
// Values whose body is not all digits are returned trimmed but otherwise
// as typed.
func Format(raw string) string {
	n := Normalize(raw)
	if len(n) < 2 {
		return strings.TrimSpace(raw)
	}
	body, check := n[:len(n)-1], n[len(n)-1:]
	for _, r := range body {
		if r < '0' || r > '9' {
			return strings.TrimSpace(raw)
		}
	}
	body = strings.TrimLeft(body, "0")
	if body == "" {
		body = "0"
	}

	var b strings.Builder
	lead := len(body) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(body[:lead])
	for i := lead; i < len(body); i += 3 {
		b.WriteByte('.')
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteString(check)
	return b.String()
}
