// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package device

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest user name terminals accept.
const MaxNameLength = 24

var foldReplacer = strings.NewReplacer("đ", "d", "Đ", "D", "ø", "o", "Ø", "O", "ł", "l", "Ł", "L")

// ASCIIName strips diacritics (Nguyễn Văn Đức -> Nguyen Van Duc) and
// collapses whitespace. Runes that remain non-ASCII are dropped.
func ASCIIName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, foldReplacer.Replace(name))
	if err != nil {
		folded = name
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// ShortName returns an ASCII name of at most MaxNameLength characters.
// Long multi-word names become initials plus the last word
// ("Nguyen Thi Thanh Huong Anh Phuong" -> "NTTHA Phuong").
func ShortName(name string) string {
	s := ASCIIName(name)
	if len(s) <= MaxNameLength {
		return s
	}
	parts := strings.Fields(s)
	if len(parts) > 1 {
		var b strings.Builder
		for _, p := range parts[:len(parts)-1] {
			b.WriteString(strings.ToUpper(p[:1]))
		}
		b.WriteString(" ")
		b.WriteString(parts[len(parts)-1])
		s = b.String()
	}
	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}
	return s
}
