// Package zodiac holds the fixed catalogue of zodiac signs and the
// normalization rules for user input.
package zodiac

import "strings"

// Signs is the canonical ordered list. Order is stable; keyboards and
// /signs output rely on it.
var Signs = []string{
	"aries", "taurus", "gemini", "cancer", "leo", "virgo",
	"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
}

var emoji = map[string]string{
	"aries": "♈", "taurus": "♉", "gemini": "♊", "cancer": "♋",
	"leo": "♌", "virgo": "♍", "libra": "♎", "scorpio": "♏",
	"sagittarius": "♐", "capricorn": "♑", "aquarius": "♒", "pisces": "♓",
}

var aliases = map[string]string{
	"ram": "aries", "bull": "taurus", "twins": "gemini", "crab": "cancer",
	"lion": "leo", "maiden": "virgo", "scales": "libra", "scorpion": "scorpio",
	"archer": "sagittarius", "goat": "capricorn", "waterbearer": "aquarius",
	"water-bearer": "aquarius", "fish": "pisces", "fishes": "pisces",
}

// Normalize maps free-form input to a canonical sign name.
// Returns ("", false) when the input is not a recognizable sign.
func Normalize(s string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimFunc(t, func(r rune) bool { return r == '.' || r == '!' })
	if t == "" {
		return "", false
	}
	for _, c := range Signs {
		if t == c {
			return c, true
		}
	}
	if c, ok := aliases[t]; ok {
		return c, true
	}
	return "", false
}

// Emoji returns the symbol for a canonical sign, or "" for unknown input.
func Emoji(sign string) string { return emoji[sign] }

// Title capitalizes a canonical sign for display.
func Title(sign string) string {
	if sign == "" {
		return ""
	}
	return strings.ToUpper(sign[:1]) + sign[1:]
}
