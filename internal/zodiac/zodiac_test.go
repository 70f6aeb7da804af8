package zodiac

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"aries", "aries", true},
		{"Aries", "aries", true},
		{"  LEO  ", "leo", true},
		{"pisces!", "pisces", true},
		{"scorpion", "scorpio", true},
		{"water-bearer", "aquarius", true},
		{"fishes", "pisces", true},
		{"", "", false},
		{"dragon", "", false},
		{"aries taurus", "", false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("Normalize(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCatalogueComplete(t *testing.T) {
	if len(Signs) != 12 {
		t.Fatalf("expected 12 signs, got %d", len(Signs))
	}
	seen := map[string]bool{}
	for _, s := range Signs {
		if seen[s] {
			t.Fatalf("duplicate sign %q", s)
		}
		seen[s] = true
		if Emoji(s) == "" {
			t.Fatalf("sign %q has no emoji", s)
		}
		if Title(s) == s {
			t.Fatalf("Title(%q) did not capitalize", s)
		}
	}
}

func TestAliasesResolveToCanonical(t *testing.T) {
	for alias, want := range aliases {
		got, ok := Normalize(alias)
		if !ok || got != want {
			t.Fatalf("alias %q resolved to (%q, %v), want %q", alias, got, ok, want)
		}
	}
}
