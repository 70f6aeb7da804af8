// Package horoscope generates the daily payload without any external API.
//
// Output is a pure function of (sign, date): each fragment slot hashes
// sign + ISO date + a slot salt and indexes a fixed candidate table, so the
// same pair always renders byte-identical text while different dates pick
// different fragments with high probability.
package horoscope

import (
	"fmt"
	"hash/fnv"
	"time"

	"zodbot/internal/zodiac"
)

var intro = []string{
	"Today brings",
	"The day promises",
	"The morning carries",
	"The first half of the day favors",
	"A good time for",
	"The right moment for",
}

var focus = []string{
	"work", "personal matters", "conversations",
	"learning", "creative projects", "short trips",
}

var advice = []string{
	"act calmly and without haste",
	"pay attention to the details",
	"hold your course and avoid distractions",
	"don't argue on principle",
	"reconsider the value of your routines",
	"don't be afraid to ask for help",
}

var outlook = []string{
	"luck is on your side",
	"people around you are well disposed",
	"chance favors the prepared",
	"a small risk will pay off",
	"support will arrive in time",
	"the day suits new beginnings",
}

var colors = []string{
	"blue", "green", "yellow", "red", "violet", "white", "orange",
}

var numbers = []string{"3", "4", "5", "6", "7", "8", "9"}

// pick selects a candidate deterministically for (seed, salt).
//
// FNV-1a is stable across processes and Go versions; collision resistance
// is irrelevant here, only uniform spread over small tables.
func pick(table []string, seed []byte, salt string) string {
	h := fnv.New64a()
	_, _ = h.Write(seed)
	_, _ = h.Write([]byte(salt))
	return table[h.Sum64()%uint64(len(table))]
}

// Generate renders the payload for a sign on a given date.
// Unknown signs still produce output; upstream validation restricts what
// reaches the store, not what this function accepts.
func Generate(sign string, forDate time.Time) string {
	iso := forDate.Format("2006-01-02")
	seed := []byte(sign + iso)

	header := zodiac.Title(sign)
	if e := zodiac.Emoji(sign); e != "" {
		header = e + " " + header
	}

	return fmt.Sprintf(
		"%s — %s\n%s a focus on %s; %s. Advice: %s.\n\nLucky color: %s, number of the day: %s.",
		header, iso,
		pick(intro, seed, ":intro"),
		pick(focus, seed, ":focus"),
		pick(outlook, seed, ":outlook"),
		pick(advice, seed, ":advice"),
		pick(colors, seed, ":color"),
		pick(numbers, seed, ":number"),
	)
}
