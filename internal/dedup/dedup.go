// Package dedup reconciles overlapping events reported by different sources
// under different identifiers. Matching is a best-effort heuristic: there is
// no shared key across sources, so records are compared by artist, city and
// the leading date token, with a normalized-title fallback.
package dedup

import (
	"log"
	"regexp"
	"strings"

	"github.com/Leejhua/concert-calendar/internal/model"
)

var (
	bracketRe = regexp.MustCompile(`【[^】]*】|\[[^\]]*\]|（[^）]*）|\([^)]*\)`)
	yearRe    = regexp.MustCompile(`\d{4}`)
	noiseRe   = regexp.MustCompile(`演唱会|巡回|站|世界|live|tour|concert`)
	spaceRe   = regexp.MustCompile(`\s+`)
	prefixRe  = regexp.MustCompile(`^【[^】]*】`)
)

// normalizeTitle strips bracketed segments, 4-digit years, whitespace and
// generic marketing words, then lower-cases, leaving only the part of a
// title likely to identify the act.
func normalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = bracketRe.ReplaceAllString(t, "")
	t = yearRe.ReplaceAllString(t, "")
	t = noiseRe.ReplaceAllString(t, "")
	return spaceRe.ReplaceAllString(t, "")
}

// cityMatch absorbs "上海" vs "上海市" style suffixes.
func cityMatch(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func dateMatch(a, b string) bool {
	d1 := model.StartDate(a)
	d2 := model.StartDate(b)
	return d1 != "" && d2 != "" && d1 == d2
}

// SameEvent reports whether two records likely describe the same real-world
// event. This is the fuzzy identity used for merge decisions only; record
// identity proper is the exact id.
func SameEvent(a, b model.Event) bool {
	// Strong match requires usable artists on both sides. When either side
	// lacks one, fall back to the weaker title heuristic.
	if model.IsGenericArtist(a.Artist) || model.IsGenericArtist(b.Artist) {
		return titleMatch(a, b)
	}
	if a.Artist != b.Artist {
		return false
	}
	if !cityMatch(a.City, b.City) {
		return false
	}
	return dateMatch(a.Date, b.Date)
}

func titleMatch(a, b model.Event) bool {
	if !cityMatch(a.City, b.City) {
		return false
	}
	if !dateMatch(a.Date, b.Date) {
		return false
	}
	t1 := normalizeTitle(a.Title)
	t2 := normalizeTitle(b.Title)
	if len([]rune(t1)) < 2 || len([]rune(t2)) < 2 {
		return strings.Contains(a.Title, b.Title) || strings.Contains(b.Title, a.Title)
	}
	return strings.Contains(t1, t2) || strings.Contains(t2, t1)
}

// Merge folds secondary into primary. Priority is strictly first-list-wins:
// a secondary record matching an accumulated one is never appended; instead
// it may enrich the existing record's artist when the existing value is a
// non-informative sentinel and the incoming one is not. Unmatched records
// are appended. The result never shrinks below len(primary).
func Merge(primary, secondary []model.Event) []model.Event {
	merged := append([]model.Event(nil), primary...)
	newCount := 0
	enriched := 0

	for _, item := range secondary {
		idx := -1
		for i := range merged {
			if SameEvent(merged[i], item) {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, item)
			newCount++
			continue
		}
		if model.IsGenericArtist(merged[idx].Artist) && !model.IsGenericArtist(item.Artist) {
			merged[idx].Artist = item.Artist
			if !strings.Contains(merged[idx].Title, item.Artist) {
				clean := prefixRe.ReplaceAllString(merged[idx].Title, "")
				merged[idx].Title = "【" + item.Artist + "】" + clean
			}
			enriched++
		}
	}

	if len(secondary) > 0 {
		log.Printf("dedup: merged %d secondary items, %d new, %d enriched", len(secondary), newCount, enriched)
	}
	return merged
}

// UpsertByID merges the freshly computed list into the previously persisted
// one keyed by exact id, last writer wins. Previously seen records are never
// dropped even when a source stops returning them. Order is previous-first,
// new appends at the tail.
func UpsertByID(previous, current []model.Event) []model.Event {
	out := append([]model.Event(nil), previous...)
	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.ID] = i
	}
	for _, e := range current {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
