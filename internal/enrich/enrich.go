// Package enrich classifies ambiguous listing titles through an external
// text-classification service: artist extraction plus tribute/fame flags.
// The remote call is best effort; any failure leaves the records unchanged.
package enrich

import (
	"context"
	"log"
	"strings"

	"github.com/Leejhua/concert-calendar/internal/model"
)

// Titles containing these keywords mark low-value events (tribute,
// memorial, imitation, fan meetings). They are flagged locally and never
// sent to the classifier.
var BlacklistKeywords = []string{
	"烛光", "致敬", "模仿", "重现", "同人", "纪念", "追忆",
	"作品音乐会", "见面会", "金曲", "情歌", "表白",
}

// Classification is the per-title verdict of the remote service.
type Classification struct {
	Artist    string `json:"artist"`
	IsTribute bool   `json:"is_tribute"`
	IsFamous  *bool  `json:"is_famous"`
}

// Classifier resolves a batch of titles. Implementations may fail; callers
// must degrade gracefully.
type Classifier interface {
	Classify(ctx context.Context, titles []string) (map[string]Classification, error)
}

func blacklisted(s string) bool {
	for _, kw := range BlacklistKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Enrich applies the blacklist pre-filter, accepts trustworthy
// source-provided artist tags as-is, and classifies the remaining titles in
// one batch. The input slice is mutated and returned; a failing or
// malformed remote call leaves the unclassified records untouched.
func Enrich(ctx context.Context, events []model.Event, cls Classifier) []model.Event {
	if len(events) == 0 {
		return events
	}

	var pending []int // indexes still needing classification
	for i := range events {
		e := &events[i]
		if blacklisted(e.Title) {
			e.Artist = model.ArtistUnknown
			e.IsTribute = true
			continue
		}
		if e.Artist != "" && e.Artist != "群星" && e.Artist != model.ArtistUnknown && !blacklisted(e.Artist) {
			e.Title = model.PrefixTitle(e.Artist, e.Title)
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 || cls == nil {
		return events
	}

	titles := make([]string, len(pending))
	for i, idx := range pending {
		titles[i] = events[idx].Title
	}
	log.Printf("enrich: classifying %d of %d titles (%d handled by blacklist or source tags)",
		len(titles), len(events), len(events)-len(titles))

	verdicts, err := cls.Classify(ctx, titles)
	if err != nil {
		log.Printf("enrich: classify failed, keeping records unchanged: %v", err)
		return events
	}

	for _, idx := range pending {
		e := &events[idx]
		info, ok := verdicts[e.Title]
		if !ok {
			continue
		}
		e.Artist = info.Artist
		if e.Artist == "" {
			e.Artist = model.ArtistUnknown
		}
		e.IsTribute = info.IsTribute
		famous := true
		if info.IsFamous != nil {
			famous = *info.IsFamous
		}
		e.IsFamous = &famous

		// Tributary and low-fame acts are deliberately not surfaced as
		// headliners.
		if e.IsTribute || !famous {
			e.Artist = model.ArtistUnknown
		}
		e.Title = model.PrefixTitle(e.Artist, e.Title)
	}
	return events
}
