package model

import (
	"regexp"
	"strings"
)

// ArtistUnknown is the sentinel used when no performer could be identified.
const ArtistUnknown = "Unknown"

// Generic non-informative artist values. A record carrying one of these is
// treated as having no usable artist for matching and may be enriched.
var genericArtists = map[string]struct{}{
	ArtistUnknown: {},
	"群星":          {},
	"待定":          {},
	"歌手":          {},
	"音乐会":         {},
}

// Event is the canonical listing record shared by all sources.
// Date is loosely structured upstream text, not a parsed timestamp; only the
// leading YYYY.MM.DD token extracted by StartDate is used for sorting and
// matching.
type Event struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Date      string `json:"date"`
	City      string `json:"city"`
	Venue     string `json:"venue"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	Category  string `json:"category,omitempty"`
	Artist    string `json:"artist,omitempty"`
	IsTribute bool   `json:"is_tribute,omitempty"`
	IsFamous  *bool  `json:"is_famous,omitempty"` // nil = never classified
	UpdatedAt int64  `json:"updatedAt"`           // epoch millis
}

// Location is a source-specific place entry. IDs are opaque and never
// compared across sources.
type Location struct {
	ID   string
	Name string
}

// SyncResult summarizes one orchestrator run.
type SyncResult struct {
	Success       bool   `json:"success"`
	TotalNew      int    `json:"totalNew"`
	TotalCombined int    `json:"totalCombined"`
	Message       string `json:"message,omitempty"`
}

// Sync states as reported through the status store.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateError     = "error"
)

// SyncStatus is the externally polled progress record.
type SyncStatus struct {
	State       string      `json:"status"`
	Progress    int         `json:"progress"` // 0..100
	Message     string      `json:"message"`
	LastUpdated int64       `json:"lastUpdated"` // epoch millis
	RunID       string      `json:"runId,omitempty"`
	Result      *SyncResult `json:"result,omitempty"`
}

var (
	startDateRe = regexp.MustCompile(`\d{4}[.\-/]\d{2}[.\-/]\d{2}`)
	monthKeyRe  = regexp.MustCompile(`(\d{4})[.\-/](\d{1,2})`)
)

// StartDate extracts the first YYYY.MM.DD-shaped token from loosely
// structured date text, normalizing - and / separators to dots. Returns ""
// when no such token exists. Upstream date strings range from "2026.03.13"
// to "2026/02/07 - 2026/02/08" to "2026.03.13 周五 19:30"; the first token
// is authoritative.
func StartDate(date string) string {
	m := startDateRe.FindString(date)
	if m == "" {
		return ""
	}
	m = strings.ReplaceAll(m, "-", ".")
	return strings.ReplaceAll(m, "/", ".")
}

// MonthKey extracts a "YYYY-MM" bucket from date text, or "" if undated.
func MonthKey(date string) string {
	m := monthKeyRe.FindStringSubmatch(date)
	if m == nil {
		return ""
	}
	month := m[2]
	if len(month) == 1 {
		month = "0" + month
	}
	return m[1] + "-" + month
}

// IsGenericArtist reports whether the value carries no real performer
// information (empty or one of the known sentinels).
func IsGenericArtist(artist string) bool {
	if artist == "" {
		return true
	}
	_, ok := genericArtists[artist]
	return ok
}

// PrefixTitle formats a title with its artist as a 【...】 prefix.
// Idempotent: titles that already carry a bracketed prefix are returned
// unchanged.
func PrefixTitle(artist, title string) string {
	if artist == "" || artist == ArtistUnknown {
		return title
	}
	if strings.HasPrefix(title, "【") {
		return title
	}
	return "【" + artist + "】" + title
}
