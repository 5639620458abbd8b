package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Leejhua/concert-calendar/internal/config"
)

func tkingShow(id, name, artist string) map[string]any {
	m := map[string]any{
		"showId":                id,
		"showName":              name,
		"showDate":              "2026.04.18",
		"showCity":              "北京",
		"venueName":             "工人体育场",
		"showStatusDisplayName": "预订",
		"priceInfo":             map[string]any{"prefix": "¥", "yuanNum": 580.0, "suffix": "起"},
	}
	if artist != "" {
		m["tags"] = []any{
			map[string]any{"tagType": "GENRE", "tagName": "流行"},
			map[string]any{"tagType": "ARTIST", "tagName": artist},
		}
	}
	return m
}

func newTKingForTest(t *testing.T, handler http.Handler, targets, exclude []string) *tkingSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.TKingConfig{
		BaseURL:      srv.URL,
		PageSize:     2,
		MaxPages:     5,
		Delay:        time.Nanosecond,
		TargetCities: targets,
	}
	return NewTKing(cfg, exclude)
}

func TestTKingCrawl(t *testing.T) {
	var searchCalls int
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/showapi/cities"):
			if r.URL.Query().Get("src") != "m_web" {
				t.Errorf("src param missing: %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"statusCode":200,"result":{"allCities":[
				{"title":"B","cities":[
					{"cityOID":"c-bj","cityName":"北京"},
					{"cityOID":"c-baoding","cityName":"保定"},
					{"cityOID":"c-hk","cityName":"香港"}
				]}
			]}}`)
		case strings.HasPrefix(r.URL.Path, "/mtl_recommendapi/pub/search/v1/find_show_list"):
			searchCalls++
			var payload struct {
				Offset   int    `json:"offset"`
				Length   int    `json:"length"`
				ShowType string `json:"showType"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.ShowType != "VocalConcert" {
				t.Errorf("showType = %q", payload.ShowType)
			}
			var shows []map[string]any
			switch payload.Offset {
			case 0:
				shows = []map[string]any{tkingShow("s1", "演唱会一", "伍佰"), tkingShow("s2", "演唱会二", "")}
			case 2:
				shows = []map[string]any{tkingShow("s3", "演唱会三", "")}
			}
			out := map[string]any{
				"statusCode": 200,
				"data": map[string]any{
					"searchData": shows,
					"pagination": map[string]any{"total": 3},
				},
			}
			json.NewEncoder(w).Encode(out)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	src := newTKingForTest(t, h, nil, []string{"香港", "澳门", "台湾"})

	events, err := src.Crawl(context.Background(), func(string, int) {})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	// 保定 is not a target city and 香港 is excluded, leaving one city with
	// three shows over two pages.
	if searchCalls != 2 {
		t.Errorf("searchCalls = %d, want 2 (total reached)", searchCalls)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	s1 := events[0]
	if s1.ID != "mt_s1" {
		t.Errorf("id = %q, want mt_s1", s1.ID)
	}
	if s1.Artist != "伍佰" {
		t.Errorf("artist tag not extracted: %q", s1.Artist)
	}
	if s1.Price != "¥580起" {
		t.Errorf("price = %q, want ¥580起", s1.Price)
	}
	if s1.Status != "预订" || s1.Category != "演唱会" {
		t.Errorf("field mapping: %+v", s1)
	}
	if events[1].Artist != "" {
		t.Errorf("untagged show must not carry an artist: %q", events[1].Artist)
	}
}

func TestTKingDirectoryFailureIsEmptyNotFatal(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"statusCode":500}`)
	})
	src := newTKingForTest(t, h, nil, nil)
	events, err := src.Crawl(context.Background(), func(string, int) {})
	if err != nil {
		t.Fatalf("directory failure must not be an error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}

func TestTKingDefaultPriceFallback(t *testing.T) {
	src := &tkingSource{now: time.Now}
	ev, ok := src.item(map[string]any{"showId": "x", "showName": "n", "priceInfo": map[string]any{}})
	if !ok || ev.Price != "价格待定" {
		t.Errorf("price = %q, want 价格待定", ev.Price)
	}
	ev, ok = src.item(map[string]any{"showId": "y", "showName": "n"})
	if !ok || ev.Price != "价格待定" {
		t.Errorf("missing priceInfo: price = %q, want 价格待定", ev.Price)
	}
}
