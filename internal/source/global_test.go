package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Leejhua/concert-calendar/internal/config"
)

func globalShow(id, title string) map[string]any {
	return map[string]any{
		"id":        id,
		"title":     title,
		"imgUrl":    "http://img/" + id,
		"showDate":  "2026/02/07 - 2026/02/08",
		"location":  "香港",
		"venueName": "紅磡體育館",
		"salePrice": 480.0,
		"status":    "ONSALE",
	}
}

func newGlobalForTest(t *testing.T, handler http.Handler, exclude []string) *globalSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.GlobalConfig{
		BaseURL:   srv.URL,
		PageSize:  2,
		MaxOffset: 2,
		Delay:     time.Nanosecond,
	}
	return NewGlobal(cfg, exclude)
}

func TestGlobalCrawl(t *testing.T) {
	var offsets []int
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/pub/home/v1/show/location/list"):
			if r.Header.Get("oc") != "MTS" || r.Header.Get("channel") != "PC" {
				t.Errorf("identity headers missing")
			}
			fmt.Fprint(w, `{"success":true,"data":[
				{"id":"l-cn","code":"CN","name":"中國內地"},
				{"id":"l-hk","code":"HK","name":"香港"},
				{"id":"l-mo","code":"MO","name":"澳門"}
			]}`)
		case strings.HasPrefix(r.URL.Path, "/pub/home/v2/show/list"):
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			offsets = append(offsets, offset)
			if r.Header.Get("locationid") != "l-hk" {
				t.Errorf("locationid header = %q", r.Header.Get("locationid"))
			}
			// Always a full page of fresh ids: only the offset cap stops.
			shows := []map[string]any{
				globalShow(fmt.Sprintf("g%d", offset), "張學友60+巡迴演唱會"),
				globalShow(fmt.Sprintf("g%d", offset+1), "五月天好好好想見到你"),
			}
			json.NewEncoder(w).Encode(map[string]any{"statusCode": 200, "data": shows})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	// 澳門 normalizes to 澳门 before the exclusion check.
	src := newGlobalForTest(t, h, []string{"澳门"})

	events, err := src.Crawl(context.Background(), func(string, int) {})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if fmt.Sprint(offsets) != fmt.Sprint([]int{0, 2}) {
		t.Errorf("offsets = %v, want [0 2] (capped)", offsets)
	}
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}

	g0 := events[0]
	if g0.ID != "mtglobal_g0" {
		t.Errorf("id = %q", g0.ID)
	}
	if g0.Title != "张学友60+巡回演唱会" {
		t.Errorf("title not converted to simplified: %q", g0.Title)
	}
	if g0.Date != "2026.02.07" {
		t.Errorf("date = %q, want range start 2026.02.07", g0.Date)
	}
	if g0.Venue != "红磡体育馆" {
		t.Errorf("venue = %q", g0.Venue)
	}
	if g0.Status != "销售中" || g0.Price != "480" {
		t.Errorf("field mapping: %+v", g0)
	}
}

func TestGlobalLocationFailureIsEmptyNotFatal(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false}`)
	})
	src := newGlobalForTest(t, h, nil)
	events, err := src.Crawl(context.Background(), func(string, int) {})
	if err != nil || len(events) != 0 {
		t.Fatalf("events=%v err=%v, want empty and nil", events, err)
	}
}
