package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/siongui/gojianfan"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/model"
	"github.com/Leejhua/concert-calendar/internal/util"
)

type globalSource struct {
	cfg     config.GlobalConfig
	exclude []string
	client  *http.Client
	now     func() time.Time
}

// NewGlobal builds the overseas-aggregator crawler. Listings arrive in
// Traditional script and are normalized to Simplified before any downstream
// comparison.
func NewGlobal(cfg config.GlobalConfig, exclude []string) *globalSource {
	return &globalSource{
		cfg:     cfg,
		exclude: exclude,
		client:  util.NewHTTPClient(defaultDur(cfg.Timeout, 15*time.Second)),
		now:     time.Now,
	}
}

func (g *globalSource) Name() string    { return "global" }
func (g *globalSource) Weight() float64 { return defaultFloat(g.cfg.Weight, 0.15) }

func (g *globalSource) base() string {
	return strings.TrimRight(defaultStr(g.cfg.BaseURL, "https://api-global.moretickets.com"), "/")
}

func (g *globalSource) get(ctx context.Context, path string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("channel", "PC")
	req.Header.Set("code", "WEB")
	req.Header.Set("src", "WEB")
	req.Header.Set("oc", "MTS")
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

type globalLocation struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func (g *globalSource) locations(ctx context.Context) ([]globalLocation, error) {
	var resp struct {
		Success bool             `json:"success"`
		Data    []globalLocation `json:"data"`
	}
	if err := g.get(ctx, "/pub/home/v1/show/location/list", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("location list not successful")
	}

	var out []globalLocation
	for _, loc := range resp.Data {
		// Mainland inventory is covered by the primary source already.
		if loc.Code == "CN" {
			continue
		}
		if excluded(gojianfan.T2S(loc.Name), g.exclude) {
			continue
		}
		out = append(out, loc)
	}
	return out, nil
}

func (g *globalSource) Crawl(ctx context.Context, progress Progress) ([]model.Event, error) {
	locations, err := g.locations(ctx)
	if err != nil {
		log.Printf("global: location list: %v", err)
		return nil, nil
	}
	log.Printf("global: crawling %d locations", len(locations))

	pageSize := defaultInt(g.cfg.PageSize, 20)
	maxOffset := defaultInt(g.cfg.MaxOffset, 100)
	delay := defaultDur(g.cfg.Delay, 200*time.Millisecond)
	categoryID := defaultStr(g.cfg.CategoryID, "668fa364407ad90001885db2")

	var all []model.Event
	for i, loc := range locations {
		seen := make(map[string]struct{})
		for offset := 0; offset <= maxOffset; offset += pageSize {
			if offset > 0 {
				if err := throttle(ctx, delay, delay); err != nil {
					return all, err
				}
			}
			items, err := g.fetchPage(ctx, loc, categoryID, offset, pageSize)
			if err != nil {
				log.Printf("global: %s offset %d: %v", loc.Name, offset, err)
				break
			}
			if len(items) == 0 {
				break
			}
			newItems := 0
			for _, it := range items {
				if _, dup := seen[it.ID]; dup {
					continue
				}
				seen[it.ID] = struct{}{}
				all = append(all, it)
				newItems++
			}
			if newItems == 0 {
				break
			}
			if len(items) < pageSize {
				break
			}
		}
		progress(fmt.Sprintf("[global] %s (%d/%d)", loc.Name, i+1, len(locations)), (i+1)*100/len(locations))
	}
	return all, nil
}

func (g *globalSource) fetchPage(ctx context.Context, loc globalLocation, categoryID string, offset, length int) ([]model.Event, error) {
	path := fmt.Sprintf("/pub/home/v2/show/list?locationId=%s&categoryId=%s&sorting=HOT_WEIGHT&offset=%d&length=%d",
		loc.ID, categoryID, offset, length)
	var resp struct {
		StatusCode int              `json:"statusCode"`
		Data       []map[string]any `json:"data"`
	}
	headers := map[string]string{"locationid": loc.ID}
	if err := g.get(ctx, path, headers, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("show list status %d", resp.StatusCode)
	}
	items := make([]model.Event, 0, len(resp.Data))
	for _, m := range resp.Data {
		if ev, ok := g.item(m, loc.Name); ok {
			items = append(items, ev)
		}
	}
	return items, nil
}

func (g *globalSource) item(m map[string]any, locationName string) (model.Event, bool) {
	id := pickAny(m, "id")
	if id == "" {
		return model.Event{}, false
	}

	// Date text like "2026/02/07 - 2026/02/08" or "2026/02/21 Sat 20:00":
	// keep the range start and normalize separators.
	date := pickStr(m, "showDate")
	if idx := strings.Index(date, " - "); idx >= 0 {
		date = date[:idx]
	}
	date = strings.ReplaceAll(date, "/", ".")
	if d := model.StartDate(date); d != "" {
		date = d
	}

	status := pickStr(m, "status")
	if status == "ONSALE" {
		status = "销售中"
	}

	return model.Event{
		ID:        "mtglobal_" + id,
		Title:     gojianfan.T2S(pickStr(m, "title")),
		Image:     pickStr(m, "imgUrl"),
		Date:      date,
		City:      gojianfan.T2S(defaultStr(pickStr(m, "location"), locationName)),
		Venue:     gojianfan.T2S(pickStr(m, "venueName")),
		Price:     defaultStr(pickAny(m, "salePrice"), "Pending"),
		Status:    defaultStr(status, "Unknown"),
		Category:  "演唱会",
		UpdatedAt: g.now().UnixMilli(),
	}, true
}
