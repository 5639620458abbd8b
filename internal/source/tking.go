package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/model"
	"github.com/Leejhua/concert-calendar/internal/util"
)

// Major cities worth crawling on the mobile aggregator; the full directory
// lists hundreds of towns with no concert inventory.
var defaultTargetCities = []string{
	"北京", "上海", "广州", "深圳", "成都", "武汉", "杭州", "重庆", "西安", "南京",
	"长沙", "天津", "苏州", "郑州", "沈阳", "济南", "青岛", "大连", "哈尔滨", "福州",
	"厦门", "昆明", "南宁", "合肥", "石家庄", "太原", "长春", "贵阳", "兰州", "银川",
	"西宁", "呼和浩特", "乌鲁木齐", "海口", "三亚", "香港", "澳门",
}

type tkingSource struct {
	cfg     config.TKingConfig
	exclude []string
	client  *http.Client
	now     func() time.Time
}

// NewTKing builds the secondary mobile-aggregator crawler. The API is
// unauthenticated apart from static device headers.
func NewTKing(cfg config.TKingConfig, exclude []string) *tkingSource {
	return &tkingSource{
		cfg:     cfg,
		exclude: exclude,
		client:  util.NewHTTPClient(defaultDur(cfg.Timeout, 15*time.Second)),
		now:     time.Now,
	}
}

func (t *tkingSource) Name() string    { return "tking" }
func (t *tkingSource) Weight() float64 { return defaultFloat(t.cfg.Weight, 0.25) }

func (t *tkingSource) base() string {
	return strings.TrimRight(defaultStr(t.cfg.BaseURL, "https://m3.tking.cn"), "/")
}

// do issues a GET, or a POST when a JSON body is supplied, and decodes the
// response into out.
func (t *tkingSource) do(ctx context.Context, path string, body any, out any) error {
	var rd io.Reader
	method := http.MethodGet
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base()+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("source", defaultStr(t.cfg.Src, "m_web"))
	req.Header.Set("src", defaultStr(t.cfg.Src, "m_web"))
	if t.cfg.DeviceID != "" {
		req.Header.Set("device-id", t.cfg.DeviceID)
	}
	if t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	resp, err := t.client.Do(req)
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

func (t *tkingSource) query() string {
	return fmt.Sprintf("src=%s&time=%d&ver=%s",
		defaultStr(t.cfg.Src, "m_web"), t.now().UnixMilli(), defaultStr(t.cfg.Ver, "6.59.0"))
}

type tkingCity struct {
	CityOID  string `json:"cityOID"`
	CityName string `json:"cityName"`
}

func (t *tkingSource) cities(ctx context.Context) ([]model.Location, error) {
	var resp struct {
		StatusCode int `json:"statusCode"`
		Result     struct {
			AllCities []struct {
				Title  string      `json:"title"`
				Cities []tkingCity `json:"cities"`
			} `json:"allCities"`
		} `json:"result"`
	}
	if err := t.do(ctx, "/showapi/cities?"+t.query(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("city directory status %d", resp.StatusCode)
	}

	targets := t.cfg.TargetCities
	if len(targets) == 0 {
		targets = defaultTargetCities
	}
	wanted := make(map[string]struct{}, len(targets))
	for _, n := range targets {
		wanted[n] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []model.Location
	for _, group := range resp.Result.AllCities {
		for _, c := range group.Cities {
			if c.CityOID == "" {
				continue
			}
			if _, ok := wanted[c.CityName]; !ok {
				continue
			}
			if excluded(c.CityName, t.exclude) {
				continue
			}
			if _, dup := seen[c.CityOID]; dup {
				continue
			}
			seen[c.CityOID] = struct{}{}
			out = append(out, model.Location{ID: c.CityOID, Name: c.CityName})
		}
	}
	return out, nil
}

func (t *tkingSource) Crawl(ctx context.Context, progress Progress) ([]model.Event, error) {
	cities, err := t.cities(ctx)
	if err != nil {
		// This aggregator only supplements the primary source; a directory
		// failure downgrades to an empty contribution.
		log.Printf("tking: city directory: %v", err)
		return nil, nil
	}
	log.Printf("tking: crawling %d cities", len(cities))

	pageSize := defaultInt(t.cfg.PageSize, 10)
	maxPages := defaultInt(t.cfg.MaxPages, 20)
	delay := defaultDur(t.cfg.Delay, 200*time.Millisecond)

	var all []model.Event
	for i, city := range cities {
		seen := make(map[string]struct{})
		for page := 1; page <= maxPages; page++ {
			if page > 1 {
				if err := throttle(ctx, delay, delay); err != nil {
					return all, err
				}
			}
			items, total, err := t.fetchPage(ctx, city.ID, page, pageSize)
			if err != nil {
				log.Printf("tking: %s page %d: %v", city.Name, page, err)
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
			if len(items) < pageSize || page*pageSize >= total {
				break
			}
		}
		progress(fmt.Sprintf("[tking] %s (%d/%d)", city.Name, i+1, len(cities)), (i+1)*100/len(cities))
	}
	return all, nil
}

func (t *tkingSource) fetchPage(ctx context.Context, cityID string, page, pageSize int) ([]model.Event, int, error) {
	payload := map[string]any{
		"src":           defaultStr(t.cfg.Src, "m_web"),
		"ver":           defaultStr(t.cfg.Ver, "6.59.0"),
		"time":          fmt.Sprintf("%d", t.now().UnixMilli()),
		"cityId":        cityID,
		"showCityList":  nil,
		"beginDateTime": nil,
		"endDateTime":   nil,
		"sorting":       "weight",
		"showType":      "VocalConcert",
		"offset":        (page - 1) * pageSize,
		"length":        pageSize,
	}
	var resp struct {
		StatusCode int `json:"statusCode"`
		Data       struct {
			SearchData []map[string]any `json:"searchData"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"data"`
	}
	if err := t.do(ctx, "/mtl_recommendapi/pub/search/v1/find_show_list?"+t.query(), payload, &resp); err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != 200 {
		return nil, 0, fmt.Errorf("search status %d", resp.StatusCode)
	}
	items := make([]model.Event, 0, len(resp.Data.SearchData))
	for _, m := range resp.Data.SearchData {
		if ev, ok := t.item(m); ok {
			items = append(items, ev)
		}
	}
	return items, resp.Data.Pagination.Total, nil
}

func (t *tkingSource) item(m map[string]any) (model.Event, bool) {
	id := pickAny(m, "showId")
	if id == "" {
		return model.Event{}, false
	}

	// Only the ARTIST-typed tag names a performer; other tags are genres
	// or marketing labels.
	artist := ""
	if tags, ok := m["tags"].([]any); ok {
		for _, tv := range tags {
			tag, ok := tv.(map[string]any)
			if !ok {
				continue
			}
			if pickStr(tag, "tagType") == "ARTIST" {
				artist = pickStr(tag, "tagName")
				break
			}
		}
	}

	price := "价格待定"
	if pi, ok := m["priceInfo"].(map[string]any); ok {
		price = pickStr(pi, "prefix") + pickAny(pi, "yuanNum") + pickStr(pi, "suffix")
		if price == "" {
			price = "价格待定"
		}
	}

	return model.Event{
		ID:        "mt_" + id,
		Title:     pickStr(m, "showName"),
		Date:      pickStr(m, "showDate"),
		City:      pickStr(m, "showCity", "cityName"),
		Venue:     pickStr(m, "venueName"),
		Price:     price,
		Status:    defaultStr(pickStr(m, "showStatusDisplayName"), "销售中"),
		Category:  "演唱会",
		Artist:    artist,
		UpdatedAt: t.now().UnixMilli(),
	}, true
}
