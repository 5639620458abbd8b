package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/model"
	"github.com/Leejhua/concert-calendar/internal/mtop"
)

const (
	damaiCityAPI = "mtop.damai.wireless.area.groupcity"
	damaiListAPI = "mtop.damai.mec.aristotle.get"

	// Listing nodes in the aristotle response tree carry this type tag.
	listingNodeType = "7587"
	maxNodeDepth    = 64
)

// Marketing tags the vendor sometimes places in the artist slot. A showTag
// containing one of these is not a performer name.
var marketingTags = []string{
	"演唱会", "榜", "热销", "上新", "优选", "折扣", "推荐", "必看", "演出", "麦",
}

var damaiBasePayload = map[string]string{
	"platform":     "8",
	"comboChannel": "2",
	"dmChannel":    "damai@damaih5_h5",
}

// flexString tolerates upstream fields that arrive as either JSON strings
// or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString(strings.Trim(string(b), `"`))
	return nil
}

type damaiSource struct {
	cfg     config.DamaiConfig
	exclude []string
	client  *mtop.Client
	now     func() time.Time
}

// NewDamai builds the primary-platform crawler over the signed mtop client.
// The session is shared with the orchestrator, which performs the handshake
// before any crawl starts.
func NewDamai(cfg config.DamaiConfig, exclude []string, sess *mtop.Session) *damaiSource {
	return &damaiSource{
		cfg:     cfg,
		exclude: exclude,
		client: mtop.NewClient(mtop.Options{
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		}, sess),
		now: time.Now,
	}
}

func (d *damaiSource) Name() string    { return "damai" }
func (d *damaiSource) Weight() float64 { return defaultFloat(d.cfg.Weight, 0.6) }

// Client exposes the signed client so the orchestrator can run the
// handshake against the same session and base URL.
func (d *damaiSource) Client() *mtop.Client { return d.client }

// HandshakePayload is the bootstrap request body: the city directory call
// is the cheapest token-issuing endpoint.
func (d *damaiSource) Handshake(ctx context.Context) error {
	return d.client.Handshake(ctx, damaiCityAPI, damaiBasePayload)
}

type damaiCity struct {
	CityID   flexString `json:"cityId"`
	CityName string     `json:"cityName"`
}

func (d *damaiSource) cities(ctx context.Context) ([]model.Location, error) {
	resp, err := d.client.Request(ctx, damaiCityAPI, damaiBasePayload, mtop.ReqOpts{Callback: "mtopjsonp4"})
	if err != nil {
		return nil, err
	}
	var data struct {
		HotCities []damaiCity `json:"hotCities"`
		HotCity   []damaiCity `json:"hotCity"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("parse city directory: %w", err)
	}
	raw := data.HotCities
	if len(raw) == 0 {
		raw = data.HotCity
	}

	seen := make(map[string]struct{}, len(raw))
	var out []model.Location
	for _, c := range raw {
		id := string(c.CityID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if excluded(c.CityName, d.exclude) {
			continue
		}
		out = append(out, model.Location{ID: id, Name: c.CityName})
	}
	return out, nil
}

func (d *damaiSource) Crawl(ctx context.Context, progress Progress) ([]model.Event, error) {
	cities, err := d.cities(ctx)
	if err != nil {
		return nil, fmt.Errorf("damai: city directory: %w", err)
	}
	if len(cities) == 0 {
		// The directory endpoint succeeds with an empty payload when the
		// session token is not accepted.
		return nil, errors.New("damai: no cities in directory (token rejected?)")
	}
	log.Printf("damai: crawling %d cities", len(cities))

	pageSize := defaultInt(d.cfg.PageSize, 20)
	maxPages := defaultInt(d.cfg.MaxPages, 50)
	delayMin := defaultDur(d.cfg.DelayMin, 500*time.Millisecond)
	delayMax := defaultDur(d.cfg.DelayMax, 1500*time.Millisecond)

	var all []model.Event
	for i, city := range cities {
		seen := make(map[string]struct{})
		for page := 1; page <= maxPages; page++ {
			if err := throttle(ctx, delayMin, delayMax); err != nil {
				return all, err
			}
			items, err := d.fetchPage(ctx, city, page, pageSize)
			if err != nil {
				// A page failure abandons only this city's remaining pages.
				log.Printf("damai: %s page %d: %v", city.Name, page, err)
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
				// Full page of already-seen ids: upstream is repeating
				// itself, stop here rather than on the count heuristic.
				break
			}
			if len(items) < pageSize {
				break
			}
		}
		progress(fmt.Sprintf("[damai] %s (%d/%d)", city.Name, i+1, len(cities)), (i+1)*100/len(cities))
	}
	return all, nil
}

func (d *damaiSource) fetchPage(ctx context.Context, city model.Location, page, pageSize int) ([]model.Event, error) {
	args, err := json.Marshal(map[string]string{
		"comboConfigRule": "true",
		"sortType":        "3",
		"latitude":        "0",
		"longitude":       "0",
		"groupId":         "2394",
		"comboCityId":     city.ID,
		"currentCityId":   city.ID,
		"platform":        "8",
		"comboChannel":    "2",
		"dmChannel":       "damai@damaih5_h5",
		"pageIndex":       fmt.Sprintf("%d", page),
		"pageSize":        fmt.Sprintf("%d", pageSize),
	})
	if err != nil {
		return nil, err
	}
	payload := map[string]string{
		"args":           string(args),
		"patternName":    "category_solo",
		"patternVersion": "4.2",
		"platform":       "8",
		"comboChannel":   "2",
		"dmChannel":      "damai@damaih5_h5",
	}
	resp, err := d.client.Request(ctx, damaiListAPI, payload, mtop.ReqOpts{Version: "3.0", JSON: true})
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return nil, fmt.Errorf("listing call failed: %s", resp.RetCode())
	}
	var data struct {
		Nodes []damaiNode `json:"nodes"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}
	var out []model.Event
	d.collect(data.Nodes, city.Name, 0, &out)
	return out, nil
}

type damaiNode struct {
	Type  flexString     `json:"type"`
	Data  map[string]any `json:"data"`
	Nodes []damaiNode    `json:"nodes"`
}

// collect recurses through the heterogeneous node tree picking listing
// items. The decoded tree cannot cycle, but the depth cap guards against
// pathologically nested responses all the same.
func (d *damaiSource) collect(nodes []damaiNode, cityName string, depth int, out *[]model.Event) {
	if depth > maxNodeDepth {
		return
	}
	for _, n := range nodes {
		if string(n.Type) == listingNodeType && n.Data != nil {
			if ev, ok := d.item(n.Data, cityName); ok {
				*out = append(*out, ev)
			}
		}
		if len(n.Nodes) > 0 {
			d.collect(n.Nodes, cityName, depth+1, out)
		}
	}
}

func (d *damaiSource) item(data map[string]any, cityName string) (model.Event, bool) {
	id := pickAny(data, "id", "itemId")
	if id == "" {
		return model.Event{}, false
	}

	showTag := pickStr(data, "showTag")
	validTag := showTag != "" && !isMarketingTag(showTag)

	status := "Unknown"
	if ss, ok := data["showStatus"].(map[string]any); ok {
		status = defaultStr(pickStr(ss, "desc"), status)
	}
	category := "Concert"
	if tr, ok := data["topRight"].(map[string]any); ok {
		category = defaultStr(pickStr(tr, "tag"), category)
	}

	ev := model.Event{
		ID:        id,
		Title:     pickStr(data, "name", "showTag", "projectName"),
		Image:     pickStr(data, "verticalPic"),
		Date:      pickStr(data, "showTime"),
		City:      defaultStr(strings.TrimSpace(pickStr(data, "cityName")), cityName),
		Venue:     pickStr(data, "venueName"),
		Price:     defaultStr(pickAny(data, "priceShowText", "priceStr", "priceLow"), "Pending"),
		Status:    status,
		Category:  category,
		UpdatedAt: d.now().UnixMilli(),
	}
	if validTag {
		ev.Artist = showTag
		famous := true
		ev.IsFamous = &famous
	}
	return ev, true
}

func isMarketingTag(tag string) bool {
	for _, kw := range marketingTags {
		if strings.Contains(tag, kw) {
			return true
		}
	}
	return false
}
